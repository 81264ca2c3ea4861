package reference

import (
	"bytes"
	"encoding/gob"
	"math"
	"testing"

	"github.com/gomlx/runtime/backends"
	"github.com/gomlx/runtime/pkg/core/dtypes"
	"github.com/gomlx/runtime/pkg/core/shapes"
	"github.com/gomlx/runtime/pkg/core/tensors"
	"github.com/gomlx/runtime/pkg/support/xsync"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildGraph returns a graph with one Float32[3] parameter "x" and outputs:
// x+1, max(x, 0), 2*x, ReduceMax(x), ReduceMin(x), ReduceSum(x).
func buildGraph() *Graph {
	g := NewGraph("stats")
	x := g.Parameter("x", shapes.Make(dtypes.Float32, 3))
	zeros := g.Fill(shapes.Make(dtypes.Float32, 3), 0)
	_ = g.Mul(x, x) // Unused, it is dropped by the compiler.
	g.Return(
		g.Add(x, g.Constant(dtypes.Float32, 1)),
		g.Max(x, zeros),
		g.Scale(x, 2),
		g.ReduceMax(x),
		g.ReduceMin(x),
		g.ReduceSum(x),
	)
	return g
}

func newOutputs(e backends.Executable) []tensors.Tensor {
	results := e.Results()
	outputs := make([]tensors.Tensor, len(results))
	for ii, result := range results {
		outputs[ii] = tensors.FromShape(result.Shape)
	}
	return outputs
}

func flat32(t tensors.Tensor) []float32 {
	return tensors.MustCopyFlatData[float32](t.(*tensors.Local))
}

func checkStatsOutputs(t *testing.T, outputs []tensors.Tensor) {
	assert.Equal(t, []float32{2, -1, 4.5}, flat32(outputs[0]))
	assert.Equal(t, []float32{1, 0, 3.5}, flat32(outputs[1]))
	assert.Equal(t, []float32{2, -4, 7}, flat32(outputs[2]))
	assert.Equal(t, []float32{3.5}, flat32(outputs[3]))
	assert.Equal(t, []float32{-2}, flat32(outputs[4]))
	assert.Equal(t, []float32{2.5}, flat32(outputs[5]))
}

func TestCompileAndCall(t *testing.T) {
	backend := NewWithOptions(DefaultOptions())
	e := must.M1(backend.Compile(buildGraph())).(*Executable)
	defer e.Finalize()
	assert.Equal(t, "stats", e.Name())
	assert.Equal(t, 8, e.NumLaunches())
	// Fill, Constant and Scale literals plus one seed per reduction.
	assert.Equal(t, 6, e.NumStagedScalars())

	parameters := e.Parameters()
	require.Len(t, parameters, 1)
	assert.Equal(t, "x", parameters[0].Name)
	assert.Equal(t, shapes.Make(dtypes.Float32, 3), parameters[0].Shape)
	results := e.Results()
	require.Len(t, results, 6)
	for ii, result := range results {
		assert.Equal(t, ii, result.Index)
	}
	assert.True(t, results[3].Shape.IsScalar())

	inputs := []tensors.Tensor{tensors.FromFlatDataAndDimensions([]float32{1, -2, 3.5}, 3)}
	outputs := newOutputs(e)
	ok, err := e.CallWithValidate(outputs, inputs)
	require.NoError(t, err)
	require.True(t, ok)
	checkStatsOutputs(t, outputs)

	// Executables can be called any number of times.
	inputs = []tensors.Tensor{tensors.FromFlatDataAndDimensions([]float32{0, 0, 1}, 3)}
	ok, err = e.CallWithValidate(outputs, inputs)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []float32{1}, flat32(outputs[5]))

	// No performance data unless requested.
	assert.Empty(t, e.PerformanceData())
}

func TestValidation(t *testing.T) {
	backend := NewWithOptions(DefaultOptions())
	e := must.M1(backend.Compile(buildGraph()))
	defer e.Finalize()
	outputs := newOutputs(e)

	_, err := e.CallWithValidate(outputs, nil)
	require.ErrorIs(t, err, backends.ErrValidation)

	wrongDType := []tensors.Tensor{tensors.FromFlatDataAndDimensions([]float64{1, 2, 3}, 3)}
	_, err = e.CallWithValidate(outputs, wrongDType)
	require.ErrorIs(t, err, backends.ErrValidation)
	assert.Contains(t, err.Error(), "(Float64)[3]")

	// Without validation a size mismatch is still caught.
	wrongSize := []tensors.Tensor{tensors.FromFlatDataAndDimensions([]float32{1, 2}, 2)}
	ok, err := e.Call(outputs, wrongSize)
	require.Error(t, err)
	assert.False(t, ok)
}

func TestBeginExecuteMatchesCall(t *testing.T) {
	backend := NewWithOptions(Options{Parallelism: 3})
	e := must.M1(backend.Compile(buildGraph()))
	defer e.Finalize()

	const numCalls = 8
	allOutputs := make([][]tensors.Tensor, numCalls)
	futures := make([]*xsync.Future[bool], numCalls)
	for ii := range numCalls {
		inputs := []tensors.Tensor{tensors.FromFlatDataAndDimensions([]float32{1, -2, 3.5}, 3)}
		allOutputs[ii] = newOutputs(e)
		futures[ii] = e.BeginExecute(allOutputs[ii], inputs)
	}
	for ii, future := range futures {
		ok, err := future.Await()
		require.NoError(t, err)
		require.True(t, ok)
		checkStatsOutputs(t, allOutputs[ii])
	}
}

func TestNarrowedLiterals(t *testing.T) {
	g := NewGraph("narrow")
	x := g.Parameter("x", shapes.Make(dtypes.Uint8, 2))
	g.Return(
		g.Fill(shapes.Make(dtypes.Uint8, 2), 300),
		g.Add(x, g.Constant(dtypes.Uint8, 200)),
		g.ReduceMax(g.Fill(shapes.Make(dtypes.Int32, 0), 1)),
		g.ReduceMax(g.Fill(shapes.Make(dtypes.Float32, 0), 1)),
		g.ReduceMin(g.Fill(shapes.Make(dtypes.Int16, 0), 1)),
	)
	backend := NewWithOptions(DefaultOptions())
	e := must.M1(backend.Compile(g))
	defer e.Finalize()

	outputs := newOutputs(e)
	inputs := []tensors.Tensor{tensors.FromFlatDataAndDimensions([]uint8{1, 100}, 2)}
	ok, err := e.CallWithValidate(outputs, inputs)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []uint8{44, 44}, tensors.MustCopyFlatData[uint8](outputs[0].(*tensors.Local)))
	assert.Equal(t, []uint8{201, 44}, tensors.MustCopyFlatData[uint8](outputs[1].(*tensors.Local)))
	assert.Equal(t, []int32{math.MinInt32}, tensors.MustCopyFlatData[int32](outputs[2].(*tensors.Local)))
	assert.True(t, math.IsInf(float64(flat32(outputs[3])[0]), -1))
	assert.Equal(t, []int16{math.MaxInt16}, tensors.MustCopyFlatData[int16](outputs[4].(*tensors.Local)))
}

func TestNaNCheck(t *testing.T) {
	g := NewGraph("nan")
	x := g.Parameter("x", shapes.Make(dtypes.Float64, 2))
	g.Return(g.Sub(x, x))

	inputs := []tensors.Tensor{tensors.FromFlatDataAndDimensions([]float64{math.Inf(1), 1}, 2)}

	// Without nancheck, NaN is a valid result.
	plain := must.M1(NewWithOptions(DefaultOptions()).Compile(g))
	defer plain.Finalize()
	outputs := newOutputs(plain)
	ok, err := plain.Call(outputs, inputs)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, math.IsNaN(tensors.MustCopyFlatData[float64](outputs[0].(*tensors.Local))[0]))

	checked := must.M1(NewWithOptions(Options{NaNCheck: true}).Compile(g))
	defer checked.Finalize()
	outputs = []tensors.Tensor{tensors.FromFlatDataAndDimensions([]float64{-7, -7}, 2)}
	ok, err = checked.CallWithValidate(outputs, inputs)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, []float64{-7, -7}, tensors.MustCopyFlatData[float64](outputs[0].(*tensors.Local)))

	ok, err = checked.BeginExecute(outputs, inputs).Await()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPerformanceData(t *testing.T) {
	backend := must.M1(New("perf,parallelism=1"))
	e := must.M1(backend.Compile(buildGraph()))
	defer e.Finalize()

	counters := e.PerformanceData()
	require.NotEmpty(t, counters)
	assert.Equal(t, UploadCounter, counters[0].Name)
	assert.Equal(t, DownloadCounter, counters[len(counters)-1].Name)
	for _, counter := range counters {
		assert.Zero(t, counter.Count)
	}

	inputs := []tensors.Tensor{tensors.FromFlatDataAndDimensions([]float32{1, -2, 3.5}, 3)}
	for range 3 {
		ok, err := e.CallWithValidate(newOutputs(e), inputs)
		require.NoError(t, err)
		require.True(t, ok)
	}
	counts := make(map[string]int64)
	for _, counter := range e.PerformanceData() {
		counts[counter.Name] = counter.Count
	}
	assert.Equal(t, int64(3), counts[UploadCounter])
	assert.Equal(t, int64(3), counts[DownloadCounter])
	assert.Equal(t, int64(3), counts["Add"])
	assert.Equal(t, int64(3), counts["Fill"])
	assert.Equal(t, int64(3), counts["ReduceSum"])
	_, hasMul := counts["Mul"]
	assert.False(t, hasMul, "unused Mul should have been dropped")
}

func TestSaveAndLoad(t *testing.T) {
	backend := NewWithOptions(DefaultOptions())
	e := must.M1(backend.Compile(buildGraph())).(*Executable)
	defer e.Finalize()

	var buf bytes.Buffer
	require.NoError(t, e.Save(&buf))
	saved := buf.Bytes()

	loaded := must.M1(backend.Load(bytes.NewReader(saved))).(*Executable)
	defer loaded.Finalize()
	assert.Equal(t, e.ID(), loaded.ID())
	assert.Equal(t, e.Name(), loaded.Name())
	assert.Equal(t, e.Parameters(), loaded.Parameters())
	assert.Equal(t, e.Results(), loaded.Results())
	assert.Equal(t, e.NumStagedScalars(), loaded.NumStagedScalars())

	inputs := []tensors.Tensor{tensors.FromFlatDataAndDimensions([]float32{1, -2, 3.5}, 3)}
	outputs := newOutputs(loaded)
	ok, err := loaded.CallWithValidate(outputs, inputs)
	require.NoError(t, err)
	require.True(t, ok)
	checkStatsOutputs(t, outputs)

	// Corrupted or truncated streams are rejected.
	_, err = backend.Load(bytes.NewReader(saved[:len(saved)/2]))
	require.Error(t, err)
	_, err = backend.Load(bytes.NewReader([]byte("not an executable")))
	require.Error(t, err)

	// A finalized executable can't be saved.
	loaded.Finalize()
	require.Error(t, loaded.Save(&buf))
	_, err = loaded.Call(outputs, inputs)
	require.Error(t, err)
}

func TestLoadRejectsInvalidPrograms(t *testing.T) {
	backend := NewWithOptions(DefaultOptions())
	e := must.M1(backend.Compile(buildGraph())).(*Executable)
	defer e.Finalize()

	program := *e.program
	program.Launches = append([]launchDef(nil), program.Launches...)
	program.Launches[0].Output = len(program.Slots)
	require.Error(t, program.check())

	program = *e.program
	program.ResultSlots = nil
	require.Error(t, program.check())

	program = *e.program
	program.Slots = append([]shapes.Shape(nil), program.Slots...)
	program.Slots[0] = shapes.Make(dtypes.Complex64, 3)
	require.Error(t, program.check())
	program.Slots[0] = shapes.Shape{DType: dtypes.Float32, Dimensions: []int{-2}}
	require.ErrorContains(t, program.check(), "negative dimension")

	// Slots whose size overflows int would otherwise be allocated with a wrapped size.
	program.Slots[0] = shapes.Shape{DType: dtypes.Float32, Dimensions: []int{math.MaxInt / 2, 4}}
	require.ErrorContains(t, program.check(), "too large")
	program.Slots[0] = shapes.Shape{DType: dtypes.Float32, Dimensions: []int{math.MaxInt / 8}}
	require.ErrorContains(t, program.check(), "too large")

	// Same through Load, with an otherwise consistent stream.
	var buf bytes.Buffer
	require.NoError(t, gob.NewEncoder(&buf).Encode(&savedExecutable{
		Magic:      SavedMagic,
		Version:    SavedVersion,
		ID:         e.ID(),
		Name:       e.Name(),
		Parameters: e.Parameters(),
		Results:    slotShapes(e.program.ResultSlots, program.Slots),
		Program:    program,
	}))
	_, err := backend.Load(&buf)
	require.ErrorContains(t, err, "too large")

	require.NoError(t, e.program.check())
}

func slotShapes(slots []int, shapesBySlot []shapes.Shape) []shapes.Shape {
	result := make([]shapes.Shape, len(slots))
	for ii, slot := range slots {
		result[ii] = shapesBySlot[slot]
	}
	return result
}

func TestCompileErrors(t *testing.T) {
	backend := NewWithOptions(DefaultOptions())
	_, err := backend.Compile("not a graph")
	require.Error(t, err)

	g := NewGraph("incomplete")
	g.Parameter("x", shapes.Make(dtypes.Int32))
	_, err = backend.Compile(g)
	require.Error(t, err)

	assert.Panics(t, func() { NewGraph("bool").Parameter("b", shapes.Make(dtypes.Bool, 2)) })
	assert.Panics(t, func() {
		g := NewGraph("mismatch")
		g.Add(g.Parameter("a", shapes.Make(dtypes.Int32, 2)), g.Parameter("b", shapes.Make(dtypes.Int32, 3)))
	})
	assert.Panics(t, func() {
		g := NewGraph("dtypes")
		g.Add(g.Parameter("a", shapes.Make(dtypes.Int32, 2)), g.Parameter("b", shapes.Make(dtypes.Int64, 2)))
	})
	assert.Panics(t, func() { NewGraph("literal").Constant(dtypes.Int32, "one") })
	assert.Panics(t, func() {
		other := NewGraph("other")
		NewGraph("mixed").Return(other.Constant(dtypes.Int8, 1))
	})

	backend.Finalize()
	_, err = backend.Compile(buildGraph())
	require.Error(t, err)
}

func TestRegistry(t *testing.T) {
	backend := must.M1(backends.NewWithConfig("ref:perf,nancheck,parallelism=4"))
	defer backend.Finalize()
	assert.Equal(t, BackendName, backend.Name())
	options := backend.(*Backend).Options()
	assert.True(t, options.Perf)
	assert.True(t, options.NaNCheck)
	assert.Equal(t, 4, options.Parallelism)

	_, err := backends.NewWithConfig("ref:turbo")
	require.Error(t, err)
	_, err = backends.NewWithConfig("ref:parallelism=many")
	require.Error(t, err)
}
