package main

import (
	"path/filepath"
	"testing"

	"github.com/gomlx/runtime/backends"
	"github.com/gomlx/runtime/backends/reference"
	"github.com/gomlx/runtime/pkg/core/dtypes"
	"github.com/gomlx/runtime/pkg/core/shapes"
	"github.com/gomlx/runtime/pkg/core/tensors"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithOption(t *testing.T) {
	assert.Equal(t, "ref:perf", withOption("ref", "perf"))
	assert.Equal(t, "ref:perf", withOption("ref:", "perf"))
	assert.Equal(t, "ref:nancheck,perf", withOption("ref:nancheck", "perf"))
}

func TestExampleRoundTrip(t *testing.T) {
	backend := must.M1(backends.NewWithConfig("ref:perf"))
	defer backend.Finalize()
	filePath := filepath.Join(t.TempDir(), "example.exec")
	require.NoError(t, saveExample(backend, filePath))

	e := must.M1(loadExecutable(backend, filePath))
	defer e.Finalize()
	assert.Equal(t, "example", e.Name())
	require.Len(t, e.Parameters(), 2)
	assert.Equal(t, "bias", e.Parameters()[1].Name)

	// All inputs are 1.9, so y = 2*x + bias = 5.7.
	inputs := must.M1(filledInputs(e, 1.9))
	require.Len(t, inputs, 2)
	assert.Equal(t, dtypes.Float32, tensors.DTypeOf(inputs[1]))

	for _, async := range []bool{false, true} {
		stats := must.M1(runExecutable(e, inputs, 3, async))
		assert.Equal(t, 3, stats.Runs)
		assert.Zero(t, stats.Failed)
		require.Len(t, stats.Outputs, 3)
		maxValue := tensors.MustCopyFlatData[float32](stats.Outputs[1].(*tensors.Local))
		assert.InDelta(t, 5.7, maxValue[0], 1e-5)
	}
	counters := e.PerformanceData()
	require.NotEmpty(t, counters)
	assert.Equal(t, reference.UploadCounter, counters[0].Name)
	assert.Equal(t, int64(6), counters[0].Count)

	// Tables render without panicking.
	assert.Contains(t, descriptorsTable(e).Render(), "bias")
	assert.Equal(t, "-", pjrtName(dtypes.S4))
	assert.NotEqual(t, "-", pjrtName(dtypes.Float32))
	assert.Contains(t, summaryTable(filePath, e).Render(), "example")
	assert.NotEmpty(t, perfTable(counters).Render())
}

func TestFilledInputsNarrowing(t *testing.T) {
	g := reference.NewGraph("narrow")
	g.Return(g.Parameter("b", shapes.Make(dtypes.Uint8, 4)))
	e := must.M1(reference.NewWithOptions(reference.DefaultOptions()).Compile(g))
	defer e.Finalize()
	inputs := must.M1(filledInputs(e, 300))
	assert.Equal(t, []uint8{44, 44, 44, 44}, tensors.MustCopyFlatData[uint8](inputs[0].(*tensors.Local)))
}
