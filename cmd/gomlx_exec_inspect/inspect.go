package main

import (
	"fmt"
	"os"
	"time"
	"unsafe"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/runtime/backends"
	"github.com/gomlx/runtime/backends/hostparams"
	"github.com/gomlx/runtime/backends/reference"
	"github.com/gomlx/runtime/pkg/core/dtypes"
	"github.com/gomlx/runtime/pkg/core/shapes"
	"github.com/gomlx/runtime/pkg/core/tensors"
	"github.com/gomlx/runtime/pkg/support/xsync"
	"github.com/pkg/errors"
)

// loadExecutable reads an executable saved by the given backend.
func loadExecutable(backend backends.Backend, filePath string) (backends.Executable, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open executable file")
	}
	defer func() { _ = f.Close() }()
	e, err := backend.Load(f)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to load executable from %q", filePath)
	}
	return e, nil
}

// saveExample compiles a small graph with the reference backend and saves it to filePath.
func saveExample(backend backends.Backend, filePath string) error {
	g := reference.NewGraph("example")
	x := g.Parameter("x", shapes.Make(dtypes.Float32, 2, 3))
	bias := g.Parameter("bias", shapes.Make(dtypes.Float32))
	y := g.Add(g.Scale(x, 2), bias)
	g.Return(y, g.ReduceMax(y), g.ReduceSum(g.Max(y, g.Fill(y.Shape(), 0))))
	e, err := backend.Compile(g)
	if err != nil {
		return err
	}
	defer e.Finalize()
	f, err := os.Create(filePath)
	if err != nil {
		return errors.Wrapf(err, "failed to create %q", filePath)
	}
	if err = e.Save(f); err != nil {
		_ = f.Close()
		return err
	}
	return errors.Wrapf(f.Close(), "failed to close %q", filePath)
}

// filledInputs returns host tensors for the parameters of e, with all elements set to value
// narrowed to the parameter's dtype.
func filledInputs(e backends.Executable, value float64) ([]tensors.Tensor, error) {
	h := hostparams.New()
	parameters := e.Parameters()
	inputs := make([]tensors.Tensor, len(parameters))
	for ii, parameter := range parameters {
		ptr, err := h.ValueOf(parameter.Shape.DType, value)
		if err != nil {
			return nil, errors.WithMessagef(err, "parameter #%d %q", ii, parameter.Name)
		}
		elementSize := parameter.Shape.DType.Size()
		element := unsafe.Slice((*byte)(ptr), elementSize)
		input := tensors.FromShape(parameter.Shape)
		err = input.MutableBytes(func(data []byte) {
			for pos := 0; pos+elementSize <= len(data); pos += elementSize {
				copy(data[pos:], element)
			}
		})
		if err != nil {
			return nil, err
		}
		inputs[ii] = input
	}
	return inputs, nil
}

// newOutputs allocates host tensors for the results of e.
func newOutputs(e backends.Executable) []tensors.Tensor {
	results := e.Results()
	outputs := make([]tensors.Tensor, len(results))
	for ii, result := range results {
		outputs[ii] = tensors.FromShape(result.Shape)
	}
	return outputs
}

// runStats summarizes the executions of runExecutable.
type runStats struct {
	Runs, Failed int
	Elapsed      time.Duration
	Outputs      []tensors.Tensor
}

// runExecutable executes e numRuns times with inputs. If async, all executions are
// scheduled with BeginExecute and then awaited.
func runExecutable(e backends.Executable, inputs []tensors.Tensor, numRuns int, async bool) (runStats, error) {
	stats := runStats{Runs: numRuns}
	start := time.Now()
	if async {
		futures := make([]*xsync.Future[bool], numRuns)
		allOutputs := make([][]tensors.Tensor, numRuns)
		for ii := range numRuns {
			allOutputs[ii] = newOutputs(e)
			if err := e.Validate(allOutputs[ii], inputs); err != nil {
				return stats, err
			}
			futures[ii] = e.BeginExecute(allOutputs[ii], inputs)
		}
		for ii, future := range futures {
			ok, err := future.Await()
			if err != nil {
				return stats, errors.WithMessagef(err, "execution #%d", ii)
			}
			if !ok {
				stats.Failed++
			}
		}
		if numRuns > 0 {
			stats.Outputs = allOutputs[numRuns-1]
		}
	} else {
		outputs := newOutputs(e)
		for ii := range numRuns {
			ok, err := e.CallWithValidate(outputs, inputs)
			if err != nil {
				return stats, errors.WithMessagef(err, "execution #%d", ii)
			}
			if !ok {
				stats.Failed++
			}
		}
		stats.Outputs = outputs
	}
	stats.Elapsed = time.Since(start)
	return stats, nil
}

// summaryTable describes the executable.
func summaryTable(filePath string, e backends.Executable) *reportTable {
	table := newReportTable(lipgloss.Right, lipgloss.Left)
	table.Add(false, "file", filePath)
	table.Add(false, "name", e.Name())
	if refExec, ok := e.(*reference.Executable); ok {
		table.Add(false, "id", refExec.ID().String())
		table.Add(false, "# launches", humanize.Comma(int64(refExec.NumLaunches())))
		table.Add(false, "# staged scalars", humanize.Comma(int64(refExec.NumStagedScalars())))
	}
	var inputBytes, outputBytes uintptr
	for _, parameter := range e.Parameters() {
		inputBytes += parameter.Shape.Memory()
	}
	for _, result := range e.Results() {
		outputBytes += result.Shape.Memory()
	}
	table.Add(false, "# parameters", humanize.Comma(int64(len(e.Parameters()))))
	table.Add(false, "input bytes", humanize.Bytes(uint64(inputBytes)))
	table.Add(false, "# results", humanize.Comma(int64(len(e.Results()))))
	table.Add(false, "output bytes", humanize.Bytes(uint64(outputBytes)))
	return table
}

// descriptorsTable lists parameters and results.
func descriptorsTable(e backends.Executable) *reportTable {
	table := newReportTable(lipgloss.Left, lipgloss.Right, lipgloss.Left, lipgloss.Left, lipgloss.Left, lipgloss.Right)
	table.Headers("Kind", "Index", "Name", "Shape", "PJRT", "Bytes")
	for _, parameter := range e.Parameters() {
		table.Add(!hostparams.IsSupported(parameter.Shape.DType),
			"parameter", fmt.Sprint(parameter.Index), parameter.Name, parameter.Shape.String(),
			pjrtName(parameter.Shape.DType), humanize.Bytes(uint64(parameter.Shape.Memory())))
	}
	for _, result := range e.Results() {
		table.Add(false, "result", fmt.Sprint(result.Index), "", result.Shape.String(),
			pjrtName(result.Shape.DType), humanize.Bytes(uint64(result.Shape.Memory())))
	}
	return table
}

// pjrtName is the name of the PJRT dtype buffers of dtype would be transferred as, or "-".
func pjrtName(dtype dtypes.DType) string {
	pjrtDType, ok := dtypes.ToPJRT(dtype)
	if !ok {
		return "-"
	}
	return fmt.Sprint(pjrtDType)
}

// runTable summarizes the executions and the values of the outputs of the last one.
// Failed executions are highlighted.
func runTable(stats runStats) *reportTable {
	table := newReportTable(lipgloss.Right, lipgloss.Left)
	table.Add(false, "# runs", humanize.Comma(int64(stats.Runs)))
	table.Add(stats.Failed > 0, "# failed", humanize.Comma(int64(stats.Failed)))
	table.Add(false, "elapsed", stats.Elapsed.String())
	if stats.Runs > 0 {
		table.Add(false, "mean", (stats.Elapsed / time.Duration(stats.Runs)).String())
	}
	for ii, output := range stats.Outputs {
		table.Add(false, fmt.Sprintf("output #%d", ii), fmt.Sprint(output))
	}
	return table
}

// perfTable lists the performance counters.
func perfTable(counters []backends.PerformanceCounter) *reportTable {
	table := newReportTable(lipgloss.Left, lipgloss.Right)
	table.Headers("Counter", "Calls", "Total", "Mean")
	for _, counter := range counters {
		table.Add(false, counter.Name, humanize.Comma(counter.Count), counter.Total.String(), counter.Mean().String())
	}
	return table
}
