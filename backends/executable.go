// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package backends

import (
	"fmt"
	"io"
	"reflect"
	"slices"
	"sync"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/runtime/internal/workerspool"
	"github.com/gomlx/runtime/pkg/core/shapes"
	"github.com/gomlx/runtime/pkg/core/tensors"
	"github.com/gomlx/runtime/pkg/support/xsync"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Executable is the API for compiled programs ready to execute.
//
// Implementations embed ExecutableBase, which provides everything but Call.
type Executable interface {
	// Name of the compiled program.
	Name() string

	// Parameters returns the descriptors of the inputs, in the order given to the compiling backend.
	Parameters() []Parameter

	// Results returns the descriptors of the outputs, in the order given to the compiling backend.
	Results() []Result

	// Call executes the program once, reading inputs and writing into the pre-allocated outputs.
	//
	// It does no validation of the inputs and outputs, see CallWithValidate.
	// It returns false (with a nil error) if the execution failed at runtime (e.g. a device fault).
	// An error is returned if the execution couldn't be attempted.
	Call(outputs, inputs []tensors.Tensor) (bool, error)

	// CallWithValidate validates the inputs and outputs and then calls Call.
	// If validation fails Call is not invoked and a *ValidationError is returned.
	CallWithValidate(outputs, inputs []tensors.Tensor) (bool, error)

	// BeginExecute schedules Call to be executed asynchronously and returns immediately.
	//
	// There are no ordering guarantees among concurrent BeginExecute calls, and there is no way to cancel
	// a scheduled execution. Errors (including panics) raised during the execution are only reported when
	// the returned future is awaited.
	BeginExecute(outputs, inputs []tensors.Tensor) *xsync.Future[bool]

	// Validate checks that the number of inputs and outputs match the descriptors, and that each one has
	// the expected shape (dimensions and dtype). It returns a *ValidationError on the first mismatch.
	Validate(outputs, inputs []tensors.Tensor) error

	// PerformanceData returns the performance counters collected by the executable so far, if any.
	PerformanceData() []PerformanceCounter

	// Save serializes the executable to w, so it can be loaded later with the Backend.Load method
	// of the same backend. It returns ErrSaveNotSupported if the backend doesn't support it.
	Save(w io.Writer) error

	// Finalize immediately frees resources associated with the executable.
	// It waits for pending asynchronous executions to finish.
	Finalize()
}

// Parameter describes one input of an Executable.
type Parameter struct {
	Name  string
	Shape shapes.Shape
	Index int
}

// String implements fmt.Stringer.
func (p Parameter) String() string {
	return fmt.Sprintf("#%d %q %s", p.Index, p.Name, p.Shape)
}

// Result describes one output of an Executable.
type Result struct {
	Shape shapes.Shape
	Index int
}

// String implements fmt.Stringer.
func (r Result) String() string {
	return fmt.Sprintf("#%d %s", r.Index, r.Shape)
}

// Caller is the part of the Executable implemented by each backend.
type Caller interface {
	Call(outputs, inputs []tensors.Tensor) (bool, error)
}

type lifecycle int

const (
	uninitialized lifecycle = iota
	ready
	destroyed
)

// ExecutableBase implements the parts of Executable common to all backends.
//
// Backends embed it in their executable, implement Call, and call Init once the parameters and
// results are known. The zero value is an uninitialized executable.
type ExecutableBase struct {
	name       string
	caller     Caller
	parameters []Parameter
	results    []Result

	mu       sync.RWMutex
	state    lifecycle
	pool     *workerspool.Pool
	inFlight *xsync.DynamicWaitGroup
}

// Init sets the name, the implementation of Call and the parameters/results descriptors.
// The descriptors' Index fields are set to their positions.
//
// It can only be called once: a second call returns an error and leaves the executable unchanged.
func (b *ExecutableBase) Init(name string, caller Caller, parameters []Parameter, results []Result) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != uninitialized {
		return errors.Errorf("executable %q: descriptors can only be initialized once", b.name)
	}
	if caller == nil {
		return errors.Errorf("executable %q: nil Caller", name)
	}
	b.name = name
	b.caller = caller
	b.parameters = slices.Clone(parameters)
	for ii := range b.parameters {
		b.parameters[ii].Index = ii
		b.parameters[ii].Shape = b.parameters[ii].Shape.Clone()
	}
	b.results = slices.Clone(results)
	for ii := range b.results {
		b.results[ii].Index = ii
		b.results[ii].Shape = b.results[ii].Shape.Clone()
	}
	if b.pool == nil {
		b.pool = workerspool.New()
	}
	b.inFlight = xsync.NewDynamicWaitGroup()
	b.state = ready
	return nil
}

// SetMaxParallelism sets the maximum number of concurrent executions scheduled with BeginExecute.
// A value < 0 means unlimited, 0 means the executions are run one at a time.
//
// It should be called before the first BeginExecute.
func (b *ExecutableBase) SetMaxParallelism(maxParallelism int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pool = workerspool.NewWithParallelism(maxParallelism)
}

// Name implements Executable.
func (b *ExecutableBase) Name() string {
	return b.name
}

// CheckValid returns an error if the executable is not initialized or has been finalized.
func (b *ExecutableBase) CheckValid() error {
	if b == nil {
		return errors.New("executable is nil")
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	switch b.state {
	case uninitialized:
		return errors.New("executable not initialized")
	case destroyed:
		return errors.Errorf("executable %q has been finalized", b.name)
	}
	return nil
}

// Parameters implements Executable. The returned slice is a copy.
func (b *ExecutableBase) Parameters() []Parameter {
	parameters := slices.Clone(b.parameters)
	for ii := range parameters {
		parameters[ii].Shape = parameters[ii].Shape.Clone()
	}
	return parameters
}

// Results implements Executable. The returned slice is a copy.
func (b *ExecutableBase) Results() []Result {
	results := slices.Clone(b.results)
	for ii := range results {
		results[ii].Shape = results[ii].Shape.Clone()
	}
	return results
}

// Validate implements Executable.
//
// Counts are checked first (inputs, then outputs), and then each input and each output in order.
// A nil tensor is reported as a mismatch with an invalid shape.
func (b *ExecutableBase) Validate(outputs, inputs []tensors.Tensor) error {
	if len(inputs) != len(b.parameters) {
		return &ValidationError{Kind: InputCount, Index: -1, WantCount: len(b.parameters), GotCount: len(inputs)}
	}
	if len(outputs) != len(b.results) {
		return &ValidationError{Kind: OutputCount, Index: -1, WantCount: len(b.results), GotCount: len(outputs)}
	}
	for ii, input := range inputs {
		want := b.parameters[ii].Shape
		got := shapeOf(input)
		if !want.Equal(got) {
			return &ValidationError{Kind: InputShape, Index: ii, Name: b.parameters[ii].Name, Want: want, Got: got}
		}
	}
	for ii, output := range outputs {
		want := b.results[ii].Shape
		got := shapeOf(output)
		if !want.Equal(got) {
			return &ValidationError{Kind: OutputShape, Index: ii, Want: want, Got: got}
		}
	}
	return nil
}

// shapeOf returns the shape of t, or an invalid shape if t is nil, including a nil pointer of
// any Tensor implementation.
func shapeOf(t tensors.Tensor) shapes.Shape {
	if t == nil {
		return shapes.Invalid()
	}
	if v := reflect.ValueOf(t); v.Kind() == reflect.Pointer && v.IsNil() {
		return shapes.Invalid()
	}
	return t.Shape()
}

// CallWithValidate implements Executable.
func (b *ExecutableBase) CallWithValidate(outputs, inputs []tensors.Tensor) (bool, error) {
	if err := b.CheckValid(); err != nil {
		return false, err
	}
	if err := b.Validate(outputs, inputs); err != nil {
		return false, errors.WithMessagef(err, "executable %q", b.name)
	}
	return b.caller.Call(outputs, inputs)
}

// BeginExecute implements Executable.
//
// Call is run in the executable's workers pool. A panic in Call is reported as an *ExecutionError
// by the returned future.
func (b *ExecutableBase) BeginExecute(outputs, inputs []tensors.Tensor) *xsync.Future[bool] {
	future := xsync.NewFuture[bool]()
	b.mu.RLock()
	defer b.mu.RUnlock()
	switch b.state {
	case uninitialized:
		future.Resolve(false, errors.New("executable not initialized"))
		return future
	case destroyed:
		future.Resolve(false, errors.Errorf("executable %q has been finalized", b.name))
		return future
	}
	// Add while holding the read lock, so Finalize can't start waiting before this execution is counted.
	b.inFlight.Add(1)
	b.pool.Submit(func() {
		defer b.inFlight.Done()
		var ok bool
		var err error
		exception := exceptions.Try(func() {
			ok, err = b.caller.Call(outputs, inputs)
		})
		if exception != nil {
			ok, err = false, newExecutionError(b.name, exception)
			klog.V(1).Infof("executable %q: asynchronous execution panicked: %v", b.name, exception)
		}
		future.Resolve(ok, err)
	})
	return future
}

// PerformanceData implements Executable. The default has no counters.
func (b *ExecutableBase) PerformanceData() []PerformanceCounter {
	return nil
}

// Save implements Executable. The default returns ErrSaveNotSupported.
func (b *ExecutableBase) Save(io.Writer) error {
	return errors.Wrapf(ErrSaveNotSupported, "executable %q", b.name)
}

// Finalize implements Executable.
//
// It waits for the executions scheduled with BeginExecute to finish. It is a no-op if the
// executable is already finalized.
func (b *ExecutableBase) Finalize() {
	b.mu.Lock()
	if b.state == destroyed {
		b.mu.Unlock()
		klog.Warningf("executable %q finalized more than once", b.name)
		return
	}
	wasReady := b.state == ready
	b.state = destroyed
	b.mu.Unlock()
	if wasReady {
		b.inFlight.Wait()
	}
}
