package reference

import (
	"sync"
	"time"
	"unsafe"

	"github.com/gomlx/runtime/backends"
	"github.com/gomlx/runtime/backends/hostparams"
	"github.com/gomlx/runtime/pkg/core/tensors"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Names of the performance counters for the copies between host and device.
const (
	UploadCounter   = "Upload"
	DownloadCounter = "Download"
)

// Executable implements backends.Executable for the reference backend.
type Executable struct {
	backends.ExecutableBase

	backend *Backend
	id      uuid.UUID
	program *programDef

	// mu protects hostParams and launches: Call holds a read lock, Finalize a write lock.
	mu         sync.RWMutex
	hostParams *hostparams.HostParameters
	launches   []launch

	muPerf    sync.Mutex
	perf      []backends.PerformanceCounter
	perfIndex map[string]int
}

// Compile-time check.
var _ backends.Executable = (*Executable)(nil)

func newExecutable(backend *Backend, name string, program *programDef) (*Executable, error) {
	return newExecutableWithID(backend, name, uuid.New(), program)
}

func newExecutableWithID(backend *Backend, name string, id uuid.UUID, program *programDef) (*Executable, error) {
	e := &Executable{
		backend:    backend,
		id:         id,
		program:    program,
		hostParams: hostparams.New(),
		perfIndex:  make(map[string]int),
	}
	var err error
	e.launches, err = stageLaunches(e.hostParams, program)
	if err != nil {
		return nil, err
	}
	parameters := make([]backends.Parameter, len(program.ParameterSlots))
	for ii, slot := range program.ParameterSlots {
		parameters[ii] = backends.Parameter{Name: program.ParameterNames[ii], Shape: program.Slots[slot]}
	}
	results := make([]backends.Result, len(program.ResultSlots))
	for ii, slot := range program.ResultSlots {
		results[ii] = backends.Result{Shape: program.Slots[slot]}
	}
	e.SetMaxParallelism(backend.options.Parallelism)
	if err := e.Init(name, e, parameters, results); err != nil {
		return nil, err
	}
	if backend.options.Perf {
		// Counters are listed in the order they are first hit by a call.
		e.perfCounter(UploadCounter)
		for _, l := range e.launches {
			e.perfCounter(l.op.String())
		}
		e.perfCounter(DownloadCounter)
	}
	return e, nil
}

// ID uniquely identifies the compiled program. It is preserved by Save and Load.
func (e *Executable) ID() uuid.UUID {
	return e.id
}

// NumLaunches returns the number of kernel launches per call.
func (e *Executable) NumLaunches() int {
	return len(e.program.Launches)
}

// NumStagedScalars returns the number of scalars staged for the kernel launches.
func (e *Executable) NumStagedScalars() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.hostParams == nil {
		return 0
	}
	return e.hostParams.Len()
}

// perfCounter returns the index of the counter with the given name, creating it if needed.
// It must be called with muPerf locked, or before the executable is shared.
func (e *Executable) perfCounter(name string) int {
	idx, found := e.perfIndex[name]
	if !found {
		idx = len(e.perf)
		e.perf = append(e.perf, backends.PerformanceCounter{Name: name})
		e.perfIndex[name] = idx
	}
	return idx
}

func (e *Executable) record(name string, start time.Time) {
	if !e.backend.options.Perf {
		return
	}
	elapsed := time.Since(start)
	e.muPerf.Lock()
	defer e.muPerf.Unlock()
	e.perf[e.perfCounter(name)].Add(elapsed)
}

// PerformanceData implements backends.Executable.
// It is only populated if the backend was created with the "perf" option.
func (e *Executable) PerformanceData() []backends.PerformanceCounter {
	e.muPerf.Lock()
	defer e.muPerf.Unlock()
	if len(e.perf) == 0 {
		return nil
	}
	return append([]backends.PerformanceCounter(nil), e.perf...)
}

// Call implements backends.Executable.
//
// Inputs and outputs must implement tensors.HostTensor. They are not validated against the
// parameters and results (see CallWithValidate), but a size mismatch returns an error.
//
// It returns false if the "nancheck" option is set and a launch produced a NaN: in which case
// the outputs are left untouched.
func (e *Executable) Call(outputs, inputs []tensors.Tensor) (bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.hostParams == nil {
		return false, errors.Errorf("executable %q has been finalized", e.Name())
	}
	if len(inputs) != len(e.program.ParameterSlots) || len(outputs) != len(e.program.ResultSlots) {
		return false, errors.Errorf("executable %q: takes %d inputs and %d outputs, got %d and %d",
			e.Name(), len(e.program.ParameterSlots), len(e.program.ResultSlots), len(inputs), len(outputs))
	}
	klog.V(2).Infof("executable %q: call with %d inputs", e.Name(), len(inputs))

	slots := make([][]byte, len(e.program.Slots))
	for ii, shape := range e.program.Slots {
		slots[ii] = newSlot(shape.Memory())
	}

	start := time.Now()
	for ii, input := range inputs {
		if err := e.upload(ii, input, slots[e.program.ParameterSlots[ii]]); err != nil {
			return false, err
		}
	}
	e.record(UploadCounter, start)

	for ii := range e.launches {
		l := &e.launches[ii]
		start = time.Now()
		runLaunch(l, slots)
		e.record(l.op.String(), start)
		if e.backend.options.NaNCheck && slotHasNaN(l.dtype, slots[l.output]) {
			klog.V(1).Infof("executable %q: launch #%d (%s) produced NaN", e.Name(), ii, l.op)
			return false, nil
		}
	}

	start = time.Now()
	for ii, output := range outputs {
		if err := e.download(ii, output, slots[e.program.ResultSlots[ii]]); err != nil {
			return false, err
		}
	}
	e.record(DownloadCounter, start)
	return true, nil
}

// transfer copies between host and device memory as described by info.
func transfer(info backends.ReadWriteInfo, device []byte) {
	if info.IsRead() {
		copy(device, info.Bytes())
	} else {
		copy(info.Bytes(), device)
	}
	if klog.V(3).Enabled() {
		klog.Infof("reference backend: %s", info)
	}
}

func (e *Executable) upload(idx int, input tensors.Tensor, device []byte) error {
	host, ok := input.(tensors.HostTensor)
	if !ok {
		return errors.Errorf("executable %q: input #%d (%T) is not a host tensor", e.Name(), idx, input)
	}
	var sizeErr error
	err := host.ConstBytes(func(data []byte) {
		if len(data) != len(device) {
			sizeErr = errors.Errorf("executable %q: input #%d has %d bytes, expected %d", e.Name(), idx, len(data), len(device))
			return
		}
		transfer(backends.NewReadInfo(unsafe.Pointer(unsafe.SliceData(data)), len(data)), device)
	})
	if err != nil {
		return errors.WithMessagef(err, "executable %q: input #%d", e.Name(), idx)
	}
	return sizeErr
}

func (e *Executable) download(idx int, output tensors.Tensor, device []byte) error {
	host, ok := output.(tensors.HostTensor)
	if !ok {
		return errors.Errorf("executable %q: output #%d (%T) is not a host tensor", e.Name(), idx, output)
	}
	var sizeErr error
	err := host.MutableBytes(func(data []byte) {
		if len(data) != len(device) {
			sizeErr = errors.Errorf("executable %q: output #%d has %d bytes, expected %d", e.Name(), idx, len(data), len(device))
			return
		}
		transfer(backends.NewWriteInfo(unsafe.Pointer(unsafe.SliceData(data)), len(data)), device)
	})
	if err != nil {
		return errors.WithMessagef(err, "executable %q: output #%d", e.Name(), idx)
	}
	return sizeErr
}

// Finalize implements backends.Executable. It waits for pending executions, and releases
// the staged scalars.
func (e *Executable) Finalize() {
	e.ExecutableBase.Finalize()
	e.mu.Lock()
	defer e.mu.Unlock()
	e.launches = nil
	e.hostParams = nil
}
