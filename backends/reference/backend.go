// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package reference implements a small device-style backend, used to exercise the execution contract
// end to end.
//
// Graphs are built with NewGraph, and compiled by Backend.Compile into a list of kernel launches
// over device "slots" (scratch buffers allocated per call). Like on a real accelerator, the scalar
// arguments of the launches (fill values, reduction seeds, scale factors) are staged once at compile
// time in the executable's hostparams.HostParameters, and the kernels read them through their addresses.
//
// Configuration options, comma separated:
//
//   - "parallelism=N": maximum number of concurrent executions scheduled with BeginExecute.
//     N < 0 means unlimited. Default is runtime.NumCPU().
//   - "perf": collect performance counters for each op type, and for the uploads and downloads.
//   - "nancheck": a launch producing a NaN is an execution fault, and Call returns false.
//
// Example: GOMLX_BACKEND="ref:perf,parallelism=2".
package reference

import (
	"io"
	"runtime"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/runtime/backends"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// BackendName to be used in GOMLX_BACKEND to specify this backend.
const BackendName = "ref"

// Registers New() as the default constructor for "ref" backend.
func init() {
	backends.Register(BackendName, New)
}

// Options configure the Backend. See package documentation for their config string form.
type Options struct {
	Parallelism int
	Perf        bool
	NaNCheck    bool
}

// DefaultOptions used by New with an empty configuration.
func DefaultOptions() Options {
	return Options{Parallelism: runtime.NumCPU()}
}

// ParseOptions parses the backend configuration string.
func ParseOptions(config string) (Options, error) {
	options := DefaultOptions()
	for _, part := range strings.Split(config, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, hasValue := strings.Cut(part, "=")
		switch key {
		case "parallelism":
			if !hasValue {
				return options, errors.Errorf("configuration option %q requires a value", key)
			}
			n, err := strconv.Atoi(value)
			if err != nil {
				return options, errors.Wrapf(err, "invalid value for configuration option %q", key)
			}
			options.Parallelism = n
		case "perf":
			options.Perf = true
		case "nancheck":
			options.NaNCheck = true
		default:
			return options, errors.Errorf("unknown configuration option %q for reference (%s) backend", part, BackendName)
		}
	}
	return options, nil
}

// Backend implements backends.Backend.
type Backend struct {
	options     Options
	isFinalized atomic.Bool
}

// Compile-time check that reference.Backend implements backends.Backend.
var _ backends.Backend = &Backend{}

// New constructs a new reference Backend. See package documentation for the configuration options.
func New(config string) (backends.Backend, error) {
	options, err := ParseOptions(config)
	if err != nil {
		return nil, err
	}
	return NewWithOptions(options), nil
}

// NewWithOptions constructs a new reference Backend with the given options.
func NewWithOptions(options Options) *Backend {
	return &Backend{options: options}
}

// Name returns the short name of the backend.
func (b *Backend) Name() string {
	return BackendName
}

// Description is a longer description of the Backend that can be used to pretty-print.
func (b *Backend) Description() string {
	return "Reference device-style backend (ref)"
}

// Options returns the options the backend was created with.
func (b *Backend) Options() Options {
	return b.options
}

// Finalize makes the backend invalid. Executables already compiled remain usable.
func (b *Backend) Finalize() {
	b.isFinalized.Store(true)
}

func (b *Backend) checkValid() error {
	if b == nil {
		return errors.New("reference backend is nil")
	}
	if b.isFinalized.Load() {
		return errors.New("reference backend has been finalized")
	}
	return nil
}

// Compile a *Graph into an Executable. The graph must have had Return called.
func (b *Backend) Compile(graph any) (backends.Executable, error) {
	if err := b.checkValid(); err != nil {
		return nil, err
	}
	g, ok := graph.(*Graph)
	if !ok {
		return nil, errors.Errorf("reference backend can only compile *reference.Graph, got %T", graph)
	}
	var program *programDef
	err := exceptions.TryCatch[error](func() { program = lower(g) })
	if err != nil {
		return nil, errors.WithMessagef(err, "compiling graph %q", g.name)
	}
	e, err := newExecutable(b, g.name, program)
	if err != nil {
		return nil, errors.WithMessagef(err, "compiling graph %q", g.name)
	}
	klog.V(1).Infof("reference backend: compiled %q: %d parameters, %d results, %d launches, %d staged scalars",
		g.name, len(program.ParameterSlots), len(program.ResultSlots), len(program.Launches), e.hostParams.Len())
	return e, nil
}

// Load an executable saved with Executable.Save.
func (b *Backend) Load(r io.Reader) (backends.Executable, error) {
	if err := b.checkValid(); err != nil {
		return nil, err
	}
	return load(b, r)
}
