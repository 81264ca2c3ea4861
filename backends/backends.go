// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package backends defines the execution contract that compiled programs (Executable) of every
// backend implement, and a registry of backends.
//
// A Backend compiles a graph (in a backend specific representation) into an Executable, which can
// then be called any number of times, synchronously with Executable.Call and
// Executable.CallWithValidate or asynchronously with Executable.BeginExecute.
//
// Device-style backends stage the scalar arguments of their kernel launches with package
// github.com/gomlx/runtime/backends/hostparams.
package backends

import (
	"io"
	"maps"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

// Backend compiles graphs into Executables and loads saved ones.
type Backend interface {
	// Name is the short name used in configurations, e.g. "ref".
	Name() string

	// Description is a human-readable description, including the backend configuration.
	Description() string

	// Compile lowers graph, a backend specific representation (e.g. *reference.Graph), into an
	// Executable.
	Compile(graph any) (Executable, error)

	// Load reads an Executable written by Executable.Save of the same backend.
	Load(r io.Reader) (Executable, error)

	// Finalize frees the backend resources. The backend can't be used afterwards.
	Finalize()
}

// Constructor creates a Backend from the backend specific part of a configuration.
type Constructor func(config string) (Backend, error)

// registry of backend constructors, by name.
var registry struct {
	sync.Mutex
	constructors map[string]Constructor
	first        string
}

// Register makes a backend available to New and NewWithConfig under name. It is usually
// called from the init function of the backend package. Registering a name again replaces
// its constructor.
func Register(name string, constructor Constructor) {
	registry.Lock()
	defer registry.Unlock()
	if registry.constructors == nil {
		registry.constructors = make(map[string]Constructor)
		registry.first = name
	}
	registry.constructors[name] = constructor
}

// List returns the sorted names of the registered backends.
func List() []string {
	registry.Lock()
	defer registry.Unlock()
	return slices.Sorted(maps.Keys(registry.constructors))
}

// lookup returns the constructor for name, or for the first registered backend if name is empty.
func lookup(name string) (Constructor, string, error) {
	registry.Lock()
	defer registry.Unlock()
	if len(registry.constructors) == 0 {
		return nil, name, errors.New(`no registered backends, import one, e.g. import _ "github.com/gomlx/runtime/backends/reference"`)
	}
	if name == "" {
		name = registry.first
	}
	constructor, found := registry.constructors[name]
	if !found {
		return nil, name, errors.Errorf("unknown backend %q, registered backends: %v", name, slices.Sorted(maps.Keys(registry.constructors)))
	}
	return constructor, name, nil
}

// DefaultConfig is used by New when GOMLX_BACKEND is not set.
var DefaultConfig string

// GOMLX_BACKEND names the environment variable holding the configuration used by New.
//
// Configurations have the form "<backend_name>:<backend_options>" or just "<backend_name>",
// where the options are backend specific (e.g. "ref:perf,parallelism=4").
const GOMLX_BACKEND = "GOMLX_BACKEND"

// New creates the default backend: the configuration comes from the GOMLX_BACKEND environment
// variable if set, then from DefaultConfig. If both are empty, the first registered backend is
// created with no options.
func New() (Backend, error) {
	if config, found := os.LookupEnv(GOMLX_BACKEND); found {
		return NewWithConfig(config)
	}
	return NewWithConfig(DefaultConfig)
}

// MustNew is New that panics on error.
func MustNew() Backend {
	backend, err := New()
	if err != nil {
		exceptions.Panicf("backends.MustNew(): %+v", err)
	}
	return backend
}

// NewWithConfig creates the backend described by config, see GOMLX_BACKEND for its format.
// An empty backend name selects the first registered backend.
func NewWithConfig(config string) (Backend, error) {
	name, options, _ := strings.Cut(config, ":")
	constructor, name, err := lookup(name)
	if err != nil {
		return nil, errors.WithMessagef(err, "backend configuration %q", config)
	}
	backend, err := constructor(options)
	if err != nil {
		return nil, errors.WithMessagef(err, "backend %q with options %q", name, options)
	}
	return backend, nil
}
