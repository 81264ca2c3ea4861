package reference

import (
	"encoding/gob"
	"io"

	"github.com/gomlx/runtime/backends"
	"github.com/gomlx/runtime/pkg/core/shapes"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

const (
	// SavedMagic starts every serialized reference executable.
	SavedMagic = "gomlx.reference.executable"

	// SavedVersion is the version of the serialization format written by Save.
	SavedVersion = 1
)

// savedExecutable is the gob encoded form of an Executable.
type savedExecutable struct {
	Magic   string
	Version int
	ID      uuid.UUID
	Name    string

	// Parameters and Results are redundant with Program, and are used to check consistency on Load.
	Parameters []backends.Parameter
	Results    []shapes.Shape

	Program programDef
}

// Save implements backends.Executable. The staged scalars are not saved: they are staged
// again from the program literals on Load.
func (e *Executable) Save(w io.Writer) error {
	if err := e.CheckValid(); err != nil {
		return err
	}
	saved := savedExecutable{
		Magic:      SavedMagic,
		Version:    SavedVersion,
		ID:         e.id,
		Name:       e.Name(),
		Parameters: e.Parameters(),
		Program:    *e.program,
	}
	for _, result := range e.Results() {
		saved.Results = append(saved.Results, result.Shape)
	}
	if err := gob.NewEncoder(w).Encode(&saved); err != nil {
		return errors.Wrapf(err, "failed to save executable %q", e.Name())
	}
	klog.V(1).Infof("reference backend: saved executable %q (%s)", e.Name(), e.id)
	return nil
}

func load(backend *Backend, r io.Reader) (*Executable, error) {
	var saved savedExecutable
	if err := gob.NewDecoder(r).Decode(&saved); err != nil {
		return nil, errors.Wrap(err, "failed to decode reference executable")
	}
	if saved.Magic != SavedMagic {
		return nil, errors.Errorf("not a reference executable (magic %q)", saved.Magic)
	}
	if saved.Version != SavedVersion {
		return nil, errors.Errorf("reference executable %q saved with format version %d, only version %d is supported",
			saved.Name, saved.Version, SavedVersion)
	}
	program := &saved.Program
	if err := program.check(); err != nil {
		return nil, errors.WithMessagef(err, "invalid reference executable %q", saved.Name)
	}
	if len(saved.Parameters) != len(program.ParameterSlots) || len(saved.Results) != len(program.ResultSlots) {
		return nil, errors.Errorf("invalid reference executable %q: descriptors don't match program", saved.Name)
	}
	for ii, parameter := range saved.Parameters {
		if parameter.Name != program.ParameterNames[ii] || !parameter.Shape.Equal(program.Slots[program.ParameterSlots[ii]]) {
			return nil, errors.Errorf("invalid reference executable %q: parameter #%d %s doesn't match program",
				saved.Name, ii, parameter)
		}
	}
	for ii, shape := range saved.Results {
		if !shape.Equal(program.Slots[program.ResultSlots[ii]]) {
			return nil, errors.Errorf("invalid reference executable %q: result #%d %s doesn't match program",
				saved.Name, ii, shape)
		}
	}
	e, err := newExecutableWithID(backend, saved.Name, saved.ID, program)
	if err != nil {
		return nil, errors.WithMessagef(err, "loading reference executable %q", saved.Name)
	}
	klog.V(1).Infof("reference backend: loaded executable %q (%s): %d launches, %d staged scalars",
		saved.Name, saved.ID, len(program.Launches), e.hostParams.Len())
	return e, nil
}
