// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package backends

import (
	"fmt"

	"github.com/gomlx/runtime/pkg/core/shapes"
	"github.com/pkg/errors"
)

var (
	// ErrValidation is matched (with errors.Is) by *ValidationError.
	ErrValidation = errors.New("inputs/outputs don't match executable")

	// ErrExecutionFailed is matched (with errors.Is) by *ExecutionError.
	ErrExecutionFailed = errors.New("execution failed")

	// ErrSaveNotSupported is returned by Executable.Save for backends that can't serialize executables.
	ErrSaveNotSupported = errors.New("saving executable not supported by backend")
)

// ValidationKind enumerates what Executable.Validate found mismatched.
type ValidationKind int

const (
	InputCount ValidationKind = iota
	OutputCount
	InputShape
	OutputShape
)

// String implements fmt.Stringer.
func (k ValidationKind) String() string {
	switch k {
	case InputCount:
		return "InputCount"
	case OutputCount:
		return "OutputCount"
	case InputShape:
		return "InputShape"
	case OutputShape:
		return "OutputShape"
	}
	return fmt.Sprintf("ValidationKind(%d)", int(k))
}

// ValidationError reports the first mismatch between the inputs/outputs given to an Executable
// and its descriptors.
type ValidationError struct {
	Kind ValidationKind

	// Index of the offending input or output, or -1 for count mismatches.
	Index int

	// Name of the parameter, only set for InputShape.
	Name string

	// Want and Got are set for InputShape and OutputShape.
	Want, Got shapes.Shape

	// WantCount and GotCount are set for InputCount and OutputCount.
	WantCount, GotCount int
}

// Error implements error.
func (e *ValidationError) Error() string {
	switch e.Kind {
	case InputCount:
		return fmt.Sprintf("%s: wrong number of inputs, expected %d, got %d", ErrValidation, e.WantCount, e.GotCount)
	case OutputCount:
		return fmt.Sprintf("%s: wrong number of outputs, expected %d, got %d", ErrValidation, e.WantCount, e.GotCount)
	case InputShape:
		return fmt.Sprintf("%s: input #%d (%q) expected shape %s, got %s", ErrValidation, e.Index, e.Name, e.Want, e.Got)
	case OutputShape:
		return fmt.Sprintf("%s: output #%d expected shape %s, got %s", ErrValidation, e.Index, e.Want, e.Got)
	}
	return fmt.Sprintf("%s: %s at #%d", ErrValidation, e.Kind, e.Index)
}

// Is allows errors.Is(err, ErrValidation).
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// ExecutionError reports a failure raised while executing, e.g. a panic during an asynchronous execution.
type ExecutionError struct {
	Executable string
	Cause      error
}

func newExecutionError(executable string, exception any) *ExecutionError {
	cause, ok := exception.(error)
	if !ok {
		cause = errors.Errorf("%v", exception)
	}
	return &ExecutionError{Executable: executable, Cause: cause}
}

// Error implements error.
func (e *ExecutionError) Error() string {
	return fmt.Sprintf("executable %q: %s: %v", e.Executable, ErrExecutionFailed, e.Cause)
}

// Unwrap returns the cause.
func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// Is allows errors.Is(err, ErrExecutionFailed).
func (e *ExecutionError) Is(target error) bool {
	return target == ErrExecutionFailed
}
