// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ocp

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfiguration is the root of every setup error: bad
	// dimensions, out-of-range horizons and mismatched descriptors.
	ErrInvalidConfiguration = errors.New("ocp: invalid configuration")

	// ErrDimensionMismatch reports operands built for different descriptors.
	ErrDimensionMismatch = fmt.Errorf("%w: dimension mismatch", ErrInvalidConfiguration)

	// ErrHorizonRange reports a reduced horizon outside [1, N].
	ErrHorizonRange = fmt.Errorf("%w: reduced horizon out of range", ErrInvalidConfiguration)

	// ErrInvalidData reports NaN coefficients, crossed bounds or bad indices.
	ErrInvalidData = errors.New("ocp: invalid problem data")
)

// StageError attaches the offending stage to an error.
type StageError struct {
	Stage int
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %d: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageErrorf(stage int, err error, format string, a ...any) error {
	return &StageError{Stage: stage, Err: fmt.Errorf("%w: %s", err, fmt.Sprintf(format, a...))}
}
