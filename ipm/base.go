// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ipm

import "errors"

const (
	zero = 0.0
	one  = 1.0
)

// Status is the terminal state of a solve.
type Status int

const (
	// Converged all residual norms are below their tolerances.
	Converged Status = iota
	// MaxIterReached the iteration budget ran out before convergence.
	MaxIterReached
	// Failed the Newton system could not be solved; see Result.Err.
	Failed
)

func (s Status) String() string {
	switch s {
	case Converged:
		return "converged"
	case MaxIterReached:
		return "max iterations reached"
	case Failed:
		return "failed"
	}
	return "unknown"
}

var (
	// ErrSingular reports a Newton system the backend could not factorize.
	ErrSingular = errors.New("ipm: singular newton system")
	// ErrNonFinite reports a search direction containing NaN or Inf.
	ErrNonFinite = errors.New("ipm: non-finite search direction")
)

// Backend selects the factorization of the Newton system.
type Backend int

const (
	// Riccati factorizes stage by stage with a backward Riccati recursion.
	Riccati Backend = iota
	// DenseLU assembles the whole KKT matrix and factorizes it with LU.
	DenseLU
)

func (b Backend) String() string {
	switch b {
	case Riccati:
		return "riccati"
	case DenseLU:
		return "dense"
	}
	return "unknown"
}

// ParseBackend maps a backend name to its value.
func ParseBackend(name string) (Backend, error) {
	switch name {
	case "riccati", "":
		return Riccati, nil
	case "dense", "lu":
		return DenseLU, nil
	}
	return 0, errors.New("ipm: unknown backend " + name)
}
