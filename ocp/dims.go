// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ocp describes stage-structured quadratic programs arising from
// optimal control (OCP-QP):
//
// minimize ∑ ½ 𝐮ᵢᵀ𝐑ᵢ𝐮ᵢ + 𝐮ᵢᵀ𝐒ᵢ𝐱ᵢ + ½ 𝐱ᵢᵀ𝐐ᵢ𝐱ᵢ + 𝐫ᵢᵀ𝐮ᵢ + 𝐪ᵢᵀ𝐱ᵢ (i = 0 ··· N) subject to
//   - dynamics: 𝐱ᵢ₊₁ = 𝐀ᵢ𝐱ᵢ + 𝐁ᵢ𝐮ᵢ + 𝐛ᵢ (i = 0 ··· N-1)
//   - bounds: 𝒍ᵢ ≤ [𝐮ᵢ; 𝐱ᵢ]ₖ ≤ 𝒖ᵢ for the indices k listed in idxbᵢ
//   - general constraints: 𝒍𝒈ᵢ ≤ 𝐃ᵢ𝐮ᵢ + 𝐂ᵢ𝐱ᵢ ≤ 𝒖𝒈ᵢ
//
// The stage vector is ordered 𝐮𝐱ᵢ = [𝐮ᵢ; 𝐱ᵢ] throughout, so the stage Hessian
// reads [[𝐑ᵢ, 𝐒ᵢ], [𝐒ᵢᵀ, 𝐐ᵢ]].
package ocp

import (
	"fmt"
	"slices"
)

// Dims is the dimension descriptor of an OCP-QP with horizon N (N+1 stages).
// It is immutable once created.
type Dims struct {
	N   int
	Nx  []int // states per stage
	Nu  []int // inputs per stage, Nu[N] == 0
	Nbu []int // bounds on inputs per stage
	Nbx []int // bounds on states per stage
	Ng  []int // general constraints per stage
}

// NewDims validates the per-stage sizes and builds a descriptor.
// nx, nbu, nbx and ng have N+1 entries; nu has N entries or N+1 with a
// trailing zero. Nil nbu, nbx or ng mean no constraints of that kind.
func NewDims(nx, nu, nbu, nbx, ng []int) (*Dims, error) {

	n := len(nx) - 1
	if n < 1 {
		return nil, fmt.Errorf("%w: horizon must be at least 1", ErrInvalidConfiguration)
	}

	fill := func(v []int) []int {
		if v == nil {
			return make([]int, n+1)
		}
		return slices.Clone(v)
	}

	d := &Dims{
		N:   n,
		Nx:  slices.Clone(nx),
		Nu:  fill(nu),
		Nbu: fill(nbu),
		Nbx: fill(nbx),
		Ng:  fill(ng),
	}
	if len(nu) == n {
		d.Nu = append(d.Nu, 0)
	}

	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// Validate checks the invariants of the descriptor.
func (d *Dims) Validate() (err error) {
	n := d.N
	switch {
	case n < 1:
		err = fmt.Errorf("%w: horizon must be at least 1", ErrInvalidConfiguration)
	case len(d.Nx) != n+1:
		err = fmt.Errorf("%w: nx size must equal to N+1", ErrInvalidConfiguration)
	case len(d.Nu) != n+1:
		err = fmt.Errorf("%w: nu size must equal to N or N+1", ErrInvalidConfiguration)
	case len(d.Nbu) != n+1 || len(d.Nbx) != n+1 || len(d.Ng) != n+1:
		err = fmt.Errorf("%w: constraint sizes must equal to N+1", ErrInvalidConfiguration)
	case d.Nu[n] != 0:
		err = fmt.Errorf("%w: terminal stage must not have inputs", ErrInvalidConfiguration)
	}
	if err != nil {
		return
	}

	for i := 0; i <= n; i++ {
		switch {
		case d.Nx[i] < 0 || d.Nu[i] < 0 || d.Nbu[i] < 0 || d.Nbx[i] < 0 || d.Ng[i] < 0:
			err = stageErrorf(i, ErrInvalidConfiguration, "negative dimension")
		case d.Nbu[i] > d.Nu[i]:
			err = stageErrorf(i, ErrInvalidConfiguration, "more input bounds than inputs")
		case d.Nbx[i] > d.Nx[i]:
			err = stageErrorf(i, ErrInvalidConfiguration, "more state bounds than states")
		case d.Nu[i]+d.Nx[i] == 0:
			err = stageErrorf(i, ErrInvalidConfiguration, "stage without variables")
		}
		if err != nil {
			return
		}
	}
	return
}

// Nb returns the number of bounds at stage i.
func (d *Dims) Nb(i int) int {
	return d.Nbu[i] + d.Nbx[i]
}

// Nv returns the number of variables at stage i.
func (d *Dims) Nv(i int) int {
	return d.Nu[i] + d.Nx[i]
}

// Nc returns the number of two-sided constraints (bounds plus general) at stage i.
func (d *Dims) Nc(i int) int {
	return d.Nbu[i] + d.Nbx[i] + d.Ng[i]
}

// NumVars returns the number of primal variables over the horizon.
func (d *Dims) NumVars() (n int) {
	for i := 0; i <= d.N; i++ {
		n += d.Nv(i)
	}
	return
}

// NumEq returns the number of dynamics equality constraints.
func (d *Dims) NumEq() (n int) {
	for i := 0; i < d.N; i++ {
		n += d.Nx[i+1]
	}
	return
}

// NumIneq returns the number of one-sided inequality constraints.
func (d *Dims) NumIneq() (n int) {
	for i := 0; i <= d.N; i++ {
		n += 2 * d.Nc(i)
	}
	return
}

// Equal reports whether d and o describe the same problem shape.
func (d *Dims) Equal(o *Dims) bool {
	if d == o {
		return true
	}
	if d == nil || o == nil {
		return false
	}
	return d.N == o.N &&
		slices.Equal(d.Nx, o.Nx) &&
		slices.Equal(d.Nu, o.Nu) &&
		slices.Equal(d.Nbu, o.Nbu) &&
		slices.Equal(d.Nbx, o.Nbx) &&
		slices.Equal(d.Ng, o.Ng)
}

// String formats the descriptor one stage per line.
func (d *Dims) String() string {
	s := fmt.Sprintf("N = %d\n", d.N)
	for i := 0; i <= d.N; i++ {
		s += fmt.Sprintf("stage %3d: nx=%d nu=%d nbu=%d nbx=%d ng=%d\n",
			i, d.Nx[i], d.Nu[i], d.Nbu[i], d.Nbx[i], d.Ng[i])
	}
	return s
}
