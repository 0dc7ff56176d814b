// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ocp

import (
	"fmt"
	"math"
	"slices"

	"github.com/curioloop/ocpqp/internal/dense"
	"gonum.org/v1/gonum/blas/blas64"
)

// ColMajorSolution is a solution split into plain per-stage arrays.
//
//   - U[i] (nu[i]) and Pi[i] (nx[i+1]) for i < N
//   - X[i] (nx[i]) and Lam[i] for i ≤ N
//
// Lam[i] groups the multipliers by bound kind as [lb, ub, lg, ug].
type ColMajorSolution struct {
	U, X, Pi, Lam [][]float64
}

// NewColMajorSolution allocates the arrays for the descriptor.
func NewColMajorSolution(d *Dims) *ColMajorSolution {
	arena := dense.NewArena(d.NumVars() + d.NumEq() + d.NumIneq())
	c := &ColMajorSolution{
		U:   make([][]float64, d.N),
		X:   make([][]float64, d.N+1),
		Pi:  make([][]float64, d.N),
		Lam: make([][]float64, d.N+1),
	}
	for i := 0; i <= d.N; i++ {
		if i < d.N {
			c.U[i] = arena.Vec(d.Nu[i])
			c.Pi[i] = arena.Vec(d.Nx[i+1])
		}
		c.X[i] = arena.Vec(d.Nx[i])
		c.Lam[i] = arena.Vec(2 * d.Nc(i))
	}
	return c
}

// ConvertToColMajor copies sol into the per-stage array layout.
// When dst is nil a new view is allocated, otherwise dst is overwritten.
// The values are copied unchanged.
func ConvertToColMajor(d *Dims, sol *Solution, dst *ColMajorSolution) (*ColMajorSolution, error) {

	if !d.Equal(sol.Dims) {
		return nil, fmt.Errorf("convert solution: %w", ErrDimensionMismatch)
	}
	if dst == nil {
		dst = NewColMajorSolution(d)
	} else if len(dst.X) != d.N+1 || len(dst.U) != d.N || len(dst.Pi) != d.N || len(dst.Lam) != d.N+1 {
		return nil, fmt.Errorf("convert solution: %w", ErrDimensionMismatch)
	}

	for i := 0; i <= d.N; i++ {
		nb, ng := d.Nb(i), d.Ng[i]
		if i < d.N {
			copy(dst.U[i], sol.U(i))
			copy(dst.Pi[i], sol.Pi[i])
		}
		copy(dst.X[i], sol.X(i))

		// [lb, lg, ub, ug] -> [lb, ub, lg, ug]
		lam, out := sol.Lam[i], dst.Lam[i]
		copy(out[0:nb], lam[0:nb])
		copy(out[nb:2*nb], lam[nb+ng:2*nb+ng])
		copy(out[2*nb:2*nb+ng], lam[nb:nb+ng])
		copy(out[2*nb+ng:], lam[2*nb+ng:])
	}
	return dst, nil
}

// ColMajorQP holds OCP-QP data as column-major per-stage arrays, the layout
// used by Fortran/MATLAB style problem sources. Entry (r, c) of an m×n
// matrix lives at index r + c·m.
type ColMajorQP struct {
	Dims *Dims

	A, B, Bias [][]float64

	Q, S, R      [][]float64
	GradX, GradU [][]float64

	Idxb   [][]int
	Lb, Ub [][]float64

	C, D   [][]float64
	Lg, Ug [][]float64
}

// NewColMajorQP allocates zero arrays for the descriptor, with open bounds
// and idxb enumerating the first inputs and states.
func NewColMajorQP(d *Dims) *ColMajorQP {
	n := d.N
	c := &ColMajorQP{
		Dims:  d,
		A:     make([][]float64, n),
		B:     make([][]float64, n),
		Bias:  make([][]float64, n),
		Q:     make([][]float64, n+1),
		S:     make([][]float64, n+1),
		R:     make([][]float64, n+1),
		GradX: make([][]float64, n+1),
		GradU: make([][]float64, n+1),
		Idxb:  make([][]int, n+1),
		Lb:    make([][]float64, n+1),
		Ub:    make([][]float64, n+1),
		C:     make([][]float64, n+1),
		D:     make([][]float64, n+1),
		Lg:    make([][]float64, n+1),
		Ug:    make([][]float64, n+1),
	}
	for i := 0; i <= n; i++ {
		nx, nu, nb, ng := d.Nx[i], d.Nu[i], d.Nb(i), d.Ng[i]
		if i < n {
			nx1 := d.Nx[i+1]
			c.A[i] = make([]float64, nx1*nx)
			c.B[i] = make([]float64, nx1*nu)
			c.Bias[i] = make([]float64, nx1)
		}
		c.Q[i] = make([]float64, nx*nx)
		c.S[i] = make([]float64, nu*nx)
		c.R[i] = make([]float64, nu*nu)
		c.GradX[i] = make([]float64, nx)
		c.GradU[i] = make([]float64, nu)
		c.Idxb[i] = make([]int, nb)
		for k := 0; k < d.Nbu[i]; k++ {
			c.Idxb[i][k] = k
		}
		for k := 0; k < d.Nbx[i]; k++ {
			c.Idxb[i][d.Nbu[i]+k] = nu + k
		}
		c.Lb[i] = slices.Repeat([]float64{math.Inf(-1)}, nb)
		c.Ub[i] = slices.Repeat([]float64{math.Inf(1)}, nb)
		c.C[i] = make([]float64, ng*nx)
		c.D[i] = make([]float64, ng*nu)
		c.Lg[i] = slices.Repeat([]float64{math.Inf(-1)}, ng)
		c.Ug[i] = slices.Repeat([]float64{math.Inf(1)}, ng)
	}
	return c
}

// Convert copies the column-major data into a stage-structured QP.
// When dst is nil a new QP is allocated. The result is validated.
func (c *ColMajorQP) Convert(dst *QP) (*QP, error) {

	d := c.Dims
	if dst == nil {
		dst = NewQP(d)
	} else if !dst.Dims.Equal(d) {
		return nil, fmt.Errorf("convert qp: %w", ErrDimensionMismatch)
	}

	check := func(i int, name string, v []float64, n int) error {
		if len(v) != n {
			return stageErrorf(i, ErrDimensionMismatch, "%s has %d entries, want %d", name, len(v), n)
		}
		return nil
	}

	for i := 0; i <= d.N; i++ {
		s := &dst.Stages[i]
		nx, nu, nb, ng := d.Nx[i], d.Nu[i], d.Nb(i), d.Ng[i]

		if i < d.N {
			nx1 := d.Nx[i+1]
			for _, err := range []error{
				check(i, "A", c.A[i], nx1*nx),
				check(i, "B", c.B[i], nx1*nu),
				check(i, "b", c.Bias[i], nx1),
			} {
				if err != nil {
					return nil, err
				}
			}
			fromColMajor(s.A, c.A[i])
			fromColMajor(s.B, c.B[i])
			copy(s.Bias, c.Bias[i])
		}

		for _, err := range []error{
			check(i, "Q", c.Q[i], nx*nx),
			check(i, "S", c.S[i], nu*nx),
			check(i, "R", c.R[i], nu*nu),
			check(i, "q", c.GradX[i], nx),
			check(i, "r", c.GradU[i], nu),
			check(i, "lb", c.Lb[i], nb),
			check(i, "ub", c.Ub[i], nb),
			check(i, "C", c.C[i], ng*nx),
			check(i, "D", c.D[i], ng*nu),
			check(i, "lg", c.Lg[i], ng),
			check(i, "ug", c.Ug[i], ng),
		} {
			if err != nil {
				return nil, err
			}
		}
		if len(c.Idxb[i]) != nb {
			return nil, stageErrorf(i, ErrDimensionMismatch, "idxb has %d entries, want %d", len(c.Idxb[i]), nb)
		}

		fromColMajor(s.Q, c.Q[i])
		fromColMajor(s.S, c.S[i])
		fromColMajor(s.R, c.R[i])
		copy(s.GradX, c.GradX[i])
		copy(s.GradU, c.GradU[i])
		copy(s.Idxb, c.Idxb[i])
		copy(s.Lb, c.Lb[i])
		copy(s.Ub, c.Ub[i])
		fromColMajor(s.C, c.C[i])
		fromColMajor(s.D, c.D[i])
		copy(s.Lg, c.Lg[i])
		copy(s.Ug, c.Ug[i])
	}

	if err := dst.Validate(); err != nil {
		return nil, err
	}
	return dst, nil
}

// fromColMajor fills the row-major block m from column-major data.
func fromColMajor(m blas64.General, data []float64) {
	for r := 0; r < m.Rows; r++ {
		for c := 0; c < m.Cols; c++ {
			dense.Set(m, r, c, data[r+c*m.Rows])
		}
	}
}
