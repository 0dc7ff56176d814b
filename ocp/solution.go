// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ocp

import (
	"github.com/curioloop/ocpqp/internal/dense"
)

// Solution is a primal-dual point of an OCP-QP in the solver layout.
//
// Inequality multipliers and slacks are sign separated, one entry per
// one-sided constraint, laid out per stage as [lb, lg, ub, ug] (nb, ng, nb, ng).
type Solution struct {
	Dims *Dims
	UX   [][]float64 // [u; x] per stage
	Pi   [][]float64 // dynamics multipliers, N entries of nx[i+1]
	Lam  [][]float64 // inequality multipliers
	T    [][]float64 // inequality slacks
}

// NewSolution allocates a zero solution for the descriptor.
func NewSolution(d *Dims) *Solution {
	arena := dense.NewArena(d.NumVars() + d.NumEq() + 2*d.NumIneq())
	s := &Solution{
		Dims: d,
		UX:   make([][]float64, d.N+1),
		Pi:   make([][]float64, d.N),
		Lam:  make([][]float64, d.N+1),
		T:    make([][]float64, d.N+1),
	}
	for i := 0; i <= d.N; i++ {
		s.UX[i] = arena.Vec(d.Nv(i))
		if i < d.N {
			s.Pi[i] = arena.Vec(d.Nx[i+1])
		}
		s.Lam[i] = arena.Vec(2 * d.Nc(i))
		s.T[i] = arena.Vec(2 * d.Nc(i))
	}
	return s
}

// U returns the inputs of stage i.
func (s *Solution) U(i int) []float64 {
	return s.UX[i][:s.Dims.Nu[i]]
}

// X returns the states of stage i.
func (s *Solution) X(i int) []float64 {
	return s.UX[i][s.Dims.Nu[i]:]
}

// CopyFrom overwrites s with o; both must share the descriptor.
func (s *Solution) CopyFrom(o *Solution) error {
	if !s.Dims.Equal(o.Dims) {
		return ErrDimensionMismatch
	}
	for i := range s.UX {
		copy(s.UX[i], o.UX[i])
		copy(s.Lam[i], o.Lam[i])
		copy(s.T[i], o.T[i])
	}
	for i := range s.Pi {
		copy(s.Pi[i], o.Pi[i])
	}
	return nil
}

// Reset zeroes every entry.
func (s *Solution) Reset() {
	for i := range s.UX {
		clear(s.UX[i])
		clear(s.Lam[i])
		clear(s.T[i])
	}
	for i := range s.Pi {
		clear(s.Pi[i])
	}
}
