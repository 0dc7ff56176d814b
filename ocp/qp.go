// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ocp

import (
	"math"

	"github.com/curioloop/ocpqp/internal/dense"
	"gonum.org/v1/gonum/blas/blas64"
)

// Stage holds the data of one stage. Matrices are row-major.
type Stage struct {
	// Dynamics 𝐱ᵢ₊₁ = 𝐀𝐱ᵢ + 𝐁𝐮ᵢ + 𝐛 (empty at the terminal stage).
	A    blas64.General // nx[i+1] × nx[i]
	B    blas64.General // nx[i+1] × nu[i]
	Bias []float64      // nx[i+1]

	// Cost ½𝐮ᵀ𝐑𝐮 + 𝐮ᵀ𝐒𝐱 + ½𝐱ᵀ𝐐𝐱 + 𝐫ᵀ𝐮 + 𝐪ᵀ𝐱.
	Q     blas64.General // nx × nx
	S     blas64.General // nu × nx
	R     blas64.General // nu × nu
	GradX []float64      // q
	GradU []float64      // r

	// Bounds 𝒍ₖ ≤ 𝐮𝐱[Idxb[k]] ≤ 𝒖ₖ; the first nbu indices address inputs,
	// the remaining nbx indices address states (offset by nu).
	Idxb   []int
	Lb, Ub []float64

	// General constraints 𝒍𝒈 ≤ 𝐃𝐮 + 𝐂𝐱 ≤ 𝒖𝒈.
	D      blas64.General // ng × nu
	C      blas64.General // ng × nx
	Lg, Ug []float64
}

// QP is a stage-structured quadratic program. It owns all stage data,
// which is carved from a single arena at creation.
// The condenser and the solver only read it.
type QP struct {
	Dims   *Dims
	Stages []Stage
}

// NewQP allocates a zero QP for the given descriptor.
// Bounds start as (-∞, +∞) with idxb enumerating the first inputs and states.
func NewQP(d *Dims) *QP {

	size := 0
	for i := 0; i <= d.N; i++ {
		nx, nu, nb, ng := d.Nx[i], d.Nu[i], d.Nb(i), d.Ng[i]
		if i < d.N {
			size += d.Nx[i+1] * (nx + nu + 1)
		}
		size += nx*nx + nu*nx + nu*nu + nx + nu + 2*nb + ng*(nu+nx) + 2*ng
	}

	arena := dense.NewArena(size)
	qp := &QP{Dims: d, Stages: make([]Stage, d.N+1)}
	for i := range qp.Stages {
		nx, nu, nb, ng := d.Nx[i], d.Nu[i], d.Nb(i), d.Ng[i]
		nx1 := 0
		if i < d.N {
			nx1 = d.Nx[i+1]
		}
		s := &qp.Stages[i]
		s.A = arena.Mat(nx1, nx)
		s.B = arena.Mat(nx1, nu)
		s.Bias = arena.Vec(nx1)
		s.Q = arena.Mat(nx, nx)
		s.S = arena.Mat(nu, nx)
		s.R = arena.Mat(nu, nu)
		s.GradX = arena.Vec(nx)
		s.GradU = arena.Vec(nu)
		s.Lb = arena.Vec(nb)
		s.Ub = arena.Vec(nb)
		s.D = arena.Mat(ng, nu)
		s.C = arena.Mat(ng, nx)
		s.Lg = arena.Vec(ng)
		s.Ug = arena.Vec(ng)

		s.Idxb = make([]int, nb)
		for k := 0; k < d.Nbu[i]; k++ {
			s.Idxb[k] = k
		}
		for k := 0; k < d.Nbx[i]; k++ {
			s.Idxb[d.Nbu[i]+k] = nu + k
		}
		for k := range s.Lb {
			s.Lb[k], s.Ub[k] = math.Inf(-1), math.Inf(1)
		}
		for k := range s.Lg {
			s.Lg[k], s.Ug[k] = math.Inf(-1), math.Inf(1)
		}
	}
	return qp
}

// Validate checks the numerical content of the QP against its descriptor.
func (qp *QP) Validate() error {

	d := qp.Dims
	if len(qp.Stages) != d.N+1 {
		return ErrDimensionMismatch
	}

	finite := func(vs ...[]float64) bool {
		for _, v := range vs {
			for _, x := range v {
				if math.IsNaN(x) || math.IsInf(x, 0) {
					return false
				}
			}
		}
		return true
	}
	block := func(ms ...blas64.General) bool {
		for _, m := range ms {
			for r := 0; r < m.Rows; r++ {
				if !finite(dense.Row(m, r)) {
					return false
				}
			}
		}
		return true
	}

	for i := range qp.Stages {
		s := &qp.Stages[i]
		nx, nu, nbu, nb, ng := d.Nx[i], d.Nu[i], d.Nbu[i], d.Nb(i), d.Ng[i]
		nx1 := 0
		if i < d.N {
			nx1 = d.Nx[i+1]
		}

		switch {
		case !shape(s.A, nx1, nx) || !shape(s.B, nx1, nu) || len(s.Bias) != nx1:
			return stageErrorf(i, ErrDimensionMismatch, "dynamics")
		case !shape(s.Q, nx, nx) || !shape(s.S, nu, nx) || !shape(s.R, nu, nu) ||
			len(s.GradX) != nx || len(s.GradU) != nu:
			return stageErrorf(i, ErrDimensionMismatch, "cost")
		case len(s.Idxb) != nb || len(s.Lb) != nb || len(s.Ub) != nb:
			return stageErrorf(i, ErrDimensionMismatch, "bounds")
		case !shape(s.D, ng, nu) || !shape(s.C, ng, nx) || len(s.Lg) != ng || len(s.Ug) != ng:
			return stageErrorf(i, ErrDimensionMismatch, "general constraints")
		case !block(s.A, s.B, s.Q, s.S, s.R, s.D, s.C) || !finite(s.Bias, s.GradX, s.GradU):
			return stageErrorf(i, ErrInvalidData, "non-finite coefficient")
		}

		for k, idx := range s.Idxb {
			inputs := k < nbu
			switch {
			case inputs && (idx < 0 || idx >= nu):
				return stageErrorf(i, ErrInvalidData, "input bound %d index %d out of range", k, idx)
			case !inputs && (idx < nu || idx >= nu+nx):
				return stageErrorf(i, ErrInvalidData, "state bound %d index %d out of range", k, idx)
			case k > 0 && (k != nbu) && idx <= s.Idxb[k-1]:
				return stageErrorf(i, ErrInvalidData, "bound indices must be increasing")
			}
		}
		for k := range s.Lb {
			if math.IsNaN(s.Lb[k]) || math.IsNaN(s.Ub[k]) || s.Lb[k] > s.Ub[k] {
				return stageErrorf(i, ErrInvalidData, "bound %d range is empty", k)
			}
		}
		for k := range s.Lg {
			if math.IsNaN(s.Lg[k]) || math.IsNaN(s.Ug[k]) || s.Lg[k] > s.Ug[k] {
				return stageErrorf(i, ErrInvalidData, "general constraint %d range is empty", k)
			}
		}
	}
	return nil
}

// Hessian writes the stage Hessian [[R, S], [Sᵀ, Q]] into h ((nu+nx)²).
func (s *Stage) Hessian(h blas64.General) {
	nu := s.R.Rows
	nx := s.Q.Rows
	dense.Copy(dense.Slice(h, 0, nu, 0, nu), s.R)
	dense.Copy(dense.Slice(h, 0, nu, nu, nu+nx), s.S)
	dense.Copy(dense.Slice(h, nu, nu+nx, nu, nu+nx), s.Q)
	for i := 0; i < nu; i++ {
		for j := 0; j < nx; j++ {
			dense.Set(h, nu+j, i, dense.At(s.S, i, j))
		}
	}
}

// Gradient writes [r; q] into g.
func (s *Stage) Gradient(g []float64) {
	nu := len(s.GradU)
	copy(g[:nu], s.GradU)
	copy(g[nu:], s.GradX)
}

// Dynamics writes [B, A] into ba (nx[i+1] × (nu+nx)).
func (s *Stage) Dynamics(ba blas64.General) {
	nu := s.B.Cols
	dense.Copy(dense.Slice(ba, 0, ba.Rows, 0, nu), s.B)
	dense.Copy(dense.Slice(ba, 0, ba.Rows, nu, ba.Cols), s.A)
}

// Constraints writes [D, C] into dc (ng × (nu+nx)).
func (s *Stage) Constraints(dc blas64.General) {
	nu := s.D.Cols
	dense.Copy(dense.Slice(dc, 0, dc.Rows, 0, nu), s.D)
	dense.Copy(dense.Slice(dc, 0, dc.Rows, nu, dc.Cols), s.C)
}

func shape(m blas64.General, r, c int) bool {
	return m.Rows == r && m.Cols == c && (r == 0 || c == 0 || len(m.Data) >= (r-1)*m.Stride+c)
}
