// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ipm

import (
	"math"

	"github.com/curioloop/ocpqp/internal/dense"
	"github.com/curioloop/ocpqp/ocp"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/floats"
)

// Residuals holds the ∞-norms of the KKT residuals of a primal-dual point.
type Residuals struct {
	Stationarity    float64 // ‖𝐇𝐮𝐱 + 𝐠 + [𝐁ᵀ; 𝐀ᵀ]𝛑ᵢ - [0; 𝛑ᵢ₋₁] - 𝐂̂ᵀ(𝛌ₗ - 𝛌ᵤ)‖∞
	Equality        float64 // ‖𝐀𝐱 + 𝐁𝐮 + 𝐛 - 𝐱ᵢ₊₁‖∞
	Inequality      float64 // ‖[𝐂̂; -𝐂̂]𝐮𝐱 - [𝒍; -𝒖] - 𝐭‖∞
	Complementarity float64 // ‖𝛌∘𝐭‖∞
	Mu              float64 // duality measure 𝛌ᵀ𝐭 / nₜ
}

// Max returns the largest of the four residual norms.
func (r Residuals) Max() float64 {
	return max(r.Stationarity, r.Equality, r.Inequality, r.Complementarity)
}

// Finite reports whether every entry is finite and non-negative.
func (r Residuals) Finite() bool {
	for _, v := range []float64{r.Stationarity, r.Equality, r.Inequality, r.Complementarity, r.Mu} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < zero {
			return false
		}
	}
	return true
}

// stageData is the QP in the solver layout: stage Hessians, gradients,
// dynamics and the stacked constraint matrix 𝐂̂ with its limits.
// Constraint sides with an infinite limit are masked out.
type stageData struct {
	d *ocp.Dims

	h    []blas64.General // [[𝐑, 𝐒], [𝐒ᵀ, 𝐐]]
	g    [][]float64      // [𝐫; 𝐪]
	ba   []blas64.General // [𝐁, 𝐀]
	b    [][]float64
	chat []blas64.General // bound rows then [𝐃, 𝐂]
	dlo  [][]float64      // 𝒍 per constraint
	dup  [][]float64      // 𝒖 per constraint
	mask [][]float64      // 1 on finite sides, layout [lower; upper]
	nt   int              // number of finite sides

	// residuals of the current point
	resG, resB, resD, resM [][]float64
}

func newStageData(d *ocp.Dims, arena *dense.Arena) *stageData {
	n := d.N
	s := &stageData{
		d:    d,
		h:    make([]blas64.General, n+1),
		g:    make([][]float64, n+1),
		ba:   make([]blas64.General, n),
		b:    make([][]float64, n),
		chat: make([]blas64.General, n+1),
		dlo:  make([][]float64, n+1),
		dup:  make([][]float64, n+1),
		mask: make([][]float64, n+1),
		resG: make([][]float64, n+1),
		resB: make([][]float64, n),
		resD: make([][]float64, n+1),
		resM: make([][]float64, n+1),
	}
	for i := 0; i <= n; i++ {
		nv, nc := d.Nv(i), d.Nc(i)
		s.h[i] = arena.Mat(nv, nv)
		s.g[i] = arena.Vec(nv)
		s.chat[i] = arena.Mat(nc, nv)
		s.dlo[i] = arena.Vec(nc)
		s.dup[i] = arena.Vec(nc)
		s.mask[i] = arena.Vec(2 * nc)
		s.resG[i] = arena.Vec(nv)
		s.resD[i] = arena.Vec(2 * nc)
		s.resM[i] = arena.Vec(2 * nc)
		if i < n {
			s.ba[i] = arena.Mat(d.Nx[i+1], nv)
			s.b[i] = arena.Vec(d.Nx[i+1])
			s.resB[i] = arena.Vec(d.Nx[i+1])
		}
	}
	return s
}

// load copies the QP data into the solver layout.
func (s *stageData) load(qp *ocp.QP) {
	d := s.d
	s.nt = 0
	for i := range qp.Stages {
		st := &qp.Stages[i]
		nb, nc := d.Nb(i), d.Nc(i)

		st.Hessian(s.h[i])
		st.Gradient(s.g[i])
		if i < d.N {
			st.Dynamics(s.ba[i])
			copy(s.b[i], st.Bias)
		}

		c := s.chat[i]
		dense.Zero(c)
		for k, idx := range st.Idxb {
			dense.Set(c, k, idx, one)
		}
		st.Constraints(dense.Slice(c, nb, nc, 0, c.Cols))
		copy(s.dlo[i][:nb], st.Lb)
		copy(s.dlo[i][nb:], st.Lg)
		copy(s.dup[i][:nb], st.Ub)
		copy(s.dup[i][nb:], st.Ug)

		m := s.mask[i]
		for k := 0; k < nc; k++ {
			m[k], m[nc+k] = zero, zero
			if !math.IsInf(s.dlo[i][k], -1) {
				m[k] = one
				s.nt++
			}
			if !math.IsInf(s.dup[i][k], 1) {
				m[nc+k] = one
				s.nt++
			}
		}
	}
}

// residuals evaluates the KKT residuals of sol and leaves them in
// resG, resB, resD and resM (complementarity is 𝛌∘𝐭 on finite sides).
func (s *stageData) residuals(sol *ocp.Solution) (r Residuals) {

	d := s.d
	gap := zero
	for i := 0; i <= d.N; i++ {
		nu, nc := d.Nu[i], d.Nc(i)
		ux, lam, t, m := sol.UX[i], sol.Lam[i], sol.T[i], s.mask[i]

		rg := s.resG[i]
		copy(rg, s.g[i])
		dense.Gemv(blas.NoTrans, one, s.h[i], ux, one, rg)
		if i < d.N {
			dense.Gemv(blas.Trans, one, s.ba[i], sol.Pi[i], one, rg)

			rb := s.resB[i]
			copy(rb, s.b[i])
			dense.Gemv(blas.NoTrans, one, s.ba[i], ux, one, rb)
			floats.Sub(rb, sol.X(i+1))
			r.Equality = max(r.Equality, floats.Norm(rb, math.Inf(1)))
		}
		if i > 0 {
			floats.Sub(rg[nu:], sol.Pi[i-1])
		}

		// 𝐫𝐝 = [𝐂̂𝐮𝐱 - 𝒍; 𝒖 - 𝐂̂𝐮𝐱] - 𝐭
		rd, rm := s.resD[i], s.resM[i]
		cux := rd[:nc]
		dense.Gemv(blas.NoTrans, one, s.chat[i], ux, zero, cux)
		for k := 0; k < nc; k++ {
			v := cux[k]
			rd[k], rd[nc+k] = zero, zero
			if m[k] != zero {
				rd[k] = v - s.dlo[i][k] - t[k]
			}
			if m[nc+k] != zero {
				rd[nc+k] = s.dup[i][k] - v - t[nc+k]
			}
		}
		for k := range rm {
			rm[k] = lam[k] * t[k] * m[k]
			gap += rm[k]
		}

		// subtract 𝐂̂ᵀ(𝛌ₗ - 𝛌ᵤ) row by row
		for k := 0; k < nc; k++ {
			dl := lam[k]*m[k] - lam[nc+k]*m[nc+k]
			if dl != zero {
				floats.AddScaled(rg, -dl, dense.Row(s.chat[i], k))
			}
		}

		r.Stationarity = max(r.Stationarity, floats.Norm(rg, math.Inf(1)))
		r.Inequality = max(r.Inequality, floats.Norm(rd, math.Inf(1)))
		r.Complementarity = max(r.Complementarity, floats.Norm(rm, math.Inf(1)))
	}
	if s.nt > 0 {
		r.Mu = gap / float64(s.nt)
	}
	return
}

// Evaluate computes the KKT residuals of any primal-dual point of qp.
// It allocates its own scratch and leaves qp and sol untouched.
func Evaluate(qp *ocp.QP, sol *ocp.Solution) Residuals {
	if !qp.Dims.Equal(sol.Dims) {
		panic("solution dimension not match qp")
	}
	s := newStageData(qp.Dims, dense.NewArena(0))
	s.load(qp)
	return s.residuals(sol)
}
