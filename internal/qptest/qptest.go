// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package qptest builds random OCP-QPs with known primal-dual points for tests.
package qptest

import (
	"math/rand/v2"

	"github.com/curioloop/ocpqp/internal/dense"
	"github.com/curioloop/ocpqp/ocp"
	"gonum.org/v1/gonum/blas"
)

// Dims returns a descriptor with uneven stage sizes and every constraint kind.
// With eliminateX0 the first stage carries no state.
func Dims(eliminateX0 bool) *ocp.Dims {
	nx := []int{2, 3, 3, 2, 3, 3, 2}
	nbx := []int{1, 2, 1, 0, 2, 1, 2}
	if eliminateX0 {
		nx[0], nbx[0] = 0, 0
	}
	d, err := ocp.NewDims(nx,
		[]int{1, 2, 1, 2, 1, 1},
		[]int{1, 1, 0, 2, 1, 1, 0},
		nbx,
		[]int{1, 0, 2, 1, 0, 1, 1})
	if err != nil {
		panic(err)
	}
	return d
}

// Random fills a QP with random data. Stage Hessians are positive definite
// and idxb picks a random increasing subset per kind.
func Random(rnd *rand.Rand, d *ocp.Dims) *ocp.QP {

	qp := ocp.NewQP(d)
	for i := range qp.Stages {
		s := &qp.Stages[i]
		nu, nx, nv := d.Nu[i], d.Nx[i], d.Nv(i)

		fill(rnd, s.A.Data)
		fill(rnd, s.B.Data)
		fill(rnd, s.Bias)
		fill(rnd, s.D.Data)
		fill(rnd, s.C.Data)
		fill(rnd, s.GradU)
		fill(rnd, s.GradX)

		// 𝐇 = 𝐋𝐋ᵀ + 𝐈
		l := dense.General(nv, nv, nil)
		fill(rnd, l.Data)
		h := dense.General(nv, nv, nil)
		dense.Identity(h)
		dense.Gemm(blas.NoTrans, blas.Trans, 1, l, l, 1, h)
		dense.Copy(s.R, dense.Slice(h, 0, nu, 0, nu))
		dense.Copy(s.S, dense.Slice(h, 0, nu, nu, nv))
		dense.Copy(s.Q, dense.Slice(h, nu, nv, nu, nv))

		pick(rnd, s.Idxb[:d.Nbu[i]], 0, nu)
		pick(rnd, s.Idxb[d.Nbu[i]:], nu, nx)
		for k := range s.Lb {
			s.Lb[k], s.Ub[k] = -1-rnd.Float64(), 1+rnd.Float64()
		}
		for k := range s.Lg {
			s.Lg[k], s.Ug[k] = -5-rnd.Float64(), 5+rnd.Float64()
		}
	}
	return qp
}

// KKTPoint draws a random primal-dual point and rewrites the bounds and
// gradients of qp so that the point satisfies the dynamics, the slack
// equations and stationarity exactly. Multipliers and slacks are positive.
func KKTPoint(rnd *rand.Rand, qp *ocp.QP) *ocp.Solution {

	d := qp.Dims
	sol := ocp.NewSolution(d)

	fill(rnd, sol.X(0))
	for i := 0; i <= d.N; i++ {
		fill(rnd, sol.U(i))
		if i < d.N {
			st := &qp.Stages[i]
			next := sol.X(i + 1)
			copy(next, st.Bias)
			dense.Gemv(blas.NoTrans, 1, st.A, sol.X(i), 1, next)
			dense.Gemv(blas.NoTrans, 1, st.B, sol.U(i), 1, next)
			fill(rnd, sol.Pi[i])
		}
		for k := range sol.Lam[i] {
			sol.Lam[i][k] = 0.1 + rnd.Float64()
			sol.T[i][k] = 0.1 + rnd.Float64()
		}
	}

	for i := range qp.Stages {
		st := &qp.Stages[i]
		nu, nv, nb, nc := d.Nu[i], d.Nv(i), d.Nb(i), d.Nc(i)
		ux, lam, t := sol.UX[i], sol.Lam[i], sol.T[i]

		// 𝒍 = 𝐂̂𝐮𝐱 - 𝐭ₗ, 𝒖 = 𝐂̂𝐮𝐱 + 𝐭ᵤ
		for k, idx := range st.Idxb {
			st.Lb[k] = ux[idx] - t[k]
			st.Ub[k] = ux[idx] + t[nc+k]
		}
		dc := dense.General(d.Ng[i], nv, nil)
		st.Constraints(dc)
		v := make([]float64, d.Ng[i])
		dense.Gemv(blas.NoTrans, 1, dc, ux, 0, v)
		for g := range v {
			st.Lg[g] = v[g] - t[nb+g]
			st.Ug[g] = v[g] + t[nc+nb+g]
		}

		// 𝐠 = -(𝐇𝐮𝐱 + [𝐁ᵀ; 𝐀ᵀ]𝛑ᵢ - [0; 𝛑ᵢ₋₁] - 𝐂̂ᵀ(𝛌ₗ - 𝛌ᵤ))
		h := dense.General(nv, nv, nil)
		st.Hessian(h)
		g := make([]float64, nv)
		dense.Gemv(blas.NoTrans, 1, h, ux, 0, g)
		if i < d.N {
			ba := dense.General(d.Nx[i+1], nv, nil)
			st.Dynamics(ba)
			dense.Gemv(blas.Trans, 1, ba, sol.Pi[i], 1, g)
		}
		if i > 0 {
			for k, p := range sol.Pi[i-1] {
				g[nu+k] -= p
			}
		}
		for k, idx := range st.Idxb {
			g[idx] -= lam[k] - lam[nc+k]
		}
		dif := make([]float64, d.Ng[i])
		for k := range dif {
			dif[k] = lam[nb+k] - lam[nc+nb+k]
		}
		dense.Gemv(blas.Trans, -1, dc, dif, 1, g)

		for k := range g {
			g[k] = -g[k]
		}
		copy(st.GradU, g[:nu])
		copy(st.GradX, g[nu:])
	}
	return sol
}

func fill(rnd *rand.Rand, v []float64) {
	for i := range v {
		v[i] = 2*rnd.Float64() - 1
	}
}

// pick writes an increasing random subset of [off, off+n) into idx.
func pick(rnd *rand.Rand, idx []int, off, n int) {
	perm := rnd.Perm(n)[:len(idx)]
	for i := range perm {
		for j := i + 1; j < len(perm); j++ {
			if perm[j] < perm[i] {
				perm[i], perm[j] = perm[j], perm[i]
			}
		}
	}
	for i, p := range perm {
		idx[i] = off + p
	}
}
