// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ipm

import (
	"github.com/curioloop/ocpqp/internal/dense"
	"github.com/curioloop/ocpqp/ocp"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/lapack/lapack64"
)

// riccati solves the Newton system by dynamic programming on the cost-to-go
// Vᵢ(𝐱) = ½𝐱ᵀ𝐏ᵢ𝐱 + 𝐩ᵢᵀ𝐱. The factorization runs backward with 𝐏ₙ = 𝐐̃ₙ and
//
//	𝐌ᵢ = 𝐇̃ᵢ + [𝐁ᵢ, 𝐀ᵢ]ᵀ𝐏ᵢ₊₁[𝐁ᵢ, 𝐀ᵢ] = [[𝐑̄, 𝐒̄], [𝐒̄ᵀ, 𝐐̄]]
//	𝐊ᵢ = -𝐑̄⁻¹𝐒̄,  𝐏ᵢ = 𝐐̄ + 𝐒̄ᵀ𝐊ᵢ
//
// where 𝐑̄ is kept as its Cholesky factor.
type riccati struct {
	d *ocp.Dims

	p    []blas64.General    // 𝐏ᵢ
	chol []blas64.Triangular // factor of 𝐑̄ᵢ
	k    []blas64.General    // 𝐊ᵢ
	p0   blas64.Triangular   // factor of 𝐏₀ when the first stage has states

	m   []blas64.General // 𝐌ᵢ
	pba []blas64.General // 𝐏ᵢ₊₁[𝐁ᵢ, 𝐀ᵢ]

	pv   [][]float64 // 𝐩ᵢ
	kv   [][]float64 // 𝐤ᵢ
	v    [][]float64 // 𝐏ᵢ₊₁𝐫𝐛ᵢ + 𝐩ᵢ₊₁
	gbar [][]float64 // 𝐠̃ᵢ + [𝐁ᵢ, 𝐀ᵢ]ᵀ𝐯
}

func newRiccati(d *ocp.Dims, arena *dense.Arena) *riccati {
	n := d.N
	s := &riccati{
		d:    d,
		p:    make([]blas64.General, n+1),
		chol: make([]blas64.Triangular, n),
		k:    make([]blas64.General, n),
		m:    make([]blas64.General, n),
		pba:  make([]blas64.General, n),
		pv:   make([][]float64, n+1),
		kv:   make([][]float64, n),
		v:    make([][]float64, n),
		gbar: make([][]float64, n),
	}
	for i := 0; i <= n; i++ {
		nx, nu, nv := d.Nx[i], d.Nu[i], d.Nv(i)
		s.p[i] = arena.Mat(nx, nx)
		s.pv[i] = arena.Vec(nx)
		if i == n {
			continue
		}
		nx1 := d.Nx[i+1]
		s.chol[i] = triangular(arena.Mat(nu, nu))
		s.k[i] = arena.Mat(nu, nx)
		s.m[i] = arena.Mat(nv, nv)
		s.pba[i] = arena.Mat(nx1, nv)
		s.kv[i] = arena.Vec(nu)
		s.v[i] = arena.Vec(nx1)
		s.gbar[i] = arena.Vec(nv)
	}
	s.p0 = triangular(arena.Mat(d.Nx[0], d.Nx[0]))
	return s
}

func triangular(m blas64.General) blas64.Triangular {
	return blas64.Triangular{
		Uplo:   blas.Upper,
		Diag:   blas.NonUnit,
		N:      m.Rows,
		Stride: m.Stride,
		Data:   m.Data,
	}
}

// cholesky overwrites the upper triangle of t with its Cholesky factor.
func cholesky(t blas64.Triangular) bool {
	if t.N == 0 {
		return true
	}
	_, ok := lapack64.Potrf(blas64.Symmetric{
		Uplo:   t.Uplo,
		N:      t.N,
		Stride: t.Stride,
		Data:   t.Data,
	})
	return ok
}

// cholSolve overwrites b with 𝐀⁻¹b given the factor of 𝐀.
func cholSolve(t blas64.Triangular, b blas64.General) {
	if t.N == 0 || b.Cols == 0 {
		return
	}
	lapack64.Potrs(t, b)
}

func (s *riccati) factorize(ctx *iterCtx) error {

	d := s.d
	n := d.N
	dense.Copy(s.p[n], ctx.ht[n])

	for i := n - 1; i >= 0; i-- {
		nu, nv := d.Nu[i], d.Nv(i)
		ba, m := ctx.ba[i], s.m[i]

		dense.Gemm(blas.NoTrans, blas.NoTrans, one, s.p[i+1], ba, zero, s.pba[i])
		dense.Copy(m, ctx.ht[i])
		dense.Gemm(blas.Trans, blas.NoTrans, one, ba, s.pba[i], one, m)
		dense.Symmetrize(m)

		rbar := dense.Slice(m, 0, nu, 0, nu)
		sbar := dense.Slice(m, 0, nu, nu, nv)
		chol := s.chol[i]
		dense.Copy(dense.General(nu, nu, chol.Data), rbar)
		if !cholesky(chol) {
			return ErrSingular
		}

		k := s.k[i]
		dense.Copy(k, sbar)
		cholSolve(chol, k)
		dense.Scale(-one, k)

		dense.Copy(s.p[i], dense.Slice(m, nu, nv, nu, nv))
		dense.Gemm(blas.Trans, blas.NoTrans, one, sbar, k, one, s.p[i])
		dense.Symmetrize(s.p[i])
	}

	if d.Nx[0] > 0 {
		dense.Copy(dense.General(d.Nx[0], d.Nx[0], s.p0.Data), s.p[0])
		if !cholesky(s.p0) {
			return ErrSingular
		}
	}
	return nil
}

func (s *riccati) solve(ctx *iterCtx) error {

	d := s.d
	n := d.N
	dir := ctx.dir

	// backward: 𝐤ᵢ = -𝐑̄⁻¹𝐫̄,  𝐩ᵢ = 𝐪̄ + 𝐊ᵢᵀ𝐫̄
	copy(s.pv[n], ctx.gt[n])
	for i := n - 1; i >= 0; i-- {
		nu := d.Nu[i]
		v, gbar := s.v[i], s.gbar[i]

		copy(v, s.pv[i+1])
		dense.Gemv(blas.NoTrans, one, s.p[i+1], ctx.resB[i], one, v)
		copy(gbar, ctx.gt[i])
		dense.Gemv(blas.Trans, one, ctx.ba[i], v, one, gbar)

		rbar := gbar[:nu]
		kv := s.kv[i]
		copy(kv, rbar)
		cholSolve(s.chol[i], dense.General(nu, 1, kv))
		floats.Scale(-one, kv)

		copy(s.pv[i], gbar[nu:])
		dense.Gemv(blas.Trans, one, s.k[i], rbar, one, s.pv[i])
	}

	// forward: 𝐱₀ = -𝐏₀⁻¹𝐩₀,  𝐮ᵢ = 𝐊ᵢ𝐱ᵢ + 𝐤ᵢ,  𝐱ᵢ₊₁ = [𝐁ᵢ, 𝐀ᵢ]𝐮𝐱ᵢ + 𝐫𝐛ᵢ
	x0 := dir.X(0)
	copy(x0, s.pv[0])
	cholSolve(s.p0, dense.General(len(x0), 1, x0))
	floats.Scale(-one, x0)

	for i := 0; i < n; i++ {
		u, x := dir.U(i), dir.X(i)
		copy(u, s.kv[i])
		dense.Gemv(blas.NoTrans, one, s.k[i], x, one, u)

		next := dir.X(i + 1)
		copy(next, ctx.resB[i])
		dense.Gemv(blas.NoTrans, one, ctx.ba[i], dir.UX[i], one, next)

		// 𝚫𝛑ᵢ = ∇Vᵢ₊₁(𝐱ᵢ₊₁)
		pi := dir.Pi[i]
		copy(pi, s.pv[i+1])
		dense.Gemv(blas.NoTrans, one, s.p[i+1], next, one, pi)
	}
	return nil
}
