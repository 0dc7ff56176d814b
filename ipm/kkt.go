// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ipm

import (
	"errors"
	"math"

	"github.com/curioloop/ocpqp/internal/dense"
	"github.com/curioloop/ocpqp/ocp"
	"gonum.org/v1/gonum/mat"
)

// denseKKT assembles the whole Newton system over 𝐳 = [𝐮𝐱₀ ··· 𝐮𝐱ₙ, 𝛑₀ ··· 𝛑ₙ₋₁]
//
//	⎡ 𝐇̃  𝐆ᵀ ⎤ ⎡ 𝚫𝐮𝐱 ⎤   ⎡ -𝐠̃  ⎤
//	⎣ 𝐆  0  ⎦ ⎣ 𝚫𝛑  ⎦ = ⎣ -𝐫𝐛 ⎦
//
// where row block i of 𝐆 holds [𝐁ᵢ, 𝐀ᵢ] at 𝐮𝐱ᵢ and -𝐈 at 𝐱ᵢ₊₁,
// and factorizes it with a pivoted LU decomposition.
type denseKKT struct {
	d     *ocp.Dims
	offUX []int
	offPi []int
	k     *mat.Dense
	lu    mat.LU
	rhs   *mat.VecDense
	sol   *mat.VecDense
}

func newDenseKKT(d *ocp.Dims) *denseKKT {
	s := &denseKKT{
		d:     d,
		offUX: make([]int, d.N+1),
		offPi: make([]int, d.N),
	}
	n := 0
	for i := 0; i <= d.N; i++ {
		s.offUX[i] = n
		n += d.Nv(i)
	}
	for i := 0; i < d.N; i++ {
		s.offPi[i] = n
		n += d.Nx[i+1]
	}
	s.k = mat.NewDense(n, n, nil)
	s.rhs = mat.NewVecDense(n, nil)
	s.sol = mat.NewVecDense(n, nil)
	return s
}

func (s *denseKKT) factorize(ctx *iterCtx) error {

	d, k := s.d, s.k
	k.Zero()
	for i := 0; i <= d.N; i++ {
		o, ht := s.offUX[i], ctx.ht[i]
		for r := 0; r < ht.Rows; r++ {
			for c, v := range dense.Row(ht, r) {
				k.Set(o+r, o+c, v)
			}
		}
		if i == d.N {
			continue
		}
		p, ba := s.offPi[i], ctx.ba[i]
		xo := s.offUX[i+1] + d.Nu[i+1]
		for r := 0; r < ba.Rows; r++ {
			for c, v := range dense.Row(ba, r) {
				k.Set(p+r, o+c, v)
				k.Set(o+c, p+r, v)
			}
			k.Set(p+r, xo+r, -one)
			k.Set(xo+r, p+r, -one)
		}
	}

	s.lu.Factorize(k)
	if det, _ := s.lu.LogDet(); math.IsInf(det, -1) || math.IsNaN(det) {
		return ErrSingular
	}
	return nil
}

func (s *denseKKT) solve(ctx *iterCtx) error {

	d := s.d
	for i := 0; i <= d.N; i++ {
		o := s.offUX[i]
		for c, v := range ctx.gt[i] {
			s.rhs.SetVec(o+c, -v)
		}
		if i < d.N {
			for r, v := range ctx.resB[i] {
				s.rhs.SetVec(s.offPi[i]+r, -v)
			}
		}
	}

	if err := s.lu.SolveVecTo(s.sol, false, s.rhs); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) || math.IsInf(float64(cond), 1) {
			return ErrSingular
		}
	}

	for i := 0; i <= d.N; i++ {
		o := s.offUX[i]
		dux := ctx.dir.UX[i]
		for c := range dux {
			dux[c] = s.sol.AtVec(o + c)
		}
		if i < d.N {
			dpi := ctx.dir.Pi[i]
			for r := range dpi {
				dpi[r] = s.sol.AtVec(s.offPi[i] + r)
			}
		}
	}
	return nil
}
