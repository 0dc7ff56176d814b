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

// kktSolver factorizes the reduced Newton system once per iteration and
// solves it for any number of right-hand sides. solve reads the gradient
// 𝐠̃ and the dynamics residual and writes the primal step and the
// dynamics multiplier step of ctx.dir.
type kktSolver interface {
	factorize(ctx *iterCtx) error
	solve(ctx *iterCtx) error
}

type iterCtx struct {
	*stageData

	it  *ocp.Solution // current iterate
	dir *ocp.Solution // search direction

	ht  []blas64.General // 𝐇̃
	gt  [][]float64      // 𝐠̃
	sig [][]float64      // 𝚺 on [lower; upper]
	sc  []blas64.General // (𝚺ₗ + 𝚺ᵤ)𝐂̂
	wv  [][]float64      // 𝐫𝐦/𝐭 + 𝚺∘𝐫𝐝

	kkt kktSolver

	iter  int
	res   Residuals
	trace []Residuals

	// last step, kept for logging
	alpha, alphaAff, sigma float64
}

func (c *iterCtx) init(d *ocp.Dims, backend Backend, arena *dense.Arena) {

	c.stageData = newStageData(d, arena)
	c.it = ocp.NewSolution(d)
	c.dir = ocp.NewSolution(d)

	n := d.N
	c.ht = make([]blas64.General, n+1)
	c.gt = make([][]float64, n+1)
	c.sig = make([][]float64, n+1)
	c.sc = make([]blas64.General, n+1)
	c.wv = make([][]float64, n+1)
	for i := 0; i <= n; i++ {
		nv, nc := d.Nv(i), d.Nc(i)
		c.ht[i] = arena.Mat(nv, nv)
		c.gt[i] = arena.Vec(nv)
		c.sig[i] = arena.Vec(2 * nc)
		c.sc[i] = arena.Mat(nc, nv)
		c.wv[i] = arena.Vec(nc)
	}

	switch backend {
	case DenseLU:
		c.kkt = newDenseKKT(d)
	default:
		c.kkt = newRiccati(d, arena)
	}
}

// initPoint sets 𝐮𝐱 = 0, 𝛑 = 0, 𝐭 = 𝚖𝚊𝚡(𝐂₂𝐮𝐱 - 𝐝, t₀) and 𝛌 = μ₀/𝐭 on the
// finite sides; masked sides hold 𝛌 = 0 and 𝐭 = 1 for the whole solve.
func (c *iterCtx) initPoint(step *StepControl) {
	sol := c.it
	sol.Reset()
	for i := 0; i <= c.d.N; i++ {
		nc := c.d.Nc(i)
		lam, t, m := sol.Lam[i], sol.T[i], c.mask[i]
		for k := 0; k < nc; k++ {
			t[k], t[nc+k] = one, one
			if m[k] != zero {
				t[k] = max(-c.dlo[i][k], step.InitSlack)
				lam[k] = step.Mu0 / t[k]
			}
			if m[nc+k] != zero {
				t[nc+k] = max(c.dup[i][k], step.InitSlack)
				lam[nc+k] = step.Mu0 / t[nc+k]
			}
		}
	}
}

// hessian forms 𝐇̃ = 𝐇 + 𝐂̂ᵀ(𝚺ₗ + 𝚺ᵤ)𝐂̂ + δ𝐈 from the current iterate.
func (c *iterCtx) hessian(reg float64) {
	sol := c.it
	for i := 0; i <= c.d.N; i++ {
		nc := c.d.Nc(i)
		lam, t, m, sig := sol.Lam[i], sol.T[i], c.mask[i], c.sig[i]
		for k := range sig {
			sig[k] = lam[k] / t[k] * m[k]
		}

		ht, sc, chat := c.ht[i], c.sc[i], c.chat[i]
		dense.Copy(ht, c.h[i])
		for k := 0; k < nc; k++ {
			row := dense.Row(sc, k)
			copy(row, dense.Row(chat, k))
			floats.Scale(sig[k]+sig[nc+k], row)
		}
		dense.Gemm(blas.Trans, blas.NoTrans, one, chat, sc, one, ht)
		if reg != zero {
			for k := 0; k < ht.Rows; k++ {
				dense.Add(ht, k, k, reg)
			}
		}
	}
}

// direction solves the Newton system for the current complementarity
// residual 𝐫𝐦 and recovers the slack and multiplier steps
//
//	𝚫𝐭 = [𝐂̂; -𝐂̂]𝚫𝐮𝐱 + 𝐫𝐝,  𝚫𝛌 = -(𝐫𝐦 + 𝛌∘𝚫𝐭)/𝐭
func (c *iterCtx) direction() error {

	d, sol, dir := c.d, c.it, c.dir
	for i := 0; i <= d.N; i++ {
		nc := d.Nc(i)
		t, rd, rm, m, sig, wv := sol.T[i], c.resD[i], c.resM[i], c.mask[i], c.sig[i], c.wv[i]

		// 𝐠̃ = 𝐫𝐠 + 𝐂̂ᵀ(𝐰ₗ - 𝐰ᵤ)
		for k := 0; k < nc; k++ {
			wl := (rm[k]/t[k] + sig[k]*rd[k]) * m[k]
			wu := (rm[nc+k]/t[nc+k] + sig[nc+k]*rd[nc+k]) * m[nc+k]
			wv[k] = wl - wu
		}
		copy(c.gt[i], c.resG[i])
		dense.Gemv(blas.Trans, one, c.chat[i], wv, one, c.gt[i])
	}

	if err := c.kkt.solve(c); err != nil {
		return err
	}

	for i := 0; i <= d.N; i++ {
		if !finite(dir.UX[i]) || (i < d.N && !finite(dir.Pi[i])) {
			return ErrNonFinite
		}
	}

	for i := 0; i <= d.N; i++ {
		nc := d.Nc(i)
		lam, t, rd, rm, m := sol.Lam[i], sol.T[i], c.resD[i], c.resM[i], c.mask[i]
		dlam, dt := dir.Lam[i], dir.T[i]

		cdx := c.wv[i]
		dense.Gemv(blas.NoTrans, one, c.chat[i], dir.UX[i], zero, cdx)
		for k := 0; k < nc; k++ {
			dt[k], dt[nc+k] = zero, zero
			if m[k] != zero {
				dt[k] = cdx[k] + rd[k]
			}
			if m[nc+k] != zero {
				dt[nc+k] = -cdx[k] + rd[nc+k]
			}
		}
		for k := range dt {
			dlam[k] = zero
			if m[k] != zero {
				dlam[k] = -(rm[k] + lam[k]*dt[k]) / t[k]
			}
		}
	}
	return nil
}

// maxStep returns the largest α keeping 𝐭 + α𝚫𝐭 and 𝛌 + α𝚫𝛌 non-negative.
func (c *iterCtx) maxStep() float64 {
	alpha := math.Inf(1)
	for i := 0; i <= c.d.N; i++ {
		lam, t, dlam, dt := c.it.Lam[i], c.it.T[i], c.dir.Lam[i], c.dir.T[i]
		for k := range t {
			if dt[k] < zero {
				alpha = min(alpha, -t[k]/dt[k])
			}
			if dlam[k] < zero {
				alpha = min(alpha, -lam[k]/dlam[k])
			}
		}
	}
	return alpha
}

// muAfter returns the duality measure after a step of length alpha.
func (c *iterCtx) muAfter(alpha float64) float64 {
	if c.nt == 0 {
		return zero
	}
	gap := zero
	for i := 0; i <= c.d.N; i++ {
		lam, t, dlam, dt, m := c.it.Lam[i], c.it.T[i], c.dir.Lam[i], c.dir.T[i], c.mask[i]
		for k := range t {
			gap += (lam[k] + alpha*dlam[k]) * (t[k] + alpha*dt[k]) * m[k]
		}
	}
	return gap / float64(c.nt)
}

// center shifts the complementarity residual to
// 𝐫𝐦 = 𝛌∘𝐭 + 𝚫𝛌∘𝚫𝐭 - σμ, with the second-order term only when
// corrector is set.
func (c *iterCtx) center(sigmaMu float64, corrector bool) {
	for i := 0; i <= c.d.N; i++ {
		rm, m, dlam, dt := c.resM[i], c.mask[i], c.dir.Lam[i], c.dir.T[i]
		for k := range rm {
			if m[k] == zero {
				continue
			}
			rm[k] -= sigmaMu
			if corrector {
				rm[k] += dlam[k] * dt[k]
			}
		}
	}
}

// update moves the iterate along the direction.
func (c *iterCtx) update(alpha float64) {
	sol, dir := c.it, c.dir
	for i := 0; i <= c.d.N; i++ {
		floats.AddScaled(sol.UX[i], alpha, dir.UX[i])
		floats.AddScaled(sol.Lam[i], alpha, dir.Lam[i])
		floats.AddScaled(sol.T[i], alpha, dir.T[i])
		if i < c.d.N {
			floats.AddScaled(sol.Pi[i], alpha, dir.Pi[i])
		}
	}
}

func finite(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
