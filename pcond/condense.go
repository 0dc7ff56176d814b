// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pcond

import (
	"fmt"

	"github.com/curioloop/ocpqp/internal/dense"
	"github.com/curioloop/ocpqp/ocp"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/floats"
)

// Workspace contains the sensitivities of the last condensed QP and the
// scratch buffers of the condensing recursion.
// To avoid race conditions, separate workspaces need to be created for each goroutine.
// But multiple workspaces could share one condenser.
type Workspace struct {
	full, reduced *ocp.Dims

	gam  []blas64.General // 𝚪ⱼ, nx[j] × nz of its block
	gamv [][]float64      // 𝛄ⱼ

	next  blas64.General // 𝚪 at the block end
	nextv []float64

	hess, mmat, wmat, h2 []float64
	g2, v1, v2, row, dif []float64

	qp *ocp.QP // last condensed full QP
}

// Init allocates the workspace for the condenser.
func (c *Condenser) Init() *Workspace {

	d := c.full
	w := &Workspace{
		full:    c.full,
		reduced: c.reduced,
		gam:     make([]blas64.General, d.N),
		gamv:    make([][]float64, d.N),
	}

	nvMax, nxMax, nzMax, ngMax := 0, 0, 0, 0
	for i := 0; i <= d.N; i++ {
		nvMax = max(nvMax, d.Nv(i))
		nxMax = max(nxMax, d.Nx[i])
		ngMax = max(ngMax, d.Ng[i])
	}
	for k := 0; k < c.reduced.N; k++ {
		nzMax = max(nzMax, c.reduced.Nv(k))
	}

	size := nxMax*nzMax + nxMax + 2*nvMax*nvMax + 2*nvMax*nzMax + nzMax*nzMax + 2*nzMax + 2*nvMax + ngMax
	for j := 0; j < d.N; j++ {
		size += d.Nx[j] * (c.reduced.Nv(c.block[j]) + 1)
	}

	arena := dense.NewArena(size)
	for j := 0; j < d.N; j++ {
		w.gam[j] = arena.Mat(d.Nx[j], c.reduced.Nv(c.block[j]))
		w.gamv[j] = arena.Vec(d.Nx[j])
	}
	w.next = arena.Mat(nxMax, nzMax)
	w.nextv = arena.Vec(nxMax)
	w.hess = arena.Vec(nvMax * nvMax)
	w.mmat = arena.Vec(nvMax * nzMax)
	w.wmat = arena.Vec(nvMax * nzMax)
	w.h2 = arena.Vec(nzMax * nzMax)
	w.g2 = arena.Vec(nzMax)
	w.row = arena.Vec(nzMax)
	w.v1 = arena.Vec(nvMax)
	w.v2 = arena.Vec(nvMax)
	w.dif = arena.Vec(ngMax)
	return w
}

func (c *Condenser) check(w *Workspace) error {
	if w == nil || !w.full.Equal(c.full) || !w.reduced.Equal(c.reduced) {
		return fmt.Errorf("pcond: workspace: %w", ocp.ErrDimensionMismatch)
	}
	return nil
}

// Condense writes the reduced QP equivalent to full into reduced.
// All operands are checked before anything is written, so a failed call
// leaves reduced and w untouched. The workspace keeps a reference to full
// for a later Expand.
func (c *Condenser) Condense(full, reduced *ocp.QP, w *Workspace) error {

	switch {
	case full == nil || !full.Dims.Equal(c.full) || len(full.Stages) != c.full.N+1:
		return fmt.Errorf("pcond: full qp: %w", ocp.ErrDimensionMismatch)
	case reduced == nil || !reduced.Dims.Equal(c.reduced) || len(reduced.Stages) != c.reduced.N+1:
		return fmt.Errorf("pcond: reduced qp: %w", ocp.ErrDimensionMismatch)
	}
	if err := c.check(w); err != nil {
		return err
	}

	for k := range c.blocks {
		c.condenseBlock(k, full, &reduced.Stages[k], w)
	}
	c.copyTerminal(&full.Stages[c.full.N], &reduced.Stages[c.reduced.N])

	w.qp = full
	return nil
}

// condenseBlock eliminates the states of block k. Row by row it accumulates
//
//	𝐇₂ = ∑ 𝐌ₗᵀ 𝐇ⱼ 𝐌ₗ,  𝐠₂ = ∑ 𝐌ₗᵀ (𝐇ⱼ 𝐦ₗ + 𝐠ⱼ)
//
// with 𝐌ₗ = [𝐄ₗ; 𝚪ₗ] and 𝐦ₗ = [0; 𝛄ₗ], then advances the sensitivities
// 𝚪ₗ₊₁ = 𝐀ⱼ𝚪ₗ + 𝐁ⱼ𝐄ₗ and 𝛄ₗ₊₁ = 𝐀ⱼ𝛄ₗ + 𝐛ⱼ.
func (c *Condenser) condenseBlock(k int, full *ocp.QP, out *ocp.Stage, w *Workspace) {

	d, rd := c.full, c.reduced
	b := c.blocks[k]
	s := b.Start
	nU, nxs := rd.Nu[k], rd.Nx[k]
	nz := nU + nxs
	nb2 := rd.Nb(k)

	g0 := w.gam[s]
	dense.Zero(g0)
	for p := 0; p < nxs; p++ {
		dense.Set(g0, p, nU+p, 1)
	}
	clear(w.gamv[s])

	h2 := dense.General(nz, nz, w.h2)
	g2 := w.g2[:nz]
	dense.Zero(h2)
	clear(g2)

	for l := 0; l < b.Size; l++ {
		j := s + l
		st := &full.Stages[j]
		nu, nx, nv, nbu := d.Nu[j], d.Nx[j], d.Nv(j), d.Nbu[j]
		uo := c.uOff[j]
		gam, gamv := w.gam[j], w.gamv[j]

		// 𝐌 = [𝐄; 𝚪]
		m := dense.General(nv, nz, w.mmat)
		dense.Zero(m)
		for p := 0; p < nu; p++ {
			dense.Set(m, p, uo+p, 1)
		}
		dense.Copy(dense.Slice(m, nu, nv, 0, nz), gam)

		h := dense.General(nv, nv, w.hess)
		st.Hessian(h)
		hm := dense.General(nv, nz, w.wmat)
		dense.Gemm(blas.NoTrans, blas.NoTrans, 1, h, m, 0, hm)
		dense.Gemm(blas.Trans, blas.NoTrans, 1, m, hm, 1, h2)

		mv, hv := w.v1[:nv], w.v2[:nv]
		clear(mv[:nu])
		copy(mv[nu:], gamv)
		st.Gradient(hv)
		dense.Gemv(blas.NoTrans, 1, h, mv, 1, hv)
		dense.Gemv(blas.Trans, 1, m, hv, 1, g2)

		// bounds stay bounds on inputs and on 𝐱ₛ, other state bounds become rows
		pos := c.cpos[j]
		for q, idx := range st.Idxb {
			at := pos[q]
			switch {
			case q < nbu:
				out.Idxb[at] = uo + idx
				out.Lb[at], out.Ub[at] = st.Lb[q], st.Ub[q]
			case l == 0:
				out.Idxb[at] = nU + idx - nu
				out.Lb[at], out.Ub[at] = st.Lb[q], st.Ub[q]
			default:
				p := idx - nu
				c.writeRow(out, at-nb2, nU, dense.Row(gam, p), gamv[p], st.Lb[q], st.Ub[q])
			}
		}

		// [𝐃 𝐂]𝐌 = 𝐃𝐄 + 𝐂𝚪 with offset 𝐂𝛄
		row := w.row[:nz]
		for g := 0; g < d.Ng[j]; g++ {
			cg := dense.Row(st.C, g)
			dense.Gemv(blas.Trans, 1, gam, cg, 0, row)
			for p := 0; p < nu; p++ {
				row[uo+p] += dense.At(st.D, g, p)
			}
			off := 0.0
			if nx > 0 {
				off = floats.Dot(cg, gamv)
			}
			c.writeRow(out, pos[d.Nb(j)+g]-nb2, nU, row, off, st.Lg[g], st.Ug[g])
		}

		nx1 := d.Nx[j+1]
		var ng1 blas64.General
		var ngv []float64
		if l+1 < b.Size {
			ng1, ngv = w.gam[j+1], w.gamv[j+1]
		} else {
			ng1, ngv = dense.General(nx1, nz, w.next.Data), w.nextv[:nx1]
		}
		dense.Gemm(blas.NoTrans, blas.NoTrans, 1, st.A, gam, 0, ng1)
		for r := 0; r < nx1; r++ {
			for p := 0; p < nu; p++ {
				dense.Add(ng1, r, uo+p, dense.At(st.B, r, p))
			}
		}
		copy(ngv, st.Bias)
		dense.Gemv(blas.NoTrans, 1, st.A, gamv, 1, ngv)
	}

	dense.Symmetrize(h2)
	dense.Copy(out.R, dense.Slice(h2, 0, nU, 0, nU))
	dense.Copy(out.S, dense.Slice(h2, 0, nU, nU, nz))
	dense.Copy(out.Q, dense.Slice(h2, nU, nz, nU, nz))
	copy(out.GradU, g2[:nU])
	copy(out.GradX, g2[nU:])

	nx1 := rd.Nx[k+1]
	next := dense.General(nx1, nz, w.next.Data)
	dense.Copy(out.B, dense.Slice(next, 0, nx1, 0, nU))
	dense.Copy(out.A, dense.Slice(next, 0, nx1, nU, nz))
	copy(out.Bias, w.nextv[:nx1])
}

// writeRow stores 𝒍 - off ≤ row·𝐳 ≤ 𝒖 - off as general constraint g.
func (c *Condenser) writeRow(out *ocp.Stage, g, nU int, row []float64, off, lo, up float64) {
	if nU > 0 {
		copy(dense.Row(out.D, g), row[:nU])
	}
	if out.C.Cols > 0 {
		copy(dense.Row(out.C, g), row[nU:])
	}
	out.Lg[g], out.Ug[g] = lo-off, up-off
}

func (c *Condenser) copyTerminal(src, dst *ocp.Stage) {
	dense.Copy(dst.Q, src.Q)
	copy(dst.GradX, src.GradX)
	copy(dst.Idxb, src.Idxb)
	copy(dst.Lb, src.Lb)
	copy(dst.Ub, src.Ub)
	dense.Copy(dst.C, src.C)
	copy(dst.Lg, src.Lg)
	copy(dst.Ug, src.Ug)
}
