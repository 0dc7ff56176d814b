// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pcond

import (
	"fmt"

	"github.com/curioloop/ocpqp/internal/dense"
	"github.com/curioloop/ocpqp/ocp"
	"gonum.org/v1/gonum/blas"
)

func (c *Condenser) checkSolutions(reduced, full *ocp.Solution, w *Workspace) error {
	switch {
	case full == nil || !full.Dims.Equal(c.full):
		return fmt.Errorf("pcond: full solution: %w", ocp.ErrDimensionMismatch)
	case reduced == nil || !reduced.Dims.Equal(c.reduced):
		return fmt.Errorf("pcond: reduced solution: %w", ocp.ErrDimensionMismatch)
	}
	return c.check(w)
}

// Expand recovers the full-horizon primal-dual point from a solution of the
// condensed QP. Inputs are copied, the eliminated states are rebuilt from
// the sensitivities and the multipliers and slacks of every constraint are
// taken from the reduced constraint it was mapped to. Dynamics multipliers
// inside a block follow from the state stationarity by backward substitution
//
//	𝛑ⱼ₋₁ = 𝐒ⱼᵀ𝐮ⱼ + 𝐐ⱼ𝐱ⱼ + 𝐪ⱼ + 𝐀ⱼᵀ𝛑ⱼ - [𝐂̂ⱼᵀ(𝛌ₗ - 𝛌ᵤ)]ₓ
//
// starting from the multiplier of the block's last transition.
func (c *Condenser) Expand(reduced, full *ocp.Solution, w *Workspace) error {

	if err := c.checkSolutions(reduced, full, w); err != nil {
		return err
	}
	if w.qp == nil {
		return ErrNotCondensed
	}

	d := c.full
	for k, b := range c.blocks {
		z := reduced.UX[k]
		for l := 0; l < b.Size; l++ {
			j := b.Start + l
			uo := c.uOff[j]
			copy(full.U(j), z[uo:uo+d.Nu[j]])
			x := full.X(j)
			copy(x, w.gamv[j])
			dense.Gemv(blas.NoTrans, 1, w.gam[j], z, 1, x)
		}
	}
	copy(full.UX[d.N], reduced.UX[c.reduced.N])

	c.mapDuals(reduced, full, false)

	for k, b := range c.blocks {
		last := b.Start + b.Size - 1
		copy(full.Pi[last], reduced.Pi[k])
		for j := last; j > b.Start; j-- {
			c.backward(w.qp, full, j, w)
		}
	}
	return nil
}

// backward computes 𝛑ⱼ₋₁ from the stationarity of 𝐱ⱼ.
func (c *Condenser) backward(qp *ocp.QP, sol *ocp.Solution, j int, w *Workspace) {

	d := c.full
	st := &qp.Stages[j]
	nu, nbu, nb, nc, ng := d.Nu[j], d.Nbu[j], d.Nb(j), d.Nc(j), d.Ng[j]
	u, x, lam := sol.U(j), sol.X(j), sol.Lam[j]

	pi := sol.Pi[j-1]
	copy(pi, st.GradX)
	dense.Gemv(blas.Trans, 1, st.S, u, 1, pi)
	dense.Gemv(blas.NoTrans, 1, st.Q, x, 1, pi)
	dense.Gemv(blas.Trans, 1, st.A, sol.Pi[j], 1, pi)

	for q := nbu; q < nb; q++ {
		pi[st.Idxb[q]-nu] -= lam[q] - lam[nc+q]
	}
	dif := w.dif[:ng]
	for g := range dif {
		dif[g] = lam[nb+g] - lam[nc+nb+g]
	}
	dense.Gemv(blas.Trans, -1, st.C, dif, 1, pi)
}

// Restrict maps a full-horizon primal-dual point onto the condensed QP:
// block inputs are stacked, the block start state is kept and every
// multiplier and slack moves to the reduced constraint it was mapped to.
// On a KKT point of the full QP, Expand undoes Restrict exactly.
func (c *Condenser) Restrict(full, reduced *ocp.Solution, w *Workspace) error {

	if err := c.checkSolutions(reduced, full, w); err != nil {
		return err
	}

	d := c.full
	for k, b := range c.blocks {
		z := reduced.UX[k]
		for l := 0; l < b.Size; l++ {
			j := b.Start + l
			uo := c.uOff[j]
			copy(z[uo:uo+d.Nu[j]], full.U(j))
		}
		copy(reduced.X(k), full.X(b.Start))
		copy(reduced.Pi[k], full.Pi[b.Start+b.Size-1])
	}
	copy(reduced.UX[c.reduced.N], full.UX[d.N])

	c.mapDuals(reduced, full, true)
	return nil
}

// mapDuals moves multipliers and slacks between the two layouts.
// The lower side of constraint m sits at m, the upper side at nc + m.
func (c *Condenser) mapDuals(reduced, full *ocp.Solution, restrict bool) {
	d, rd := c.full, c.reduced
	for j := 0; j <= d.N; j++ {
		k := c.block[j]
		nc, nc2 := d.Nc(j), rd.Nc(k)
		for m, at := range c.cpos[j] {
			fl, fu, rl, ru := m, nc+m, at, nc2+at
			if restrict {
				reduced.Lam[k][rl], reduced.Lam[k][ru] = full.Lam[j][fl], full.Lam[j][fu]
				reduced.T[k][rl], reduced.T[k][ru] = full.T[j][fl], full.T[j][fu]
			} else {
				full.Lam[j][fl], full.Lam[j][fu] = reduced.Lam[k][rl], reduced.Lam[k][ru]
				full.T[j][fl], full.T[j][fu] = reduced.T[k][rl], reduced.T[k][ru]
			}
		}
	}
}
