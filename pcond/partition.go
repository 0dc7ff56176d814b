// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pcond implements partial condensing of OCP-QPs.
//
// The horizon N is split into N2 blocks of consecutive stages. Inside a block
// starting at stage s the states are eliminated through the dynamics
//
//	𝐱ₛ₊ₗ = 𝚪ₗ 𝐳 + 𝛄ₗ,  𝐳 = [𝐮ₛ; ··· ; 𝐮ₛ₊ₙ₋₁; 𝐱ₛ]
//
// so that each block becomes one stage of a reduced OCP-QP with horizon N2,
// inputs 𝐳 without 𝐱ₛ and state 𝐱ₛ. The terminal stage is carried unchanged.
// Expansion maps a primal-dual point of the reduced problem back onto the
// full horizon.
package pcond

import (
	"fmt"

	"github.com/curioloop/ocpqp/ocp"
)

// ErrNotCondensed is returned by Expand when the workspace never condensed a QP.
var ErrNotCondensed = fmt.Errorf("%w: expand before condense", ocp.ErrInvalidConfiguration)

// Problem specifies a partial condensing setup.
type Problem struct {
	Dims *ocp.Dims // Full-horizon descriptor
	N2   int       // Reduced horizon within [1, N]
}

// Block is a run of consecutive full-horizon stages merged into one reduced stage.
type Block struct {
	Start, Size int
}

// Condenser holds the immutable block partition and mapping tables.
// It is safe to share between goroutines; the mutable state lives in Workspace.
type Condenser struct {
	full    *ocp.Dims
	reduced *ocp.Dims
	blocks  []Block

	// block index and input column offset of each full-horizon stage
	block []int
	uOff  []int

	// cpos[j][m] is the position of constraint m of stage j (bounds first,
	// then general rows) among the [bounds; general] constraints of its
	// reduced stage.
	cpos [][]int
}

// New validates the setup and builds the condenser.
func (p *Problem) New() (c *Condenser, err error) {

	d := p.Dims
	switch {
	case d == nil:
		err = fmt.Errorf("%w: dimension descriptor is required", ocp.ErrInvalidConfiguration)
	case p.N2 < 1 || p.N2 > d.N:
		err = fmt.Errorf("%w: N2 = %d with N = %d", ocp.ErrHorizonRange, p.N2, d.N)
	}
	if err != nil {
		return
	}
	if err = d.Validate(); err != nil {
		return
	}

	c = &Condenser{
		full:   d,
		blocks: Partition(d.N, p.N2),
		block:  make([]int, d.N+1),
		uOff:   make([]int, d.N+1),
		cpos:   make([][]int, d.N+1),
	}

	n2 := p.N2
	nx, nu := make([]int, n2+1), make([]int, n2+1)
	nbu, nbx, ng := make([]int, n2+1), make([]int, n2+1), make([]int, n2+1)

	for k, b := range c.blocks {
		s := b.Start
		nx[k], nbx[k] = d.Nx[s], d.Nbx[s]
		for l := 0; l < b.Size; l++ {
			j := s + l
			c.block[j], c.uOff[j] = k, nu[k]
			nu[k] += d.Nu[j]
			nbu[k] += d.Nbu[j]
			ng[k] += d.Ng[j]
			if l > 0 {
				ng[k] += d.Nbx[j]
			}
		}

		ub, gen := 0, nbu[k]+nbx[k]
		for l := 0; l < b.Size; l++ {
			j := s + l
			nbuj, nbj := d.Nbu[j], d.Nb(j)
			pos := make([]int, d.Nc(j))
			for m := 0; m < nbuj; m++ {
				pos[m] = ub
				ub++
			}
			for m := nbuj; m < nbj; m++ {
				if l == 0 {
					pos[m] = nbu[k] + m - nbuj
				} else {
					pos[m] = gen
					gen++
				}
			}
			for g := 0; g < d.Ng[j]; g++ {
				pos[nbj+g] = gen
				gen++
			}
			c.cpos[j] = pos
		}
	}

	nx[n2], nbu[n2], nbx[n2], ng[n2] = d.Nx[d.N], d.Nbu[d.N], d.Nbx[d.N], d.Ng[d.N]
	c.block[d.N] = n2
	c.cpos[d.N] = make([]int, d.Nc(d.N))
	for m := range c.cpos[d.N] {
		c.cpos[d.N][m] = m
	}

	if c.reduced, err = ocp.NewDims(nx, nu, nbu, nbx, ng); err != nil {
		return nil, err
	}
	return
}

// Partition splits a horizon of n stages into n2 blocks.
// With T = n/n2 and R = n - n2·T, the first R blocks hold T+1 stages and
// the remaining ones T stages. The terminal stage n is not part of any block.
func Partition(n, n2 int) []Block {
	t, r := n/n2, n%n2
	blocks := make([]Block, n2)
	start := 0
	for k := range blocks {
		size := t
		if k < r {
			size++
		}
		blocks[k] = Block{Start: start, Size: size}
		start += size
	}
	return blocks
}

// Dims returns the full-horizon descriptor.
func (c *Condenser) Dims() *ocp.Dims {
	return c.full
}

// Reduced returns the descriptor of the condensed QP.
func (c *Condenser) Reduced() *ocp.Dims {
	return c.reduced
}

// Blocks returns a copy of the block partition.
func (c *Condenser) Blocks() []Block {
	return append([]Block(nil), c.blocks...)
}

// NewReducedQP allocates a QP with the reduced descriptor.
func (c *Condenser) NewReducedQP() *ocp.QP {
	return ocp.NewQP(c.reduced)
}

// NewReducedSolution allocates a solution with the reduced descriptor.
func (c *Condenser) NewReducedSolution() *ocp.Solution {
	return ocp.NewSolution(c.reduced)
}
