// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dense

import "gonum.org/v1/gonum/blas/blas64"

// Arena hands out consecutive float64 buffers from large backing chunks.
// Buffers are carved once at setup and addressed by stage index afterwards,
// so repeated solves on the same dimensions never allocate.
type Arena struct {
	data  []float64
	off   int
	chunk int
	size  int
}

// NewArena creates an arena whose first chunk holds hint elements.
func NewArena(hint int) *Arena {
	hint = max(hint, 64)
	return &Arena{data: make([]float64, hint), chunk: hint}
}

// Vec returns a zeroed buffer of length n.
func (a *Arena) Vec(n int) []float64 {
	if n == 0 {
		return []float64{}
	}
	if len(a.data)-a.off < n {
		a.data = make([]float64, max(n, a.chunk))
		a.off = 0
	}
	v := a.data[a.off : a.off+n : a.off+n]
	a.off += n
	a.size += n
	return v
}

// Mat returns a zeroed r×c row-major block.
func (a *Arena) Mat(r, c int) blas64.General {
	return General(r, c, a.Vec(r*c))
}

// Vecs returns one buffer per entry of sizes.
func (a *Arena) Vecs(sizes []int) [][]float64 {
	vs := make([][]float64, len(sizes))
	for i, n := range sizes {
		vs[i] = a.Vec(n)
	}
	return vs
}

// Size reports the number of elements handed out so far.
func (a *Arena) Size() int {
	return a.size
}
