// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package dense holds the row-major block kernels shared by the condenser
// and the interior-point solver.
//
// Stage blocks of an OCP-QP are routinely empty (no state at the first stage
// once x₀ is eliminated, no input at the terminal stage, no general
// constraints), so every kernel here accepts zero dimensions and only hands
// non-degenerate operands to gonum's BLAS.
package dense

import (
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
)

// General wraps data as an r×c row-major block.
// A nil data slice is allocated.
func General(r, c int, data []float64) blas64.General {
	if data == nil {
		data = make([]float64, r*c)
	}
	if len(data) < r*c {
		panic("dense: short data for general block")
	}
	return blas64.General{Rows: r, Cols: c, Stride: max(1, c), Data: data[:r*c]}
}

// Row returns row i of m.
func Row(m blas64.General, i int) []float64 {
	if m.Cols == 0 {
		return nil
	}
	return m.Data[i*m.Stride : i*m.Stride+m.Cols]
}

// At returns m[i,j].
func At(m blas64.General, i, j int) float64 {
	return m.Data[i*m.Stride+j]
}

// Set assigns m[i,j] = v.
func Set(m blas64.General, i, j int, v float64) {
	m.Data[i*m.Stride+j] = v
}

// Add accumulates m[i,j] += v.
func Add(m blas64.General, i, j int, v float64) {
	m.Data[i*m.Stride+j] += v
}

// Zero fills m with zeros.
func Zero(m blas64.General) {
	for i := 0; i < m.Rows; i++ {
		clear(Row(m, i))
	}
}

// Identity sets m to the identity block (m must be square).
func Identity(m blas64.General) {
	Zero(m)
	for i := 0; i < min(m.Rows, m.Cols); i++ {
		Set(m, i, i, 1)
	}
}

// Copy copies src into the top-left corner of dst.
func Copy(dst, src blas64.General) {
	if dst.Rows < src.Rows || dst.Cols < src.Cols {
		panic("dense: copy destination too small")
	}
	for i := 0; i < src.Rows; i++ {
		copy(Row(dst, i), Row(src, i))
	}
}

// Slice returns the view m[r0:r1, c0:c1] sharing storage with m.
func Slice(m blas64.General, r0, r1, c0, c1 int) blas64.General {
	if r0 < 0 || r1 > m.Rows || c0 < 0 || c1 > m.Cols || r0 > r1 || c0 > c1 {
		panic("dense: slice out of range")
	}
	v := blas64.General{Rows: r1 - r0, Cols: c1 - c0, Stride: m.Stride}
	if v.Rows > 0 && v.Cols > 0 {
		v.Data = m.Data[r0*m.Stride+c0 : (r1-1)*m.Stride+c1]
	}
	return v
}

// Scale multiplies every element of m by alpha.
func Scale(alpha float64, m blas64.General) {
	for i := 0; i < m.Rows; i++ {
		row := Row(m, i)
		if alpha == 0 {
			clear(row)
			continue
		}
		for j := range row {
			row[j] *= alpha
		}
	}
}

// Symmetrize replaces the square block m with ½(m + mᵀ).
func Symmetrize(m blas64.General) {
	for i := 0; i < m.Rows; i++ {
		for j := i + 1; j < m.Cols; j++ {
			v := 0.5 * (At(m, i, j) + At(m, j, i))
			Set(m, i, j, v)
			Set(m, j, i, v)
		}
	}
}

// Gemm computes c = alpha·op(a)·op(b) + beta·c.
func Gemm(tA, tB blas.Transpose, alpha float64, a, b blas64.General, beta float64, c blas64.General) {
	k := a.Cols
	if tA != blas.NoTrans {
		k = a.Rows
	}
	if c.Rows == 0 || c.Cols == 0 {
		return
	}
	if k == 0 || alpha == 0 {
		if beta != 1 {
			Scale(beta, c)
		}
		return
	}
	blas64.Gemm(tA, tB, alpha, a, b, beta, c)
}

// Gemv computes y = alpha·op(a)·x + beta·y.
func Gemv(tA blas.Transpose, alpha float64, a blas64.General, x []float64, beta float64, y []float64) {
	k := a.Cols
	if tA != blas.NoTrans {
		k = a.Rows
	}
	if len(y) == 0 {
		return
	}
	if k == 0 || alpha == 0 {
		switch beta {
		case 1:
		case 0:
			clear(y)
		default:
			for i := range y {
				y[i] *= beta
			}
		}
		return
	}
	blas64.Gemv(tA, alpha, a,
		blas64.Vector{N: len(x), Data: x, Inc: 1}, beta,
		blas64.Vector{N: len(y), Data: y, Inc: 1})
}
