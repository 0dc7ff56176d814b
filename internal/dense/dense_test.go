// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dense

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/blas"
)

func TestGemm(t *testing.T) {

	a := General(2, 3, []float64{
		1, 2, 3,
		4, 5, 6})
	b := General(3, 2, []float64{
		1, 0,
		0, 1,
		1, 1})
	c := General(2, 2, []float64{
		1, 1,
		1, 1})

	Gemm(blas.NoTrans, blas.NoTrans, 1, a, b, 2, c)
	assert.InDeltaSlice(t, []float64{6, 7, 12, 13}, c.Data, 1e-12)

	// aᵀ·a
	d := General(3, 3, nil)
	Gemm(blas.Trans, blas.NoTrans, 1, a, a, 0, d)
	assert.InDeltaSlice(t, []float64{
		17, 22, 27,
		22, 29, 36,
		27, 36, 45}, d.Data, 1e-12)
}

func TestGemmEmptyInner(t *testing.T) {

	a := General(2, 0, nil)
	b := General(0, 3, nil)
	c := General(2, 3, []float64{1, 2, 3, 4, 5, 6})

	require.NotPanics(t, func() { Gemm(blas.NoTrans, blas.NoTrans, 1, a, b, 0.5, c) })
	assert.InDeltaSlice(t, []float64{0.5, 1, 1.5, 2, 2.5, 3}, c.Data, 1e-12)

	require.NotPanics(t, func() { Gemm(blas.NoTrans, blas.NoTrans, 1, a, b, 0, c) })
	assert.InDeltaSlice(t, make([]float64, 6), c.Data, 0)

	e := General(0, 3, nil)
	require.NotPanics(t, func() { Gemm(blas.NoTrans, blas.NoTrans, 1, a, c, 0, e) })
}

func TestGemv(t *testing.T) {

	a := General(2, 3, []float64{
		1, 2, 3,
		4, 5, 6})

	y := []float64{1, 1}
	Gemv(blas.NoTrans, 1, a, []float64{1, 1, 1}, 1, y)
	assert.InDeltaSlice(t, []float64{7, 16}, y, 1e-12)

	z := make([]float64, 3)
	Gemv(blas.Trans, 2, a, []float64{1, -1}, 0, z)
	assert.InDeltaSlice(t, []float64{-6, -6, -6}, z, 1e-12)

	w := []float64{3, 4}
	Gemv(blas.NoTrans, 1, General(2, 0, nil), []float64{}, 0, w)
	assert.Equal(t, []float64{0, 0}, w)
}

func TestSliceAndSymmetrize(t *testing.T) {

	m := General(3, 3, []float64{
		1, 2, 3,
		4, 5, 6,
		7, 8, 9})

	v := Slice(m, 1, 3, 1, 3)
	require.Equal(t, 2, v.Rows)
	require.Equal(t, 2, v.Cols)
	assert.Equal(t, 5.0, At(v, 0, 0))
	assert.Equal(t, 9.0, At(v, 1, 1))

	Set(v, 0, 1, -1)
	assert.Equal(t, -1.0, At(m, 1, 2))

	Symmetrize(m)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			assert.Equal(t, At(m, i, j), At(m, j, i))
		}
	}

	empty := Slice(m, 1, 1, 0, 3)
	assert.Equal(t, 0, empty.Rows)
}

func TestArena(t *testing.T) {

	a := NewArena(8)
	v := a.Vec(5)
	w := a.Vec(100)
	m := a.Mat(2, 2)

	assert.Len(t, v, 5)
	assert.Len(t, w, 100)
	assert.Len(t, m.Data, 4)
	assert.Equal(t, 109, a.Size())

	v[4] = 1
	w[0] = 2
	assert.Equal(t, 1.0, v[4])
	assert.Len(t, a.Vec(0), 0)
}
