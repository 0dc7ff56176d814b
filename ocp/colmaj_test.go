// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ocp

import (
	"testing"

	"github.com/curioloop/ocpqp/internal/dense"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColMajorQP(t *testing.T) {

	d, err := NewDims([]int{2, 2}, []int{1}, []int{1, 0}, []int{0, 2}, []int{1, 0})
	require.NoError(t, err)

	c := NewColMajorQP(d)
	// A = [[1, 2], [3, 4]] stored by columns
	copy(c.A[0], []float64{1, 3, 2, 4})
	copy(c.B[0], []float64{5, 6})
	copy(c.Q[1], []float64{2, 1, 1, 2})
	copy(c.C[0], []float64{7, 8})
	c.Lb[0][0], c.Ub[0][0] = -1, 1
	c.Lg[0][0], c.Ug[0][0] = -3, 3

	qp, err := c.Convert(nil)
	require.NoError(t, err)

	s := qp.Stages[0]
	assert.Equal(t, 2.0, dense.At(s.A, 0, 1))
	assert.Equal(t, 3.0, dense.At(s.A, 1, 0))
	assert.Equal(t, 6.0, dense.At(s.B, 1, 0))
	assert.Equal(t, 8.0, dense.At(s.C, 0, 1))
	assert.Equal(t, []float64{-1}, s.Lb)
	assert.Equal(t, []float64{3}, s.Ug)
	assert.Equal(t, []int{0, 1}, qp.Stages[1].Idxb)

	c.Q[1] = c.Q[1][:3]
	_, err = c.Convert(qp)
	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 1, se.Stage)
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	c.Q[1] = []float64{2, 1, 1, 2}
	c.Lb[0][0] = 2
	_, err = c.Convert(qp)
	assert.ErrorIs(t, err, ErrInvalidData)
}

func TestConvertToColMajor(t *testing.T) {

	d, err := NewDims([]int{1, 1}, []int{1}, []int{1, 0}, []int{0, 1}, []int{1, 0})
	require.NoError(t, err)

	sol := NewSolution(d)
	copy(sol.UX[0], []float64{0.5, 1.5})
	copy(sol.UX[1], []float64{2})
	sol.Pi[0][0] = -1
	// [lb, lg, ub, ug]
	copy(sol.Lam[0], []float64{1, 2, 3, 4})
	copy(sol.Lam[1], []float64{5, 6})

	out, err := ConvertToColMajor(d, sol, nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5}, out.U[0])
	assert.Equal(t, []float64{1.5}, out.X[0])
	assert.Equal(t, []float64{2}, out.X[1])
	assert.Equal(t, []float64{-1}, out.Pi[0])
	assert.Equal(t, []float64{1, 3, 2, 4}, out.Lam[0])
	assert.Equal(t, []float64{5, 6}, out.Lam[1])

	sol.UX[0][0] = 9
	again, err := ConvertToColMajor(d, sol, out)
	require.NoError(t, err)
	assert.Same(t, out, again)
	assert.Equal(t, []float64{9}, out.U[0])

	other, err := NewDims([]int{1, 1, 1}, []int{1, 1}, nil, nil, nil)
	require.NoError(t, err)
	_, err = ConvertToColMajor(other, sol, nil)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}
