// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ocp

import (
	"math"
	"testing"

	"github.com/curioloop/ocpqp/internal/dense"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/blas/blas64"
)

func testDims(t *testing.T) *Dims {
	d, err := NewDims([]int{2, 2, 2}, []int{1, 1}, []int{1, 1, 0}, []int{1, 0, 2}, []int{0, 1, 0})
	require.NoError(t, err)
	return d
}

func TestNewQP(t *testing.T) {

	d := testDims(t)
	qp := NewQP(d)
	require.NoError(t, qp.Validate())

	s := qp.Stages[0]
	assert.Equal(t, []int{0, 1}, s.Idxb)
	assert.True(t, math.IsInf(s.Lb[0], -1))
	assert.True(t, math.IsInf(s.Ub[1], 1))
	assert.Equal(t, []int{0, 1}, qp.Stages[2].Idxb)
	assert.Equal(t, 0, qp.Stages[2].A.Rows)
	assert.Equal(t, 2, qp.Stages[1].A.Rows)
}

func TestValidate(t *testing.T) {

	d := testDims(t)

	cases := []struct {
		name   string
		modify func(qp *QP)
		want   error
	}{
		{"nan cost", func(qp *QP) { dense.Set(qp.Stages[1].Q, 0, 1, math.NaN()) }, ErrInvalidData},
		{"inf gradient", func(qp *QP) { qp.Stages[0].GradU[0] = math.Inf(1) }, ErrInvalidData},
		{"crossed bound", func(qp *QP) { qp.Stages[0].Lb[0], qp.Stages[0].Ub[0] = 1, 0 }, ErrInvalidData},
		{"crossed general", func(qp *QP) { qp.Stages[1].Lg[0], qp.Stages[1].Ug[0] = 2, 1 }, ErrInvalidData},
		{"input index", func(qp *QP) { qp.Stages[0].Idxb[0] = 1 }, ErrInvalidData},
		{"state index", func(qp *QP) { qp.Stages[0].Idxb[1] = 0 }, ErrInvalidData},
		{"unsorted", func(qp *QP) { qp.Stages[2].Idxb[0], qp.Stages[2].Idxb[1] = 1, 0 }, ErrInvalidData},
		{"shape", func(qp *QP) { qp.Stages[1].C = blas64.General{Rows: 2, Cols: 2, Stride: 2, Data: make([]float64, 4)} }, ErrDimensionMismatch},
		{"stage count", func(qp *QP) { qp.Stages = qp.Stages[:2] }, ErrDimensionMismatch},
	}

	for _, c := range cases {
		qp := NewQP(d)
		c.modify(qp)
		assert.ErrorIs(t, qp.Validate(), c.want, c.name)
	}
}

func TestStageBlocks(t *testing.T) {

	d, err := NewDims([]int{2, 2}, []int{1}, nil, nil, []int{1, 0})
	require.NoError(t, err)
	qp := NewQP(d)
	s := &qp.Stages[0]

	copy(s.R.Data, []float64{5})
	copy(s.S.Data, []float64{6, 7})
	copy(s.Q.Data, []float64{1, 2, 2, 3})
	copy(s.A.Data, []float64{1, 2, 3, 4})
	copy(s.B.Data, []float64{8, 9})
	copy(s.D.Data, []float64{-1})
	copy(s.C.Data, []float64{-2, -3})
	s.GradU[0] = 4
	copy(s.GradX, []float64{5, 6})

	h := dense.General(3, 3, nil)
	s.Hessian(h)
	assert.Equal(t, []float64{5, 6, 7, 6, 1, 2, 7, 2, 3}, h.Data)

	g := make([]float64, 3)
	s.Gradient(g)
	assert.Equal(t, []float64{4, 5, 6}, g)

	ba := dense.General(2, 3, nil)
	s.Dynamics(ba)
	assert.Equal(t, []float64{8, 1, 2, 9, 3, 4}, ba.Data)

	dc := dense.General(1, 3, nil)
	s.Constraints(dc)
	assert.Equal(t, []float64{-1, -2, -3}, dc.Data)
}

func TestSolution(t *testing.T) {

	d := testDims(t)
	s := NewSolution(d)
	assert.Len(t, s.UX[0], 3)
	assert.Len(t, s.Pi[1], 2)
	assert.Len(t, s.Lam[1], 2*(1+0+1))
	assert.Len(t, s.T[2], 4)

	s.UX[1][0] = 1
	s.UX[1][2] = 3
	assert.Equal(t, []float64{1}, s.U(1))
	assert.Equal(t, []float64{0, 3}, s.X(1))

	o := NewSolution(d)
	require.NoError(t, o.CopyFrom(s))
	assert.Equal(t, s.UX, o.UX)

	s.Reset()
	assert.Equal(t, []float64{0, 0, 0}, s.UX[1])

	other, err := NewDims([]int{2, 2}, []int{1}, nil, nil, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, NewSolution(other).CopyFrom(s), ErrDimensionMismatch)
}
