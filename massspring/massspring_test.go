// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package massspring

import (
	"errors"
	"math"
	"testing"

	"github.com/curioloop/ocpqp/internal/dense"
	"github.com/curioloop/ocpqp/ocp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscretizeSingleMass(t *testing.T) {

	o := Options{Masses: 1, Inputs: 1, Horizon: 1, Ts: 0.3}
	a, b := o.Discretize()

	// 𝐱̇ = [[0, 1], [-2, 0]]𝐱 + [0; 1]𝐮
	w := math.Sqrt2 * o.Ts
	assert.InDelta(t, math.Cos(w), a.At(0, 0), 1e-12)
	assert.InDelta(t, math.Sin(w)/math.Sqrt2, a.At(0, 1), 1e-12)
	assert.InDelta(t, -math.Sqrt2*math.Sin(w), a.At(1, 0), 1e-12)
	assert.InDelta(t, math.Cos(w), a.At(1, 1), 1e-12)
	assert.InDelta(t, (1-math.Cos(w))/2, b.At(0, 0), 1e-12)
	assert.InDelta(t, math.Sin(w)/math.Sqrt2, b.At(1, 0), 1e-12)
}

func TestNew(t *testing.T) {

	o := Default()
	o.General = true
	qp, err := New(o)
	require.NoError(t, err)

	d := qp.Dims
	assert.Equal(t, 15, d.N)
	assert.Equal(t, 0, d.Nx[0])
	assert.Equal(t, 8, d.Nx[1])
	assert.Equal(t, 3, d.Nu[0])
	assert.Equal(t, 0, d.Ng[0])
	assert.Equal(t, 1, d.Ng[15])

	a, _ := o.Discretize()
	x0 := o.X0()
	s0 := qp.Stages[0]
	for r := 0; r < 8; r++ {
		want := a.At(r, 0)*x0[0] + a.At(r, 1)*x0[1]
		assert.InDelta(t, want, s0.Bias[r], 1e-12)
	}
	assert.Equal(t, []float64{-0.5, -0.5, -0.5}, s0.Lb)
	assert.Equal(t, 2.0, dense.At(s0.R, 1, 1))
	assert.Equal(t, 0.2, s0.GradU[2])

	s := qp.Stages[3]
	assert.Equal(t, a.At(2, 5), dense.At(s.A, 2, 5))
	assert.Equal(t, 1.0, dense.At(s.Q, 7, 7))
	assert.Equal(t, 0.0, dense.At(s.Q, 6, 7))
	assert.Equal(t, []float64{1, 1, 1, 1, 0, 0, 0, 0}, dense.Row(s.C, 0))
	assert.Equal(t, 4.0, s.Ub[3+7])
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, s.Idxb)
}

func TestKeepX0(t *testing.T) {

	o := Default()
	o.EliminateX0 = false
	qp, err := New(o)
	require.NoError(t, err)

	s0 := qp.Stages[0]
	assert.Equal(t, 8, qp.Dims.Nx[0])
	assert.Equal(t, 3+8, qp.Dims.Nb(0))
	assert.Equal(t, 2.5, s0.Lb[3])
	assert.Equal(t, 2.5, s0.Ub[4])
	assert.Equal(t, 0.0, s0.Ub[5])
	assert.Equal(t, []float64{0, 0, 0, 0, 0, 0, 0, 0}, s0.Bias)
}

func TestInvalidOptions(t *testing.T) {
	for _, o := range []Options{
		{Masses: 0, Inputs: 1, Horizon: 1, Ts: 1},
		{Masses: 2, Inputs: 3, Horizon: 1, Ts: 1},
		{Masses: 2, Inputs: 1, Horizon: 0, Ts: 1},
		{Masses: 2, Inputs: 1, Horizon: 1, Ts: 0},
		{Masses: 2, Inputs: 1, Horizon: 1, Ts: math.NaN()},
	} {
		if _, err := New(o); !errors.Is(err, ocp.ErrInvalidConfiguration) {
			t.Fatalf("TestInvalidOptions: accepted %+v", o)
		}
	}
}
