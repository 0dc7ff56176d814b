// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package massspring builds the chain-of-masses OCP-QP benchmark.
//
// A chain of m unit masses is coupled by unit springs and fixed to walls at
// both ends, the first nu masses are actuated. The state is
// [positions; velocities], the continuous dynamics
//
//	𝐱̇ = [[0, 𝐈], [𝐓, 0]]𝐱 + [0; 𝐄]𝐮,  𝐓 = tridiag(1, -2, 1)
//
// are discretized exactly with the matrix exponential of the augmented
// system over one sampling period.
package massspring

import (
	"fmt"
	"math"

	"github.com/curioloop/ocpqp/ocp"
	"gonum.org/v1/gonum/mat"
)

// Options specifies the benchmark instance.
type Options struct {
	Masses      int     // Number of masses, nx = 2·Masses
	Inputs      int     // Number of actuated masses
	Horizon     int     // Number of stages N
	Ts          float64 // Sampling period
	EliminateX0 bool    // Drop x₀ from the variables and fold it into b₀
	General     bool    // Bound the sum of positions with a general constraint
}

// Default returns the instance used by the benchmark CLI.
func Default() Options {
	return Options{
		Masses:      4,
		Inputs:      3,
		Horizon:     15,
		Ts:          0.5,
		EliminateX0: true,
	}
}

const (
	inputBound   = 0.5
	stateBound   = 4.0
	generalBound = 10.0
	initialPos   = 2.5
)

func (o *Options) validate() (err error) {
	switch {
	case o.Masses < 1:
		err = fmt.Errorf("%w: at least one mass is required", ocp.ErrInvalidConfiguration)
	case o.Inputs < 1 || o.Inputs > o.Masses:
		err = fmt.Errorf("%w: inputs must be in [1, masses]", ocp.ErrInvalidConfiguration)
	case o.Horizon < 1:
		err = fmt.Errorf("%w: horizon must be at least 1", ocp.ErrInvalidConfiguration)
	case !(o.Ts > 0) || math.IsInf(o.Ts, 1):
		err = fmt.Errorf("%w: sampling period must be positive", ocp.ErrInvalidConfiguration)
	}
	return
}

// Dims returns the descriptor of the instance.
func (o *Options) Dims() (*ocp.Dims, error) {

	if err := o.validate(); err != nil {
		return nil, err
	}

	n, nx, nu := o.Horizon, 2*o.Masses, o.Inputs
	dx, du := make([]int, n+1), make([]int, n+1)
	nbu, nbx, ng := make([]int, n+1), make([]int, n+1), make([]int, n+1)
	for i := 0; i <= n; i++ {
		dx[i], nbx[i] = nx, nx
		if i < n {
			du[i], nbu[i] = nu, nu
		}
		if o.General && i > 0 {
			ng[i] = 1
		}
	}
	if o.EliminateX0 {
		dx[0], nbx[0] = 0, 0
	}
	return ocp.NewDims(dx, du, nbu, nbx, ng)
}

// Discretize returns the row-major discrete-time A (nx×nx) and B (nx×nu).
func (o *Options) Discretize() (a, b *mat.Dense) {

	m, nu := o.Masses, o.Inputs
	nx := 2 * m

	// 𝚎𝚡𝚙([[𝐀꜀, 𝐁꜀], [0, 0]]·Ts) = [[𝐀, 𝐁], [0, 𝐈]]
	aug := mat.NewDense(nx+nu, nx+nu, nil)
	for i := 0; i < m; i++ {
		aug.Set(i, m+i, 1)
		aug.Set(m+i, i, -2)
		if i > 0 {
			aug.Set(m+i, i-1, 1)
		}
		if i+1 < m {
			aug.Set(m+i, i+1, 1)
		}
	}
	for j := 0; j < nu; j++ {
		aug.Set(m+j, nx+j, 1)
	}
	aug.Scale(o.Ts, aug)

	var e mat.Dense
	e.Exp(aug)

	a = mat.DenseCopyOf(e.Slice(0, nx, 0, nx))
	b = mat.DenseCopyOf(e.Slice(0, nx, nx, nx+nu))
	return
}

// X0 returns the initial state: the first two masses displaced by 2.5.
func (o *Options) X0() []float64 {
	x0 := make([]float64, 2*o.Masses)
	for i := 0; i < min(2, o.Masses); i++ {
		x0[i] = initialPos
	}
	return x0
}

// New builds the QP through the column-major frontend.
func New(o Options) (*ocp.QP, error) {

	d, err := o.Dims()
	if err != nil {
		return nil, err
	}

	n, m, nx := o.Horizon, o.Masses, 2*o.Masses
	a, b := o.Discretize()
	x0 := o.X0()

	src := ocp.NewColMajorQP(d)
	for i := 0; i <= n; i++ {
		sx, su := d.Nx[i], d.Nu[i]

		if i < n {
			colMajor(src.B[i], b)
			if sx > 0 {
				colMajor(src.A[i], a)
			} else {
				// 𝐛₀ = 𝐀𝐱₀
				mat.NewVecDense(nx, src.Bias[i]).MulVec(a, mat.NewVecDense(nx, x0))
			}
		}

		for k := 0; k < sx; k++ {
			src.Q[i][k+k*sx] = 1
			src.GradX[i][k] = 0.1
		}
		for k := 0; k < su; k++ {
			src.R[i][k+k*su] = 2
			src.GradU[i][k] = 0.2
		}

		for k := 0; k < d.Nbu[i]; k++ {
			src.Lb[i][k], src.Ub[i][k] = -inputBound, inputBound
		}
		for k := 0; k < d.Nbx[i]; k++ {
			at := d.Nbu[i] + k
			if i == 0 {
				src.Lb[i][at], src.Ub[i][at] = x0[k], x0[k]
			} else {
				src.Lb[i][at], src.Ub[i][at] = -stateBound, stateBound
			}
		}

		if d.Ng[i] > 0 {
			for k := 0; k < m; k++ {
				src.C[i][k] = 1
			}
			src.Lg[i][0], src.Ug[i][0] = -generalBound, generalBound
		}
	}

	return src.Convert(nil)
}

func colMajor(dst []float64, m *mat.Dense) {
	r, c := m.Dims()
	for j := 0; j < c; j++ {
		for i := 0; i < r; i++ {
			dst[i+j*r] = m.At(i, j)
		}
	}
}
