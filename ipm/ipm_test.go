// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ipm

import (
	"bytes"
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/curioloop/ocpqp/internal/dense"
	"github.com/curioloop/ocpqp/internal/qptest"
	"github.com/curioloop/ocpqp/ocp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// feasibleQP returns a random strictly convex QP with a strictly feasible point.
func feasibleQP(seed uint64, eliminateX0 bool) *ocp.QP {
	rnd := rand.New(rand.NewPCG(seed, 11))
	qp := qptest.Random(rnd, qptest.Dims(eliminateX0))
	qptest.KKTPoint(rnd, qp)
	return qp
}

func newSolver(t *testing.T, d *ocp.Dims, backend Backend, maxIter int) *Solver {
	p := Problem{
		Dims:    d,
		Stop:    Termination{MaxIterations: maxIter, Tolerance: 1e-8},
		Backend: backend,
	}
	s, err := p.New(nil)
	require.NoError(t, err)
	return s
}

func TestBackendsAgree(t *testing.T) {

	for _, x0 := range []bool{false, true} {
		qp := feasibleQP(5, x0)
		d := qp.Dims

		sols := make([]*ocp.Solution, 2)
		for k, backend := range []Backend{Riccati, DenseLU} {
			s := newSolver(t, d, backend, 50)
			sols[k] = ocp.NewSolution(d)
			r := s.Solve(qp, sols[k], s.Init())

			switch {
			case !r.OK || r.Status != Converged:
				t.Fatalf("TestBackendsAgree: %s not converge (%v)", backend, r.Err)
			case r.Max() > 1e-8:
				t.Fatalf("TestBackendsAgree: %s residual too large", backend)
			case len(r.Trace) != r.NumIter+1:
				t.Fatalf("TestBackendsAgree: %s bad trace", backend)
			}

			check := Evaluate(qp, sols[k])
			assert.InDelta(t, r.Stationarity, check.Stationarity, 1e-12)
			assert.InDelta(t, r.Mu, check.Mu, 1e-12)
		}

		for i := 0; i <= d.N; i++ {
			assert.InDeltaSlice(t, sols[0].UX[i], sols[1].UX[i], 1e-6, "ux %d", i)
			assert.InDeltaSlice(t, sols[0].Lam[i], sols[1].Lam[i], 1e-6, "lam %d", i)
			if i < d.N {
				assert.InDeltaSlice(t, sols[0].Pi[i], sols[1].Pi[i], 1e-6, "pi %d", i)
			}
		}
	}
}

func TestPositivity(t *testing.T) {

	qp := feasibleQP(8, false)
	s := newSolver(t, qp.Dims, Riccati, 50)
	sol := ocp.NewSolution(qp.Dims)
	r := s.Solve(qp, sol, s.Init())
	require.True(t, r.OK)

	for i := range sol.Lam {
		for k := range sol.Lam[i] {
			assert.Greater(t, sol.Lam[i][k], 0.0)
			assert.Greater(t, sol.T[i][k], 0.0)
		}
	}
}

func TestOneSidedBounds(t *testing.T) {

	qp := feasibleQP(9, true)
	for i := range qp.Stages {
		st := &qp.Stages[i]
		for k := range st.Lb {
			if k%2 == 0 {
				st.Lb[k] = math.Inf(-1)
			} else {
				st.Ub[k] = math.Inf(1)
			}
		}
		for k := range st.Ug {
			st.Ug[k] = math.Inf(1)
		}
	}
	require.NoError(t, qp.Validate())

	for _, backend := range []Backend{Riccati, DenseLU} {
		s := newSolver(t, qp.Dims, backend, 50)
		sol := ocp.NewSolution(qp.Dims)
		r := s.Solve(qp, sol, s.Init())
		require.Equal(t, Converged, r.Status, backend.String())

		// masked sides keep 𝛌 = 0 and 𝐭 = 1
		nc := qp.Dims.Nc(1)
		assert.Equal(t, 0.0, sol.Lam[1][0])
		assert.Equal(t, 1.0, sol.T[1][0])
		if qp.Dims.Ng[1] == 0 && qp.Dims.Nb(1) > 1 {
			assert.Equal(t, 0.0, sol.Lam[1][nc+1])
		}
	}
}

func TestUnconstrained(t *testing.T) {

	d, err := ocp.NewDims([]int{0, 2, 2, 2}, []int{1, 1, 1}, nil, nil, nil)
	require.NoError(t, err)
	rnd := rand.New(rand.NewPCG(2, 3))
	qp := qptest.Random(rnd, d)

	for _, backend := range []Backend{Riccati, DenseLU} {
		s := newSolver(t, d, backend, 10)
		r := s.Solve(qp, ocp.NewSolution(d), s.Init())

		switch {
		case r.Status != Converged:
			t.Fatalf("TestUnconstrained: %s not converge", backend)
		case r.NumIter != 1:
			t.Fatalf("TestUnconstrained: %s took %d iterations", backend, r.NumIter)
		case r.Mu != 0:
			t.Fatal("TestUnconstrained: duality measure without inequalities")
		}
	}
}

func TestIdempotentResolve(t *testing.T) {

	qp := feasibleQP(13, true)
	s := newSolver(t, qp.Dims, Riccati, 50)
	w := s.Init()

	first := s.Solve(qp, ocp.NewSolution(qp.Dims), w)
	second := s.Solve(qp, ocp.NewSolution(qp.Dims), w)

	require.Equal(t, Converged, first.Status)
	assert.Equal(t, first.NumIter, second.NumIter)
	assert.Equal(t, first.Trace, second.Trace)
	assert.Equal(t, first.Solution.UX, second.Solution.UX)
	assert.NotSame(t, &first.Trace[0], &second.Trace[0])
}

func TestMaxIterReached(t *testing.T) {

	qp := feasibleQP(21, false)
	s := newSolver(t, qp.Dims, DenseLU, 2)
	r := s.Solve(qp, ocp.NewSolution(qp.Dims), s.Init())

	switch {
	case r.OK || r.Status != MaxIterReached:
		t.Fatalf("TestMaxIterReached: status %s", r.Status)
	case r.NumIter != 2 || len(r.Trace) != 3:
		t.Fatal("TestMaxIterReached: bad iteration count")
	case r.Err != nil:
		t.Fatal("TestMaxIterReached: unexpected error")
	case !r.Finite():
		t.Fatal("TestMaxIterReached: residual not finite")
	}

	s = newSolver(t, qp.Dims, DenseLU, 0)
	r = s.Solve(qp, ocp.NewSolution(qp.Dims), s.Init())
	assert.Equal(t, MaxIterReached, r.Status)
	assert.Equal(t, 0, r.NumIter)
}

func TestFailureThenReuse(t *testing.T) {

	d, err := ocp.NewDims([]int{0, 1}, []int{1}, nil, nil, nil)
	require.NoError(t, err)

	qp := ocp.NewQP(d)
	qp.Stages[0].B.Data[0] = 1
	qp.Stages[0].GradU[0] = 0.2
	qp.Stages[1].GradX[0] = 0.1

	for _, backend := range []Backend{Riccati, DenseLU} {
		s := newSolver(t, d, backend, 10)
		w := s.Init()
		sol := ocp.NewSolution(d)

		r := s.Solve(qp, sol, w)
		require.Equal(t, Failed, r.Status, backend.String())
		assert.True(t, errors.Is(r.Err, ErrSingular), backend.String())
		assert.Equal(t, 0, r.NumIter)

		good := ocp.NewQP(d)
		good.Stages[0].B.Data[0] = 1
		good.Stages[0].R.Data[0] = 1
		good.Stages[1].Q.Data[0] = 1
		good.Stages[0].GradU[0] = 0.2
		good.Stages[1].GradX[0] = 0.1

		r = s.Solve(good, sol, w)
		require.Equal(t, Converged, r.Status, backend.String())
		// 𝐮 = 𝐱₁ minimizes ½u² + ½u² + 0.2u + 0.1u
		assert.InDelta(t, -0.15, sol.UX[0][0], 1e-10)
		assert.InDelta(t, -0.15, sol.UX[1][0], 1e-10)
	}
}

func TestInvalidProblem(t *testing.T) {

	d := qptest.Dims(false)
	for _, p := range []Problem{
		{Dims: nil},
		{Dims: d, Stop: Termination{MaxIterations: -1}},
		{Dims: d, Stop: Termination{MaxIterations: 5, Tolerance: -1}},
		{Dims: d, Stop: Termination{MaxIterations: 5}, Step: StepControl{Tau: 1.5}},
		{Dims: d, Stop: Termination{MaxIterations: 5}, Step: StepControl{Sigma: 2}},
		{Dims: d, Stop: Termination{MaxIterations: 5}, Backend: Backend(7)},
	} {
		_, err := p.New(nil)
		if !errors.Is(err, ocp.ErrInvalidConfiguration) {
			t.Fatalf("TestInvalidProblem: accepted %+v", p)
		}
	}

	s := newSolver(t, d, Riccati, 5)
	other := qptest.Dims(true)
	r := s.Solve(ocp.NewQP(other), ocp.NewSolution(d), s.Init())
	assert.Equal(t, Failed, r.Status)
	assert.ErrorIs(t, r.Err, ocp.ErrDimensionMismatch)

	r = s.Solve(ocp.NewQP(d), ocp.NewSolution(other), s.Init())
	assert.ErrorIs(t, r.Err, ocp.ErrDimensionMismatch)

	assert.Panics(t, func() {
		s.Solve(ocp.NewQP(d), ocp.NewSolution(d), newSolver(t, other, Riccati, 5).Init())
	})
}

func TestLogger(t *testing.T) {

	qp := feasibleQP(1, true)
	var msg, out bytes.Buffer
	p := Problem{
		Dims: qp.Dims,
		Stop: Termination{MaxIterations: 50},
	}
	s, err := p.New(&Logger{Level: LogVerbose, Msg: &msg, Out: &out})
	require.NoError(t, err)

	r := s.Solve(qp, ocp.NewSolution(qp.Dims), s.Init())
	require.True(t, r.OK)
	assert.Contains(t, msg.String(), "IPM converged")
	assert.Contains(t, msg.String(), "sigma=")
	assert.Contains(t, out.String(), "res_stat")
}

func TestNoCorrector(t *testing.T) {

	qp := feasibleQP(4, false)
	p := Problem{
		Dims: qp.Dims,
		Stop: Termination{MaxIterations: 200},
		Step: StepControl{NoCorrector: true, Regularization: 1e-12},
	}
	s, err := p.New(nil)
	require.NoError(t, err)

	r := s.Solve(qp, ocp.NewSolution(qp.Dims), s.Init())
	require.Equal(t, Converged, r.Status)
}

func TestEvaluate(t *testing.T) {

	rnd := rand.New(rand.NewPCG(17, 19))
	qp := qptest.Random(rnd, qptest.Dims(false))
	sol := qptest.KKTPoint(rnd, qp)

	r := Evaluate(qp, sol)
	assert.Less(t, r.Stationarity, 1e-12)
	assert.Less(t, r.Equality, 1e-12)
	assert.Less(t, r.Inequality, 1e-12)
	assert.Greater(t, r.Complementarity, 0.0)
	assert.Greater(t, r.Mu, 0.0)

	dense.Add(qp.Stages[2].A, 0, 0, 1)
	r = Evaluate(qp, sol)
	assert.Greater(t, r.Equality, 1e-6)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "converged", Converged.String())
	assert.Equal(t, "max iterations reached", MaxIterReached.String())
	assert.Equal(t, "failed", Failed.String())

	b, err := ParseBackend("dense")
	require.NoError(t, err)
	assert.Equal(t, DenseLU, b)
	_, err = ParseBackend("qr")
	assert.Error(t, err)
}
