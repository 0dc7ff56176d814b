// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ipm solves OCP-QPs with a primal-dual interior-point method.
//
// Inequalities are split into one-sided constraints with slacks
//
//	[𝐂̂; -𝐂̂]𝐮𝐱ᵢ - [𝒍; -𝒖] = 𝐭 ≥ 0,  𝛌 ≥ 0,  𝛌∘𝐭 = 0
//
// where 𝐂̂ stacks the bound rows and [𝐃, 𝐂]. Every iteration eliminates
// slacks and multipliers from the Newton system, which leaves an
// equality-constrained QP of the same stage structure with Hessian
//
//	𝐇̃ = 𝐇 + 𝐂̂ᵀ(𝚺ₗ + 𝚺ᵤ)𝐂̂,  𝚺 = 𝛌/𝐭
//
// solved either by a Riccati recursion or by an assembled dense KKT system.
// Steps follow Mehrotra's predictor-corrector scheme.
package ipm

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/curioloop/ocpqp/internal/dense"
	"github.com/curioloop/ocpqp/ocp"
)

// LogLevel controls the frequency and type of logger output
type LogLevel int

const (
	// LogNoop no output is generated (level < 0)
	LogNoop LogLevel = -1
	// LogLast print only one line at the last iteration
	LogLast LogLevel = 0
	// LogIter print the residuals of every iteration
	LogIter LogLevel = 1
	// LogVerbose print also step lengths and centering of every iteration
	LogVerbose LogLevel = 99
)

// Logger handles logging output for the solver.
// Note the writers must be thread-safe.
type Logger struct {
	Level LogLevel
	Msg   io.Writer // Writer to output log messages.
	Out   io.Writer // Writer for the iteration table.
}

func (l *Logger) enable(level LogLevel) bool {
	return l.Level >= level
}

func (l *Logger) log(format string, a ...any) {
	if len(a) > 0 {
		_, _ = fmt.Fprintf(l.Msg, format, a...)
	} else {
		_, _ = fmt.Fprint(l.Msg, format)
	}
}

func (l *Logger) out(format string, a ...any) {
	if len(a) > 0 {
		_, _ = fmt.Fprintf(l.Out, format, a...)
	} else {
		_, _ = fmt.Fprint(l.Out, format)
	}
}

// Termination specifies the stopping criteria.
type Termination struct {
	// The iteration stop when the number of iteration reaches limit.
	MaxIterations int
	// The iteration stop when every residual norm is below tolerance.
	// Zero or NaN selects 1e-8.
	Tolerance float64
	// Per-residual tolerances; zero or NaN falls back to Tolerance.
	StationarityTol    float64
	EqualityTol        float64
	InequalityTol      float64
	ComplementarityTol float64
}

// StepControl tunes the interior-point iteration.
// Zero or NaN fields select the defaults.
type StepControl struct {
	// Fraction-to-the-boundary factor τ ∈ (0,1), default 0.995:
	//   α = 𝚖𝚒𝚗(1, τ·α_max)
	Tau float64
	// Initial duality measure, default 1: 𝛌₀ = μ₀/𝐭₀
	Mu0 float64
	// Lower threshold of the initial slacks, default 1.
	InitSlack float64
	// Diagonal regularization δ added to 𝐇̃, default 0.
	Regularization float64
	// Disable the Mehrotra corrector and use a fixed centering σ instead.
	NoCorrector bool
	// Centering σ ∈ (0,1) used when NoCorrector is set, default 0.1.
	Sigma float64
}

// Problem specifies an interior-point solver for one OCP-QP shape.
type Problem struct {
	Dims    *ocp.Dims
	Stop    Termination
	Step    StepControl
	Backend Backend
}

func orDefault(v, def float64) float64 {
	if v == zero || math.IsNaN(v) {
		return def
	}
	return v
}

// New creates a new interior-point solver for given problem.
func (p *Problem) New(logger *Logger) (solver *Solver, err error) {

	if logger == nil {
		logger = new(Logger)
		logger.Level = LogNoop
	}
	if logger.Msg == nil {
		logger.Msg = os.Stdout
	}
	if logger.Out == nil {
		logger.Out = os.Stdout
	}

	stop, step := p.Stop, p.Step
	stop.Tolerance = orDefault(stop.Tolerance, 1e-8)
	stop.StationarityTol = orDefault(stop.StationarityTol, stop.Tolerance)
	stop.EqualityTol = orDefault(stop.EqualityTol, stop.Tolerance)
	stop.InequalityTol = orDefault(stop.InequalityTol, stop.Tolerance)
	stop.ComplementarityTol = orDefault(stop.ComplementarityTol, stop.Tolerance)
	step.Tau = orDefault(step.Tau, 0.995)
	step.Mu0 = orDefault(step.Mu0, one)
	step.InitSlack = orDefault(step.InitSlack, one)
	step.Sigma = orDefault(step.Sigma, 0.1)
	if math.IsNaN(step.Regularization) {
		step.Regularization = zero
	}

	switch {
	case p.Dims == nil:
		err = errors.New("dimension descriptor is required")
	case stop.MaxIterations < 0:
		err = errors.New("max iteration must not less than 0")
	case stop.Tolerance < zero || stop.StationarityTol < zero || stop.EqualityTol < zero ||
		stop.InequalityTol < zero || stop.ComplementarityTol < zero:
		err = errors.New("tolerance must not less than 0")
	case step.Tau <= zero || step.Tau >= one:
		err = errors.New("fraction-to-boundary factor must be in (0,1)")
	case step.Mu0 < zero || step.InitSlack < zero:
		err = errors.New("initial duality measure and slack must be positive")
	case step.Sigma < zero || step.Sigma >= one:
		err = errors.New("centering parameter must be in (0,1)")
	case step.Regularization < zero:
		err = errors.New("regularization must not less than 0")
	case p.Backend != Riccati && p.Backend != DenseLU:
		err = errors.New("unknown backend")
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ocp.ErrInvalidConfiguration, err)
	}
	if err = p.Dims.Validate(); err != nil {
		return nil, err
	}

	solver = &Solver{
		iterSpec{
			dims:    p.Dims,
			stop:    stop,
			step:    step,
			backend: p.Backend,
			logger:  *logger,
		},
	}
	return
}

type iterSpec struct {
	dims    *ocp.Dims
	stop    Termination
	step    StepControl
	backend Backend
	logger  Logger
}

// Solver implements the primal-dual interior-point method.
type Solver struct {
	iterSpec
}

// Dims returns the descriptor the solver was built for.
func (s *Solver) Dims() *ocp.Dims {
	return s.dims
}

// Workspace contains the iterate, the Newton system and the backend
// factorization of one solve.
type Workspace struct {
	dims    *ocp.Dims
	backend Backend
	iterCtx
}

// Result contains the final result of the interior-point iteration.
type Result struct {
	OK        bool          // Whether the iteration was converged.
	Status    Status        // Terminal state.
	Err       error         // Failure reason when Status is Failed.
	Solution  *ocp.Solution // The solution written by Solve.
	Residuals               // Residual norms of the final iterate.
	Summary                 // Iteration summary.
}

// Summary contains a summary of the iteration.
type Summary struct {
	NumIter int         // Number of iterations performed.
	Trace   []Residuals // Residual norms of every iterate, initial point first.
}

// Init allocate the workspace for the solver.
// To avoid race conditions, separate workspaces need to be created for each goroutine.
// But multiple workspaces could share one solver.
func (s *Solver) Init() *Workspace {
	w := &Workspace{dims: s.dims, backend: s.backend}
	w.init(s.dims, s.backend, dense.NewArena(0))
	return w
}

// Solve runs the interior-point iteration on qp using workspace w and
// writes the final iterate into out. A failed Newton solve is reported as
// Status Failed; the workspace stays usable for later solves.
func (s *Solver) Solve(qp *ocp.QP, out *ocp.Solution, w *Workspace) *Result {

	if !w.dims.Equal(s.dims) || w.backend != s.backend {
		panic("workspace dimension not match spec")
	}

	switch {
	case qp == nil || !qp.Dims.Equal(s.dims) || len(qp.Stages) != s.dims.N+1:
		return &Result{Status: Failed, Err: fmt.Errorf("ipm: qp: %w", ocp.ErrDimensionMismatch)}
	case out == nil || !out.Dims.Equal(s.dims):
		return &Result{Status: Failed, Err: fmt.Errorf("ipm: solution: %w", ocp.ErrDimensionMismatch)}
	}

	driver := iterDriver{
		solver:    s,
		workspace: w,
	}

	status, err := driver.mainLoop(qp)
	// out was matched against the solver dims above, so the copy cannot fail
	_ = out.CopyFrom(w.it)

	res := &Result{
		OK:        status == Converged,
		Status:    status,
		Err:       err,
		Solution:  out,
		Residuals: w.res,
		Summary: Summary{
			NumIter: w.iter,
			Trace:   w.trace,
		},
	}
	w.trace = nil
	return res
}
