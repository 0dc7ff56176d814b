// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pipeline chains partial condensing, the interior-point solve and
// the expansion back onto the full horizon.
//
// A Pipeline owns every piece of mutable memory the three phases need, so one
// Pipeline serves one goroutine. Several pipelines may read the same QP.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/curioloop/ocpqp/ipm"
	"github.com/curioloop/ocpqp/ocp"
	"github.com/curioloop/ocpqp/pcond"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Config specifies the reduced horizon and the solver settings.
type Config struct {
	N2      int             // Reduced horizon, 0 keeps the full horizon
	Stop    ipm.Termination // Solver stopping criteria
	Step    ipm.StepControl // Solver step control
	Backend ipm.Backend     // Newton system backend
	Logger  *ipm.Logger     // Iteration table, nil for none
}

// Pipeline is the caller-owned context of repeated condense-solve-expand runs.
type Pipeline struct {
	dims   *ocp.Dims
	cond   *pcond.Condenser
	solver *ipm.Solver

	cw   *pcond.Workspace
	sw   *ipm.Workspace
	rqp  *ocp.QP
	rsol *ocp.Solution
}

// Report summarizes one run.
type Report struct {
	Status  ipm.Status
	NumIter int

	Reduced ipm.Residuals   // residuals of the solver iterate on the reduced QP
	Full    ipm.Residuals   // residuals of the expanded point on the full QP
	Trace   []ipm.Residuals // reduced residuals per iterate

	Condense time.Duration
	Solve    time.Duration
	Expand   time.Duration
}

// Elapsed returns the total time of the three phases.
func (r *Report) Elapsed() time.Duration {
	return r.Condense + r.Solve + r.Expand
}

// New allocates a pipeline for QPs of shape d.
func New(d *ocp.Dims, cfg Config) (*Pipeline, error) {

	if d == nil {
		return nil, fmt.Errorf("%w: dimension descriptor is required", ocp.ErrInvalidConfiguration)
	}
	n2 := cfg.N2
	if n2 == 0 {
		n2 = d.N
	}

	cp := pcond.Problem{Dims: d, N2: n2}
	cond, err := cp.New()
	if err != nil {
		return nil, err
	}

	sp := ipm.Problem{
		Dims:    cond.Reduced(),
		Stop:    cfg.Stop,
		Step:    cfg.Step,
		Backend: cfg.Backend,
	}
	solver, err := sp.New(cfg.Logger)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		dims:   d,
		cond:   cond,
		solver: solver,
		cw:     cond.Init(),
		sw:     solver.Init(),
		rqp:    cond.NewReducedQP(),
		rsol:   cond.NewReducedSolution(),
	}, nil
}

// Dims returns the full-horizon descriptor.
func (p *Pipeline) Dims() *ocp.Dims {
	return p.dims
}

// Reduced returns the descriptor of the condensed QP.
func (p *Pipeline) Reduced() *ocp.Dims {
	return p.cond.Reduced()
}

// Run condenses qp, solves the reduced QP and expands its solution into out.
// MaxIterReached is not an error: the last iterate is expanded and reported.
// A failed solve returns the report together with the failure reason and
// leaves out untouched.
func (p *Pipeline) Run(ctx context.Context, qp *ocp.QP, out *ocp.Solution) (*Report, error) {

	ctx, span := getTracer().Start(ctx, "pipeline.Run",
		trace.WithAttributes(
			attribute.Int("horizon", p.dims.N),
			attribute.Int("reduced_horizon", p.cond.Reduced().N),
		),
	)
	defer span.End()

	fail := func(label, msg string, err error) error {
		runTotal.WithLabelValues(label).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, msg)
		return err
	}

	if out == nil || !out.Dims.Equal(p.dims) {
		err := fmt.Errorf("pipeline: solution: %w", ocp.ErrDimensionMismatch)
		return nil, fail("invalid", "solution mismatch", err)
	}

	rep := new(Report)

	start := time.Now()
	if err := p.cond.Condense(qp, p.rqp, p.cw); err != nil {
		return nil, fail("invalid", "condense failed", err)
	}
	rep.Condense = time.Since(start)
	phaseDuration.WithLabelValues(phaseCondense).Observe(rep.Condense.Seconds())
	span.AddEvent("condensed")
	slog.DebugContext(ctx, "qp condensed",
		slog.Int("n", p.dims.N),
		slog.Int("n2", p.cond.Reduced().N),
		slog.Duration("elapsed", rep.Condense),
	)

	start = time.Now()
	res := p.solver.Solve(p.rqp, p.rsol, p.sw)
	rep.Solve = time.Since(start)
	phaseDuration.WithLabelValues(phaseSolve).Observe(rep.Solve.Seconds())
	ipmIterations.Observe(float64(res.NumIter))

	rep.Status = res.Status
	rep.NumIter = res.NumIter
	rep.Reduced = res.Residuals
	rep.Trace = res.Trace
	span.SetAttributes(
		attribute.String("status", res.Status.String()),
		attribute.Int("iterations", res.NumIter),
	)

	switch res.Status {
	case ipm.Failed:
		slog.ErrorContext(ctx, "interior-point solve failed",
			slog.Int("iterations", res.NumIter),
			slog.String("error", res.Err.Error()),
		)
		return rep, fail("failed", "solve failed", res.Err)
	case ipm.MaxIterReached:
		slog.WarnContext(ctx, "interior-point solve stopped at iteration limit",
			slog.Int("iterations", res.NumIter),
			slog.Float64("residual", res.Max()),
			slog.Float64("mu", res.Mu),
		)
	default:
		slog.DebugContext(ctx, "reduced qp solved",
			slog.Int("iterations", res.NumIter),
			slog.Float64("residual", res.Max()),
			slog.Duration("elapsed", rep.Solve),
		)
	}

	start = time.Now()
	if err := p.cond.Expand(p.rsol, out, p.cw); err != nil {
		return rep, fail("invalid", "expand failed", err)
	}
	rep.Expand = time.Since(start)
	phaseDuration.WithLabelValues(phaseExpand).Observe(rep.Expand.Seconds())
	span.AddEvent("expanded")

	rep.Full = ipm.Evaluate(qp, out)
	slog.DebugContext(ctx, "solution expanded",
		slog.Float64("residual", rep.Full.Max()),
		slog.Duration("elapsed", rep.Expand),
	)

	if res.Status == ipm.Converged {
		runTotal.WithLabelValues("converged").Inc()
		span.SetStatus(codes.Ok, "converged")
	} else {
		runTotal.WithLabelValues("max_iter").Inc()
		span.SetStatus(codes.Ok, "max iterations reached")
	}
	return rep, nil
}
