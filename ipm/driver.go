// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ipm

import (
	"math"

	"github.com/curioloop/ocpqp/ocp"
)

// iterDriver manages the interior-point iteration.
type iterDriver struct {
	solver    *Solver
	workspace *Workspace
}

// checkConvergence compares every residual norm with its tolerance.
func (d *iterDriver) checkConvergence() bool {
	stop, res := &d.solver.stop, &d.workspace.res
	return res.Stationarity <= stop.StationarityTol &&
		res.Equality <= stop.EqualityTol &&
		res.Inequality <= stop.InequalityTol &&
		res.Complementarity <= stop.ComplementarityTol
}

// mainLoop runs Initializing → Iterating → Converged | MaxIterReached | Failed.
func (d *iterDriver) mainLoop(qp *ocp.QP) (status Status, err error) {

	spec := &d.solver.iterSpec
	ctx := &d.workspace.iterCtx

	ctx.load(qp)
	ctx.initPoint(&spec.step)
	ctx.iter = 0
	ctx.alpha, ctx.alphaAff, ctx.sigma = zero, zero, zero
	ctx.trace = make([]Residuals, 0, spec.stop.MaxIterations+1)

	d.printInit()

	for {
		ctx.res = ctx.residuals(ctx.it)
		ctx.trace = append(ctx.trace, ctx.res)
		d.printIter()

		if !ctx.res.Finite() {
			status, err = Failed, ErrNonFinite
			break
		}
		if d.checkConvergence() {
			status = Converged
			break
		}
		if ctx.iter >= spec.stop.MaxIterations {
			status = MaxIterReached
			break
		}
		if err = d.step(); err != nil {
			status = Failed
			break
		}
		ctx.iter++
	}

	d.printLast(status, err)
	return
}

// step computes a Mehrotra predictor-corrector direction and moves the
// iterate by the fraction-to-the-boundary step length.
// The iterate is left untouched when the Newton system cannot be solved.
func (d *iterDriver) step() error {

	spec := &d.solver.iterSpec
	ctx := &d.workspace.iterCtx
	mu := ctx.res.Mu

	ctx.hessian(spec.step.Regularization)
	if err := ctx.kkt.factorize(ctx); err != nil {
		return err
	}

	if spec.step.NoCorrector {
		ctx.sigma = spec.step.Sigma
		ctx.center(ctx.sigma*mu, false)
		if err := ctx.direction(); err != nil {
			return err
		}
		ctx.alphaAff = math.NaN()
	} else {
		// affine predictor on 𝐫𝐦 = 𝛌∘𝐭
		if err := ctx.direction(); err != nil {
			return err
		}
		ctx.alphaAff = min(one, ctx.maxStep())
		ctx.sigma = zero
		if mu > zero {
			ctx.sigma = min(one, math.Pow(ctx.muAfter(ctx.alphaAff)/mu, 3))
		}
		ctx.center(ctx.sigma*mu, true)
		if err := ctx.direction(); err != nil {
			return err
		}
	}

	ctx.alpha = min(one, spec.step.Tau*ctx.maxStep())
	ctx.update(ctx.alpha)
	return nil
}

func (d *iterDriver) printInit() {
	spec := &d.solver.iterSpec
	log := spec.logger
	if log.enable(LogLast) {
		dims := spec.dims
		log.log("RUNNING THE OCP-QP INTERIOR-POINT SOLVER\n")
		log.log("N = %d    nv = %d    ne = %d    ni = %d    backend = %s\n",
			dims.N, dims.NumVars(), dims.NumEq(), dims.NumIneq(), spec.backend)
		if log.enable(LogIter) {
			log.out("\n  it   res_stat    res_eq      res_ineq    res_comp    mu          alpha\n")
		}
	}
}

func (d *iterDriver) printIter() {
	spec := &d.solver.iterSpec
	ctx := &d.workspace.iterCtx
	log := spec.logger
	if log.enable(LogIter) {
		r := ctx.res
		log.out(" %3d   %.3e   %.3e   %.3e   %.3e   %.3e   %.3e\n",
			ctx.iter, r.Stationarity, r.Equality, r.Inequality, r.Complementarity, r.Mu, ctx.alpha)
		if log.enable(LogVerbose) && ctx.iter > 0 {
			log.log("At iterate %3d    alpha_aff= %.3e    sigma= %.3e\n", ctx.iter, ctx.alphaAff, ctx.sigma)
		}
	}
}

func (d *iterDriver) printLast(status Status, err error) {
	spec := &d.solver.iterSpec
	ctx := &d.workspace.iterCtx
	log := spec.logger
	if log.enable(LogLast) {
		log.log("\nIPM %s after %d iterations, max residual %.3e\n", status, ctx.iter, ctx.res.Max())
		if err != nil {
			log.log("%v\n", err)
		}
	}
}
