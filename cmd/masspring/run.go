// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/curioloop/ocpqp/ipm"
	"github.com/curioloop/ocpqp/massspring"
	"github.com/curioloop/ocpqp/ocp"
	"github.com/curioloop/ocpqp/pipeline"
)

func run(ctx context.Context, w io.Writer, o *options) error {

	qp, err := massspring.New(o.Options)
	if err != nil {
		return err
	}
	backend, err := ipm.ParseBackend(o.Backend)
	if err != nil {
		return err
	}

	cfg := pipeline.Config{
		N2:      o.N2,
		Stop:    ipm.Termination{MaxIterations: o.IterMax, Tolerance: o.Tol},
		Backend: backend,
	}
	if o.Verbose {
		cfg.Logger = &ipm.Logger{Level: ipm.LogIter, Msg: w, Out: w}
	}
	p, err := pipeline.New(qp.Dims, cfg)
	if err != nil {
		return err
	}

	sol := ocp.NewSolution(qp.Dims)
	var rep *pipeline.Report
	start := time.Now()
	for k := 0; k < o.NRep; k++ {
		if rep, err = p.Run(ctx, qp, sol); err != nil {
			return err
		}
	}
	avg := time.Since(start) / time.Duration(o.NRep)

	view, err := ocp.ConvertToColMajor(qp.Dims, sol, nil)
	if err != nil {
		return err
	}

	d := qp.Dims
	fmt.Fprintf(w, "\nN = %d, N2 = %d, nx = %d, nu = %d\n", d.N, p.Reduced().N, 2*o.Masses, o.Inputs)
	printStages(w, "u", view.U)
	printStages(w, "x", view.X)
	printStages(w, "pi", view.Pi)
	printStages(w, "lam", view.Lam)

	r := rep.Full
	fmt.Fprintf(w, "\nipm residuals max: res_g = %.4e, res_b = %.4e, res_d = %.4e, res_m = %.4e\n",
		r.Stationarity, r.Equality, r.Inequality, r.Complementarity)
	fmt.Fprintf(w, "ipm mu = %.4e\n", r.Mu)
	fmt.Fprintf(w, "ipm status = %s, iter = %d\n", rep.Status, rep.NumIter)
	fmt.Fprintf(w, "average time per run: %v (condense %v, solve %v, expand %v)\n",
		avg, rep.Condense, rep.Solve, rep.Expand)

	if o.Plot != "" {
		if err = savePlot(o.Plot, rep.Trace); err != nil {
			return err
		}
		fmt.Fprintf(w, "residual history written to %s\n", o.Plot)
	}
	return nil
}

func printStages(w io.Writer, name string, v [][]float64) {
	fmt.Fprintf(w, "\n%s =\n", name)
	for i, s := range v {
		var sb strings.Builder
		for _, x := range s {
			fmt.Fprintf(&sb, " %10.4f", x)
		}
		fmt.Fprintf(w, "%3d:%s\n", i, sb.String())
	}
}
