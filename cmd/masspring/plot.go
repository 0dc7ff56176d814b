// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/curioloop/ocpqp/ipm"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// residuals below this are drawn on the floor of the log axis
const plotFloor = 1e-16

// savePlot draws the residual norms and μ of every iterate on a log scale.
func savePlot(file string, trace []ipm.Residuals) error {

	if len(trace) == 0 {
		return fmt.Errorf("plot: empty residual history")
	}
	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		return fmt.Errorf("plot: cannot create directory: %w", err)
	}

	p := plot.New()
	p.Title.Text = "Interior-point residuals"
	p.X.Label.Text = "iteration"
	p.Y.Label.Text = "∞-norm"
	p.Y.Scale = plot.LogScale{}
	p.Y.Tick.Marker = plot.LogTicks{Prec: -1}
	p.Legend.Top = true

	series := func(pick func(ipm.Residuals) float64) plotter.XYs {
		pts := make(plotter.XYs, len(trace))
		for k, r := range trace {
			pts[k].X = float64(k)
			pts[k].Y = math.Max(pick(r), plotFloor)
		}
		return pts
	}

	err := plotutil.AddLinePoints(p,
		"res_g", series(func(r ipm.Residuals) float64 { return r.Stationarity }),
		"res_b", series(func(r ipm.Residuals) float64 { return r.Equality }),
		"res_d", series(func(r ipm.Residuals) float64 { return r.Inequality }),
		"res_m", series(func(r ipm.Residuals) float64 { return r.Complementarity }),
		"mu", series(func(r ipm.Residuals) float64 { return r.Mu }),
	)
	if err != nil {
		return err
	}
	return p.Save(8*vg.Inch, 6*vg.Inch, file)
}
