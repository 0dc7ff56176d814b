// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

var (
	// runTotal counts pipeline runs by terminal status.
	// Labels: "converged", "max_iter", "failed", "invalid"
	runTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ocpqp_pipeline_runs_total",
		Help: "Total pipeline runs by terminal status",
	}, []string{"status"})

	phaseDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ocpqp_pipeline_phase_duration_seconds",
		Help:    "Duration of the condense, solve and expand phases",
		Buckets: []float64{0.00001, 0.0001, 0.001, 0.01, 0.1, 1},
	}, []string{"phase"})

	ipmIterations = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ocpqp_ipm_iterations",
		Help:    "Interior-point iterations per solve",
		Buckets: []float64{1, 5, 10, 15, 20, 30, 50, 100},
	})
)

const (
	phaseCondense = "condense"
	phaseSolve    = "solve"
	phaseExpand   = "expand"
)

var (
	tracerOnce sync.Once
	tracer     trace.Tracer
)

// getTracer returns the OTel tracer, initializing it lazily so that an
// unconfigured provider falls back to the global no-op one.
func getTracer() trace.Tracer {
	tracerOnce.Do(func() {
		tracer = otel.Tracer("github.com/curioloop/ocpqp/pipeline")
	})
	return tracer
}
