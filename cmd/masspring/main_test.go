// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRun(t *testing.T) {

	file := filepath.Join(t.TempDir(), "out", "residuals.png")
	out, err := execute(t, "--horizon", "8", "--n2", "2", "--iter-max", "50",
		"--nrep", "2", "--general", "--plot", file)
	require.NoError(t, err)

	assert.Contains(t, out, "N = 8, N2 = 2, nx = 8, nu = 3")
	assert.Contains(t, out, "ipm status = converged")
	assert.Contains(t, out, "lam =")
	assert.Contains(t, out, "average time per run")

	info, err := os.Stat(file)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestDefaults(t *testing.T) {
	// the stock benchmark converges within the default iteration budget
	out, err := execute(t)
	require.NoError(t, err)
	assert.Contains(t, out, "N = 15, N2 = 4, nx = 8, nu = 3")
	assert.Contains(t, out, "ipm status = converged")
}

func TestDenseBackend(t *testing.T) {
	out, err := execute(t, "--horizon", "5", "--n2", "0", "--backend", "dense",
		"--iter-max", "50", "--eliminate-x0=false", "-v")
	require.NoError(t, err)
	assert.Contains(t, out, "N = 5, N2 = 5")
	assert.Contains(t, out, "res_stat")
	assert.Contains(t, out, "ipm status = ")
}

func TestEnvAndConfig(t *testing.T) {

	t.Setenv("OCPQP_HORIZON", "6")
	t.Setenv("OCPQP_ITER_MAX", "50")

	cfg := filepath.Join(t.TempDir(), "masspring.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("masses: 3\ninputs: 2\nn2: 3\n"), 0o644))

	out, err := execute(t, "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "N = 6, N2 = 3, nx = 6, nu = 2")
}

func TestInvalidFlags(t *testing.T) {
	for _, args := range [][]string{
		{"--inputs", "9"},
		{"--n2", "40"},
		{"--backend", "qr"},
		{"--nrep", "0"},
		{"--config", "missing.yaml"},
	} {
		_, err := execute(t, args...)
		assert.Error(t, err, "%v", args)
	}
}
