// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command masspring benchmarks the condense-solve-expand pipeline on the
// chain-of-masses OCP-QP.
//
// Every flag may also be given in a config file (--config) or as an
// OCPQP_ prefixed environment variable, e.g. OCPQP_ITER_MAX=50.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/curioloop/ocpqp/massspring"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type options struct {
	massspring.Options

	N2      int
	IterMax int
	Tol     float64
	NRep    int
	Backend string
	Plot    string
	Verbose bool
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {

	v := viper.New()
	cmd := &cobra.Command{
		Use:          "masspring",
		Short:        "Solve the chain-of-masses OCP-QP with partial condensing",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			o, err := loadOptions(v)
			if err != nil {
				return err
			}
			if o.Verbose {
				slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(),
					&slog.HandlerOptions{Level: slog.LevelDebug})))
			}
			return run(cmd.Context(), cmd.OutOrStdout(), o)
		},
	}

	def := massspring.Default()
	f := cmd.Flags()
	f.Int("masses", def.Masses, "number of masses, nx = 2·masses")
	f.Int("inputs", def.Inputs, "number of actuated masses")
	f.Int("horizon", def.Horizon, "horizon length N")
	f.Float64("ts", def.Ts, "sampling period")
	f.Int("n2", 4, "reduced horizon of the partial condensing, 0 disables it")
	f.Int("iter-max", 10, "maximum interior-point iterations")
	f.Float64("tol", 1e-8, "residual tolerance")
	f.Int("nrep", 1, "number of repeated solves for timing")
	f.String("backend", "riccati", "Newton system backend: riccati or dense")
	f.Bool("eliminate-x0", def.EliminateX0, "fold the initial state into the first dynamics")
	f.Bool("general", false, "bound the sum of positions with a general constraint")
	f.String("plot", "", "write the residual history to this PNG file")
	f.BoolP("verbose", "v", false, "print debug logs and the iteration table")
	f.String("config", "", "config file (yaml, json or toml)")

	_ = v.BindPFlags(f)
	v.SetEnvPrefix("OCPQP")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return cmd
}

func loadOptions(v *viper.Viper) (*options, error) {

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	o := &options{
		Options: massspring.Options{
			Masses:      v.GetInt("masses"),
			Inputs:      v.GetInt("inputs"),
			Horizon:     v.GetInt("horizon"),
			Ts:          v.GetFloat64("ts"),
			EliminateX0: v.GetBool("eliminate-x0"),
			General:     v.GetBool("general"),
		},
		N2:      v.GetInt("n2"),
		IterMax: v.GetInt("iter-max"),
		Tol:     v.GetFloat64("tol"),
		NRep:    v.GetInt("nrep"),
		Backend: v.GetString("backend"),
		Plot:    v.GetString("plot"),
		Verbose: v.GetBool("verbose"),
	}
	if o.NRep < 1 {
		return nil, fmt.Errorf("nrep must be at least 1, got %d", o.NRep)
	}
	return o, nil
}
