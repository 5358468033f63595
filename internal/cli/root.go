// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package cli implements stationctl, the maintenance tool of the barometer
// station.
package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/relabs-tech/barometer_forecaster/internal/config"
)

// rootOptions is shared by every sub-command.
type rootOptions struct {
	configPath string
	timeout    time.Duration
	version    string
	now        func() time.Time
}

// loadConfig reads the configuration named by --config.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", o.configPath, err)
	}
	return cfg, nil
}

// context bounds one command invocation by --timeout.
func (o *rootOptions) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, o.timeout)
}

// NewRootCommand builds stationctl. Output goes to out.
func NewRootCommand(version string, out io.Writer) *cobra.Command {
	opts := &rootOptions{version: version, now: time.Now}

	rootCmd := &cobra.Command{
		Use:           "stationctl",
		Short:         "stationctl inspects and maintains a barometer forecaster station",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(out)

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", config.DefaultPath, "Configuration file")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "Deadline for bus and database access")

	rootCmd.AddCommand(newHistoryCommand(opts))
	rootCmd.AddCommand(newClassifyCommand())
	rootCmd.AddCommand(newRegistersCommand(opts))
	rootCmd.AddCommand(newVersionCommand(opts))
	return rootCmd
}
