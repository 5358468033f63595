// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/relabs-tech/barometer_forecaster/internal/forecast"
	"github.com/relabs-tech/barometer_forecaster/internal/store"
)

func newHistoryCommand(opts *rootOptions) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspects the persisted pressure history",
	}
	historyCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Prints the history and the trend it yields now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryShow(cmd, opts)
		},
	})
	historyCmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Deletes the history so the next cycle starts afresh",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryClear(cmd, opts)
		},
	})
	return historyCmd
}

func runHistoryShow(cmd *cobra.Command, opts *rootOptions) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	st, err := store.OpenSQLite(cfg.HistoryDBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, cancel := opts.context(cmd)
	defer cancel()

	out := cmd.OutOrStdout()
	points, ok, err := st.Load(ctx, cfg.HistoryKey)
	if err != nil {
		return err
	}
	if !ok || len(points) == 0 {
		fmt.Fprintf(out, "no history under %q\n", cfg.HistoryKey)
		return nil
	}

	now := opts.now()
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tPRESSURE\tAGE")
	for _, p := range points {
		fmt.Fprintf(tw, "%s\t%.2f hPa\t%s\n",
			p.Timestamp.Local().Format("2006-01-02 15:04:05"), p.Pressure/100, now.Sub(p.Timestamp).Round(time.Second))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if updated, ok, err := st.UpdatedAt(ctx, cfg.HistoryKey); err == nil && ok {
		fmt.Fprintf(out, "saved %s\n", updated.Local().Format("2006-01-02 15:04:05"))
	}

	// Expired entries are still shown; the forecaster drops them on its next cycle.
	h := forecast.NewHistory(points...)
	h.TrimOlderThan(now, cfg.HistoryRetention)
	rate, ok := forecast.NewTrendClassifier(cfg.TrendMinAge).ComputeTrend(h, now)
	if !ok {
		fmt.Fprintln(out, "trend: not enough history")
		return nil
	}
	c := forecast.Classify(rate)
	fmt.Fprintf(out, "trend: %+.2f hPa/h, %s\n", rate, c.Label())
	return nil
}

func runHistoryClear(cmd *cobra.Command, opts *rootOptions) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	st, err := store.OpenSQLite(cfg.HistoryDBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, cancel := opts.context(cmd)
	defer cancel()

	if err := st.Delete(ctx, cfg.HistoryKey); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "history %q cleared\n", cfg.HistoryKey)
	return nil
}
