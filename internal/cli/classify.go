// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/relabs-tech/barometer_forecaster/internal/forecast"
)

func newClassifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "classify <hPa-per-hour>",
		Short: "Prints the forecast category of a pressure trend",
		Args:  cobra.ExactArgs(1),
		// Falling trends are negative and must not parse as flags.
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			rate, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("invalid rate %q: %w", args[0], err)
			}
			c := forecast.Classify(rate)
			fmt.Fprintf(cmd.OutOrStdout(), "%+.2f hPa/h: %s (%s)\n", rate, c.Label(), c)
			return nil
		},
	}
}
