// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newVersionCommand prints the version set at build time via ldflags,
// ie. go build -ldflags "-X 'main.version=1.2.3'".
func newVersionCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Prints the application's version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "Version: %s\n", opts.version)
			return nil
		},
	}
}
