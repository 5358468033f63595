// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/relabs-tech/barometer_forecaster/internal/app"
	"github.com/relabs-tech/barometer_forecaster/internal/sensors"
)

func newRegistersCommand(opts *rootOptions) *cobra.Command {
	var simulate bool
	registersCmd := &cobra.Command{
		Use:   "registers",
		Short: "Dumps the BME280 registers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if simulate {
				cfg.BME280Simulate = true
			}

			link, err := app.OpenSensor(cfg)
			if err != nil {
				return err
			}
			defer link.Close()

			ctx, cancel := opts.context(cmd)
			defer cancel()

			values, err := sensors.DumpRegisters(ctx, link.Device)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s at 0x%02X\n", link.Source, cfg.BME280I2CAddr)
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ADDR\tNAME\tVALUE")
			for _, v := range values {
				name := v.Info.Name
				if v.Info.Address == sensors.RegChipID && len(v.Bytes) == 1 {
					name += " (" + sensors.ChipName(v.Bytes[0]) + ")"
				}
				fmt.Fprintf(tw, "0x%02X\t%s\t%s\n", v.Info.Address, name, v.Hex())
			}
			return tw.Flush()
		},
	}
	registersCmd.Flags().BoolVar(&simulate, "simulate", false, "Read the simulated chip instead of the bus")
	return registersCmd
}
