// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"github.com/spf13/cobra"

	"github.com/gogpu/xrloop"
)

// ConfigFlags are the loop settings that can be given on the command line.
// Flags override the config file, which overrides the defaults.
type ConfigFlags struct {
	File     string
	Warmup   int
	Color    string
	FillMode string
	Space    string
}

func (f *ConfigFlags) register(cmd *cobra.Command) {
	def := xrloop.DefaultConfig()
	cmd.Flags().StringVarP(&f.File, "config", "c", "", "YAML config file")
	cmd.Flags().IntVar(&f.Warmup, "warmup", def.WarmupFrames, "frames that render before the loop only composes")
	cmd.Flags().StringVar(&f.Color, "color", def.FillColor.String(), "fill color (#rrggbb[aa] or a CSS name)")
	cmd.Flags().StringVar(&f.FillMode, "fill-mode", string(def.FillMode), "staging fill (cpu|gpu)")
	cmd.Flags().StringVar(&f.Space, "space", def.ReferenceSpace.String(), "reference space (view|local|stage|local_floor)")
}

// resolve builds the effective config for cmd.
func (f *ConfigFlags) resolve(cmd *cobra.Command) (xrloop.Config, error) {
	cfg := xrloop.DefaultConfig()
	if f.File != "" {
		loaded, err := xrloop.LoadConfig(f.File)
		if err != nil {
			return xrloop.Config{}, WrapExitError(ExitCommandError, "load config", err)
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("warmup") {
		cfg.WarmupFrames = f.Warmup
	}
	if flags.Changed("color") {
		c, err := xrloop.ParseColor(f.Color)
		if err != nil {
			return xrloop.Config{}, WrapExitError(ExitCommandError, "invalid --color", err)
		}
		cfg.FillColor = c
	}
	if flags.Changed("fill-mode") {
		cfg.FillMode = xrloop.FillMode(f.FillMode)
	}
	if flags.Changed("space") {
		if err := cfg.ReferenceSpace.UnmarshalText([]byte(f.Space)); err != nil {
			return xrloop.Config{}, WrapExitError(ExitCommandError, "invalid --space", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return xrloop.Config{}, WrapExitError(ExitCommandError, "invalid config", err)
	}
	return cfg, nil
}

// NewConfigCommand creates the config command, which prints the effective
// configuration as YAML.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &ConfigFlags{}

	cmd := &cobra.Command{
		Use:           "config",
		Short:         "Print the effective configuration",
		Long:          "Merges defaults, the config file and flags, validates the result and prints it as YAML.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.resolve(cmd)
			if err != nil {
				return err
			}
			data, err := cfg.YAML()
			if err != nil {
				return WrapExitError(ExitFailure, "encode config", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	flags.register(cmd)
	return cmd
}
