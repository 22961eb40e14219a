// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/gogpu/xrloop"
	"github.com/gogpu/xrloop/xr/xrsim"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	ConfigFlags

	Backend  string
	Frames   int
	Width    uint32
	Height   uint32
	Realtime bool
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the frame loop until interrupted",
		Long: `Creates a session on the simulated runtime and runs the frame loop.

SIGINT or SIGTERM request the session exit; the command returns once the
runtime reports EXITING. --frames stops the same way after n ended frames.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.resolve(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runLoop(ctx, opts, cfg, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	opts.register(cmd)
	cmd.Flags().StringVarP(&opts.Backend, "backend", "b", xrloop.BackendNoop, "graphics backend (noop|vulkan)")
	cmd.Flags().IntVarP(&opts.Frames, "frames", "n", 0, "stop after n frames (0 runs until interrupted)")
	cmd.Flags().Uint32Var(&opts.Width, "width", 0, "per-eye width reported by the runtime (0 for default)")
	cmd.Flags().Uint32Var(&opts.Height, "height", 0, "per-eye height reported by the runtime (0 for default)")
	cmd.Flags().BoolVar(&opts.Realtime, "realtime", false, "pace frames at the simulated display rate")

	return cmd
}

func runLoop(ctx context.Context, opts *RunOptions, cfg xrloop.Config, stdout, stderr io.Writer) error {
	if opts.Frames < 0 {
		return WrapExitError(ExitCommandError, "invalid --frames", fmt.Errorf("must not be negative, got %d", opts.Frames))
	}

	logger := newLogger(stderr, opts.Verbose)
	xrloop.SetLogger(logger)
	defer xrloop.SetLogger(nil)

	gfx, err := xrloop.OpenGraphics(opts.Backend)
	if err != nil {
		return WrapExitError(ExitCommandError, "open graphics", err)
	}
	defer gfx.Close()

	simCfg := xrsim.DefaultConfig()
	simCfg.Realtime = opts.Realtime
	if opts.Width > 0 {
		simCfg.ViewWidth = opts.Width
	}
	if opts.Height > 0 {
		simCfg.ViewHeight = opts.Height
	}
	runtime := xrsim.New(simCfg)

	loop, err := xrloop.New(runtime, gfx, cfg,
		xrloop.WithLogger(logger),
		xrloop.WithFrameLimit(opts.Frames),
	)
	if err != nil {
		return WrapExitError(ExitFailure, "start loop", err)
	}

	start := time.Now()
	runErr := loop.Run(ctx)
	closeErr := loop.Close()
	elapsed := time.Since(start)

	printSummary(stdout, loop, elapsed)

	if err := errors.Join(runErr, closeErr); err != nil {
		return WrapExitError(ExitFailure, "run loop", err)
	}
	return nil
}

// printSummary writes the loop counters with locale digit grouping.
func printSummary(w io.Writer, loop *xrloop.Loop, elapsed time.Duration) {
	s := loop.Stats()
	width, height := loop.Size()
	p := message.NewPrinter(language.English)

	p.Fprintf(w, "run      %s\n", loop.RunID())
	p.Fprintf(w, "system   %s (%dx%d per eye)\n", loop.SystemName(), width, height)
	p.Fprintf(w, "frames   %d ended, %d rendered, %d degraded, %d failed\n", s.Frames, s.Rendered, s.Degraded, s.EndFailures)
	p.Fprintf(w, "images   %d acquired, %d released, %d wait timeouts\n", s.Acquires, s.Releases, s.ImageWaitTimeouts)
	p.Fprintf(w, "gpu      %d submits, %d busy\n", s.Submits, s.GPUBusy)
	p.Fprintf(w, "loop     %d iterations, %d idle, %d sessions\n", s.Iterations, s.Idle, s.Sessions)
	if secs := elapsed.Seconds(); secs > 0 {
		p.Fprintf(w, "rate     %.1f frames/s over %s\n", float64(s.Frames)/secs, elapsed.Round(time.Millisecond))
	}
}
