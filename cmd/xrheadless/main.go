// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Command xrheadless runs the xrloop frame loop against the simulated
// headless runtime.
//
// Usage:
//
//	xrheadless run [--config file] [--backend noop|vulkan] [--frames n]
//	xrheadless config [--config file]
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "xrheadless:", err)
		os.Exit(GetExitCode(err))
	}
}
