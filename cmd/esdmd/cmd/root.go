// Copyright (c) 2024-2026 The ESDM Authors
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

// Package cmd wires the esdmd daemon's cobra command tree, following the
// same RootCmd/Execute/subcommand-package shape as the teacher CLI's
// cmd/root.go and cmd/generate/generate.go.
package cmd

import (
	"fmt"
	"os"

	"github.com/entropysrc/esdm/cmd/esdmd/cmd/serve"
	"github.com/entropysrc/esdm/cmd/esdmd/cmd/status"
	"github.com/spf13/cobra"
)

// RootCmd is the base esdmd command.
var RootCmd = &cobra.Command{
	Use:   "esdmd",
	Short: "Entropy Source & DRNG Manager daemon",
	Long:  `esdmd collects entropy from multiple noise sources, seeds a set of DRNGs, and serves random numbers over a privileged and an unprivileged RPC socket.`,
}

// Execute runs the command tree. Called once by main.main.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "esdmd: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	RootCmd.AddCommand(serve.NewServeCommand())
	RootCmd.AddCommand(status.NewStatusCommand())
}
