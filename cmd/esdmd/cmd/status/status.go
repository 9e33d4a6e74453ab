// Copyright (c) 2024-2026 The ESDM Authors
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

// Package status implements esdmd's "status" subcommand: a thin RPC client
// that dials the unprivileged socket and prints the status method's
// human-readable report.
package status

import (
	"fmt"

	"github.com/entropysrc/esdm/rpc"
	"github.com/spf13/cobra"
)

var testMode bool

// NewStatusCommand constructs esdmd's "status" subcommand.
func NewStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print the running daemon's status report",
		RunE:  runStatus,
	}
	cmd.Flags().BoolVar(&testMode, "testmode", false, "query the -testmode socket path")
	return cmd
}

func runStatus(cmd *cobra.Command, args []string) error {
	path := rpc.DefaultUnprivSocketPath
	if testMode {
		path += rpc.TestModeSuffix
	}

	c, err := rpc.Dial(path)
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}
	defer c.Close()

	resp, err := c.Call(&rpc.Request{Method: rpc.MethodStatus})
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}
	if resp.Ret < 0 {
		return fmt.Errorf("status: daemon returned error code %d", -resp.Ret)
	}

	_, err = fmt.Fprint(cmd.OutOrStdout(), string(resp.Data))
	return err
}
