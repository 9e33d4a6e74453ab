// Copyright (c) 2024-2026 The ESDM Authors
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

// Package serve implements esdmd's "serve" subcommand: it wires every core
// package into a running daemon — config, crypto callbacks, entropy
// sources, the DRNG manager, the state machine, the seeding scheduler, the
// status SHM/semaphore, and the RPC server — and runs until a termination
// signal arrives.
package serve

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/entropysrc/esdm/config"
	"github.com/entropysrc/esdm/crypto"
	"github.com/entropysrc/esdm/drng"
	"github.com/entropysrc/esdm/entropy"
	"github.com/entropysrc/esdm/rpc"
	"github.com/entropysrc/esdm/seeding"
	"github.com/entropysrc/esdm/shm"
	"github.com/entropysrc/esdm/state"
	"github.com/spf13/cobra"
)

var (
	testMode     bool
	unprivThread int
	seedInterval time.Duration
)

// NewServeCommand constructs esdmd's "serve" subcommand.
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the ESDM daemon",
		Long:  `Run the ESDM daemon: poll entropy sources, seed the DRNG pool, and serve the privileged and unprivileged RPC sockets until terminated.`,
		RunE:  runServe,
	}

	cmd.Flags().BoolVar(&testMode, "testmode", false, "append -testmode to both socket paths and skip the must-run-as-root check (spec §6)")
	cmd.Flags().IntVar(&unprivThread, "unpriv-threads", 8, "unprivileged RPC worker pool size")
	cmd.Flags().DurationVar(&seedInterval, "seed-interval", time.Second, "interval between background seeding rounds")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if !testMode && os.Geteuid() != 0 {
		fmt.Fprintln(os.Stderr, "esdmd: must run as root")
		os.Exit(77)
	}

	cfg := config.New()
	if _, set := os.LookupEnv(config.ForceFIPSEnvVar); set {
		cfg.SetForceFIPS(config.FIPSEnabled)
	}

	hash := crypto.DefaultHash{}
	drngCB := crypto.DefaultDRBG{}

	manager := drng.NewManager(cfg, drngCB, hash)
	if err := manager.Initialise(); err != nil {
		return fmt.Errorf("esdmd: initialise DRNG manager: %w", err)
	}

	machine := state.New()

	aux := entropy.NewAuxSource(hash)
	sources := []entropy.Source{
		entropy.NewCPUSource(cfg.CPURate(), hash),
		entropy.NewJitterSource(cfg.JitterRate(), hash, 64),
		entropy.NewKernelSource(cfg.KernelRate(), hash),
		entropy.NewSchedSource(cfg.SchedRate(), hash, 32),
		aux,
	}

	sched := seeding.New(cfg, manager, machine, sources)
	core := rpc.NewCore(cfg, manager, machine, sched, sources, aux, unprivThread)

	status, sem, err := openStatusSHM(testMode)
	if err != nil {
		logger.Warn("esdmd: status SHM unavailable, continuing without it", "err", err)
	} else {
		defer status.Remove()
		defer sem.Remove()
	}
	machine.SetAdvanceHook(func(s state.State) {
		publishStatus(logger, status, sem, core, s, unprivThread)
	})

	unprivPath, privPath := socketPaths(testMode)
	server := rpc.NewServer(core, unprivPath, privPath, unprivThread, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("esdmd: shutdown signal received")
		cancel()
	}()

	go runSeedingLoop(ctx, sched, manager, machine)

	logger.Info("esdmd: serving", "unpriv", unprivPath, "priv", privPath)
	if err := server.Serve(ctx); err != nil {
		return fmt.Errorf("esdmd: serve: %w", err)
	}

	manager.Finalize()
	logger.Info("esdmd: shut down cleanly")
	return nil
}

// runSeedingLoop ticks until ctx is cancelled. While the state machine is
// below Operational each tick runs spec §4.F's drng_seed_work once,
// staggered by node; once Operational each tick runs Scheduler.Run against
// every live instance instead, so a force_reseed latched by a generate
// caller that lost the pool-lock race eventually gets serviced.
func runSeedingLoop(ctx context.Context, sched *seeding.Scheduler, manager *drng.Manager, machine *state.Machine) {
	ticker := time.NewTicker(seedInterval)
	defer ticker.Stop()

	node := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if machine.Current() < state.Operational {
				_ = sched.DrngSeedWork(node)
				node++
				continue
			}

			instances := manager.GetInstances()
			for _, inst := range instances {
				sched.Run(inst)
			}
			manager.PutInstances()
		}
	}
}

func socketPaths(testMode bool) (unpriv, priv string) {
	unpriv, priv = rpc.DefaultUnprivSocketPath, rpc.DefaultPrivSocketPath
	if testMode {
		unpriv += rpc.TestModeSuffix
		priv += rpc.TestModeSuffix
	}
	return unpriv, priv
}

func openStatusSHM(testMode bool) (*shm.Status, *shm.Semaphore, error) {
	statusKey, semKey := shm.StatusKey, shm.SemaphoreKey
	if testMode {
		statusKey++
		semKey++
	}

	status, err := shm.OpenStatus(statusKey)
	if err != nil {
		return nil, nil, err
	}
	sem, err := shm.OpenSemaphore(semKey)
	if err != nil {
		_ = status.Remove()
		return nil, nil, err
	}
	return status, sem, nil
}

func publishStatus(logger *slog.Logger, status *shm.Status, sem *shm.Semaphore, core *rpc.Core, s state.State, unprivThreads int) {
	if status == nil {
		return
	}

	rec := shm.StatusRecord{
		Version:       1,
		UnprivThreads: uint32(unprivThreads),
		Operational:   s == state.Operational,
		NeedEntropy:   s < state.FullySeeded,
		Info:          core.Status(),
	}
	if err := status.Write(rec); err != nil {
		logger.Warn("esdmd: write status SHM", "err", err)
		return
	}
	if err := sem.Post(); err != nil {
		logger.Warn("esdmd: post status semaphore", "err", err)
	}
}
