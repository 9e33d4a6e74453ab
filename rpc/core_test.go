// Copyright (c) 2024-2026 The ESDM Authors
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

package rpc

import (
	"context"
	"testing"
	"time"

	"github.com/entropysrc/esdm/config"
	"github.com/entropysrc/esdm/crypto"
	"github.com/entropysrc/esdm/drng"
	"github.com/entropysrc/esdm/entropy"
	"github.com/entropysrc/esdm/seeding"
	"github.com/entropysrc/esdm/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCore(t *testing.T, opts ...config.Option) (*Core, *drng.Manager, *state.Machine) {
	t.Helper()

	allOpts := append([]config.Option{config.WithMaxNodes(2), config.WithKernelRate(256)}, opts...)
	cfg := config.New(allOpts...)

	m := drng.NewManager(cfg, crypto.DefaultDRBG{}, crypto.DefaultHash{})
	require.NoError(t, m.Initialise())

	machine := state.New()
	aux := entropy.NewAuxSource(crypto.DefaultHash{})
	sources := []entropy.Source{entropy.NewKernelSource(256, crypto.DefaultHash{}), aux}

	sched := seeding.New(cfg, m, machine, sources)
	core := NewCore(cfg, m, machine, sched, sources, aux, 4)
	return core, m, machine
}

func TestCore_GetRandomBytesReturnsImmediatelyEvenUnseeded(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	core, _, machine := newTestCore(t)
	is.Equal(state.Uninitialised, machine.Current())

	data, err := core.GetRandomBytes(16)
	is.NoError(err)
	is.Len(data, 16)
}

func TestCore_GetRandomBytesFullWaitsForOperational(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	core, m, _ := newTestCore(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	done := make(chan struct{})
	var data []byte
	var err error
	go func() {
		data, err = core.GetRandomBytesFull(ctx, 16, false)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("GetRandomBytesFull returned before the DRNG was seeded")
	case <-time.After(20 * time.Millisecond):
	}

	require.NoError(t, core.sched.Seed(m.Init()))

	select {
	case <-done:
		is.NoError(err)
		is.Len(data, 16)
	case <-time.After(time.Second):
		t.Fatal("GetRandomBytesFull did not unblock once operational")
	}
}

func TestCore_GetRandomBytesFullNonblockReturnsWouldBlock(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	core, _, _ := newTestCore(t)
	_, err := core.GetRandomBytesFull(context.Background(), 16, true)
	is.ErrorIs(err, state.ErrWouldBlock)
}

func TestCore_GetRandomBytesMinWaitsForMinSeeded(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	core, _, machine := newTestCore(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := core.GetRandomBytesMin(ctx, 16)
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	machine.Advance(state.MinSeeded)

	select {
	case err := <-done:
		is.NoError(err)
	case <-time.After(time.Second):
		t.Fatal("GetRandomBytesMin did not unblock on min_seeded")
	}
}

func TestCore_WriteDataNeverCreditsEntropy(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	core, _, _ := newTestCore(t)
	n, err := core.WriteData([]byte("mix me in"))
	is.NoError(err)
	is.Equal(9, n)
	is.Equal(0, core.aux.Rate(), "write_data must never self-credit entropy")
}

func TestCore_RndAddEntropyCreditsOutsideFIPS(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	core, _, _ := newTestCore(t, config.WithForceFIPS(config.FIPSDisabled))
	n, err := core.RndAddEntropy(make([]byte, 64), 64)
	is.NoError(err)
	is.Equal(64, n)
	is.Equal(64, core.aux.Rate())
}

func TestCore_RndAddEntropyZeroCreditsUnderFIPS(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	core, _, _ := newTestCore(t, config.WithForceFIPS(config.FIPSEnabled))
	n, err := core.RndAddEntropy(make([]byte, 64), 64)
	is.NoError(err)
	is.Equal(64, n)
	is.Equal(0, core.aux.Rate(), "FIPS mode must credit zero bits for externally supplied entropy")
}

func TestCore_RndClearPoolResetsEveryInstance(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	core, m, machine := newTestCore(t)
	require.NoError(t, core.sched.Seed(m.Init()))
	is.True(m.Init().FullySeeded())

	core.RndClearPool()

	is.False(m.Init().FullySeeded())
	is.True(m.Init().ForceReseed())
	is.Equal(state.Uninitialised, machine.Current())
}

func TestCore_RndReseedCRNGForcesReseed(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	core, m, _ := newTestCore(t)
	require.NoError(t, core.sched.Seed(m.Init()))
	is.False(m.Init().ForceReseed())

	// Init just succeeded a seed, so its own reseed threshold is far from
	// exhausted: Manager.ForceReseed (spec §4.E) forces every other
	// instance instead and leaves init's own schedule untouched.
	core.RndReseedCRNG()
	is.False(m.Init().ForceReseed())
	is.True(m.Atomic().ForceReseed())
}

func TestCore_GetEntLvlSumsConfiguredRates(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	core, _, _ := newTestCore(t)
	is.Equal(256, core.GetEntLvl())
	is.Equal(256, core.RndGetEntCnt())
}

func TestCore_StatusReportsStateAndSources(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	core, _, _ := newTestCore(t)
	report := core.Status()
	is.Contains(report, "uninitialised")
	is.Contains(report, "kernel")
}
