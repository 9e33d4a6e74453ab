// Copyright (c) 2024-2026 The ESDM Authors
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

package drng

import (
	"testing"

	"github.com/entropysrc/esdm/config"
	"github.com/entropysrc/esdm/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	cfg := config.New(config.WithMaxNodes(4))
	m := NewManager(cfg, crypto.DefaultDRBG{}, crypto.DefaultHash{})
	require.NoError(t, m.Initialise())
	return m
}

func TestManager_InitialiseIsIdempotent(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	m := newTestManager(t)
	first := m.Init()
	is.NoError(m.Initialise())
	is.Same(first, m.Init())
	is.True(m.Avail())
}

func TestManager_NodeInstanceFallsBackToInit(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	m := newTestManager(t)
	is.Same(m.Init(), m.NodeInstance(0))
}

func TestManager_NodeInstanceUsesFullySeededNode(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	m := newTestManager(t)
	inst, err := m.EnsureNode(1)
	is.NoError(err)
	is.NoError(inst.Inject(make([]byte, 32), true))

	is.Same(inst, m.NodeInstance(1))
}

func TestManager_NodeInstanceIgnoresNotFullySeededNode(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	m := newTestManager(t)
	_, err := m.EnsureNode(2)
	is.NoError(err)

	is.Same(m.Init(), m.NodeInstance(2))
}

func TestManager_ResetDemotesEveryInstance(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	m := newTestManager(t)
	is.NoError(m.Init().Inject(make([]byte, 32), true))
	inst, err := m.EnsureNode(0)
	is.NoError(err)
	is.NoError(inst.Inject(make([]byte, 32), true))

	resetCalled := false
	m.SetResetHook(func() { resetCalled = true })
	m.Reset()

	is.False(m.Init().FullySeeded())
	is.False(inst.FullySeeded())
	is.True(resetCalled)
	is.Equal(config.DefaultInitEntropyBits, m.SeedTargetBits())
}

func TestManager_ForceReseedTargetsInitOnlyWhenDue(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	m := newTestManager(t)
	node, err := m.EnsureNode(0)
	is.NoError(err)
	is.NoError(node.Inject(make([]byte, 32), true))
	node.forceReseed.Store(false)

	// drain init's requests to zero so ForceReseed sees it as due.
	m.Init().requests.Store(0)

	m.ForceReseed()
	is.True(m.Init().ForceReseed())
	is.False(node.ForceReseed(), "force_reseed must target only init when init itself is due")
}

func TestManager_ForceReseedTargetsEveryoneElse(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	m := newTestManager(t)
	node, err := m.EnsureNode(0)
	is.NoError(err)
	is.NoError(node.Inject(make([]byte, 32), true))
	node.forceReseed.Store(false)

	m.Init().requests.Store(ReseedThreshold)

	m.ForceReseed()
	is.True(node.ForceReseed())
	is.True(m.Atomic().ForceReseed())
}

func TestManager_PoolTryLockIsExclusive(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	m := newTestManager(t)
	is.True(m.PoolTryLock())
	is.False(m.PoolTryLock())
	m.PoolUnlock()
	is.True(m.PoolTryLock())
	m.PoolUnlock()
}

func TestManager_FinalizeMarksUnavailable(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	m := newTestManager(t)
	m.Finalize()
	is.False(m.Avail())
}
