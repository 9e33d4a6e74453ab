// Copyright (c) 2024-2026 The ESDM Authors
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

package drng

import (
	"testing"

	"github.com/entropysrc/esdm/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestInstance(t *testing.T) *Instance {
	t.Helper()
	inst, err := NewInstance("test", crypto.DefaultDRBG{}, crypto.DefaultHash{}, crypto.SecurityStrengthBytes)
	require.NoError(t, err)
	return inst
}

func TestInstance_InitialState(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	inst := newTestInstance(t)
	is.Equal(int64(ReseedThreshold), inst.RequestsRemaining())
	is.True(inst.ForceReseed())
	is.False(inst.FullySeeded())
}

func TestInstance_InjectSuccessUpdatesState(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	inst := newTestInstance(t)
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = byte(i + 1)
	}

	is.NoError(inst.Inject(seed, true))
	is.False(inst.ForceReseed())
	is.True(inst.FullySeeded())
	is.Equal(int64(ReseedThreshold), inst.RequestsRemaining())
}

func TestInstance_InjectEmptyFails(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	inst := newTestInstance(t)
	err := inst.Inject(nil, true)
	is.Error(err)
	is.True(inst.ForceReseed())
}

func TestInstance_GenerateProducesBytes(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	inst := newTestInstance(t)
	out := make([]byte, 64)
	n, err := inst.Generate(out, ReseedThreshold)
	is.NoError(err)
	is.Equal(64, n)
}

func TestInstance_GenerateDemotesAfterOveruse(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	inst := newTestInstance(t)
	is.NoError(inst.Inject(make([]byte, 32), true))
	is.True(inst.FullySeeded())

	inst.requestsSinceFullySeeded.Store(100)

	out := make([]byte, 16)
	_, err := inst.Generate(out, 10)
	is.NoError(err)
	is.False(inst.FullySeeded())
}

func TestInstance_MustReseedOnFreshInstance(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	inst := newTestInstance(t)
	is.True(inst.MustReseed(), "a never-seeded instance must report must_reseed")
}

func TestInstance_ResetRestoresDefaults(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	inst := newTestInstance(t)
	is.NoError(inst.Inject(make([]byte, 32), true))
	inst.Reset()

	is.False(inst.FullySeeded())
	is.True(inst.ForceReseed())
	is.Equal(int64(ReseedThreshold), inst.RequestsRemaining())
}
