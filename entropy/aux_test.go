// Copyright (c) 2024-2026 The ESDM Authors
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

package entropy

import (
	"testing"

	"github.com/entropysrc/esdm/crypto"
	"github.com/stretchr/testify/assert"
)

func TestAuxSource_EmptyPoolIsNoop(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	s := NewAuxSource(crypto.DefaultHash{})
	slot := make([]byte, 32)
	bits, err := s.Poll(256, slot)
	is.NoError(err)
	is.Equal(0, bits)
}

func TestAuxSource_AddEntropyThenPoll(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	s := NewAuxSource(crypto.DefaultHash{})
	is.NoError(s.AddEntropy([]byte("some external randomness"), 64))
	is.Equal(64, s.Rate())

	slot := make([]byte, 32)
	bits, err := s.Poll(256, slot)
	is.NoError(err)
	is.Equal(64, bits)

	// draining once must clear the pool.
	bits, err = s.Poll(256, slot)
	is.NoError(err)
	is.Equal(0, bits)
}

func TestAuxSource_AddEntropyClampsAtStrength(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	s := NewAuxSource(crypto.DefaultHash{})
	is.NoError(s.AddEntropy([]byte("x"), 10000))
	is.Equal(crypto.SecurityStrengthBits, s.Rate())
}
