// Copyright (c) 2024-2026 The ESDM Authors
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

package entropy

import (
	"sync"

	"github.com/entropysrc/esdm/crypto"
)

// auxPoolCapacity bounds the auxiliary pool's byte ring, per SPEC_FULL.md
// §6's "fixed-capacity byte ring" supplemented feature.
const auxPoolCapacity = 4096

// AuxSource is the push-mode auxiliary pool spec §4.B and §4.H describe: the
// rnd_add_entropy privileged RPC method (and any other external entropy
// submitter) deposits bytes here with AddEntropy, and the scheduler drains
// the accumulated pool the next time it polls this source, the way the
// teacher's ctrdrbg Seed accepts externally supplied material rather than
// generating its own. The backing buffer is a fixed-capacity ring: a push
// that would overflow it discards the oldest bytes rather than growing
// without bound.
type AuxSource struct {
	counters

	mu      sync.Mutex
	pool    []byte
	credits int // accumulated entropy bits awaiting a Poll

	hash crypto.Hash
}

// NewAuxSource constructs an empty AuxSource.
func NewAuxSource(hash crypto.Hash) *AuxSource {
	return &AuxSource{hash: hash, pool: make([]byte, 0, auxPoolCapacity)}
}

func (s *AuxSource) Name() string { return "aux" }

// Rate reports the bits currently queued, since the auxiliary pool has no
// fixed per-poll rate: it only ever claims what has actually been pushed.
func (s *AuxSource) Rate() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return capBits(s.credits)
}

// AddEntropy appends data to the pool and credits entropyBits bits, clamped
// at the security strength, matching spec §4.H's "already-accounted-for
// bits" contract for rnd_add_entropy.
func (s *AuxSource) AddEntropy(data []byte, entropyBits int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pool = append(s.pool, data...)
	if over := len(s.pool) - auxPoolCapacity; over > 0 {
		s.pool = s.pool[over:]
	}
	s.credits = capBits(s.credits + entropyBits)
	return nil
}

func (s *AuxSource) Poll(requestBits int, seedSlot []byte) (int, error) {
	s.mu.Lock()
	if s.credits == 0 || len(s.pool) == 0 {
		s.mu.Unlock()
		return 0, nil
	}
	raw := s.pool
	bits := s.credits
	s.pool = nil
	s.credits = 0
	s.mu.Unlock()

	n := condition(s.hash, raw, seedSlot)
	zero(raw)
	s.recordSuccess(n)

	bits = capBits(bits)
	if bits > requestBits {
		bits = requestBits
	}
	return bits, nil
}

func (s *AuxSource) FullySeeded(bits int) bool {
	return bits >= crypto.SecurityStrengthBits
}

func (s *AuxSource) Stats() Stats {
	return s.counters.snapshot(s.Name(), true)
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
