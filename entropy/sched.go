// Copyright (c) 2024-2026 The ESDM Authors
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

package entropy

import (
	"encoding/binary"
	"runtime"
	"time"

	"github.com/entropysrc/esdm/crypto"
)

// SchedSource is the scheduler-timing adapter spec §4.B names alongside the
// Jitter source. Where JitterSource measures a tight data-independent loop,
// SchedSource measures the wall-clock cost of runtime.Gosched() yielding
// back to this goroutine, which depends on the Go scheduler's run-queue
// state and is disabled (DefaultSchedRate is 0) unless an operator opts in,
// since its entropy estimate is harder to bound than Jitter's.
type SchedSource struct {
	counters
	rate   int
	hash   crypto.Hash
	rounds int
}

// NewSchedSource constructs a SchedSource.
func NewSchedSource(rateBits int, hash crypto.Hash, rounds int) *SchedSource {
	if rounds <= 0 {
		rounds = 32
	}
	return &SchedSource{rate: rateBits, hash: hash, rounds: rounds}
}

func (s *SchedSource) Name() string { return "sched" }
func (s *SchedSource) Rate() int    { return s.rate }

func (s *SchedSource) sampleDeltas() []byte {
	out := make([]byte, s.rounds*8)
	prev := time.Now().UnixNano()
	for i := 0; i < s.rounds; i++ {
		runtime.Gosched()
		now := time.Now().UnixNano()
		binary.LittleEndian.PutUint64(out[i*8:], uint64(now-prev))
		prev = now
	}
	return out
}

func (s *SchedSource) Poll(requestBits int, seedSlot []byte) (int, error) {
	if s.rate == 0 {
		return 0, nil
	}

	raw := s.sampleDeltas()
	n := condition(s.hash, raw, seedSlot)
	s.recordSuccess(n)

	bits := capBits(s.rate)
	if bits > requestBits {
		bits = requestBits
	}
	return bits, nil
}

func (s *SchedSource) FullySeeded(bits int) bool {
	return bits >= crypto.SecurityStrengthBits
}

func (s *SchedSource) Stats() Stats {
	return s.counters.snapshot(s.Name(), true)
}
