// Copyright (c) 2024-2026 The ESDM Authors
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

package entropy

import (
	"crypto/rand"
	"io"

	"github.com/entropysrc/esdm/crypto"
)

// KernelSource is the kernel-RNG passthrough adapter spec §4.B describes: it
// forwards crypto/rand (getrandom(2) on Linux) as a conservative baseline
// source, mirroring the way witnessd's OSEntropySource treats the OS CSPRNG
// as one input among several rather than the sole authority.
type KernelSource struct {
	counters
	rate int
	hash crypto.Hash
}

// NewKernelSource constructs a KernelSource.
func NewKernelSource(rateBits int, hash crypto.Hash) *KernelSource {
	return &KernelSource{rate: rateBits, hash: hash}
}

func (s *KernelSource) Name() string { return "kernel" }
func (s *KernelSource) Rate() int    { return s.rate }

func (s *KernelSource) Poll(requestBits int, seedSlot []byte) (int, error) {
	if s.rate == 0 {
		return 0, nil
	}

	raw := make([]byte, crypto.SecurityStrengthBytes)
	if _, err := io.ReadFull(rand.Reader, raw); err != nil {
		s.recordError()
		return 0, nil
	}

	n := condition(s.hash, raw, seedSlot)
	s.recordSuccess(n)

	bits := capBits(s.rate)
	if bits > requestBits {
		bits = requestBits
	}
	return bits, nil
}

func (s *KernelSource) FullySeeded(bits int) bool {
	return bits >= crypto.SecurityStrengthBits
}

func (s *KernelSource) Stats() Stats {
	return s.counters.snapshot(s.Name(), true)
}
