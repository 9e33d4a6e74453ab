// Copyright (c) 2024-2026 The ESDM Authors
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

package entropy

import (
	"crypto/rand"
	"io"

	"github.com/entropysrc/esdm/crypto"
	"golang.org/x/sys/cpu"
)

// CPUSource is the hardware-RNG entropy adapter named in spec §4.B. It uses
// golang.org/x/sys/cpu (already pulled in transitively by the teacher's
// build) to detect RDRAND support the way
// writerslogic/witnessd's internal/hardware.RDRANDSource reports
// availability, then draws bytes from the OS CSPRNG (crypto/rand), which on
// Linux is itself fed by the CPU's hardware RNG when present — see
// DESIGN.md for why this adapter does not issue the RDRAND instruction
// directly.
type CPUSource struct {
	counters
	rate int
	hash crypto.Hash
}

// NewCPUSource constructs a CPUSource reporting rateBits of entropy per
// poll when hardware RNG support is detected.
func NewCPUSource(rateBits int, hash crypto.Hash) *CPUSource {
	return &CPUSource{rate: rateBits, hash: hash}
}

func (s *CPUSource) Name() string { return "cpu" }
func (s *CPUSource) Rate() int    { return s.rate }

func (s *CPUSource) available() bool {
	return cpu.X86.HasRDRAND || cpu.ARM64.HasASIMD
}

func (s *CPUSource) Poll(requestBits int, seedSlot []byte) (int, error) {
	if !s.available() || s.rate == 0 {
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

func (s *CPUSource) FullySeeded(bits int) bool {
	return bits >= crypto.SecurityStrengthBits
}

func (s *CPUSource) Stats() Stats {
	return s.counters.snapshot(s.Name(), s.available())
}
