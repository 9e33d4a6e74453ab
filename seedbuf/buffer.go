// Copyright (c) 2024-2026 The ESDM Authors
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

// Package seedbuf implements the seed buffer described in spec §3: a
// fixed-size aggregate of per-source conditioned payloads plus the entropy
// bits the accountant credited to each, together with the zeroisation
// discipline spec §5/§7/§8 require of every function that touches it.
package seedbuf

// Contribution is one entropy source's payload for a single seeding round.
type Contribution struct {
	// Source names the entropy source adapter this contribution came from.
	Source string

	// Payload is the conditioned (hashed) byte string the source produced.
	Payload []byte

	// Bits is the number of entropy bits the accountant credited to
	// Payload, already capped at crypto.SecurityStrengthBits.
	Bits int
}

// Buffer aggregates one seeding round's contributions across every entropy
// source, in source-poll order.
type Buffer struct {
	Contributions []Contribution
}

// New returns an empty Buffer with capacity for n sources.
func New(n int) *Buffer {
	return &Buffer{Contributions: make([]Contribution, 0, n)}
}

// Add appends a contribution to the buffer.
func (b *Buffer) Add(source string, payload []byte, bits int) {
	b.Contributions = append(b.Contributions, Contribution{Source: source, Payload: payload, Bits: bits})
}

// TotalBits sums the credited bits across every contribution.
func (b *Buffer) TotalBits() int {
	total := 0
	for _, c := range b.Contributions {
		total += c.Bits
	}
	return total
}

// Concat returns the concatenation of every contribution's payload, in the
// order contributions were added. This is the byte string handed to the
// DRBG's Seed callback.
func (b *Buffer) Concat() []byte {
	n := 0
	for _, c := range b.Contributions {
		n += len(c.Payload)
	}
	out := make([]byte, 0, n)
	for _, c := range b.Contributions {
		out = append(out, c.Payload...)
	}
	return out
}

// Zero overwrites every contribution's payload bytes with zero and clears
// the contribution list. Callers must invoke Zero on every exit path (error
// or success) from any function that populated the buffer — spec §8
// property 7 requires the backing memory to compare equal to zero bytes
// once the call returns.
func (b *Buffer) Zero() {
	for i := range b.Contributions {
		p := b.Contributions[i].Payload
		for j := range p {
			p[j] = 0
		}
		b.Contributions[i] = Contribution{}
	}
	b.Contributions = b.Contributions[:0]
}
