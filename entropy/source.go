// Copyright (c) 2024-2026 The ESDM Authors
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

// Package entropy implements the entropy-source adapters and accountant
// described in spec §4.B/§4.C: per-source polling and conditioning, and the
// aggregation/oversampling logic that turns per-source declared bits into a
// credited total.
//
// Adapters are modeled on the pack's hardware entropy pool
// (writerslogic/witnessd's internal/hardware package): each source tracks
// its own generation/error counters with atomics, reports Stats(), and is
// conservative by construction — an unavailable source returns a zero-
// entropy payload rather than an error.
package entropy

import (
	"sync/atomic"
	"time"

	"github.com/entropysrc/esdm/crypto"
)

// Source is one entropy-source adapter, as described in spec §4.B.
type Source interface {
	// Name returns a human-readable source name, used as the seed buffer
	// contribution key and in status reporting.
	Name() string

	// Rate returns the operator's configured entropy rate for this source,
	// in bits per crypto.SecurityStrengthBits.
	Rate() int

	// Poll writes a conditioned payload into seedSlot and returns the
	// number of bits the adapter claims for it, capped at requestBits and
	// at crypto.SecurityStrengthBits. Unavailable sources return (0, nil):
	// a zero-entropy payload, not an error.
	Poll(requestBits int, seedSlot []byte) (bits int, err error)

	// FullySeeded reports whether bits credited bits from this source alone
	// would be enough to consider a DRNG fully seeded.
	FullySeeded(bits int) bool

	// Stats returns a snapshot of this source's operational counters.
	Stats() Stats
}

// PushSource is the optional push-mode extension spec §4.B describes
// ("optional add_entropy() for push-mode sources").
type PushSource interface {
	Source

	// AddEntropy mixes externally supplied data into the source's internal
	// state, crediting entropyBits bits (already accounted for by the
	// caller — e.g. the rnd_add_entropy RPC method).
	AddEntropy(data []byte, entropyBits int) error
}

// Stats is the per-source operational snapshot spec §4.H's status surface
// and SPEC_FULL.md's StatusString report on.
type Stats struct {
	Name           string
	Available      bool
	BytesGenerated uint64
	Errors         uint64
	LastSuccess    time.Time
}

// counters is embedded by every adapter below to provide the atomic
// bookkeeping Stats() reports, mirroring the bytesGenerated/errors/
// lastSuccess fields of witnessd's hardware.OSEntropySource.
type counters struct {
	bytesGenerated atomic.Uint64
	errors         atomic.Uint64
	lastSuccess    atomic.Int64 // unix nanoseconds
}

func (c *counters) recordSuccess(n int) {
	c.bytesGenerated.Add(uint64(n))
	c.lastSuccess.Store(time.Now().UnixNano())
}

func (c *counters) recordError() {
	c.errors.Add(1)
}

func (c *counters) snapshot(name string, available bool) Stats {
	ns := c.lastSuccess.Load()
	var last time.Time
	if ns != 0 {
		last = time.Unix(0, ns)
	}
	return Stats{
		Name:           name,
		Available:      available,
		BytesGenerated: c.bytesGenerated.Load(),
		Errors:         c.errors.Load(),
		LastSuccess:    last,
	}
}

// capBits caps a claimed bit count at the DRBG security strength, per spec
// §4.C ("The accountant caps any per-source contribution at
// SECURITY_STRENGTH_BITS").
func capBits(bits int) int {
	if bits > crypto.SecurityStrengthBits {
		return crypto.SecurityStrengthBits
	}
	if bits < 0 {
		return 0
	}
	return bits
}

// condition hashes raw into a fixed-size, whitened payload sized to fit
// seedSlot, using h. Every adapter conditions its raw sample this way before
// returning it, matching spec §3's "payload[s] is a conditioned byte string
// (typically a hash output)".
func condition(h crypto.Hash, raw []byte, seedSlot []byte) int {
	ctx, err := h.Alloc()
	if err != nil {
		return 0
	}
	defer h.Dealloc(ctx)

	digest := make([]byte, h.DigestSize())
	n, err := h.Final(ctx, raw, digest)
	if err != nil {
		return 0
	}
	return copy(seedSlot, digest[:n])
}
