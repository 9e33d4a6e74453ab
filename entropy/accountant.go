// Copyright (c) 2024-2026 The ESDM Authors
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

package entropy

import (
	"github.com/entropysrc/esdm/config"
	"github.com/entropysrc/esdm/crypto"
	"github.com/entropysrc/esdm/seedbuf"
)

// Accountant implements spec §4.C: it polls a set of sources, sums what each
// one credits, applies the FIPS-mode oversampling margin, and hands back a
// seed buffer ready to pass to a DRBG's Seed.
type Accountant struct {
	cfg *config.Config
}

// NewAccountant constructs an Accountant bound to cfg, used to read the
// per-source rates and FIPS status at Collect time.
func NewAccountant(cfg *config.Config) *Accountant {
	return &Accountant{cfg: cfg}
}

// Collect polls every source with a nonzero rate in order, asking each for
// the bits still missing from requestBits (at least 1), aggregates the conditioned payloads into a seedbuf.Buffer, and
// returns the buffer alongside the total credited bits. In FIPS mode
// requestBits is raised by the oversampling margin before polling and the
// same margin is subtracted from the credited total, so a seed only counts
// as sufficient once that many bits more than the nominal target were
// collected.
//
// The caller owns the returned Buffer and must Zero it once the seed
// material has been consumed.
func (a *Accountant) Collect(sources []Source, requestBits int) (*seedbuf.Buffer, int) {
	if a.cfg.FIPSEnabled() {
		requestBits += config.DefaultOversamplingBits
	}
	buf := seedbuf.New(len(sources))
	credited := 0

	for _, src := range sources {
		rate := src.Rate()
		if rate == 0 {
			continue
		}

		remaining := requestBits - credited
		if remaining <= 0 {
			remaining = 1 // still poll to keep per-source counters live
		}

		slot := make([]byte, crypto.SecurityStrengthBytes)
		bits, err := src.Poll(remaining, slot)
		if err != nil || bits <= 0 {
			continue
		}

		payloadBytes := (bits + 7) / 8
		if payloadBytes > len(slot) {
			payloadBytes = len(slot)
		}
		buf.Add(src.Name(), slot[:payloadBytes], bits)
		credited += bits
	}

	return buf, a.creditedAfterOversampling(credited)
}

// creditedAfterOversampling applies the FIPS oversampling margin described
// in spec §4.C. Outside FIPS mode the raw credited total is returned
// unchanged.
func (a *Accountant) creditedAfterOversampling(raw int) int {
	if !a.cfg.FIPSEnabled() {
		return raw
	}
	adjusted := raw - config.DefaultOversamplingBits
	if adjusted < 0 {
		return 0
	}
	return adjusted
}

// IsFullSeed reports whether creditedBits is enough to call a DRNG fully
// seeded, per spec §4.C/§4.D's fully_seeded predicate.
func IsFullSeed(creditedBits int) bool {
	return creditedBits >= crypto.SecurityStrengthBits
}

// IsMinSeed reports whether creditedBits clears the min_seeded threshold
// described in spec §4.G.
func IsMinSeed(creditedBits int) bool {
	return creditedBits >= config.DefaultMinSeedEntropyBits
}
