// Copyright (c) 2024-2026 The ESDM Authors
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

package crypto

import (
	"fmt"

	ctrdrbg "github.com/sixafter/aes-ctr-drbg"
)

// DefaultDRBG is the AES-CTR-DRBG callback used when no pluggable DRBG is
// supplied. It wraps github.com/sixafter/aes-ctr-drbg's pool-backed
// NIST SP 800-90A §10.2.1 CTR_DRBG directly — the teacher's own direct
// dependency for this concern — rather than reimplementing AES-CTR keying
// on top of crypto/aes/crypto/cipher.
//
// The library's own Seed primitive is "Reseed from fresh system entropy,
// optionally mixed with caller-supplied additional input"; there is no
// exported call that replaces the internal key/counter from caller material
// alone. Seed below drives that additional-input channel with the
// accountant's seed buffer, so every Seed call both consumes the collected
// entropy-source material and pulls independent system entropy — strictly
// more conservative than a buffer-only reseed, and the only reseed path the
// library's public API exposes.
type DefaultDRBG struct{}

// keySizeFor maps a requested security strength in bytes onto the nearest
// AES key size the library supports (AES-128/192/256).
func keySizeFor(securityStrengthBytes int) ctrdrbg.KeySize {
	switch {
	case securityStrengthBytes <= 16:
		return ctrdrbg.KeySize128
	case securityStrengthBytes <= 24:
		return ctrdrbg.KeySize192
	default:
		return ctrdrbg.KeySize256
	}
}

// Alloc constructs a new pool-backed AES-CTR-DRBG reader, seeded from the OS
// entropy source by the library itself. securityStrengthBytes selects the
// AES key size: 32 bytes of security strength (SP 800-90A "256-bit") maps to
// AES-256.
func (DefaultDRBG) Alloc(securityStrengthBytes int) (any, error) {
	r, err := ctrdrbg.NewReader(
		ctrdrbg.WithKeySize(keySizeFor(securityStrengthBytes)),
		ctrdrbg.WithEnableKeyRotation(true),
	)
	if err != nil {
		return nil, fmt.Errorf("ctrdrbg: alloc: %w", err)
	}
	return r, nil
}

// Seed mixes buf into the DRBG as NIST "additional input" via Reseed, which
// also draws fresh system entropy per the library's construction. An empty
// buf is rejected: the entropy-source aggregate must never silently reseed
// this instance from OS entropy alone without the accountant's contribution.
func (DefaultDRBG) Seed(state any, buf []byte) error {
	r, ok := state.(ctrdrbg.Interface)
	if !ok {
		return fmt.Errorf("ctrdrbg: seed: %w: wrong state type", ErrSeedFailed)
	}
	if len(buf) == 0 {
		return fmt.Errorf("ctrdrbg: seed: %w: empty seed material", ErrSeedFailed)
	}
	if err := r.Reseed(buf); err != nil {
		return fmt.Errorf("ctrdrbg: seed: %w: %v", ErrSeedFailed, err)
	}
	return nil
}

// Generate fills out via the pooled DRBG's io.Reader, which always returns
// len(out) bytes on a nil error (short reads are not part of the library's
// contract, unlike the raw io.Reader interface in general).
func (DefaultDRBG) Generate(state any, out []byte) (int, error) {
	r, ok := state.(ctrdrbg.Interface)
	if !ok {
		return 0, fmt.Errorf("ctrdrbg: generate: wrong state type")
	}
	if len(out) == 0 {
		return 0, nil
	}
	return r.Read(out)
}

// Dealloc is a no-op: the library pools its internal DRBG instances behind
// sync.Pool and holds no handle this caller can release early.
func (DefaultDRBG) Dealloc(state any) {}

// SelfTest runs the library's own FIPS 140-2 AES-CTR known-answer test.
func (DefaultDRBG) SelfTest() error {
	if err := ctrdrbg.RunSelfTests(); err != nil {
		return fmt.Errorf("%w: %v", ErrSelfTestFailed, err)
	}
	return nil
}
