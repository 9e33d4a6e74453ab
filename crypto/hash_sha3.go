// Copyright (c) 2024-2026 The ESDM Authors
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

package crypto

import "golang.org/x/crypto/sha3"

// DefaultHash is the conditioning-hash callback used when no pluggable Hash
// is supplied. It wraps SHA3-512 (golang.org/x/crypto/sha3), giving every
// entropy-source adapter's raw sample a fixed-size, whitened payload before
// the accountant credits it — the "conditioned byte string" spec §3 requires
// a seed buffer contribution to carry.
type DefaultHash struct{}

// hashContext wraps a *sha3.state so Alloc/Final/Dealloc can be expressed in
// terms of the opaque `any` contexts the Hash interface trades in.
type hashContext struct {
	h sha3State
}

// sha3State is the subset of hash.Hash sha3.New512 returns that this package
// needs; kept as its own type so hashContext does not leak the concrete
// golang.org/x/crypto/sha3 type through the crypto.Hash interface.
type sha3State interface {
	Write(p []byte) (int, error)
	Sum(b []byte) []byte
	Reset()
}

// Alloc returns a new SHA3-512 context.
func (DefaultHash) Alloc() (any, error) {
	return &hashContext{h: sha3.New512()}, nil
}

// Final absorbs msg and writes the 64-byte SHA3-512 digest into out.
func (DefaultHash) Final(ctx any, msg []byte, out []byte) (int, error) {
	hc := ctx.(*hashContext)
	hc.h.Reset()
	hc.h.Write(msg)
	digest := hc.h.Sum(nil)
	return copy(out, digest), nil
}

// Dealloc is a no-op: the SHA3 state holds no resources beyond what the GC
// already reclaims, but the method exists to satisfy the callback contract
// and to give future pluggable hashes (e.g. hardware-offloaded ones) a place
// to release them.
func (DefaultHash) Dealloc(ctx any) {}

// DigestSize returns the SHA3-512 digest size in bytes.
func (DefaultHash) DigestSize() int { return 64 }

// SelfTest runs the SHA3-512 known-answer test.
func (DefaultHash) SelfTest() error {
	return sha3_512KnownAnswerTest()
}

// hashSHA3_512 is a free function used by SelfTest to avoid constructing a
// full DefaultHash/context pair for a one-shot digest.
func hashSHA3_512(msg []byte) []byte {
	h := sha3.Sum512(msg)
	return h[:]
}
