// Copyright (c) 2024-2026 The ESDM Authors
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

// Package crypto defines the pluggable cryptographic callback contracts the
// DRNG manager seeds and generates through, and ships the default
// implementations used when a caller does not supply its own.
//
// The contracts intentionally mirror a C-style callback vtable (alloc / seed /
// generate / dealloc / selftest) rather than a single rich interface, because
// that is the shape the ESDM manager swaps at runtime: a Hash callback can be
// replaced independently of a DRBG callback, and either can fail its
// self-test without touching the other.
package crypto

import "errors"

// SecurityStrengthBits is the DRBG security strength this implementation is
// built around (SP 800-90A/B/C "256-bit" profile).
const SecurityStrengthBits = 256

// SecurityStrengthBytes is SecurityStrengthBits expressed in bytes.
const SecurityStrengthBytes = SecurityStrengthBits / 8

var (
	// ErrSeedFailed is returned by DRBG.Seed when the underlying primitive
	// rejects a seed. The caller must leave DRBG state no worse than before
	// the call and is responsible for latching a force-reseed flag.
	ErrSeedFailed = errors.New("crypto: seed operation failed")

	// ErrShortGenerate is returned by DRBG.Generate when fewer bytes than
	// requested were produced. Treated as fatal for that generate call.
	ErrShortGenerate = errors.New("crypto: short generate output")

	// ErrSelfTestFailed indicates a Hash or DRBG power-on self-test did not
	// reproduce its known-answer vector.
	ErrSelfTestFailed = errors.New("crypto: self-test failed")
)

// Hash is the pluggable conditioning-hash callback described in spec §4.A.
//
// Alloc and Dealloc bracket the lifetime of one hash context; Final absorbs a
// message and emits the digest. Implementations must be safe to call
// concurrently provided each goroutine owns a distinct context returned by
// Alloc.
type Hash interface {
	// Alloc returns a new, zeroed hash context.
	Alloc() (any, error)

	// Final absorbs msg and writes the digest into out, returning the number
	// of digest bytes written.
	Final(ctx any, msg []byte, out []byte) (int, error)

	// Dealloc releases a context returned by Alloc.
	Dealloc(ctx any)

	// DigestSize returns the number of bytes Final writes.
	DigestSize() int

	// SelfTest runs a known-answer test of the hash primitive. A nil
	// implementation is treated as "no self-test required".
	SelfTest() error
}

// DRBG is the pluggable deterministic-random-bit-generator callback
// described in spec §4.A.
//
// Seed returns a non-nil error on failure; a failed Seed must leave state
// unchanged from the caller's perspective. Generate returns the number of
// bytes actually produced; a short result (n < len(out)) must be treated by
// the caller as a fault.
type DRBG interface {
	// Alloc constructs a new DRBG state seeded from the OS entropy source,
	// sized for securityStrengthBytes of security strength.
	Alloc(securityStrengthBytes int) (any, error)

	// Seed injects buf into state, returning ErrSeedFailed (or a wrapped
	// variant) on failure.
	Seed(state any, buf []byte) error

	// Generate fills out with pseudo-random bytes, returning the number of
	// bytes written and an error on fault.
	Generate(state any, out []byte) (int, error)

	// Dealloc releases a state returned by Alloc.
	Dealloc(state any)

	// SelfTest runs a known-answer test of the DRBG primitive.
	SelfTest() error
}
