// Copyright (c) 2024-2026 The ESDM Authors
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

// Package drng implements the DRNG instance and manager described in
// spec §4.D/§4.E: a single generate/inject state machine per node, and a
// lazily populated per-node array that falls back to an always-present
// initial instance.
//
// Each instance serializes seed and generate calls against its DRBG
// callback with one mutex; its counters and flags are atomics that can be
// read without that mutex, and the hash callback sits behind its own
// reader/writer lock.
package drng

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/entropysrc/esdm/crypto"
)

// ErrUnsupported reports that the manager is not available (Manager.Avail
// is false). rpc.Core.GetRandomBytes returns it; Instance.Generate itself
// does not.
var ErrUnsupported = drngError("drng: instance unavailable")

// ErrFault is returned by Generate when the underlying DRBG callback
// reports a short or failed generate (spec §4.D: "a negative or zero return
// aborts with -FAULT").
var ErrFault = drngError("drng: generate fault")

type drngError string

func (e drngError) Error() string { return string(e) }

// MaxRequestSize bounds a single chunk passed to the DRBG generate
// callback, the implementation constant spec §4.D names DRNG_MAX_REQSIZE.
// This package always serves exactly one chunk per Generate call and
// leaves looping to the caller.
const MaxRequestSize = 1 << 20

// ReseedThreshold is the DRNG_RESEED_THRESH ceiling: the number of generate
// calls an instance may serve before a reseed is due.
const ReseedThreshold = 1 << 12

// ReseedMaxTime is the time-based must_reseed trigger (spec §4.F, default
// 600 seconds).
const ReseedMaxTime = 600 * time.Second

// Instance is one DRNG instance, spec §3's "DRNG instance" data model.
type Instance struct {
	drbgMu sync.Mutex // serializes seed/generate against the DRBG callback
	state  any        // opaque DRBG state, owned by drngCB

	hashMu sync.RWMutex
	hashCB crypto.Hash

	drngCB crypto.DRBG

	requests                 atomic.Int64
	requestsSinceFullySeeded atomic.Uint64
	lastSeeded               atomic.Int64 // unix seconds
	fullySeeded              atomic.Bool
	forceReseed              atomic.Bool

	label string
}

// NewInstance allocates an Instance using drngCB and hashCB, per spec §4.A's
// callback-pair contract. securityStrengthBytes sizes the DRBG's internal
// key material.
func NewInstance(label string, drngCB crypto.DRBG, hashCB crypto.Hash, securityStrengthBytes int) (*Instance, error) {
	state, err := drngCB.Alloc(securityStrengthBytes)
	if err != nil {
		return nil, err
	}

	inst := &Instance{
		state:  state,
		drngCB: drngCB,
		hashCB: hashCB,
		label:  label,
	}
	inst.requests.Store(ReseedThreshold)
	inst.forceReseed.Store(true)
	return inst, nil
}

// Label returns the instance's diagnostic name ("init", "atomic" or "node").
func (i *Instance) Label() string { return i.label }

// FullySeeded reports whether this instance has been injected with at
// least SecurityStrengthBits of credited entropy since its last demotion.
func (i *Instance) FullySeeded() bool { return i.fullySeeded.Load() }

// ForceReseed reports (and does not clear) the force-reseed flag.
func (i *Instance) ForceReseed() bool { return i.forceReseed.Load() }

// RequestsRemaining reports the generate calls left before a reseed is due,
// without decrementing it the way MustReseed does.
func (i *Instance) RequestsRemaining() int64 { return i.requests.Load() }

// SetForceReseed latches the force-reseed flag, used by Manager.ForceReseed
// and by Generate's own must_reseed failure path.
func (i *Instance) SetForceReseed() { i.forceReseed.Store(true) }

// MustReseed implements spec §4.F's must_reseed predicate: true when
// decrementing requests reaches zero, force_reseed is set, or more than
// ReseedMaxTime has elapsed since the last seed.
func (i *Instance) MustReseed() bool {
	if i.requests.Add(-1) <= 0 {
		return true
	}
	if i.forceReseed.Load() {
		return true
	}
	last := i.lastSeeded.Load()
	if last == 0 {
		return true
	}
	return time.Since(time.Unix(last, 0)) > ReseedMaxTime
}

// Inject implements spec §4.D's inject operation: it delegates to the DRBG
// seed callback under the instance lock and updates the bookkeeping
// counters according to whether the caller asserts the seed met the full-
// seed threshold.
func (i *Instance) Inject(seed []byte, fullySeededFlag bool) error {
	i.drbgMu.Lock()
	defer i.drbgMu.Unlock()

	if err := i.drngCB.Seed(i.state, seed); err != nil {
		i.forceReseed.Store(true)
		return err
	}

	i.requests.Store(ReseedThreshold)
	i.lastSeeded.Store(time.Now().Unix())
	i.forceReseed.Store(false)

	if fullySeededFlag {
		i.requestsSinceFullySeeded.Store(0)
		i.fullySeeded.Store(true)
	} else if i.fullySeeded.Load() {
		i.requestsSinceFullySeeded.Add(1)
	}

	return nil
}

// AdvanceLastSeeded pushes last_seeded forward by d, used by the seeding
// scheduler's per-node stagger (spec §4.F: "last_seeded is advanced by
// node * 60 seconds").
func (i *Instance) AdvanceLastSeeded(d time.Duration) {
	i.lastSeeded.Add(int64(d / time.Second))
}

// SwapHash atomically swaps the hash callback under the reader/writer lock
// spec §7 describes ("many readers may generate concurrently while a
// writer swaps primitives").
func (i *Instance) SwapHash(hashCB crypto.Hash) {
	i.hashMu.Lock()
	defer i.hashMu.Unlock()
	i.hashCB = hashCB
}

// Hash returns the current hash callback.
func (i *Instance) Hash() crypto.Hash {
	i.hashMu.RLock()
	defer i.hashMu.RUnlock()
	return i.hashCB
}

// Generate implements spec §4.D's generate operation. It serves at most
// MaxRequestSize bytes per call — callers that need more must loop — counts
// the call in requestsSinceFullySeeded, and demotes fully_seeded once that
// count exceeds maxWithoutReseed. A short or failed DRBG generate returns
// ErrFault.
func (i *Instance) Generate(out []byte, maxWithoutReseed int64) (int, error) {
	if len(out) == 0 {
		return 0, nil
	}
	if len(out) > MaxRequestSize {
		out = out[:MaxRequestSize]
	}

	if int64(i.requestsSinceFullySeeded.Add(1)) > maxWithoutReseed {
		i.fullySeeded.Store(false)
	}

	i.drbgMu.Lock()
	defer i.drbgMu.Unlock()

	n, err := i.drngCB.Generate(i.state, out)
	if err != nil || n != len(out) {
		return 0, ErrFault
	}
	return n, nil
}

// Reset clears counters, demotes fully_seeded, and latches force_reseed,
// implementing the per-instance half of spec §4.E's Manager.reset.
func (i *Instance) Reset() {
	i.drbgMu.Lock()
	defer i.drbgMu.Unlock()

	i.requests.Store(ReseedThreshold)
	i.requestsSinceFullySeeded.Store(0)
	i.lastSeeded.Store(0)
	i.fullySeeded.Store(false)
	i.forceReseed.Store(true)
}

// Finalize deallocates the DRBG state.
func (i *Instance) Finalize() {
	i.drbgMu.Lock()
	defer i.drbgMu.Unlock()
	i.drngCB.Dealloc(i.state)
}
