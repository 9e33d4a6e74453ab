// Copyright (c) 2024-2026 The ESDM Authors
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

package drng

import (
	"sync"
	"sync/atomic"

	"github.com/entropysrc/esdm/config"
	"github.com/entropysrc/esdm/crypto"
)

// Manager holds the lazily populated per-node DRNG array described in spec
// §4.E, the always-present initial instance, and the atomic-fallback
// instance. The seeding scheduler reseeds the atomic instance alongside
// every instance it seeds; NodeInstance never selects it.
type Manager struct {
	cfg    *config.Config
	drngCB crypto.DRBG
	hashCB crypto.Hash

	// poolLock is the single global non-blocking reseed trylock spec §3/§4.F
	// describes: at most one reseed may run system-wide at any instant.
	poolLock sync.Mutex

	initMu sync.Mutex
	init   *Instance
	avail  atomic.Bool

	nodesMu    sync.RWMutex
	nodes      []*Instance
	atomicInst *Instance

	seedTargetBits atomic.Int64

	// onReset is invoked by Reset after every instance has been reset,
	// giving the state-machine package a hook to restart its own state
	// without drng importing state (which would create a cycle).
	onReset func()
}

// NewManager constructs a Manager bound to cfg, using drngCB/hashCB as the
// default callback pair for every instance it allocates.
func NewManager(cfg *config.Config, drngCB crypto.DRBG, hashCB crypto.Hash) *Manager {
	m := &Manager{cfg: cfg, drngCB: drngCB, hashCB: hashCB}
	m.seedTargetBits.Store(config.DefaultInitEntropyBits)
	return m
}

// SetResetHook registers fn to run at the end of Reset.
func (m *Manager) SetResetHook(fn func()) { m.onReset = fn }

// Avail reports whether the init instance has been allocated and passed its
// self-tests.
func (m *Manager) Avail() bool { return m.avail.Load() }

// SeedTargetBits returns the seed target the seeding scheduler uses when
// reseeding an instance that is already fully seeded. Reset sets it back to
// config.DefaultInitEntropyBits; only SetSeedTargetBits changes it otherwise.
func (m *Manager) SeedTargetBits() int { return int(m.seedTargetBits.Load()) }

// SetSeedTargetBits updates the active seed target.
func (m *Manager) SetSeedTargetBits(bits int) { m.seedTargetBits.Store(int64(bits)) }

// Initialise implements spec §4.E's initialise operation: idempotent,
// allocates the init and atomic-fallback DRBG instances using the default
// callback pair, and runs both selftests before marking avail true. A
// selftest failure is fatal and leaves avail false.
func (m *Manager) Initialise() error {
	m.initMu.Lock()
	defer m.initMu.Unlock()

	if m.init != nil {
		return nil
	}

	if err := m.hashCB.SelfTest(); err != nil {
		return err
	}
	if err := m.drngCB.SelfTest(); err != nil {
		return err
	}

	init, err := NewInstance("init", m.drngCB, m.hashCB, crypto.SecurityStrengthBytes)
	if err != nil {
		return err
	}
	atomicInst, err := NewInstance("atomic", m.drngCB, m.hashCB, crypto.SecurityStrengthBytes)
	if err != nil {
		init.Finalize()
		return err
	}

	m.nodesMu.Lock()
	m.init = init
	m.atomicInst = atomicInst
	m.nodes = make([]*Instance, m.cfg.MaxNodes())
	m.nodesMu.Unlock()

	m.avail.Store(true)
	return nil
}

// NodeInstance implements spec §4.E's node_instance(): the init instance is
// used whenever the per-node instance does not exist or is not fully
// seeded, else the per-node instance.
func (m *Manager) NodeInstance(node int) *Instance {
	idx := m.cfg.CurrNode(node)

	m.nodesMu.RLock()
	var inst *Instance
	if idx >= 0 && idx < len(m.nodes) {
		inst = m.nodes[idx]
	}
	m.nodesMu.RUnlock()

	if inst != nil && inst.FullySeeded() {
		return inst
	}
	return m.Init()
}

// Init returns the always-present initial instance.
func (m *Manager) Init() *Instance {
	m.initMu.Lock()
	defer m.initMu.Unlock()
	return m.init
}

// Atomic returns the atomic-fallback instance.
func (m *Manager) Atomic() *Instance {
	m.nodesMu.RLock()
	defer m.nodesMu.RUnlock()
	return m.atomicInst
}

// EnsureNode lazily allocates the per-node instance for node, returning the
// existing one if already present.
func (m *Manager) EnsureNode(node int) (*Instance, error) {
	idx := m.cfg.CurrNode(node)

	m.nodesMu.RLock()
	if idx < len(m.nodes) && m.nodes[idx] != nil {
		inst := m.nodes[idx]
		m.nodesMu.RUnlock()
		return inst, nil
	}
	m.nodesMu.RUnlock()

	m.nodesMu.Lock()
	defer m.nodesMu.Unlock()
	if idx < len(m.nodes) && m.nodes[idx] != nil {
		return m.nodes[idx], nil
	}

	inst, err := NewInstance("node", m.drngCB, m.hashCB, crypto.SecurityStrengthBytes)
	if err != nil {
		return nil, err
	}
	if idx < len(m.nodes) {
		m.nodes[idx] = inst
	}
	return inst, nil
}

// NotFullySeededNode returns the first allocated per-node instance that is
// not yet fully seeded, for drng_seed_work's node-selection rule (spec
// §4.F). It returns nil, false if every allocated per-node instance is
// fully seeded or no per-node array exists.
func (m *Manager) NotFullySeededNode() (*Instance, bool) {
	m.nodesMu.RLock()
	defer m.nodesMu.RUnlock()
	for _, inst := range m.nodes {
		if inst != nil && !inst.FullySeeded() {
			return inst, true
		}
	}
	return nil, false
}

// GetInstances begins the read-borrow discipline spec §4.E describes
// ("get_instances()/put_instances() ... callers must pair them"), returning
// every live instance: init, every allocated per-node instance, and the
// atomic fallback. Callers must call PutInstances when done iterating.
func (m *Manager) GetInstances() []*Instance {
	m.nodesMu.RLock()

	out := make([]*Instance, 0, len(m.nodes)+2)
	if m.init != nil {
		out = append(out, m.init)
	}
	for _, inst := range m.nodes {
		if inst != nil {
			out = append(out, inst)
		}
	}
	if m.atomicInst != nil {
		out = append(out, m.atomicInst)
	}
	return out
}

// PutInstances ends the read-borrow started by GetInstances.
func (m *Manager) PutInstances() {
	m.nodesMu.RUnlock()
}

// Reset implements spec §4.E's reset operation: every instance is reset,
// the seed target is lowered back to the initial threshold, and the
// registered state-restart hook runs.
func (m *Manager) Reset() {
	instances := m.GetInstances()
	for _, inst := range instances {
		inst.Reset()
	}
	m.PutInstances()

	m.SetSeedTargetBits(config.DefaultInitEntropyBits)

	if m.onReset != nil {
		m.onReset()
	}
}

// ForceReseed implements spec §4.E's force_reseed operation: if the init
// instance is currently past its reseed threshold, only the init instance
// is forced; otherwise every per-node instance and the atomic instance are
// forced, leaving init's own schedule untouched.
func (m *Manager) ForceReseed() {
	init := m.Init()
	if init == nil {
		return
	}

	if init.RequestsRemaining() <= 0 {
		init.SetForceReseed()
		return
	}

	instances := m.GetInstances()
	defer m.PutInstances()
	for _, inst := range instances {
		if inst == init {
			continue
		}
		inst.SetForceReseed()
	}
}

// Finalize deallocates the DRBG state of every instance and marks the
// manager unavailable.
func (m *Manager) Finalize() {
	instances := m.GetInstances()
	for _, inst := range instances {
		inst.Finalize()
	}
	m.PutInstances()
	m.avail.Store(false)
}

// PoolTryLock attempts to acquire the global reseed trylock, returning
// false immediately if another reseed is already in flight (spec §4.F's
// concurrency interlock).
func (m *Manager) PoolTryLock() bool {
	return m.poolLock.TryLock()
}

// PoolUnlock releases the global reseed trylock.
func (m *Manager) PoolUnlock() {
	m.poolLock.Unlock()
}
