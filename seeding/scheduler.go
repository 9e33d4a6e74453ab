// Copyright (c) 2024-2026 The ESDM Authors
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

// Package seeding implements the seeding scheduler described in spec §4.F:
// it polls the entropy accountant to build a seed buffer, injects it into a
// DRNG instance and the atomic fallback, and drives the operational state
// machine's transitions as credited entropy accumulates.
package seeding

import (
	"time"

	"github.com/entropysrc/esdm/config"
	"github.com/entropysrc/esdm/crypto"
	"github.com/entropysrc/esdm/drng"
	"github.com/entropysrc/esdm/entropy"
	"github.com/entropysrc/esdm/state"
)

// Scheduler ties the entropy accountant, the DRNG manager, and the state
// machine together, grounded on spec §4.F's seed()/drng_seed_work()
// description.
type Scheduler struct {
	cfg     *config.Config
	manager *drng.Manager
	machine *state.Machine
	acc     *entropy.Accountant
	sources []entropy.Source
}

// New constructs a Scheduler. sources is the fixed set of entropy-source
// adapters polled on every seeding round.
func New(cfg *config.Config, manager *drng.Manager, machine *state.Machine, sources []entropy.Source) *Scheduler {
	manager.SetResetHook(machine.Reset)
	return &Scheduler{
		cfg:     cfg,
		manager: manager,
		machine: machine,
		acc:     entropy.NewAccountant(cfg),
		sources: sources,
	}
}

// Seed implements spec §4.F's seed(drng) operation: build a seed buffer
// sized to inst's current seeding target, inject it into inst and into the
// manager's atomic-fallback instance, and advance the state machine.
func (s *Scheduler) Seed(inst *drng.Instance) error {
	target := s.targetFor(inst)

	buf, credited := s.acc.Collect(s.sources, target)
	defer buf.Zero()

	fullSeed := entropy.IsFullSeed(credited)

	raw := buf.Concat()
	defer zeroBytes(raw)

	if err := inst.Inject(raw, fullSeed); err != nil {
		return err
	}

	if atomicInst := s.manager.Atomic(); atomicInst != nil && atomicInst != inst {
		// Reuse the same seed material for the atomic-fallback instance
		// rather than spending a second accountant round, per spec §4.F
		// step 4 ("inject into the atomic-fallback DRNG").
		_ = atomicInst.Inject(raw, fullSeed)
	}

	s.advanceState(credited)
	return nil
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

func (s *Scheduler) targetFor(inst *drng.Instance) int {
	if inst.FullySeeded() {
		return s.manager.SeedTargetBits()
	}
	return crypto.SecurityStrengthBits
}

func (s *Scheduler) advanceState(credited int) {
	if entropy.IsMinSeed(credited) {
		s.machine.Advance(state.MinSeeded)
	}
	if entropy.IsFullSeed(credited) {
		s.machine.Advance(state.FullySeeded)
		if s.manager.Avail() {
			s.machine.Advance(state.Operational)
		}
	}
}

// nodeStagger is the per-node must_reseed stagger spec §4.F names ("after
// each successful per-node seed, last_seeded is advanced by node * 60
// seconds to stagger subsequent reseed deadlines").
const nodeStagger = 60 * time.Second

// DrngSeedWork implements spec §4.F's drng_seed_work(): it selects the
// first not-fully-seeded per-node instance and seeds it; if every per-node
// instance is fully seeded (or no per-node array has been populated yet),
// it seeds the init instance instead. node is supplied by the caller and
// only sets the stagger applied after a per-node seed; it is not derived
// from which instance was selected, and no stagger is applied when the
// init instance is seeded.
func (s *Scheduler) DrngSeedWork(node int) error {
	if inst, ok := s.manager.NotFullySeededNode(); ok {
		if err := s.Seed(inst); err != nil {
			return err
		}
		inst.AdvanceLastSeeded(time.Duration(node) * nodeStagger)
		return nil
	}

	return s.Seed(s.manager.Init())
}

// Run drives one must_reseed check and conditional reseed for inst,
// implementing the "pool trylock" half of spec §4.F's concurrency
// interlock from the caller side. It is used by the background seeding
// goroutine and by rpc.Core's generate path before each
// drng.Instance.Generate call: when inst.MustReseed() is true, Run
// tries the global pool lock; on success it reseeds and releases the lock,
// on failure it just marks inst for a future retry.
func (s *Scheduler) Run(inst *drng.Instance) {
	if !inst.MustReseed() {
		return
	}

	if !s.manager.PoolTryLock() {
		inst.SetForceReseed()
		return
	}
	defer s.manager.PoolUnlock()

	_ = s.Seed(inst)
}
