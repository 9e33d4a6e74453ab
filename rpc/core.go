// Copyright (c) 2024-2026 The ESDM Authors
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

package rpc

import (
	"context"
	"fmt"

	"github.com/entropysrc/esdm/config"
	"github.com/entropysrc/esdm/drng"
	"github.com/entropysrc/esdm/entropy"
	"github.com/entropysrc/esdm/seeding"
	"github.com/entropysrc/esdm/state"
)

// rpcNode is the DRNG node the RPC layer's single-process generate calls are
// affinitised to. The real daemon derives curr_node() from the OS
// scheduler (spec §9); this layer has no such collaborator, so it always
// asks the manager for node 0, which config.Config.CurrNode intersects with
// MaxNodes the same way any other caller's node id would be.
const rpcNode = 0

// Core implements the RPC method set described in spec §4.H by calling
// directly into the DRNG manager, state machine, seeding scheduler, entropy
// sources, and configuration this daemon process already holds — there is
// no intermediate network hop between Core and the rest of the package
// graph, only between a client and Core.
type Core struct {
	cfg     *config.Config
	manager *drng.Manager
	machine *state.Machine
	sched   *seeding.Scheduler
	sources []entropy.Source
	aux     *entropy.AuxSource

	unprivThreads int
}

// NewCore wires a Core to the rest of the daemon's components. aux is the
// push-mode auxiliary source rnd_add_entropy/write_data feed; it must also
// appear in sources so the scheduler polls it like any other source.
func NewCore(cfg *config.Config, manager *drng.Manager, machine *state.Machine, sched *seeding.Scheduler, sources []entropy.Source, aux *entropy.AuxSource, unprivThreads int) *Core {
	return &Core{
		cfg:           cfg,
		manager:       manager,
		machine:       machine,
		sched:         sched,
		sources:       sources,
		aux:           aux,
		unprivThreads: unprivThreads,
	}
}

// generate runs the caller-side half of spec §4.F's reseed interlock
// ("a generator that sees must_reseed tries the pool lock; on success it
// reseeds, on failure it just sets force_reseed and continues") before
// delegating to the instance's own Generate, serving exactly one chunk per
// call. Requests for more than MaxPayloadBytes are rejected with
// ErrInvalidArgument; a client that wants more must call again.
func (c *Core) generate(inst *drng.Instance, n int) ([]byte, error) {
	if n < 0 || n > MaxPayloadBytes {
		return nil, ErrInvalidArgument
	}

	c.sched.Run(inst)

	out := make([]byte, n)
	got, err := inst.Generate(out, c.cfg.DRNGMaxWithoutReseed())
	if err != nil {
		return nil, err
	}
	return out[:got], nil
}

// GetRandomBytes implements the unprivileged get_random_bytes method: it
// returns immediately with whatever the DRNG can deliver, without waiting
// for any state-machine threshold.
func (c *Core) GetRandomBytes(n int) ([]byte, error) {
	if !c.manager.Avail() {
		return nil, drng.ErrUnsupported
	}
	return c.generate(c.manager.NodeInstance(rpcNode), n)
}

// GetRandomBytesMin implements get_random_bytes_min: it blocks until the
// state machine reaches at least MinSeeded before generating.
func (c *Core) GetRandomBytesMin(ctx context.Context, n int) ([]byte, error) {
	if err := c.machine.SleepWhileNonMinSeeded(ctx); err != nil {
		return nil, err
	}
	return c.generate(c.manager.NodeInstance(rpcNode), n)
}

// GetRandomBytesFull implements get_random_bytes_full: it blocks until the
// state machine reaches Operational, or returns ErrWouldBlock immediately
// when nonblock is set and the service is not yet operational.
func (c *Core) GetRandomBytesFull(ctx context.Context, n int, nonblock bool) ([]byte, error) {
	if err := c.machine.SleepWhileNonoperational(ctx, nonblock); err != nil {
		return nil, err
	}
	return c.generate(c.manager.NodeInstance(rpcNode), n)
}

// GetEntLvl implements get_ent_lvl: the aggregate configured entropy rate
// across every source (spec §3's "entropy rate" data model), used by
// callers that want a conservative read of how much entropy this daemon
// believes it is collecting per poll round rather than a live pool counter.
func (c *Core) GetEntLvl() int {
	total := 0
	for _, src := range c.sources {
		total += src.Rate()
	}
	return total
}

// RndGetEntCnt implements rnd_get_ent_cnt, the unprivileged RNDGETENTCNT
// translation (spec §6): identical to GetEntLvl, exposed under its own
// method name because the device frontend's ioctl and the status-query RPC
// are, in the upstream daemon, two independent entry points to the same
// number.
func (c *Core) RndGetEntCnt() int { return c.GetEntLvl() }

// GetMinReseedSecs implements get_min_reseed_secs, reporting the time-based
// must_reseed trigger (spec §4.F, default 600s).
func (c *Core) GetMinReseedSecs() int {
	return int(drng.ReseedMaxTime.Seconds())
}

// WriteData implements write_data: unprivileged callers may mix data into
// the auxiliary pool, but (matching classic /dev/random write semantics,
// where writing entropy is always available but never self-credited) it
// never credits entropy on its own — only rnd_add_entropy, which carries an
// explicit entropy estimate from a privileged caller, can do that.
func (c *Core) WriteData(data []byte) (int, error) {
	if len(data) > MaxPayloadBytes {
		return 0, ErrInvalidArgument
	}
	if err := c.aux.AddEntropy(data, 0); err != nil {
		return 0, fmt.Errorf("rpc: write_data: %w", err)
	}
	return len(data), nil
}

// RndAddToEntCnt implements the privileged rnd_add_to_ent_cnt/RNDADDTOENTCNT
// translation: credits bits of entropy to the auxiliary pool without
// supplying any data.
func (c *Core) RndAddToEntCnt(bits int) error {
	if bits < 0 {
		return ErrInvalidArgument
	}
	return c.aux.AddEntropy(nil, bits)
}

// RndAddEntropy implements the privileged rnd_add_entropy/RNDADDENTROPY
// translation, including SPEC_FULL §6's FIPS write-back rule: in FIPS mode
// externally supplied data is mixed in but credited zero bits, since the
// caller's entropy estimate cannot itself be validated (spec §8's
// "Write-back" scenario).
func (c *Core) RndAddEntropy(data []byte, entropyBits int) (int, error) {
	if entropyBits < 0 || len(data) > MaxPayloadBytes {
		return 0, ErrInvalidArgument
	}

	credited := entropyBits
	if c.cfg.FIPSEnabled() {
		credited = 0
	}
	if err := c.aux.AddEntropy(data, credited); err != nil {
		return 0, fmt.Errorf("rpc: rnd_add_entropy: %w", err)
	}
	return len(data), nil
}

// RndClearPool implements the privileged rnd_clear_pool/RNDZAPENTCNT
// translation: a full manager reset (spec §4.E's reset operation).
func (c *Core) RndClearPool() {
	c.manager.Reset()
}

// RndReseedCRNG implements the privileged rnd_reseed_crng/RNDRESEEDCRNG
// translation: spec §4.E's force_reseed operation.
func (c *Core) RndReseedCRNG() {
	c.manager.ForceReseed()
}

// Status implements the unprivileged status method, returning the
// human-readable report SPEC_FULL §6 describes (rpc.StatusString).
func (c *Core) Status() string {
	return StatusString(c)
}
