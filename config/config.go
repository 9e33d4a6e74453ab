// Copyright (c) 2024-2026 The ESDM Authors
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

// Package config holds the runtime-tunable configuration record described in
// spec §4.I: per-source entropy rates, FIPS forcing, the reseed-without-full-
// seed ceiling, and the online-node cap. It follows the functional-options
// pattern used throughout the teacher package (ctrdrbg.Option, nanoid.Option):
// build a Config with New(opts...), mutate a running one through its Set*
// methods, which apply the same clamping New does.
package config

import (
	"os"
	"sync"
	"sync/atomic"

	"github.com/entropysrc/esdm/crypto"
)

// ForceFIPS represents the tri-state FIPS override described in spec §4.I.
type ForceFIPS int

const (
	// FIPSUnset defers to the environment's FIPS status.
	FIPSUnset ForceFIPS = iota
	// FIPSEnabled forces FIPS mode on regardless of environment.
	FIPSEnabled
	// FIPSDisabled forces FIPS mode off regardless of environment.
	FIPSDisabled
)

// Default tunables, mirroring the ESDM daemon's compiled-in defaults.
const (
	// DefaultMinSeedEntropyBits is the credited-entropy threshold for the
	// min_seeded state transition.
	DefaultMinSeedEntropyBits = 128

	// DefaultInitEntropyBits is the pool's entropy threshold immediately
	// after initialise()/reset(), restored by Manager.Reset.
	DefaultInitEntropyBits = DefaultMinSeedEntropyBits

	// DefaultDRNGMaxWithoutReseed is the maximum number of generate calls a
	// DRNG may serve between full seeds before fully_seeded is cleared.
	DefaultDRNGMaxWithoutReseed = 1 << 20

	// DefaultMaxNodes bounds the per-node DRNG array.
	DefaultMaxNodes = 16

	// DefaultReseedMaxTimeSeconds is the must_reseed time-based trigger
	// (spec §4.F).
	DefaultReseedMaxTimeSeconds = 600

	// DefaultOversamplingBits is the FIPS-mode oversampling margin spec §4.C
	// describes ("e.g. 128 bits").
	DefaultOversamplingBits = 128

	// DefaultCPURate, DefaultJitterRate, DefaultKernelRate and
	// DefaultSchedRate are the operator's conservative per-source entropy
	// estimates, in bits per 256-bit strength.
	DefaultCPURate    = 0
	DefaultJitterRate = 16
	DefaultKernelRate = 32
	DefaultSchedRate  = 0
)

// ForceFIPSEnvVar is the environment variable spec §6 names for forcing
// FIPS mode from outside the process.
const ForceFIPSEnvVar = "ESDM_SERVER_FORCE_FIPS"

// Config is the runtime configuration record described in spec §4.I. All
// fields are accessed through atomics so readers (the accountant, the
// scheduler) never need to take a lock to observe a consistent rate.
type Config struct {
	mu sync.Mutex

	cpuRate    atomic.Int64
	jitterRate atomic.Int64
	kernelRate atomic.Int64
	schedRate  atomic.Int64

	drngMaxWithoutReseed atomic.Int64
	maxNodes             atomic.Int64
	forceFIPS            atomic.Int64

	// onEntropyAdded is invoked whenever a rate setter runs, matching spec
	// §4.I's "Setters ... schedule an entropy addition event".
	onEntropyAdded func()
}

// Option configures a Config at construction time.
type Option func(*Config)

// WithCPURate sets the initial CPU hardware-RNG entropy rate.
func WithCPURate(bits int) Option { return func(c *Config) { c.cpuRate.Store(int64(clamp(bits))) } }

// WithJitterRate sets the initial Jitter RNG entropy rate.
func WithJitterRate(bits int) Option {
	return func(c *Config) { c.jitterRate.Store(int64(clamp(bits))) }
}

// WithKernelRate sets the initial kernel-RNG-passthrough entropy rate.
func WithKernelRate(bits int) Option {
	return func(c *Config) { c.kernelRate.Store(int64(clamp(bits))) }
}

// WithSchedRate sets the initial scheduler-entropy rate.
func WithSchedRate(bits int) Option {
	return func(c *Config) { c.schedRate.Store(int64(clamp(bits))) }
}

// WithMaxNodes sets the per-node DRNG array cap.
func WithMaxNodes(n int) Option {
	return func(c *Config) {
		if n < 1 {
			n = 1
		}
		c.maxNodes.Store(int64(n))
	}
}

// WithDRNGMaxWithoutReseed sets the reseed-without-full-seed ceiling.
func WithDRNGMaxWithoutReseed(n int64) Option {
	return func(c *Config) { c.drngMaxWithoutReseed.Store(n) }
}

// WithForceFIPS sets the FIPS override.
func WithForceFIPS(f ForceFIPS) Option {
	return func(c *Config) { c.forceFIPS.Store(int64(f)) }
}

// WithEntropyAddedCallback registers the hook invoked whenever a rate setter
// runs.
func WithEntropyAddedCallback(fn func()) Option {
	return func(c *Config) { c.onEntropyAdded = fn }
}

// New returns a Config populated with ESDM's compiled-in defaults, then
// applies opts, then applies the FIPS-mode Jitter upgrade described in
// SPEC_FULL.md §6 ("FIPS Jitter upgrade"): when FIPS is enabled and the
// configured Jitter rate is nonzero, the rate is raised to the DRBG security
// strength.
func New(opts ...Option) *Config {
	c := &Config{}
	c.cpuRate.Store(DefaultCPURate)
	c.jitterRate.Store(DefaultJitterRate)
	c.kernelRate.Store(DefaultKernelRate)
	c.schedRate.Store(DefaultSchedRate)
	c.drngMaxWithoutReseed.Store(DefaultDRNGMaxWithoutReseed)
	c.maxNodes.Store(DefaultMaxNodes)
	c.forceFIPS.Store(int64(FIPSUnset))

	for _, opt := range opts {
		opt(c)
	}

	if c.FIPSEnabled() && c.jitterRate.Load() > 0 {
		c.jitterRate.Store(crypto.SecurityStrengthBits)
	}

	return c
}

// clamp restricts an entropy rate to [0, SecurityStrengthBits] per spec §3
// and the "entropy clamp" testable property in spec §8.
func clamp(bits int) int {
	if bits < 0 {
		return 0
	}
	if bits > crypto.SecurityStrengthBits {
		return crypto.SecurityStrengthBits
	}
	return bits
}

// SetCPURate clamps and stores a new CPU entropy rate, then fires the
// entropy-added hook.
func (c *Config) SetCPURate(bits int) {
	c.cpuRate.Store(int64(clamp(bits)))
	c.fireEntropyAdded()
}

// SetJitterRate clamps and stores a new Jitter entropy rate.
func (c *Config) SetJitterRate(bits int) {
	c.jitterRate.Store(int64(clamp(bits)))
	c.fireEntropyAdded()
}

// SetKernelRate clamps and stores a new kernel-passthrough entropy rate.
func (c *Config) SetKernelRate(bits int) {
	c.kernelRate.Store(int64(clamp(bits)))
	c.fireEntropyAdded()
}

// SetSchedRate clamps and stores a new scheduler-entropy rate.
func (c *Config) SetSchedRate(bits int) {
	c.schedRate.Store(int64(clamp(bits)))
	c.fireEntropyAdded()
}

func (c *Config) fireEntropyAdded() {
	if c.onEntropyAdded != nil {
		c.onEntropyAdded()
	}
}

// CPURate returns the configured CPU hardware-RNG entropy rate.
func (c *Config) CPURate() int { return int(c.cpuRate.Load()) }

// JitterRate returns the configured Jitter RNG entropy rate.
func (c *Config) JitterRate() int { return int(c.jitterRate.Load()) }

// KernelRate returns the configured kernel-passthrough entropy rate.
func (c *Config) KernelRate() int { return int(c.kernelRate.Load()) }

// SchedRate returns the configured scheduler entropy rate.
func (c *Config) SchedRate() int { return int(c.schedRate.Load()) }

// DRNGMaxWithoutReseed returns the configured reseed-without-full-seed
// ceiling.
func (c *Config) DRNGMaxWithoutReseed() int64 { return c.drngMaxWithoutReseed.Load() }

// MaxNodes returns the configured per-node DRNG array cap.
func (c *Config) MaxNodes() int { return int(c.maxNodes.Load()) }

// SetForceFIPS updates the FIPS override at runtime.
func (c *Config) SetForceFIPS(f ForceFIPS) { c.forceFIPS.Store(int64(f)) }

// FIPSEnabled returns the runtime FIPS flag if set, else falls back to the
// environment's FIPS status (spec §4.I: "fips_enabled returns the runtime
// flag if set, else the environment's FIPS status").
func (c *Config) FIPSEnabled() bool {
	switch ForceFIPS(c.forceFIPS.Load()) {
	case FIPSEnabled:
		return true
	case FIPSDisabled:
		return false
	default:
		_, set := os.LookupEnv(ForceFIPSEnvVar)
		return set
	}
}

// OnlineNodes returns the online node ids intersected with MaxNodes. nodes
// is the OS collaborator's view of online nodes (spec §9: "online node
// enumeration is provided by the OS collaborator").
func (c *Config) OnlineNodes(nodes []int) []int {
	max := c.MaxNodes()
	out := make([]int, 0, len(nodes))
	for _, n := range nodes {
		if n >= 0 && n < max {
			out = append(out, n)
		}
	}
	return out
}

// CurrNode intersects a candidate current-node id with MaxNodes.
func (c *Config) CurrNode(node int) int {
	max := c.MaxNodes()
	if max <= 0 {
		return 0
	}
	return ((node % max) + max) % max
}
