// Copyright (c) 2024-2026 The ESDM Authors
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

// Package state implements the operational state machine described in
// spec §4.G: a monotonically advancing sequence of four states, with two
// blocking waits and an explicit reset back to the initial state.
//
// The condition-variable-style wakeup is grounded on the teacher's
// selftest gate (a sync.Once-guarded one-shot event) generalized here to a
// repeatable broadcast, since this state machine must support reset.
package state

import (
	"context"
	"sync"
)

// State is one of the four monotonically advancing states spec §4.G names.
type State int

const (
	// Uninitialised is the initial state.
	Uninitialised State = iota
	// MinSeeded is reached once at least MIN_SEED_ENTROPY_BITS credited
	// entropy has been injected into the active DRNG.
	MinSeeded
	// FullySeeded is reached once at least SECURITY_STRENGTH_BITS credited
	// entropy has been injected.
	FullySeeded
	// Operational is reached once fully seeded, selftests have passed, and
	// avail is true.
	Operational
)

func (s State) String() string {
	switch s {
	case Uninitialised:
		return "uninitialised"
	case MinSeeded:
		return "min_seeded"
	case FullySeeded:
		return "fully_seeded"
	case Operational:
		return "operational"
	default:
		return "unknown"
	}
}

// ErrWouldBlock is returned by SleepWhileNonoperational when nonblock is
// true and the state is not yet Operational (spec §4.G: "returns EAGAIN if
// nonblock and state != operational").
var ErrWouldBlock = stateError("state: would block")

type stateError string

func (e stateError) Error() string { return string(e) }

// Machine is the process-wide operational state, guarded by a mutex with a
// broadcast condition variable for the init_wait wakeups spec §4.G and §5
// describe.
type Machine struct {
	mu      sync.Mutex
	cond    *sync.Cond
	current State

	// onAdvance is invoked, outside the lock, every time Advance actually
	// moves the state forward. cmd/esdmd's status-SHM publisher hooks this to
	// satisfy spec §8's "every state advance posts the status semaphore
	// exactly once".
	onAdvance func(State)
}

// New returns a Machine in the Uninitialised state.
func New() *Machine {
	m := &Machine{current: Uninitialised}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// SetAdvanceHook registers fn to run, once, every time Advance moves the
// state machine forward.
func (m *Machine) SetAdvanceHook(fn func(State)) { m.onAdvance = fn }

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Advance moves the state machine to to if to is strictly greater than the
// current state (states advance monotonically — spec §4.G: "monotonically
// advancing on first entry"), waking every blocked waiter. Advancing to a
// state at or below the current one is a no-op.
func (m *Machine) Advance(to State) {
	m.mu.Lock()
	if to <= m.current {
		m.mu.Unlock()
		return
	}
	m.current = to
	m.cond.Broadcast()
	m.mu.Unlock()

	if m.onAdvance != nil {
		m.onAdvance(to)
	}
}

// Reset demotes the state machine back to Uninitialised, per spec §4.G's
// "explicit reset demotes the state to uninitialised" and wakes any waiter
// blocked in SleepWhileNonoperational with nonblock=false so it can observe
// the demotion and re-check.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = Uninitialised
	m.cond.Broadcast()
}

// SleepWhileNonMinSeeded blocks until the state reaches at least MinSeeded,
// or ctx is cancelled.
func (m *Machine) SleepWhileNonMinSeeded(ctx context.Context) error {
	return m.waitUntil(ctx, MinSeeded, false)
}

// SleepWhileNonoperational blocks until the state reaches Operational. If
// nonblock is true and the state is not yet Operational, it returns
// ErrWouldBlock immediately instead of waiting.
func (m *Machine) SleepWhileNonoperational(ctx context.Context, nonblock bool) error {
	return m.waitUntil(ctx, Operational, nonblock)
}

func (m *Machine) waitUntil(ctx context.Context, target State, nonblock bool) error {
	m.mu.Lock()
	if m.current >= target {
		m.mu.Unlock()
		return nil
	}
	if nonblock {
		m.mu.Unlock()
		return ErrWouldBlock
	}

	// sync.Cond has no context-aware wait, so a watcher goroutine
	// broadcasts on cancellation to unblock Wait the same way a real state
	// advance would.
	stop := context.AfterFunc(ctx, func() {
		m.mu.Lock()
		m.cond.Broadcast()
		m.mu.Unlock()
	})
	defer stop()

	for m.current < target {
		select {
		case <-ctx.Done():
			m.mu.Unlock()
			return ctx.Err()
		default:
		}
		m.cond.Wait()
	}
	m.mu.Unlock()
	return nil
}
