// Copyright (c) 2024-2026 The ESDM Authors
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

package shm

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// SemaphoreKey is the System V IPC key for the status change-notification
// semaphore. System V semaphores are keyed, not named, so this is derived
// the same way as StatusKey rather than carrying a path like a POSIX named
// semaphore would (conceptually "esdm-shm-status-semaphore", per
// SPEC_FULL.md §8).
const SemaphoreKey = StatusKey + 1

// sembuf mirrors the kernel's struct sembuf (sys/sem.h); golang.org/x/sys/unix
// does not export Semget/Semop/Sembuf on Linux, only the SYS_SEM* syscall
// numbers, so this package issues the syscalls directly — see DESIGN.md.
type sembuf struct {
	semNum uint16
	semOp  int16
	semFlg int16
}

// Semaphore is a single-member System V semaphore set used to post and wait
// for the status-change notification spec §4.H/§6 describes.
type Semaphore struct {
	id int
}

// OpenSemaphore creates (if necessary) a one-member semaphore set keyed by
// key, initialised to zero.
func OpenSemaphore(key int) (*Semaphore, error) {
	id, _, errno := unix.Syscall(unix.SYS_SEMGET, uintptr(key), 1, uintptr(unix.IPC_CREAT|0666))
	if errno != 0 {
		return nil, fmt.Errorf("shm: semget: %w", errno)
	}
	return &Semaphore{id: int(id)}, nil
}

// Post increments the semaphore by one, waking any single waiter blocked in
// Wait, implementing the "posted exactly once per state transition"
// contract SPEC_FULL.md assigns to every state-machine advance.
func (s *Semaphore) Post() error {
	return s.semop(1, 0)
}

// Wait decrements the semaphore by one, blocking until it is non-zero.
func (s *Semaphore) Wait() error {
	return s.semop(-1, 0)
}

// TryWait attempts a non-blocking decrement, returning unix.EAGAIN if the
// semaphore is currently zero.
func (s *Semaphore) TryWait() error {
	return s.semop(-1, unix.IPC_NOWAIT)
}

func (s *Semaphore) semop(delta int16, flags int16) error {
	ops := [1]sembuf{{semNum: 0, semOp: delta, semFlg: flags}}
	_, _, errno := unix.Syscall(unix.SYS_SEMOP, uintptr(s.id), uintptr(unsafe.Pointer(&ops[0])), 1)
	if errno != 0 {
		return fmt.Errorf("shm: semop: %w", errno)
	}
	return nil
}

// Remove deletes the semaphore set. semctl's IPC_RMID command takes no
// fourth argument on Linux.
func (s *Semaphore) Remove() error {
	_, _, errno := unix.Syscall6(unix.SYS_SEMCTL, uintptr(s.id), 0, uintptr(unix.IPC_RMID), 0, 0, 0)
	if errno != 0 {
		return fmt.Errorf("shm: semctl: %w", errno)
	}
	return nil
}
