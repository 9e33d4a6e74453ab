// Copyright (c) 2024-2026 The ESDM Authors
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

// Package shm implements the status shared-memory segment and change-
// notification semaphore described in spec §4.H and §6, using System V IPC
// (golang.org/x/sys/unix's SysvShm* helpers) since golang.org/x/sys/unix
// exposes System V shared memory and Go has no POSIX shm_open/sem_open
// binding without cgo — see DESIGN.md for the full reasoning.
package shm

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/sys/unix"
)

// StatusKey is the System V IPC key for the status segment, mirroring the
// upstream daemon's ESDM_SHM_STATUS constant.
const StatusKey = 1122334455

// infoSize bounds the human-readable status string embedded in the record.
const infoSize = 512

// recordSize is the wire size of a StatusRecord: four uint32 fields plus
// the fixed-size info buffer.
const recordSize = 4*4 + infoSize

// StatusRecord is the status snapshot published into shared memory,
// spec §4.H's "status SHM" fields.
type StatusRecord struct {
	Version        uint32
	UnprivThreads  uint32
	Operational    bool
	NeedEntropy    bool
	Info           string
}

// Status owns an attached System V shared-memory segment holding exactly
// one StatusRecord.
type Status struct {
	id   int
	data []byte
}

// OpenStatus creates (if necessary) and attaches the status segment keyed
// by key (StatusKey for the daemon).
func OpenStatus(key int) (*Status, error) {
	id, err := unix.SysvShmGet(key, recordSize, unix.IPC_CREAT|0666)
	if err != nil {
		return nil, fmt.Errorf("shm: shmget: %w", err)
	}

	data, err := unix.SysvShmAttach(id, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("shm: shmat: %w", err)
	}

	return &Status{id: id, data: data}, nil
}

// Write encodes rec into the shared segment.
func (s *Status) Write(rec StatusRecord) error {
	if len(s.data) < recordSize {
		return fmt.Errorf("shm: segment too small: %d", len(s.data))
	}

	infoBytes := []byte(rec.Info)
	if len(infoBytes) > infoSize-1 {
		infoBytes = infoBytes[:infoSize-1]
	}

	binary.LittleEndian.PutUint32(s.data[0:4], rec.Version)
	binary.LittleEndian.PutUint32(s.data[4:8], rec.UnprivThreads)
	binary.LittleEndian.PutUint32(s.data[8:12], boolToUint32(rec.Operational))
	binary.LittleEndian.PutUint32(s.data[12:16], boolToUint32(rec.NeedEntropy))

	info := s.data[16 : 16+infoSize]
	clear(info)
	copy(info, infoBytes)

	return nil
}

// Read decodes the current StatusRecord from the shared segment.
func (s *Status) Read() (StatusRecord, error) {
	if len(s.data) < recordSize {
		return StatusRecord{}, fmt.Errorf("shm: segment too small: %d", len(s.data))
	}

	rec := StatusRecord{
		Version:       binary.LittleEndian.Uint32(s.data[0:4]),
		UnprivThreads: binary.LittleEndian.Uint32(s.data[4:8]),
		Operational:   binary.LittleEndian.Uint32(s.data[8:12]) != 0,
		NeedEntropy:   binary.LittleEndian.Uint32(s.data[12:16]) != 0,
	}

	info := s.data[16 : 16+infoSize]
	n := 0
	for n < len(info) && info[n] != 0 {
		n++
	}
	rec.Info = string(info[:n])

	return rec, nil
}

// Close detaches the segment from this process's address space without
// removing it, for use by clients that only read status.
func (s *Status) Close() error {
	return unix.SysvShmDetach(s.data)
}

// Remove detaches and marks the segment for destruction once every
// attached process has detached, for use by the owning daemon on
// shutdown.
func (s *Status) Remove() error {
	if err := unix.SysvShmDetach(s.data); err != nil {
		return err
	}
	_, err := unix.SysvShmCtl(s.id, unix.IPC_RMID, nil)
	return err
}

func boolToUint32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
