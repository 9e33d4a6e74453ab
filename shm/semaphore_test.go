// Copyright (c) 2024-2026 The ESDM Authors
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

package shm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestSemaphore_PostThenWaitSucceeds(t *testing.T) {
	is := assert.New(t)

	sem, err := OpenSemaphore(privateTestKey())
	require.NoError(t, err)
	defer func() { _ = sem.Remove() }()

	require.NoError(t, sem.Post())
	is.NoError(sem.Wait())
}

func TestSemaphore_TryWaitReturnsEAGAINWhenEmpty(t *testing.T) {
	is := assert.New(t)

	sem, err := OpenSemaphore(privateTestKey())
	require.NoError(t, err)
	defer func() { _ = sem.Remove() }()

	err = sem.TryWait()
	is.ErrorIs(err, unix.EAGAIN)
}

func TestSemaphore_WaitBlocksUntilPost(t *testing.T) {
	is := assert.New(t)

	sem, err := OpenSemaphore(privateTestKey())
	require.NoError(t, err)
	defer func() { _ = sem.Remove() }()

	done := make(chan error, 1)
	go func() { done <- sem.Wait() }()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, sem.Post())

	select {
	case err := <-done:
		is.NoError(err)
	case <-time.After(time.Second):
		t.Fatal("Wait did not unblock after Post")
	}
}
