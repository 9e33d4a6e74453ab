// Copyright (c) 2024-2026 The ESDM Authors
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

package rpc

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startTestServer(t *testing.T) (*Server, string, string, *Core) {
	t.Helper()

	core, _, _ := newTestCore(t)
	dir := t.TempDir()
	unprivPath := filepath.Join(dir, "esdm-rpc-unpriv"+TestModeSuffix)
	privPath := filepath.Join(dir, "esdm-rpc-priv"+TestModeSuffix)

	srv := NewServer(core, unprivPath, privPath, 4, nil)

	ctx, cancel := context.WithCancel(context.Background())
	serveDone := make(chan struct{})
	go func() {
		_ = srv.Serve(ctx)
		close(serveDone)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-serveDone:
		case <-time.After(time.Second):
			t.Error("server did not shut down in time")
		}
	})

	require.Eventually(t, func() bool {
		c, err := Dial(unprivPath)
		if err != nil {
			return false
		}
		_ = c.Close()
		return true
	}, time.Second, 5*time.Millisecond, "unpriv socket never became ready")

	return srv, unprivPath, privPath, core
}

func TestServer_StatusOverUnprivSocket(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	_, unprivPath, _, _ := startTestServer(t)

	c, err := Dial(unprivPath)
	require.NoError(t, err)
	defer c.Close()

	resp, err := c.Call(&Request{Method: MethodStatus})
	require.NoError(t, err)
	is.GreaterOrEqual(resp.Ret, int64(0))
	is.Contains(string(resp.Data), "ESDM status")
}

func TestServer_GetRandomBytesOverUnprivSocket(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	_, unprivPath, _, _ := startTestServer(t)

	c, err := Dial(unprivPath)
	require.NoError(t, err)
	defer c.Close()

	resp, err := c.Call(&Request{Method: MethodGetRandomBytes, NumBytes: 32})
	require.NoError(t, err)
	is.EqualValues(32, resp.Ret)
	is.Len(resp.Data, 32)
}

func TestServer_PrivilegedMethodRejectedOnUnprivSocket(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	_, unprivPath, _, _ := startTestServer(t)

	c, err := Dial(unprivPath)
	require.NoError(t, err)
	defer c.Close()

	resp, err := c.Call(&Request{Method: MethodRndReseedCRNG})
	require.NoError(t, err)
	is.Equal(-codeEPERM, resp.Ret)
}

func TestServer_PrivilegedSocketServesPrivilegedMethods(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	_, _, privPath, _ := startTestServer(t)

	c, err := Dial(privPath)
	require.NoError(t, err)
	defer c.Close()

	resp, err := c.Call(&Request{Method: MethodRndReseedCRNG})
	require.NoError(t, err)
	is.EqualValues(0, resp.Ret)
}

func TestServer_ConcurrentClientsEachGetRandomBytes(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	_, unprivPath, _, _ := startTestServer(t)

	const clients = 8
	results := make(chan error, clients)
	for i := 0; i < clients; i++ {
		go func() {
			c, err := Dial(unprivPath)
			if err != nil {
				results <- err
				return
			}
			defer c.Close()

			resp, err := c.Call(&Request{Method: MethodGetRandomBytes, NumBytes: 1024})
			if err != nil {
				results <- err
				return
			}
			if len(resp.Data) != 1024 {
				results <- assert.AnError
				return
			}
			results <- nil
		}()
	}

	for i := 0; i < clients; i++ {
		is.NoError(<-results)
	}
}
