// Copyright (c) 2024-2026 The ESDM Authors
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

package rpc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"sync/atomic"
)

// TestModeSuffix is appended to both socket paths in test mode, per spec §6.
const TestModeSuffix = "-testmode"

// DefaultUnprivSocketPath and DefaultPrivSocketPath are the filesystem
// socket paths spec §6 names.
const (
	DefaultUnprivSocketPath = "/var/run/esdm-rpc-unpriv"
	DefaultPrivSocketPath   = "/var/run/esdm-rpc-priv"
)

// Server exposes a Core over the two filesystem sockets spec §4.H
// describes: a world-writable unprivileged socket and a root-only
// privileged socket, each served by a task-per-connection model bounded by
// a shared worker pool (spec §9: "use a task-per-connection model with a
// bounded thread pool").
type Server struct {
	core *Core
	log  *slog.Logger

	unprivPath string
	privPath   string

	unprivLn net.Listener
	privLn   net.Listener

	sem chan struct{} // bounds concurrently executing RPC workers

	wg       sync.WaitGroup
	shutdown atomic.Bool
}

// NewServer constructs a Server bound to core, serving unprivPath and
// privPath with poolSize concurrent workers shared across both sockets
// (spec §5: "RPC workers operate in a process-wide thread pool of
// configured size").
func NewServer(core *Core, unprivPath, privPath string, poolSize int, log *slog.Logger) *Server {
	if poolSize < 1 {
		poolSize = 1
	}
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		core:       core,
		log:        log,
		unprivPath: unprivPath,
		privPath:   privPath,
		sem:        make(chan struct{}, poolSize),
	}
}

// listenUnix removes any stale socket file at path, binds a new Unix
// listener there, and sets its permission bits (0666 for the unprivileged
// socket, 0600 for the privileged one, per spec §6).
func listenUnix(path string, perm os.FileMode) (net.Listener, error) {
	_ = os.Remove(path)

	addr, err := net.ResolveUnixAddr("unix", path)
	if err != nil {
		return nil, fmt.Errorf("rpc: resolve %s: %w", path, err)
	}
	ln, err := net.ListenUnix("unix", addr)
	if err != nil {
		return nil, fmt.Errorf("rpc: listen %s: %w", path, err)
	}
	if err := os.Chmod(path, perm); err != nil {
		_ = ln.Close()
		return nil, fmt.Errorf("rpc: chmod %s: %w", path, err)
	}
	return ln, nil
}

// Serve binds both sockets and accepts connections until ctx is cancelled
// or Shutdown is called. It blocks until every in-flight connection has
// been released.
func (s *Server) Serve(ctx context.Context) error {
	unprivLn, err := listenUnix(s.unprivPath, 0o666)
	if err != nil {
		return err
	}
	s.unprivLn = unprivLn

	privLn, err := listenUnix(s.privPath, 0o600)
	if err != nil {
		_ = unprivLn.Close()
		return err
	}
	s.privLn = privLn

	go func() {
		<-ctx.Done()
		s.Shutdown()
	}()

	var acceptWG sync.WaitGroup
	acceptWG.Add(2)
	go func() { defer acceptWG.Done(); s.acceptLoop(ctx, s.unprivLn, false) }()
	go func() { defer acceptWG.Done(); s.acceptLoop(ctx, s.privLn, true) }()

	acceptWG.Wait()
	s.wg.Wait()
	return nil
}

// Shutdown implements spec §9's re-entrant-safe shutdown path: it latches
// the shutdown flag and closes both listeners, which unblocks Accept in
// both loops without doing any work from a signal handler.
func (s *Server) Shutdown() {
	if !s.shutdown.CompareAndSwap(false, true) {
		return
	}
	if s.unprivLn != nil {
		_ = s.unprivLn.Close()
	}
	if s.privLn != nil {
		_ = s.privLn.Close()
	}
	_ = os.Remove(s.unprivPath)
	_ = os.Remove(s.privPath)
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener, privileged bool) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.shutdown.Load() {
				return
			}
			s.log.Warn("rpc: accept failed", "privileged", privileged, "err", err)
			return
		}

		s.wg.Add(1)
		go s.handleConn(ctx, conn, privileged)
	}
}

// handleConn serves requests from one connection synchronously, in order,
// until the connection errs or ctx is cancelled (spec §5: "each worker
// executes synchronously inside the ESDM core; long-running calls ... must
// not block other workers" — satisfied by giving every connection its own
// goroutine). No in-flight RPC is resumed after shutdown begins (spec §5);
// a call still executing when ctx is cancelled finishes (its blocking waits
// end with ctx's error) and its response is written, but the connection is
// then closed rather than waiting for a next request.
func (s *Server) handleConn(ctx context.Context, conn net.Conn, privileged bool) {
	defer s.wg.Done()
	defer conn.Close()

	for {
		if ctx.Err() != nil {
			return
		}
		req, err := ReadRequest(conn)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.log.Debug("rpc: read request", "privileged", privileged, "err", err)
			}
			return
		}

		s.sem <- struct{}{}
		resp := s.core.Dispatch(ctx, privileged, req)
		<-s.sem

		if err := WriteResponse(conn, resp); err != nil {
			s.log.Debug("rpc: write response", "privileged", privileged, "err", err)
			return
		}
	}
}
