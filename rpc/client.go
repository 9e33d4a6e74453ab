// Copyright (c) 2024-2026 The ESDM Authors
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

package rpc

import (
	"fmt"
	"net"

	"github.com/google/uuid"
)

// Client is a minimal synchronous RPC client over one Unix socket
// connection, used by the device frontend (out of scope here) and by this
// package's own tests. Each Call stamps the request with a fresh CallID
// (spec §6: "a response may arrive out of order; the dispatcher pairs by
// call id") and verifies the response echoes it back.
type Client struct {
	conn net.Conn
}

// Dial connects to the Unix socket at path.
func Dial(path string) (*Client, error) {
	conn, err := net.Dial("unix", path)
	if err != nil {
		return nil, fmt.Errorf("rpc: dial %s: %w", path, err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error { return c.conn.Close() }

// Call sends req and returns the paired response. If the connection drops
// before a response arrives, Call synthesizes a Response with Ret=-EINTR
// rather than returning a bare transport error, per spec §7: "RPC
// disconnect is surfaced to clients as -EINTR in the response's ret".
func (c *Client) Call(req *Request) (*Response, error) {
	if req.CallID == uuid.Nil {
		req.CallID = uuid.New()
	}

	if err := WriteRequest(c.conn, req); err != nil {
		return &Response{CallID: req.CallID, Ret: -codeEINTR}, nil
	}

	resp, err := ReadResponse(c.conn)
	if err != nil {
		return &Response{CallID: req.CallID, Ret: -codeEINTR}, nil
	}
	if resp.CallID != req.CallID {
		return nil, fmt.Errorf("rpc: response call id mismatch: got %s, want %s", resp.CallID, req.CallID)
	}
	return resp, nil
}
