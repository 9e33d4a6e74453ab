// Copyright (c) 2024-2026 The ESDM Authors
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

package rpc

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"
)

// frameHeaderSize is the width of the length prefix: a big-endian uint32
// byte count for the gob-encoded payload that follows, per spec §6/SPEC_FULL
// §8's "length-prefixed framing (uint32 big-endian length +
// encoding/gob-encoded request/response struct)".
const frameHeaderSize = 4

// WriteFrame gob-encodes v and writes it to w as one length-prefixed frame.
func WriteFrame(w io.Writer, v any) error {
	var payload bytes.Buffer
	if err := gob.NewEncoder(&payload).Encode(v); err != nil {
		return fmt.Errorf("rpc: encode frame: %w", err)
	}
	if payload.Len() > MaxPayloadBytes {
		return ErrPayloadTooLarge
	}

	var header [frameHeaderSize]byte
	binary.BigEndian.PutUint32(header[:], uint32(payload.Len()))

	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("rpc: write frame header: %w", err)
	}
	if _, err := w.Write(payload.Bytes()); err != nil {
		return fmt.Errorf("rpc: write frame payload: %w", err)
	}
	return nil
}

// ReadFrame reads one length-prefixed frame from r and gob-decodes it into
// v, which must be a pointer.
func ReadFrame(r io.Reader, v any) error {
	var header [frameHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return err
	}

	n := binary.BigEndian.Uint32(header[:])
	if n > MaxPayloadBytes {
		return ErrPayloadTooLarge
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return fmt.Errorf("rpc: read frame payload: %w", err)
	}

	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(v); err != nil {
		return fmt.Errorf("rpc: decode frame: %w", err)
	}
	return nil
}

// WriteRequest and WriteResponse/ReadRequest/ReadResponse are thin,
// type-safe wrappers over WriteFrame/ReadFrame used by the client and
// server respectively, so neither side needs to juggle `any`.

// WriteRequest writes req as one frame.
func WriteRequest(w io.Writer, req *Request) error { return WriteFrame(w, req) }

// ReadRequest reads one Request frame.
func ReadRequest(r io.Reader) (*Request, error) {
	var req Request
	if err := ReadFrame(r, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

// WriteResponse writes resp as one frame.
func WriteResponse(w io.Writer, resp *Response) error { return WriteFrame(w, resp) }

// ReadResponse reads one Response frame.
func ReadResponse(r io.Reader) (*Response, error) {
	var resp Response
	if err := ReadFrame(r, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
