// Copyright (c) 2024-2026 The ESDM Authors
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

// Package rpc implements the unprivileged and privileged services
// described in spec §4.H: two independent request/response services
// exposed on filesystem sockets, each call paired by a call id, with a
// signed ret field carrying either the bytes produced or a negated error
// code.
package rpc

import (
	"github.com/google/uuid"
)

// MaxPayloadBytes is the RPC message payload ceiling spec §6 names
// ("RPC maximum message payload: 65500 bytes").
const MaxPayloadBytes = 65500

// Method names, spec §4.H.
const (
	MethodStatus             = "status"
	MethodGetRandomBytes     = "get_random_bytes"
	MethodGetRandomBytesFull = "get_random_bytes_full"
	MethodGetRandomBytesMin  = "get_random_bytes_min"
	MethodGetEntLvl          = "get_ent_lvl"
	MethodGetMinReseedSecs   = "get_min_reseed_secs"
	MethodWriteData          = "write_data"
	MethodRndGetEntCnt       = "rnd_get_ent_cnt"

	MethodRndAddToEntCnt = "rnd_add_to_ent_cnt"
	MethodRndAddEntropy  = "rnd_add_entropy"
	MethodRndClearPool   = "rnd_clear_pool"
	MethodRndReseedCRNG  = "rnd_reseed_crng"
)

// Request is the single envelope shape every method is encoded into; gob
// requires concrete registered types, so rather than a per-method type
// zoo, unused fields for a given method are simply left at their zero
// value — the same shape the upstream daemon's generic RPC message takes.
type Request struct {
	CallID      uuid.UUID
	Method      string
	NumBytes    int
	EntropyBits int
	Data        []byte
	Nonblock    bool
}

// Response pairs a CallID with a signed ret field (spec §4.H: "a signed
// ret field (bytes produced on success, negated error on failure) plus the
// result payload") and the result payload.
type Response struct {
	CallID uuid.UUID
	Ret    int64
	Data   []byte
}

func newResponse(req *Request, ret int64, data []byte) *Response {
	return &Response{CallID: req.CallID, Ret: ret, Data: data}
}

func errResponse(req *Request, code int64) *Response {
	return newResponse(req, -code, nil)
}
