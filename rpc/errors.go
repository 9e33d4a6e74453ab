// Copyright (c) 2024-2026 The ESDM Authors
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

package rpc

import (
	"errors"

	"github.com/entropysrc/esdm/drng"
	"github.com/entropysrc/esdm/state"
)

// Sentinel errors mapping spec §7's error kinds onto the rpc package's own
// surface. Errors from other packages (drng.ErrUnsupported, drng.ErrFault,
// state.ErrWouldBlock) are not duplicated here; codeFor maps them directly.
var (
	// ErrInvalidArgument is returned for malformed requests (oversized
	// payloads, negative byte counts).
	ErrInvalidArgument = errors.New("rpc: invalid argument")

	// ErrPermission is returned when an unprivileged connection requests a
	// privileged-only method.
	ErrPermission = errors.New("rpc: permission denied")

	// ErrDisconnected marks a response synthesized for an in-flight call
	// whose connection dropped before a real response could be written,
	// per spec §7: "RPC disconnect is surfaced to clients as -EINTR".
	ErrDisconnected = errors.New("rpc: disconnected")

	// ErrPayloadTooLarge is returned when a frame's encoded payload exceeds
	// MaxPayloadBytes (spec §6).
	ErrPayloadTooLarge = errors.New("rpc: payload exceeds maximum size")

	// ErrUnknownMethod is returned when a request names a method neither
	// service serves.
	ErrUnknownMethod = errors.New("rpc: unknown method")
)

// Errno-style codes used to populate a Response's negated Ret field, chosen
// to match the Linux errno values the upstream device frontend's IOCTL
// translation layer would itself produce (spec §6/§7). Only the handful of
// kinds spec §7 names are represented.
const (
	codeEPERM   int64 = 1  // Permission
	codeEINTR   int64 = 4  // Transient (RPC disconnect)
	codeEAGAIN  int64 = 11 // WouldBlock
	codeEFAULT  int64 = 14 // Transient (short/failed generate)
	codeEINVAL  int64 = 22 // InvalidArgument
	codeENOTSUP int64 = 95 // NotAvailable
)

// codeFor maps an error returned by a Core method to the errno-style code a
// Response's Ret field carries on failure.
func codeFor(err error) int64 {
	switch {
	case errors.Is(err, ErrInvalidArgument):
		return codeEINVAL
	case errors.Is(err, ErrPermission):
		return codeEPERM
	case errors.Is(err, ErrDisconnected):
		return codeEINTR
	case errors.Is(err, ErrUnknownMethod):
		return codeEINVAL
	case errors.Is(err, state.ErrWouldBlock):
		return codeEAGAIN
	case errors.Is(err, drng.ErrUnsupported):
		return codeENOTSUP
	case errors.Is(err, drng.ErrFault):
		return codeEFAULT
	default:
		return codeEFAULT
	}
}
