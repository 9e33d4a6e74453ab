// Copyright (c) 2024-2026 The ESDM Authors
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

package crypto

import "bytes"

// sha3_512KnownAnswerTest verifies SHA3-512 against the NIST CAVP
// zero-length-message test vector.
func sha3_512KnownAnswerTest() error {
	expected := []byte{
		0xa6, 0x9f, 0x73, 0xcc, 0xa2, 0x3a, 0x9a, 0xc5,
		0xc8, 0xb5, 0x67, 0xdc, 0x18, 0x5a, 0x75, 0x6e,
		0x97, 0xc9, 0x82, 0x16, 0x4f, 0xe2, 0x58, 0x59,
		0xe0, 0xd1, 0xdc, 0xc1, 0x47, 0x5c, 0x80, 0xa6,
		0x15, 0xb2, 0x12, 0x3a, 0xf1, 0xf5, 0xf9, 0x4c,
		0x11, 0xe3, 0xe9, 0x40, 0x2c, 0x3a, 0xc5, 0x58,
		0xf5, 0x00, 0x19, 0x9d, 0x95, 0xb6, 0xd3, 0xe3,
		0x01, 0x75, 0x85, 0x86, 0x28, 0x1d, 0xcd, 0x26,
	}
	out := hashSHA3_512(nil)
	if !bytes.Equal(out, expected) {
		return ErrSelfTestFailed
	}
	return nil
}
