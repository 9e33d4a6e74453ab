// Copyright (c) 2024-2026 The ESDM Authors
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

package seedbuf

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuffer_TotalBitsAndConcat(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	b := New(2)
	b.Add("cpu", []byte{0x01, 0x02}, 32)
	b.Add("jitter", []byte{0x03, 0x04}, 16)

	is.Equal(48, b.TotalBits())
	is.Equal([]byte{0x01, 0x02, 0x03, 0x04}, b.Concat())
}

func TestBuffer_Zero(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	b := New(1)
	payload := []byte{0xff, 0xff, 0xff}
	b.Add("cpu", payload, 8)

	b.Zero()

	is.True(bytes.Equal(payload, make([]byte, 3)), "Zero must scrub the underlying payload bytes")
	is.Empty(b.Contributions)
	is.Equal(0, b.TotalBits())
}
