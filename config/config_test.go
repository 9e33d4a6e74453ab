// Copyright (c) 2024-2026 The ESDM Authors
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

package config

import (
	"testing"

	"github.com/entropysrc/esdm/crypto"
	"github.com/stretchr/testify/assert"
)

func TestConfig_Defaults(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	c := New()
	is.Equal(DefaultCPURate, c.CPURate())
	is.Equal(DefaultJitterRate, c.JitterRate())
	is.Equal(DefaultKernelRate, c.KernelRate())
	is.Equal(DefaultSchedRate, c.SchedRate())
	is.EqualValues(DefaultDRNGMaxWithoutReseed, c.DRNGMaxWithoutReseed())
	is.Equal(DefaultMaxNodes, c.MaxNodes())
	is.False(c.FIPSEnabled())
}

func TestConfig_RateClamp(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	for _, v := range []int{-100, -1, 0, 1, 255, 256, 257, 100000} {
		c := New(WithCPURate(v))
		got := c.CPURate()
		is.GreaterOrEqual(got, 0)
		is.LessOrEqual(got, crypto.SecurityStrengthBits)
		if v < 0 {
			is.Equal(0, got)
		} else if v > crypto.SecurityStrengthBits {
			is.Equal(crypto.SecurityStrengthBits, got)
		} else {
			is.Equal(v, got)
		}
	}
}

func TestConfig_SetCPURateClampsAndFiresHook(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	fired := 0
	c := New(WithEntropyAddedCallback(func() { fired++ }))

	c.SetCPURate(9999)
	is.Equal(crypto.SecurityStrengthBits, c.CPURate())
	is.Equal(1, fired)

	c.SetJitterRate(-5)
	is.Equal(0, c.JitterRate())
	is.Equal(2, fired)
}

func TestConfig_ForceFIPS(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	c := New(WithForceFIPS(FIPSEnabled))
	is.True(c.FIPSEnabled())

	c.SetForceFIPS(FIPSDisabled)
	is.False(c.FIPSEnabled())
}

func TestConfig_FIPSJitterUpgrade(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	c := New(WithForceFIPS(FIPSEnabled), WithJitterRate(16))
	is.Equal(crypto.SecurityStrengthBits, c.JitterRate(), "FIPS mode must raise a nonzero Jitter rate to the security strength")

	c2 := New(WithForceFIPS(FIPSEnabled), WithJitterRate(0))
	is.Equal(0, c2.JitterRate(), "a zero Jitter rate is left disabled even under FIPS")
}

func TestConfig_OnlineNodesAndCurrNode(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	c := New(WithMaxNodes(4))
	is.Equal([]int{0, 1, 2, 3}, c.OnlineNodes([]int{0, 1, 2, 3, 4, 5, -1}))
	is.Equal(1, c.CurrNode(5))
	is.Equal(0, c.CurrNode(4))
	is.Equal(3, c.CurrNode(-1))
}
