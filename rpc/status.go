// Copyright (c) 2024-2026 The ESDM Authors
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

package rpc

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
)

// StatusString renders the human-readable multi-line status report
// SPEC_FULL §6 describes: the current state, availability, FIPS mode, the
// unprivileged thread count, the aggregate entropy level, the reseed
// interval, and per-source health, matching the upstream daemon's status IOCTL/RPC
// output closely enough for an operator to eyeball. It is published into
// the status SHM's info field on every state transition (see cmd/esdmd).
func StatusString(c *Core) string {
	var b strings.Builder

	fmt.Fprintf(&b, "ESDM status\n")
	fmt.Fprintf(&b, "  state..............: %s\n", c.machine.Current())
	fmt.Fprintf(&b, "  avail..............: %t\n", c.manager.Avail())
	fmt.Fprintf(&b, "  fips mode..........: %t\n", c.cfg.FIPSEnabled())
	fmt.Fprintf(&b, "  unpriv threads.....: %d\n", c.unprivThreads)
	fmt.Fprintf(&b, "  entropy level......: %d bits\n", c.GetEntLvl())
	fmt.Fprintf(&b, "  min reseed secs....: %d\n", c.GetMinReseedSecs())

	fmt.Fprintf(&b, "  sources:\n")
	for _, src := range c.sources {
		st := src.Stats()
		fmt.Fprintf(&b, "    %-8s rate=%-4d available=%-5t served=%s errors=%d\n",
			st.Name, src.Rate(), st.Available, humanize.Bytes(st.BytesGenerated), st.Errors)
	}

	return b.String()
}
