// Copyright (c) 2024-2026 The ESDM Authors
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

package main

import "github.com/entropysrc/esdm/cmd/esdmd/cmd"

func main() {
	cmd.Execute()
}
