// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Milbus - MIL-STD-1553B Bus Analyzer
//
// A CLI tool for monitoring, decoding and driving MIL-STD-1553B data buses
// through a serial or WebSocket bus interface.

package main

import (
	"os"

	"github.com/Thermoquad/milbus/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
