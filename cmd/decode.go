// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/Thermoquad/milbus/pkg/mil1553"
	"github.com/spf13/cobra"
)

var (
	decodeAsStatus bool
	decodeRaw      bool
)

var decodeCmd = &cobra.Command{
	Use:   "decode <hex>",
	Short: "Decode packed bus words from a hex string",
	Long: `Decode back-to-back 20-bit words given as hex and print the message they form.

By default the bytes are read as a bus controller request led by a command
word; the format (BC to RT, RT to BC, RT to RT, mode command) follows from
that command. Use --status to read a terminal response led by a status word,
or --raw to list every packed word without applying any format rules.

Spaces, colons and a 0x prefix in the input are ignored.

Examples:
  milbus decode 2844C123452BEEF0
  milbus decode --status 28000
  milbus decode --raw "28 44 C1 23 45 2B EE F0"`,
	Args: cobra.ExactArgs(1),
	RunE: runDecode,
}

func init() {
	rootCmd.AddCommand(decodeCmd)
	decodeCmd.Flags().BoolVar(&decodeAsStatus, "status", false, "Read a status-led response instead of a command-led request")
	decodeCmd.Flags().BoolVar(&decodeRaw, "raw", false, "List packed words without format rules")
}

func runDecode(cmd *cobra.Command, args []string) error {
	data, err := parseHexBytes(args[0])
	if err != nil {
		return err
	}

	if decodeRaw {
		fmt.Print(formatRawWords(data))
		return nil
	}

	read := mil1553.ReadCommand
	if decodeAsStatus {
		read = mil1553.ReadStatus
	}
	msg, err := read(data)
	if err != nil {
		return fmt.Errorf("decode failed: %w", err)
	}

	fmt.Print(mil1553.FormatMessage(msg))
	if used := mil1553.EncodedLen(msg.Len()); used < len(data) {
		fmt.Printf("(%d trailing bytes not part of the message)\n", len(data)-used)
	}
	return nil
}

// parseHexBytes accepts hex with optional 0x prefix and separators
func parseHexBytes(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	s = strings.NewReplacer(" ", "", ":", "", "_", "").Replace(s)
	if len(s)%2 != 0 {
		s += "0"
	}
	data, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex input: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("no bytes to decode")
	}
	return data, nil
}

// formatRawWords lists every whole word packed in data
func formatRawWords(data []byte) string {
	var b strings.Builder
	for i := 0; ; i++ {
		p, err := mil1553.ReadWordPacket(data, i)
		if err != nil {
			break
		}
		fmt.Fprintf(&b, "%2d: %s\n", i, mil1553.FormatPacket(p))
	}
	return b.String()
}
