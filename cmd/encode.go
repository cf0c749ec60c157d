// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/Thermoquad/milbus/pkg/mil1553"
	"github.com/spf13/cobra"
)

var (
	encodeRT       int
	encodeSA       int
	encodeTransmit bool
	encodeCount    int
	encodeMode     int
	encodeData     []string
	encodeStatus   bool
	encodeFlags    []string
	encodeSend     bool
	encodeFrom     int
)

var encodeCmd = &cobra.Command{
	Use:   "encode",
	Short: "Build a command or status message and print its wire bytes",
	Long: `Build a bus message from its fields and print the packed 20-bit words as hex.

By default a bus controller request is built: one command word followed by
the data words a receive command carries. --from turns the request into an
RT to RT transfer: a receive command to --rt followed by a transmit command
to the --from terminal. With --mode the command becomes a
mode command; mode codes 16 and up carry one data word.

With --status a remote terminal status word is built instead; --flags sets
status bits (me, instr, sr, bcr, busy, ssf, dbca, tf) and --data appends the
data words of a transmit response.

--send writes the bytes to the connection given by --port or --url.

Examples:
  # BC to RT05, subaddress 2, two data words
  milbus encode --rt 5 --sa 2 --count 2 --data 0x1234,0xBEEF

  # RT03 sends four words from subaddress 9 to RT05
  milbus encode --rt 5 --from 3 --sa 9 --count 4

  # Transmit vector word mode command to RT07
  milbus encode --rt 7 --tx --mode 16

  # Busy status from RT05
  milbus encode --status --rt 5 --flags busy`,
	RunE: runEncode,
}

func init() {
	rootCmd.AddCommand(encodeCmd)
	encodeCmd.Flags().IntVar(&encodeRT, "rt", 0, "Remote terminal address (0-31, 31 is broadcast)")
	encodeCmd.Flags().IntVar(&encodeSA, "sa", 1, "Subaddress (1-30)")
	encodeCmd.Flags().BoolVar(&encodeTransmit, "tx", false, "Transmit command (terminal sends data)")
	encodeCmd.Flags().IntVar(&encodeCount, "count", 1, "Data word count (1-32)")
	encodeCmd.Flags().IntVar(&encodeMode, "mode", -1, "Mode code (0-31) instead of a subaddress transfer")
	encodeCmd.Flags().StringSliceVar(&encodeData, "data", nil, "Data word values (hex or decimal)")
	encodeCmd.Flags().BoolVar(&encodeStatus, "status", false, "Build a status response instead of a command")
	encodeCmd.Flags().StringSliceVar(&encodeFlags, "flags", nil, "Status flags to set")
	encodeCmd.Flags().BoolVar(&encodeSend, "send", false, "Send the encoded bytes to the connection")
	encodeCmd.Flags().IntVar(&encodeFrom, "from", -1, "Transmitting terminal of an RT to RT transfer")
}

// commandSpec describes a controller request
type commandSpec struct {
	rt       int
	sa       int
	transmit bool
	count    int
	mode     int // negative for a subaddress transfer
	data     []uint16
	transfer bool // RT to RT, peer transmits to rt
	peer     int
}

// statusSpec describes a terminal response
type statusSpec struct {
	rt    int
	flags []string
	data  []uint16
}

func runEncode(cmd *cobra.Command, args []string) error {
	data, err := parseDataWords(encodeData)
	if err != nil {
		return err
	}

	var msg *mil1553.Message
	if encodeStatus {
		msg, err = buildResponse(statusSpec{rt: encodeRT, flags: encodeFlags, data: data})
	} else {
		msg, err = buildRequest(commandSpec{
			rt:       encodeRT,
			sa:       encodeSA,
			transmit: encodeTransmit,
			count:    encodeCount,
			mode:     encodeMode,
			data:     data,
			transfer: encodeFrom >= 0,
			peer:     encodeFrom,
		})
	}
	if err != nil {
		return err
	}

	wire, err := msg.Bytes()
	if err != nil {
		return err
	}

	fmt.Print(mil1553.FormatMessage(msg))
	fmt.Printf("Wire (%d words, %d bytes): %s\n", msg.Len(), len(wire), strings.ToUpper(hex.EncodeToString(wire)))

	if !encodeSend {
		return nil
	}

	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, err := conn.Write(wire); err != nil {
		return fmt.Errorf("send failed: %w", err)
	}
	logger.Info().Str("connection", connInfo).Int("words", msg.Len()).Msg("message sent")
	fmt.Printf("Sent to %s\n", connInfo)
	return nil
}

// parseDataWords parses 16-bit values given in hex (0x prefix) or decimal
func parseDataWords(values []string) ([]uint16, error) {
	out := make([]uint16, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		n, err := strconv.ParseUint(v, 0, 16)
		if err != nil {
			return nil, fmt.Errorf("data word %q: %w", v, err)
		}
		out = append(out, uint16(n))
	}
	return out, nil
}

func checkAddress(rt int) error {
	if rt < 0 || rt > 31 {
		return fmt.Errorf("terminal address %d out of range 0-31", rt)
	}
	return nil
}

// buildRequest assembles the controller side of a message. Missing data
// words of a receive command are zero filled.
func buildRequest(spec commandSpec) (*mil1553.Message, error) {
	if err := checkAddress(spec.rt); err != nil {
		return nil, err
	}

	tr := mil1553.Receive
	if spec.transmit {
		tr = mil1553.Transmit
	}
	c := mil1553.CommandWord{}.WithAddress(mil1553.Address(spec.rt)).WithTransmitReceive(tr)

	if spec.mode >= 0 {
		mc, err := mil1553.ParseModeCode(uint8(min(spec.mode, 255)))
		if err != nil {
			return nil, err
		}
		c = c.WithModeCode(mc)
	} else {
		if spec.sa < 1 || spec.sa > 30 {
			return nil, fmt.Errorf("subaddress %d out of range 1-30 (0 and 31 select mode codes, use --mode)", spec.sa)
		}
		if spec.count < 1 || spec.count > mil1553.MaxDataWords {
			return nil, fmt.Errorf("word count %d out of range 1-%d", spec.count, mil1553.MaxDataWords)
		}
		c = c.WithSubaddress(mil1553.SubAddress(spec.sa)).WithWordCount(spec.count)
	}

	if spec.transfer {
		return buildTransfer(spec, c)
	}

	direction := mil1553.InferDirection(c, false)
	carried := 0
	switch direction {
	case mil1553.BcToRt, mil1553.ModeWithDataR:
		carried = c.DataCount()
	}
	if len(spec.data) > carried {
		return nil, fmt.Errorf("%s request carries %d data words, got %d", mil1553.FormatDirection(direction), carried, len(spec.data))
	}

	msg := mil1553.NewMessage(direction, mil1553.InferType(c), mil1553.Receiving)
	if err := msg.Parse(mil1553.FromCommand(c).Packet()); err != nil {
		return nil, err
	}
	for i := 0; i < carried; i++ {
		var v uint16
		if i < len(spec.data) {
			v = spec.data[i]
		}
		if err := msg.Parse(mil1553.NewDataPacket(v, mil1553.Parity(v))); err != nil {
			return nil, fmt.Errorf("data word %d: %w", i, err)
		}
	}
	return msg, nil
}

// buildTransfer pairs the receive command c with the transmit command of
// the peer terminal
func buildTransfer(spec commandSpec, c mil1553.CommandWord) (*mil1553.Message, error) {
	if spec.mode >= 0 || spec.transmit {
		return nil, fmt.Errorf("RT to RT transfer needs a receive subaddress command")
	}
	if err := checkAddress(spec.peer); err != nil {
		return nil, err
	}
	if mil1553.Address(spec.peer).IsBroadcast() {
		return nil, fmt.Errorf("broadcast address cannot transmit")
	}
	if spec.peer == spec.rt {
		return nil, fmt.Errorf("terminal %d cannot transfer to itself", spec.rt)
	}
	if len(spec.data) > 0 {
		return nil, fmt.Errorf("RT to RT request carries no data words, got %d", len(spec.data))
	}

	tx := c.WithAddress(mil1553.Address(spec.peer)).WithTransmitReceive(mil1553.Transmit)
	msg := mil1553.NewMessage(mil1553.RtToRt, mil1553.InferType(c), mil1553.Receiving)
	for _, w := range []mil1553.CommandWord{c, tx} {
		if err := msg.Parse(mil1553.FromCommand(w).Packet()); err != nil {
			return nil, err
		}
	}
	return msg, nil
}

// buildResponse assembles a terminal status followed by its data words
func buildResponse(spec statusSpec) (*mil1553.Message, error) {
	if err := checkAddress(spec.rt); err != nil {
		return nil, err
	}
	if len(spec.data) > mil1553.MaxDataWords {
		return nil, fmt.Errorf("response carries at most %d data words, got %d", mil1553.MaxDataWords, len(spec.data))
	}

	s := mil1553.StatusWord{}.WithAddress(mil1553.Address(spec.rt))
	for _, f := range spec.flags {
		switch strings.ToLower(strings.TrimSpace(f)) {
		case "me":
			s = s.WithMessageError(mil1553.MessageError)
		case "instr":
			s = s.WithInstrumentation(mil1553.InstrumentationCommand)
		case "sr":
			s = s.WithServiceRequest(mil1553.Service)
		case "bcr":
			s = s.WithBroadcastReceived(mil1553.BroadcastWasReceived)
		case "busy":
			s = s.WithBusy(mil1553.Busy)
		case "ssf":
			s = s.WithSubsystemFlag(mil1553.SubsystemFault)
		case "dbca":
			s = s.WithBusControlAccept(mil1553.BusControlAccepted)
		case "tf":
			s = s.WithTerminalFlag(mil1553.TerminalFault)
		case "":
		default:
			return nil, fmt.Errorf("unknown status flag %q", f)
		}
	}

	direction := mil1553.BcToRt
	if len(spec.data) > 0 {
		direction = mil1553.RtToBc
	}
	msg := mil1553.NewMessage(direction, mil1553.Directed, mil1553.Sending)
	if err := msg.AddStatus(s); err != nil {
		return nil, err
	}
	for i, v := range spec.data {
		if err := msg.AddData(mil1553.NewDataWord(v)); err != nil {
			return nil, fmt.Errorf("data word %d: %w", i, err)
		}
	}
	return msg, nil
}
