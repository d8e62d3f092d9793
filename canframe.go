package candiag

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"
)

// CANFrame is a J1939 frame carried in a 29-bit extended CAN identifier.
//
// Frames are built by Encode/Decode and are not modified afterwards. Identifier
// is always the encoding of Priority, PGN, Source and Destination.
type CANFrame struct {
	Identifier  uint32
	Priority    uint8
	PGN         uint32
	Source      uint8
	Destination uint8
	Data        []byte
	// Milliseconds, assigned on send or receipt.
	Timestamp int64
}

func (f *CANFrame) Length() int {
	return len(f.Data)
}

// PDUFormat returns the PF byte of the identifier.
func (f *CANFrame) PDUFormat() uint8 {
	return uint8(f.Identifier >> 16)
}

// PDUSpecific returns the PS byte of the identifier, the destination address
// for PDU1 frames and the group extension for PDU2 frames.
func (f *CANFrame) PDUSpecific() uint8 {
	return uint8(f.Identifier >> 8)
}

// IsPDU1 reports whether the frame is peer addressed.
func (f *CANFrame) IsPDU1() bool {
	return f.PDUFormat() < pdu2Threshold
}

func (f *CANFrame) IsBroadcast() bool {
	return f.Destination == BroadcastAddress
}

// WithTimestamp returns a copy of the frame stamped with ms.
func (f *CANFrame) WithTimestamp(ms int64) *CANFrame {
	out := *f
	out.Data = append([]byte(nil), f.Data...)
	out.Timestamp = ms
	return &out
}

// Reencode builds the identifier again from the frame fields.
func (f *CANFrame) Reencode() (uint32, error) {
	return Identifier(f.Priority, f.PGN, f.Source, f.Destination)
}

var (
	blue  = color.New(color.FgHiBlue).SprintfFunc()
	red   = color.New(color.FgRed).SprintfFunc()
	green = color.New(color.FgGreen).SprintfFunc()
)

func (f *CANFrame) String() string {
	return f.format(false)
}

func (f *CANFrame) ColorString() string {
	return f.format(true)
}

func (f *CANFrame) format(colored bool) string {
	var out strings.Builder

	id := fmt.Sprintf("0x%08X", f.Identifier)
	addr := fmt.Sprintf("p%d %05X %02X>%02X", f.Priority, f.PGN, f.Source, f.Destination)
	hexView := fmt.Sprintf("%-23s", hexString(f.Data))
	if colored {
		id = green(id)
		hexView = red(hexView)
		addr = blue(addr)
	}

	out.WriteString(fmt.Sprintf("%8d || ", f.Timestamp))
	out.WriteString(id + " || ")
	out.WriteString(addr + " || ")
	out.WriteString(strconv.Itoa(len(f.Data)) + " || ")
	out.WriteString(hexView)
	return out.String()
}

func hexString(data []byte) string {
	var out strings.Builder
	for i, b := range data {
		out.WriteString(fmt.Sprintf("%02X", b))
		if i != len(data)-1 {
			out.WriteString(" ")
		}
	}
	return out.String()
}
