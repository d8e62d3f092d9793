// Package serialcommand speaks the node's newline terminated serial console:
// it builds commands and parses the free text that comes back.
package serialcommand

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	CmdStatus  = "canstatus"
	CmdPoll    = "canpoll"
	CmdMonitor = "canmon"
	CmdSend    = "cansend"
)

type SerialCommand struct {
	Name string
	Args []string
}

func NewSerialCommand(name string, args ...string) *SerialCommand {
	return &SerialCommand{
		Name: name,
		Args: args,
	}
}

func Status() *SerialCommand {
	return NewSerialCommand(CmdStatus)
}

func Poll(address uint8) *SerialCommand {
	return NewSerialCommand(CmdPoll, strconv.Itoa(int(address)))
}

func Monitor() *SerialCommand {
	return NewSerialCommand(CmdMonitor)
}

// Send builds "cansend <pgn-hex> <8 hex bytes>". Short payloads are padded
// with zeros since the console always expects eight bytes.
func Send(pgn uint32, data []byte) (*SerialCommand, error) {
	if len(data) > 8 {
		return nil, fmt.Errorf("data size is too big")
	}
	args := make([]string, 0, 9)
	args = append(args, fmt.Sprintf("%04X", pgn))
	for i := 0; i < 8; i++ {
		var b byte
		if i < len(data) {
			b = data[i]
		}
		args = append(args, fmt.Sprintf("%02X", b))
	}
	return NewSerialCommand(CmdSend, args...), nil
}

func (sc *SerialCommand) MarshalText() ([]byte, error) {
	if sc.Name == "" || strings.ContainsAny(sc.Name, " \t\r\n") {
		return nil, fmt.Errorf("invalid command name %q", sc.Name)
	}
	var b strings.Builder
	b.WriteString(sc.Name)
	for _, a := range sc.Args {
		if a == "" || strings.ContainsAny(a, " \t\r\n") {
			return nil, fmt.Errorf("invalid argument %q", a)
		}
		b.WriteByte(' ')
		b.WriteString(a)
	}
	b.WriteByte('\n')
	return []byte(b.String()), nil
}

func (sc *SerialCommand) UnmarshalText(data []byte) error {
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return fmt.Errorf("empty command")
	}
	sc.Name = fields[0]
	sc.Args = fields[1:]
	return nil
}

func (sc *SerialCommand) String() string {
	return strings.TrimSpace(sc.Name + " " + strings.Join(sc.Args, " "))
}
