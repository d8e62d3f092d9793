package adapter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/roffe/candiag"
	"github.com/roffe/candiag/pkg/serialcommand"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

func init() {
	if err := candiag.RegisterTransport(&candiag.TransportInfo{
		Name:               "serial",
		Description:        "node serial console (canstatus/canpoll/canmon/cansend)",
		RequiresSerialPort: true,
		New:                NewSerial,
	}); err != nil {
		panic(err)
	}
}

const (
	defaultBaudrate    = 115200
	defaultQuietPeriod = 100 * time.Millisecond
)

type serialPort interface {
	io.ReadWriteCloser
	ResetInputBuffer() error
}

type portOpener func(name string, baudrate int) (serialPort, error)

// Serial drives the node's console. Every command is a write followed by a
// read of the free text reply, so all port I/O is serialized.
type Serial struct {
	BaseAdapter
	open  portOpener
	quiet time.Duration
	slack time.Duration

	mu     sync.Mutex
	port   serialPort
	opened time.Time
}

type serialLine struct {
	text string
	at   time.Time
}

func NewSerial(cfg *candiag.TransportConfig) (candiag.Transport, error) {
	return newSerial(cfg, openSerialPort), nil
}

func newSerial(cfg *candiag.TransportConfig, open portOpener) *Serial {
	quiet := cfg.QuietPeriod
	if quiet <= 0 {
		quiet = defaultQuietPeriod
	}
	slack := cfg.RequestTimeout
	if slack <= 0 {
		slack = defaultRequestTimeout
	}
	return &Serial{
		BaseAdapter: NewBaseAdapter("serial", cfg),
		open:        open,
		quiet:       quiet,
		slack:       slack,
	}
}

func openSerialPort(name string, baudrate int) (serialPort, error) {
	if baudrate <= 0 {
		baudrate = defaultBaudrate
	}
	mode := &serial.Mode{
		BaudRate: baudrate,
		Parity:   serial.NoParity,
		DataBits: 8,
		StopBits: serial.OneStopBit,
	}
	p, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open com port %q : %v", name, err)
	}
	if err := p.SetReadTimeout(1 * time.Millisecond); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

// PortList returns the names of the serial ports present, logging USB
// details through onMessage.
func PortList(onMessage func(string)) ([]string, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, err
	}
	if len(ports) == 0 {
		return nil, errors.New("no serial ports found")
	}
	var out []string
	for _, port := range ports {
		out = append(out, port.Name)
		if onMessage == nil {
			continue
		}
		msg := "port: " + port.Name
		if port.IsUSB {
			msg += fmt.Sprintf(" usb %s:%s serial %s", port.VID, port.PID, port.SerialNumber)
		}
		onMessage(msg)
	}
	return out, nil
}

func (s *Serial) Open(ctx context.Context) error {
	name := s.cfg.Port
	if name == "" || name == "*" {
		if _, err := PortList(s.cfg.OnMessage); err != nil {
			return s.errorf("open", candiag.Unrecoverable(err))
		}
		return s.errorf("open", candiag.Unrecoverable(errors.New("no device selected")))
	}
	if runtime.GOOS == "windows" {
		name = strings.ToUpper(name)
	}
	p, err := s.open(name, s.cfg.PortBaudrate)
	if err != nil {
		return s.errorf("open", candiag.Unrecoverable(err))
	}
	s.mu.Lock()
	s.port = p
	s.opened = time.Now()
	s.mu.Unlock()
	if err := p.ResetInputBuffer(); err != nil {
		s.debugf("reset input buffer: %v", err)
	}
	s.debugf("opened %s", name)
	return nil
}

func (s *Serial) Close() error {
	s.BaseAdapter.Close()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	return err
}

func (s *Serial) Send(ctx context.Context, frame *candiag.CANFrame) error {
	pgn := frame.PGN
	if frame.IsPDU1() {
		pgn |= uint32(frame.Destination)
	}
	cmd, err := serialcommand.Send(pgn, frame.Data)
	if err != nil {
		return s.errorf("send", candiag.Unrecoverable(err))
	}
	lines, err := s.command(ctx, "send", cmd, s.slack, true)
	if err != nil {
		return err
	}
	for _, l := range lines {
		low := strings.ToLower(l.text)
		if strings.Contains(low, "error") || strings.Contains(low, "fail") {
			return s.errorf("send", fmt.Errorf("%w: %s", candiag.ErrNotAcknowledged, l.text))
		}
	}
	return nil
}

// Receive runs canmon and collects frame lines for the whole window.
func (s *Serial) Receive(ctx context.Context, timeout time.Duration) ([]*candiag.CANFrame, error) {
	if timeout <= 0 {
		return []*candiag.CANFrame{}, nil
	}
	return s.frames(ctx, "receive", serialcommand.Monitor(), timeout)
}

// Poll asks the node itself to poll address and returns what came back
// within timeout.
func (s *Serial) Poll(ctx context.Context, address uint8, timeout time.Duration) ([]*candiag.CANFrame, error) {
	return s.frames(ctx, "poll", serialcommand.Poll(address), timeout)
}

func (s *Serial) Status(ctx context.Context) (candiag.BusStatus, error) {
	lines, err := s.command(ctx, "status", serialcommand.Status(), s.slack, true)
	if err != nil {
		return candiag.BusStatus{}, err
	}
	texts := make([]string, len(lines))
	for i, l := range lines {
		texts[i] = l.text
	}
	st, err := serialcommand.ParseStatus(texts)
	if err != nil {
		return candiag.BusStatus{}, s.errorf("status", err)
	}
	return st, nil
}

func (s *Serial) Reinit(ctx context.Context, txPin, rxPin int) error {
	return s.errorf("reinit", candiag.Unrecoverable(candiag.ErrUnsupported))
}

func (s *Serial) frames(ctx context.Context, op string, cmd *serialcommand.SerialCommand, window time.Duration) ([]*candiag.CANFrame, error) {
	lines, err := s.command(ctx, op, cmd, window, false)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	opened := s.opened
	s.mu.Unlock()
	out := make([]*candiag.CANFrame, 0, len(lines))
	for _, l := range lines {
		id, data, ok := serialcommand.ParseFrameLine(l.text)
		if !ok {
			continue
		}
		f := candiag.Decode(id, data)
		f.Timestamp = l.at.Sub(opened).Milliseconds()
		out = append(out, f)
	}
	return out, nil
}

// command writes cmd and collects reply lines. With untilQuiet the read ends
// once the port has been silent for the quiet period after at least one line,
// otherwise it runs for the full limit.
func (s *Serial) command(ctx context.Context, op string, cmd *serialcommand.SerialCommand, limit time.Duration, untilQuiet bool) ([]serialLine, error) {
	if err := s.checkOpen(op); err != nil {
		return nil, err
	}
	b, err := cmd.MarshalText()
	if err != nil {
		return nil, s.errorf(op, candiag.Unrecoverable(err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port == nil {
		return nil, s.errorf(op, candiag.Unrecoverable(candiag.ErrTransportNotReady))
	}
	if err := s.port.ResetInputBuffer(); err != nil {
		s.debugf("reset input buffer: %v", err)
	}
	s.debugf(">> %s", cmd)
	if _, err := s.port.Write(b); err != nil {
		return nil, s.errorf(op, fmt.Errorf("failed to write to com port: %w", err))
	}

	echo := cmd.String()
	var (
		lines    []serialLine
		pending  bytes.Buffer
		readBuf  = make([]byte, 64)
		deadline = time.Now().Add(limit)
		lastRead = time.Now()
	)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		now := time.Now()
		if !now.Before(deadline) {
			break
		}
		if untilQuiet && len(lines) > 0 && now.Sub(lastRead) >= s.quiet {
			break
		}
		n, err := s.port.Read(readBuf)
		if err != nil {
			return nil, s.errorf(op, fmt.Errorf("failed to read com port: %w", err))
		}
		if n == 0 {
			continue
		}
		lastRead = time.Now()
		pending.Write(readBuf[:n])
		for {
			idx := bytes.IndexByte(pending.Bytes(), '\n')
			if idx < 0 {
				break
			}
			text := strings.TrimSpace(string(pending.Next(idx + 1)))
			if text == "" || text == echo {
				continue
			}
			s.debugf("<< %s", text)
			lines = append(lines, serialLine{text: text, at: lastRead})
		}
	}
	if text := strings.TrimSpace(pending.String()); text != "" && text != echo {
		lines = append(lines, serialLine{text: text, at: lastRead})
	}
	return lines, nil
}
