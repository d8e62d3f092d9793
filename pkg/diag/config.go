package diag

import (
	"errors"
	"fmt"
	"time"

	"github.com/roffe/candiag"
	"github.com/roffe/candiag/pkg/report"
)

type Backoff int

const (
	BackoffFixed Backoff = iota
	BackoffExponential
)

func (b Backoff) String() string {
	if b == BackoffExponential {
		return "exponential"
	}
	return "fixed"
}

// AddressRange is an inclusive range of node addresses.
type AddressRange struct {
	First uint8
	Last  uint8
}

func (r AddressRange) Addresses() []uint8 {
	if r.First > r.Last {
		return nil
	}
	out := make([]uint8, 0, int(r.Last)-int(r.First)+1)
	for a := int(r.First); a <= int(r.Last); a++ {
		out = append(out, uint8(a))
	}
	return out
}

func (r AddressRange) validate() error {
	if r.First < 1 || r.Last > 254 {
		return fmt.Errorf("address range %d-%d outside 1-254", r.First, r.Last)
	}
	if r.First > r.Last {
		return fmt.Errorf("address range %d-%d is empty", r.First, r.Last)
	}
	return nil
}

// PollTemplate is the frame sent to every scanned address.
type PollTemplate struct {
	Priority uint8
	PGN      uint32
	Source   uint8
	Data     []byte
	// Address PDU2 polls to the global address instead of rejecting them.
	ForceBroadcast bool
}

// Frame builds the poll frame for destination.
func (t PollTemplate) Frame(destination uint8) (*candiag.CANFrame, error) {
	var opts []candiag.EncodeOption
	if t.ForceBroadcast {
		opts = append(opts, candiag.ForceBroadcast())
	}
	return candiag.Encode(t.Priority, t.PGN, t.Source, destination, t.Data, opts...)
}

type Config struct {
	Addresses         AddressRange
	Poll              PollTemplate
	PerAddressTimeout time.Duration
	InterPollDelay    time.Duration
	// Send the poll once to the global address after the scan.
	BroadcastPoll   bool
	MonitorDuration time.Duration

	// Listen for broadcast traffic in the background while scanning.
	ConcurrentListener bool
	ListenWindow       time.Duration

	MaxRetries uint
	RetryDelay time.Duration
	Backoff    Backoff
	// Upper bound for send, status and reinit calls, and the slack added to
	// every receive window.
	RequestTimeout time.Duration

	Thresholds report.Thresholds

	TxPin         int
	RxPin         int
	RecoveryDelay time.Duration
}

// DefaultConfig polls the POWERCELL address block the field scripts use.
func DefaultConfig() Config {
	return Config{
		Addresses: AddressRange{First: 1, Last: 16},
		Poll: PollTemplate{
			Priority:       6,
			PGN:            0xFF41,
			Source:         0x63,
			Data:           []byte{0x11, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
			ForceBroadcast: true,
		},
		PerAddressTimeout: 200 * time.Millisecond,
		InterPollDelay:    100 * time.Millisecond,
		MonitorDuration:   5 * time.Second,
		ListenWindow:      500 * time.Millisecond,
		MaxRetries:        3,
		RetryDelay:        100 * time.Millisecond,
		Backoff:           BackoffExponential,
		RequestTimeout:    3 * time.Second,
		Thresholds: report.Thresholds{
			Noise: 5,
			Error: 100,
		},
		TxPin:         19,
		RxPin:         20,
		RecoveryDelay: 100 * time.Millisecond,
	}
}

func (c Config) Validate() error {
	if err := c.Addresses.validate(); err != nil {
		return err
	}
	if _, err := candiag.Identifier(c.Poll.Priority, c.Poll.PGN, c.Poll.Source, candiag.BroadcastAddress); err != nil {
		return fmt.Errorf("poll template: %w", err)
	}
	if len(c.Poll.Data) > candiag.MaxDataLength {
		return fmt.Errorf("poll template: %w", &candiag.InvalidFrameError{Field: "data", Value: uint32(len(c.Poll.Data)), Reason: "payload longer than 8 bytes"})
	}
	if c.PerAddressTimeout < 0 || c.InterPollDelay < 0 || c.MonitorDuration < 0 || c.RetryDelay < 0 || c.RecoveryDelay < 0 {
		return errors.New("durations must not be negative")
	}
	if c.RequestTimeout <= 0 {
		return errors.New("request timeout must be > 0")
	}
	if c.ConcurrentListener && c.ListenWindow <= 0 {
		return errors.New("listen window must be > 0 when the concurrent listener is enabled")
	}
	return nil
}
