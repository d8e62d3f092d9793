package report

import (
	"fmt"
	"strings"

	"github.com/roffe/candiag"
)

type Classification int

const (
	Healthy Classification = iota
	NoSignal
	InvalidSignal
	BusOff
	TransportUnreachable
)

func (c Classification) String() string {
	switch c {
	case Healthy:
		return "HEALTHY"
	case NoSignal:
		return "NO_SIGNAL"
	case InvalidSignal:
		return "INVALID_SIGNAL"
	case BusOff:
		return "BUS_OFF"
	case TransportUnreachable:
		return "TRANSPORT_UNREACHABLE"
	default:
		return "UNKNOWN"
	}
}

func (c Classification) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Classification) UnmarshalText(b []byte) error {
	for _, v := range []Classification{Healthy, NoSignal, InvalidSignal, BusOff, TransportUnreachable} {
		if strings.EqualFold(string(b), v.String()) {
			*c = v
			return nil
		}
	}
	return fmt.Errorf("unknown classification %q", string(b))
}

// Thresholds tune how error counter growth is judged.
type Thresholds struct {
	// Rx error growth tolerated on a bus that delivers frames.
	Noise uint32
	// Growth of either counter between two snapshots that counts as bus-off.
	Error uint32
}

// Inputs is everything a classification looks at.
type Inputs struct {
	Before, After candiag.BusStatus
	Frames        int
	BusOffSeen    bool
	Unreachable   bool
}

// Classify picks exactly one classification for a run.
//
// Order: unreachable transport, bus-off, then the frame count decides between
// a live bus and a silent one. Rx error growth turns either into
// InvalidSignal: on a live bus only past the noise threshold, on a silent bus
// on any growth.
//
// InvalidSignal therefore does not imply zero frames, and frames alone do not
// make a run Healthy: a bus that delivers frames while rx errors climb past
// Noise is reported as InvalidSignal. Tx error growth only counts through the
// Error threshold, where it means BusOff.
func Classify(in Inputs, th Thresholds) Classification {
	if in.Unreachable {
		return TransportUnreachable
	}
	if in.BusOffSeen || in.Before.IsBusOff() || in.After.IsBusOff() {
		return BusOff
	}
	tx, rx := in.After.Delta(in.Before)
	if th.Error > 0 && (tx > th.Error || rx > th.Error) {
		return BusOff
	}
	if in.Frames > 0 {
		if rx > th.Noise {
			return InvalidSignal
		}
		return Healthy
	}
	if rx > 0 {
		return InvalidSignal
	}
	return NoSignal
}
