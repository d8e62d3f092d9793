package report

import (
	"sort"
	"time"

	"github.com/roffe/candiag"
)

// ScanResult holds what one address poll produced. Frames are in arrival
// order within the poll window.
type ScanResult struct {
	Address   uint8
	Responded bool
	Frames    []*candiag.CANFrame
	RoundTrip time.Duration
	Failed    bool
	Err       error
}

// StepFailure is a send, receive or status step that kept failing after all
// retries.
type StepFailure struct {
	Step    string
	Address int // -1 when the step is not tied to an address
	Err     error
}

// Report is the immutable outcome of one diagnostic run.
type Report struct {
	StartedAt      time.Time
	Duration       time.Duration
	Scanned        map[uint8]*ScanResult
	PassiveFrames  []*candiag.CANFrame
	InitialStatus  candiag.BusStatus
	FinalStatus    candiag.BusStatus
	Classification Classification
	Failures       []StepFailure
	BusOffSeen     bool
	Recoveries     int
	Cancelled      bool
}

// Addresses returns the scanned addresses in ascending order.
func (r *Report) Addresses() []uint8 {
	out := make([]uint8, 0, len(r.Scanned))
	for addr := range r.Scanned {
		out = append(out, addr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Responders returns the addresses that answered, ascending.
func (r *Report) Responders() []uint8 {
	var out []uint8
	for _, addr := range r.Addresses() {
		if r.Scanned[addr].Responded {
			out = append(out, addr)
		}
	}
	return out
}

// FrameCount counts scan and passive frames together.
func (r *Report) FrameCount() int {
	n := len(r.PassiveFrames)
	for _, res := range r.Scanned {
		n += len(res.Frames)
	}
	return n
}
