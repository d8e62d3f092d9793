package report

import (
	"sync"
	"time"

	"github.com/roffe/candiag"
)

// Aggregator builds a Report over the course of one run. It is safe for use
// by the scan loop and the listener at the same time.
type Aggregator struct {
	mu sync.Mutex

	th        Thresholds
	startedAt time.Time
	buffer    *FrameBuffer

	scanned     map[uint8]*ScanResult
	failures    []StepFailure
	before      *candiag.BusStatus
	after       *candiag.BusStatus
	busOffSeen  bool
	unreachable bool
	cancelled   bool
	recoveries  int

	done *Report
}

func NewAggregator(th Thresholds) *Aggregator {
	return &Aggregator{
		th:        th,
		startedAt: time.Now(),
		buffer:    NewFrameBuffer(),
		scanned:   make(map[uint8]*ScanResult),
	}
}

// Buffer is the shared passive frame buffer.
func (a *Aggregator) Buffer() *FrameBuffer {
	return a.buffer
}

// ObserveStatus records a status snapshot. The first one becomes the initial
// status, every later one the final status.
func (a *Aggregator) ObserveStatus(s candiag.BusStatus) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if s.IsBusOff() {
		a.busOffSeen = true
	}
	if a.before == nil {
		a.before = &s
		return
	}
	a.after = &s
}

func (a *Aggregator) MarkBusOff() {
	a.mu.Lock()
	a.busOffSeen = true
	a.mu.Unlock()
}

func (a *Aggregator) MarkRecovered() {
	a.mu.Lock()
	a.recoveries++
	a.mu.Unlock()
}

// MarkUnreachable records that the status endpoint could not be reached.
func (a *Aggregator) MarkUnreachable(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.unreachable = true
	a.failures = append(a.failures, StepFailure{Step: "status", Address: -1, Err: err})
}

func (a *Aggregator) MarkCancelled() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancelled {
		return
	}
	a.cancelled = true
	a.failures = append(a.failures, StepFailure{Step: "session", Address: -1, Err: candiag.ErrSessionCancelled})
}

func (a *Aggregator) RecordScan(res *ScanResult) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.scanned[res.Address] = res
	if res.Failed {
		a.failures = append(a.failures, StepFailure{Step: "scan", Address: int(res.Address), Err: res.Err})
	}
}

func (a *Aggregator) RecordFailure(step string, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failures = append(a.failures, StepFailure{Step: step, Address: -1, Err: err})
}

// Finish drains the frame buffer and freezes the report. Later calls return
// the same report.
func (a *Aggregator) Finish() *Report {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.done != nil {
		return a.done
	}

	r := &Report{
		StartedAt:     a.startedAt,
		Duration:      time.Since(a.startedAt),
		Scanned:       a.scanned,
		PassiveFrames: a.buffer.Drain(),
		Failures:      a.failures,
		BusOffSeen:    a.busOffSeen,
		Recoveries:    a.recoveries,
		Cancelled:     a.cancelled,
	}
	if a.before != nil {
		r.InitialStatus = *a.before
		r.FinalStatus = *a.before
	}
	if a.after != nil {
		r.FinalStatus = *a.after
	}
	r.Classification = Classify(Inputs{
		Before:      r.InitialStatus,
		After:       r.FinalStatus,
		Frames:      r.FrameCount(),
		BusOffSeen:  a.busOffSeen,
		Unreachable: a.unreachable,
	}, a.th)

	a.done = r
	return r
}
