// Package export flattens a finished diagnostic report into rows for the
// time series sinks under pkg/export.
package export

import (
	"context"
	"time"

	"github.com/roffe/candiag/pkg/report"
)

// Sink stores finished reports.
type Sink interface {
	Export(ctx context.Context, session string, r *report.Report) error
	Close() error
}

const (
	KindScan    = "scan"
	KindPassive = "passive"
)

// FrameRow is one frame of a report.
type FrameRow struct {
	Session     string
	Time        time.Time
	Kind        string
	Address     int // polled address, -1 for passive frames
	Identifier  uint32
	Priority    uint8
	PGN         uint32
	Source      uint8
	Destination uint8
	Data        []byte
}

// Summary is the one row per run.
type Summary struct {
	Session        string
	Time           time.Time
	Duration       time.Duration
	Classification string
	Scanned        int
	Responders     int
	Frames         int
	Failures       int
	TxErrors       uint32
	RxErrors       uint32
	BusOff         bool
	Recoveries     int
	Cancelled      bool
}

// SessionID names a run after the time it started.
func SessionID(t time.Time) string {
	return t.UTC().Format("20060102T150405.000Z")
}

// Frames lists scan frames by ascending address followed by passive frames.
// Frame timestamps are session milliseconds and are placed after the report
// start time.
func Frames(session string, r *report.Report) []FrameRow {
	out := make([]FrameRow, 0, r.FrameCount())
	for _, addr := range r.Addresses() {
		for _, f := range r.Scanned[addr].Frames {
			out = append(out, FrameRow{
				Session:     session,
				Time:        r.StartedAt.Add(time.Duration(f.Timestamp) * time.Millisecond),
				Kind:        KindScan,
				Address:     int(addr),
				Identifier:  f.Identifier,
				Priority:    f.Priority,
				PGN:         f.PGN,
				Source:      f.Source,
				Destination: f.Destination,
				Data:        f.Data,
			})
		}
	}
	for _, f := range r.PassiveFrames {
		out = append(out, FrameRow{
			Session:     session,
			Time:        r.StartedAt.Add(time.Duration(f.Timestamp) * time.Millisecond),
			Kind:        KindPassive,
			Address:     -1,
			Identifier:  f.Identifier,
			Priority:    f.Priority,
			PGN:         f.PGN,
			Source:      f.Source,
			Destination: f.Destination,
			Data:        f.Data,
		})
	}
	return out
}

func Summarize(session string, r *report.Report) Summary {
	return Summary{
		Session:        session,
		Time:           r.StartedAt,
		Duration:       r.Duration,
		Classification: r.Classification.String(),
		Scanned:        len(r.Scanned),
		Responders:     len(r.Responders()),
		Frames:         r.FrameCount(),
		Failures:       len(r.Failures),
		TxErrors:       r.FinalStatus.TxErrors,
		RxErrors:       r.FinalStatus.RxErrors,
		BusOff:         r.BusOffSeen,
		Recoveries:     r.Recoveries,
		Cancelled:      r.Cancelled,
	}
}
