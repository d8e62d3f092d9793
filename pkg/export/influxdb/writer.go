// Package influxdb writes diagnostic reports to an InfluxDB 3 database.
package influxdb

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/InfluxCommunity/influxdb3-go/v2/influxdb3"
	"github.com/roffe/candiag/pkg/export"
	"github.com/roffe/candiag/pkg/report"
)

// Config holds InfluxDB connection configuration
type Config struct {
	Host        string
	Token       string
	Database    string
	Measurement string
}

// Writer stores one point per frame in Measurement and one summary point
// per run in Measurement_runs.
type Writer struct {
	client      *influxdb3.Client
	measurement string
}

var _ export.Sink = (*Writer)(nil)

func New(cfg Config) (*Writer, error) {
	if cfg.Host == "" || cfg.Database == "" {
		return nil, errors.New("influxdb: host and database are required")
	}
	client, err := influxdb3.New(influxdb3.ClientConfig{
		Host:     cfg.Host,
		Token:    cfg.Token,
		Database: cfg.Database,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create InfluxDB client: %w", err)
	}
	m := cfg.Measurement
	if m == "" {
		m = "can_diagnostics"
	}
	return &Writer{client: client, measurement: m}, nil
}

func (w *Writer) Export(ctx context.Context, session string, r *report.Report) error {
	rows := export.Frames(session, r)
	points := make([]*influxdb3.Point, 0, len(rows)+1)
	for _, row := range rows {
		points = append(points, influxdb3.NewPoint(
			w.measurement,
			map[string]string{
				"session": row.Session,
				"kind":    row.Kind,
				"source":  strconv.Itoa(int(row.Source)),
				"pgn":     fmt.Sprintf("%05X", row.PGN),
			},
			map[string]any{
				"address":     int64(row.Address),
				"identifier":  int64(row.Identifier),
				"priority":    int64(row.Priority),
				"destination": int64(row.Destination),
				"dlc":         int64(len(row.Data)),
				"data":        fmt.Sprintf("%X", row.Data),
			},
			row.Time,
		))
	}
	points = append(points, summaryPoint(w.measurement+"_runs", export.Summarize(session, r)))
	if err := w.client.WritePoints(ctx, points); err != nil {
		return fmt.Errorf("failed to write %d points: %w", len(points), err)
	}
	return nil
}

func summaryPoint(measurement string, s export.Summary) *influxdb3.Point {
	return influxdb3.NewPoint(
		measurement,
		map[string]string{
			"session":        s.Session,
			"classification": s.Classification,
		},
		map[string]any{
			"duration_ms": s.Duration.Milliseconds(),
			"scanned":     int64(s.Scanned),
			"responders":  int64(s.Responders),
			"frames":      int64(s.Frames),
			"failures":    int64(s.Failures),
			"tx_errors":   int64(s.TxErrors),
			"rx_errors":   int64(s.RxErrors),
			"bus_off":     s.BusOff,
			"recoveries":  int64(s.Recoveries),
			"cancelled":   s.Cancelled,
		},
		s.Time,
	)
}

func (w *Writer) Close() error {
	return w.client.Close()
}
