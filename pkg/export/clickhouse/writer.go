// Package clickhouse writes diagnostic reports to ClickHouse.
package clickhouse

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/roffe/candiag/pkg/export"
	"github.com/roffe/candiag/pkg/report"
)

// Config holds ClickHouse connection configuration
type Config struct {
	Addr     []string
	Database string
	Username string
	Password string
	Table    string
}

// Writer stores frames in Table and run summaries in Table_runs.
type Writer struct {
	conn  driver.Conn
	table string
}

var _ export.Sink = (*Writer)(nil)

func New(ctx context.Context, cfg Config) (*Writer, error) {
	if len(cfg.Addr) == 0 {
		return nil, errors.New("clickhouse: no address configured")
	}
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: cfg.Addr,
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout: 5 * time.Second,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open ClickHouse connection: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}
	table := cfg.Table
	if table == "" {
		table = "can_diagnostics"
	}
	w := &Writer{conn: conn, table: table}
	if err := w.createTables(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return w, nil
}

func (w *Writer) createTables(ctx context.Context) error {
	frames := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			timestamp DateTime64(3),
			session String,
			kind LowCardinality(String),
			address Int16,
			identifier UInt32,
			priority UInt8,
			pgn UInt32,
			source UInt8,
			destination UInt8,
			data Array(UInt8)
		) ENGINE = MergeTree()
		ORDER BY (session, timestamp)
		PARTITION BY toYYYYMMDD(timestamp)
	`, w.table)
	if err := w.conn.Exec(ctx, frames); err != nil {
		return fmt.Errorf("failed to create table %s: %w", w.table, err)
	}
	runs := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s_runs (
			timestamp DateTime64(3),
			session String,
			classification LowCardinality(String),
			duration_ms Int64,
			scanned UInt16,
			responders UInt16,
			frames UInt32,
			failures UInt32,
			tx_errors UInt32,
			rx_errors UInt32,
			bus_off Bool,
			recoveries UInt32,
			cancelled Bool
		) ENGINE = MergeTree()
		ORDER BY (timestamp, session)
	`, w.table)
	if err := w.conn.Exec(ctx, runs); err != nil {
		return fmt.Errorf("failed to create table %s_runs: %w", w.table, err)
	}
	return nil
}

func (w *Writer) Export(ctx context.Context, session string, r *report.Report) error {
	rows := export.Frames(session, r)
	if len(rows) > 0 {
		batch, err := w.conn.PrepareBatch(ctx, fmt.Sprintf("INSERT INTO %s", w.table))
		if err != nil {
			return fmt.Errorf("failed to prepare batch: %w", err)
		}
		for _, row := range rows {
			data := row.Data
			if data == nil {
				data = []byte{}
			}
			if err := batch.Append(
				row.Time,
				row.Session,
				row.Kind,
				int16(row.Address),
				row.Identifier,
				row.Priority,
				row.PGN,
				row.Source,
				row.Destination,
				data,
			); err != nil {
				batch.Abort()
				return fmt.Errorf("failed to append frame: %w", err)
			}
		}
		if err := batch.Send(); err != nil {
			return fmt.Errorf("failed to send batch: %w", err)
		}
	}

	s := export.Summarize(session, r)
	batch, err := w.conn.PrepareBatch(ctx, fmt.Sprintf("INSERT INTO %s_runs", w.table))
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}
	if err := batch.Append(
		s.Time,
		s.Session,
		s.Classification,
		s.Duration.Milliseconds(),
		uint16(s.Scanned),
		uint16(s.Responders),
		uint32(s.Frames),
		uint32(s.Failures),
		s.TxErrors,
		s.RxErrors,
		s.BusOff,
		uint32(s.Recoveries),
		s.Cancelled,
	); err != nil {
		batch.Abort()
		return fmt.Errorf("failed to append summary: %w", err)
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	return nil
}

func (w *Writer) Close() error {
	return w.conn.Close()
}
