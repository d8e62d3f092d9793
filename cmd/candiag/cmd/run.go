package cmd

import (
	"context"
	"log"
	"time"

	"github.com/roffe/candiag/pkg/config"
	"github.com/roffe/candiag/pkg/export"
	"github.com/roffe/candiag/pkg/export/clickhouse"
	"github.com/roffe/candiag/pkg/export/influxdb"
	"github.com/roffe/candiag/pkg/report"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().Bool("no-export", false, "do not export the report to the sinks in the profile")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "full diagnostic session: health check, scan, monitor, health check",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, tr, e, err := initEngine(cmd, nil)
		if err != nil {
			return err
		}
		defer tr.Close()

		r := e.RunFull(cmd.Context())
		printReport(r)

		if noExport, _ := cmd.Flags().GetBool("no-export"); noExport {
			return nil
		}
		// the session context may be cancelled already, exports still get a chance
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return exportReport(ctx, p.Export, r)
	},
}

func openSinks(ctx context.Context, cfg config.ExportConfig) ([]export.Sink, error) {
	var sinks []export.Sink
	if in := cfg.InfluxDB; in != nil {
		w, err := influxdb.New(influxdb.Config{
			Host:        in.Host,
			Token:       in.Token,
			Database:    in.Database,
			Measurement: in.Measurement,
		})
		if err != nil {
			return sinks, err
		}
		sinks = append(sinks, w)
	}
	if ch := cfg.ClickHouse; ch != nil {
		w, err := clickhouse.New(ctx, clickhouse.Config{
			Addr:     ch.Addr,
			Database: ch.Database,
			Username: ch.Username,
			Password: ch.Password,
			Table:    ch.Table,
		})
		if err != nil {
			return sinks, err
		}
		sinks = append(sinks, w)
	}
	return sinks, nil
}

func exportReport(ctx context.Context, cfg config.ExportConfig, r *report.Report) error {
	sinks, err := openSinks(ctx, cfg)
	defer func() {
		for _, s := range sinks {
			if err := s.Close(); err != nil {
				log.Println("close sink:", err)
			}
		}
	}()
	if err != nil {
		return err
	}
	session := export.SessionID(r.StartedAt)
	for _, s := range sinks {
		if err := s.Export(ctx, session, r); err != nil {
			return err
		}
	}
	if len(sinks) > 0 {
		log.Printf("exported session %s to %d sink(s)", session, len(sinks))
	}
	return nil
}
