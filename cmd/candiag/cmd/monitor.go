package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().DurationP("duration", "D", 0, "how long to listen, 0 = profile")
}

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "listen to the bus without transmitting",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, tr, e, err := initEngine(cmd, nil)
		if err != nil {
			return err
		}
		defer tr.Close()

		d, _ := cmd.Flags().GetDuration("duration")
		if d <= 0 {
			d = e.Config().MonitorDuration
		}
		start := time.Now()
		seq := e.PassiveMonitor(cmd.Context(), d)
		var n int
		for f, ok := seq.Next(); ok; f, ok = seq.Next() {
			fmt.Println(f.ColorString())
			n++
		}
		if err := seq.Err(); err != nil {
			return err
		}
		fmt.Printf("%d frames in %s\n", n, time.Since(start).Round(time.Millisecond))
		return nil
	},
}
