package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/roffe/candiag/pkg/diag"
	"github.com/roffe/candiag/pkg/report"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(pinsCmd)
	f := pinsCmd.Flags()
	f.StringSlice("pairs", nil, "TX:RX pin pairs to try, e.g. 20:19,19:20 (default the common ESP32-S3 pairs)")
	f.Duration("listen", 3*time.Second, "how long to listen on each pair")
	f.BoolP("yes", "y", false, "do not ask for confirmation")
}

var pinsCmd = &cobra.Command{
	Use:   "pins",
	Short: "find the TX/RX pin pair the CAN transceiver is wired to",
	Long:  `Reinitializes the controller on each pin pair, checks for bus-off and listens for traffic without transmitting`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f := cmd.Flags()
		raw, _ := f.GetStringSlice("pairs")
		pairs := diag.DefaultPinPairs()
		if len(raw) > 0 {
			var err error
			if pairs, err = parsePinPairs(raw); err != nil {
				return err
			}
		}
		listen, _ := f.GetDuration("listen")

		if yes, _ := f.GetBool("yes"); !yes {
			fmt.Printf("reinitialize the controller on %d pin pairs?\n", len(pairs))
			if !yesNo() {
				return nil
			}
		}

		_, tr, e, err := initEngine(cmd, nil)
		if err != nil {
			return err
		}
		defer tr.Close()

		results, err := e.PinSweep(cmd.Context(), pairs, listen)
		var found *diag.PinResult
		for _, res := range results {
			line := fmt.Sprintf("%-14s %-22s %4d frame(s)  %s", res.Pins, classificationColor(res.Classification), res.Frames, res.Status)
			if res.Err != nil {
				line = fmt.Sprintf("%-14s %-22s %v", res.Pins, classificationColor(res.Classification), res.Err)
			}
			fmt.Println(line)
			if found == nil && res.Classification == report.Healthy {
				found = res
			}
		}
		if err != nil {
			return err
		}
		if found == nil {
			fmt.Println(red("no pin pair delivered traffic"))
			for _, line := range hints[report.NoSignal] {
				fmt.Println("  -", line)
			}
			return nil
		}
		fmt.Println(green(fmt.Sprintf("traffic on %s, set recovery.tx_pin %d and recovery.rx_pin %d", found.Pins, found.Pins.Tx, found.Pins.Rx)))
		return nil
	},
}

// parsePinPairs reads TX:RX pairs.
func parsePinPairs(raw []string) ([]diag.PinPair, error) {
	out := make([]diag.PinPair, 0, len(raw))
	for _, s := range raw {
		tx, rx, ok := strings.Cut(strings.TrimSpace(s), ":")
		if !ok {
			return nil, fmt.Errorf("invalid pin pair %q, want TX:RX", s)
		}
		t, err := strconv.Atoi(tx)
		if err != nil || t < 0 {
			return nil, fmt.Errorf("invalid TX pin in %q", s)
		}
		r, err := strconv.Atoi(rx)
		if err != nil || r < 0 {
			return nil, fmt.Errorf("invalid RX pin in %q", s)
		}
		out = append(out, diag.PinPair{Tx: t, Rx: r})
	}
	return out, nil
}
