package cmd

import (
	"fmt"

	"github.com/roffe/candiag"
	"github.com/roffe/candiag/pkg/bar"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().IntP("first", "f", 0, "first address, 0 = profile")
	scanCmd.Flags().IntP("last", "l", 0, "last address, 0 = profile")
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "poll every address in the scan range once",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		first, _ := cmd.Flags().GetInt("first")
		last, _ := cmd.Flags().GetInt("last")
		if err := checkAddressFlag("first", first); err != nil {
			return err
		}
		if err := checkAddressFlag("last", last); err != nil {
			return err
		}

		var pb *progressbar.ProgressBar
		_, tr, e, err := initEngine(cmd, func(ev candiag.Event) {
			if ev.Type == candiag.EventTypeProgress && pb != nil {
				bar.Describe(pb, "scanned", ev.Address)
				pb.Add(1)
			}
		})
		if err != nil {
			return err
		}
		defer tr.Close()

		cfg := e.Config()
		rng := cfg.Addresses
		if first > 0 {
			rng.First = uint8(first)
		}
		if last > 0 {
			rng.Last = uint8(last)
		}
		pb = bar.New(len(rng.Addresses()), "scanning")

		results, err := e.ScanAddresses(cmd.Context(), rng, cfg.Poll, cfg.PerAddressTimeout, cfg.InterPollDelay)
		if err != nil {
			return err
		}
		var responded int
		for _, addr := range rng.Addresses() {
			res := results[addr]
			if res.Responded {
				responded++
			}
			printScanResult(res)
		}
		fmt.Printf("%d of %d addresses responded\n", responded, len(results))
		return nil
	},
}

// checkAddressFlag accepts 0 (keep the profile value) or a node address.
func checkAddressFlag(name string, v int) error {
	if v < 0 || v > 254 {
		return fmt.Errorf("--%s %d outside 1-254", name, v)
	}
	return nil
}
