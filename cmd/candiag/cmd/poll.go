package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/roffe/candiag"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(pollCmd)
	pollCmd.Flags().Duration("timeout", 500*time.Millisecond, "how long to wait for replies")
}

var pollCmd = &cobra.Command{
	Use:   "poll <address>",
	Short: "let the node poll one address with its own request",
	Long:  `Only transports whose node firmware can poll on its own support this, e.g. serial`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := strconv.ParseUint(args[0], 0, 8)
		if err != nil {
			return fmt.Errorf("invalid address %q: %w", args[0], err)
		}
		p, err := loadProfile(cmd)
		if err != nil {
			return err
		}
		tr, err := openTransport(cmd.Context(), p)
		if err != nil {
			return err
		}
		defer tr.Close()

		poller, ok := tr.(candiag.AddressPoller)
		if !ok {
			return fmt.Errorf("%s: %w", tr.Name(), candiag.ErrUnsupported)
		}
		timeout, _ := cmd.Flags().GetDuration("timeout")
		frames, err := poller.Poll(cmd.Context(), uint8(addr), timeout)
		if err != nil {
			return err
		}
		if len(frames) == 0 {
			fmt.Printf("%02X no response\n", addr)
			return nil
		}
		for _, f := range frames {
			fmt.Println(f.ColorString())
		}
		return nil
	},
}
