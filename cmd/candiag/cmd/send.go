package cmd

import (
	"fmt"
	"strconv"

	"github.com/roffe/candiag"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(sendCmd)
	f := sendCmd.Flags()
	f.Uint8P("priority", "P", 6, "priority 0-7")
	f.Uint8P("source", "s", 0x63, "source address")
	f.Uint8P("destination", "D", candiag.BroadcastAddress, "destination address")
	f.Bool("force-broadcast", false, "send PDU2 groups to the global address whatever the destination")
	f.Duration("listen", 0, "receive replies for this long after sending")
}

var sendCmd = &cobra.Command{
	Use:   "send <pgn> [data bytes...]",
	Short: "encode and send one frame",
	Long:  `PGN and data bytes are hex, e.g. send FF41 11 00 00 00 00 00 00 00`,
	Args:  cobra.RangeArgs(1, 9),
	RunE: func(cmd *cobra.Command, args []string) error {
		pgn, err := strconv.ParseUint(args[0], 16, 32)
		if err != nil {
			return fmt.Errorf("invalid pgn %q: %w", args[0], err)
		}
		data := make([]byte, 0, len(args)-1)
		for _, a := range args[1:] {
			b, err := strconv.ParseUint(a, 16, 8)
			if err != nil {
				return fmt.Errorf("invalid data byte %q: %w", a, err)
			}
			data = append(data, byte(b))
		}

		f := cmd.Flags()
		prio, _ := f.GetUint8("priority")
		src, _ := f.GetUint8("source")
		dst, _ := f.GetUint8("destination")
		var opts []candiag.EncodeOption
		if force, _ := f.GetBool("force-broadcast"); force {
			opts = append(opts, candiag.ForceBroadcast())
		}
		frame, err := candiag.Encode(prio, uint32(pgn), src, dst, data, opts...)
		if err != nil {
			return err
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

		if err := tr.Send(cmd.Context(), frame); err != nil {
			return err
		}
		fmt.Println(frame.ColorString())

		listen, _ := f.GetDuration("listen")
		if listen <= 0 {
			return nil
		}
		frames, err := tr.Receive(cmd.Context(), listen)
		if err != nil {
			return err
		}
		for _, fr := range frames {
			fmt.Println(fr.ColorString())
		}
		return nil
	},
}
