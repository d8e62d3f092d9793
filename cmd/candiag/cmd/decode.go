package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roffe/candiag"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(decodeCmd)
}

var decodeCmd = &cobra.Command{
	Use:   "decode <identifier> [data bytes...]",
	Short: "decode a 29-bit identifier, no transport needed",
	Args:  cobra.RangeArgs(1, 9),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(args[0]), "0x"), 16, 32)
		if err != nil || id > candiag.MaxIdentifier {
			return fmt.Errorf("invalid identifier %q", args[0])
		}
		var data []byte
		for _, a := range args[1:] {
			b, err := strconv.ParseUint(a, 16, 8)
			if err != nil {
				return fmt.Errorf("invalid data byte %q: %w", a, err)
			}
			data = append(data, byte(b))
		}
		f := candiag.Decode(uint32(id), data)
		fmt.Println(f.ColorString())
		kind := "PDU2 (broadcast)"
		if f.IsPDU1() {
			kind = "PDU1 (destination specific)"
		}
		fmt.Printf("priority:    %d\n", f.Priority)
		fmt.Printf("pgn:         0x%05X (%d)\n", f.PGN, f.PGN)
		fmt.Printf("format:      %s, PF %02X PS %02X\n", kind, f.PDUFormat(), f.PDUSpecific())
		fmt.Printf("source:      0x%02X\n", f.Source)
		fmt.Printf("destination: 0x%02X\n", f.Destination)
		return nil
	},
}
