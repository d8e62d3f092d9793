package cmd

import (
	"fmt"

	"github.com/roffe/candiag"
	"github.com/roffe/candiag/adapter"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(transportsCmd)
	rootCmd.AddCommand(portsCmd)
}

var transportsCmd = &cobra.Command{
	Use:   "transports",
	Short: "list available transports",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		for _, t := range candiag.ListTransports() {
			fmt.Println(t.String())
		}
	},
}

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "list serial ports",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := adapter.PortList(func(msg string) { fmt.Println(msg) })
		return err
	},
}
