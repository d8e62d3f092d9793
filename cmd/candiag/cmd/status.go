package cmd

import (
	"errors"
	"fmt"

	"github.com/roffe/candiag"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "print the bus status of the node",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, tr, e, err := initEngine(cmd, nil)
		if err != nil {
			return err
		}
		defer tr.Close()

		st, err := e.HealthCheck(cmd.Context())
		var fault *candiag.ProtocolFault
		if errors.As(err, &fault) {
			fmt.Println(red(st.String()))
			return fault
		}
		if err != nil {
			return err
		}
		fmt.Println(green(st.String()))
		return nil
	},
}
