package cmd

import (
	"fmt"
	"log"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(reinitCmd)
	reinitCmd.Flags().Int("tx", 0, "TX pin, 0 = profile")
	reinitCmd.Flags().Int("rx", 0, "RX pin, 0 = profile")
	reinitCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation")
}

var reinitCmd = &cobra.Command{
	Use:   "reinit",
	Short: "reinitialize the CAN controller of the node",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadProfile(cmd)
		if err != nil {
			return err
		}
		tx, rx := p.Recovery.TxPin, p.Recovery.RxPin
		if v, _ := cmd.Flags().GetInt("tx"); v > 0 {
			tx = v
		}
		if v, _ := cmd.Flags().GetInt("rx"); v > 0 {
			rx = v
		}
		if yes, _ := cmd.Flags().GetBool("yes"); !yes {
			fmt.Printf("reinitialize the controller with TX pin %d and RX pin %d?\n", tx, rx)
			if !yesNo() {
				return nil
			}
		}

		tr, err := openTransport(cmd.Context(), p)
		if err != nil {
			return err
		}
		defer tr.Close()
		if err := tr.Reinit(cmd.Context(), tx, rx); err != nil {
			return err
		}
		log.Println("controller reinitialized")
		return nil
	},
}

func yesNo() bool {
	prompt := promptui.Select{
		Label:    "[Yes/No]",
		HideHelp: true,
		Items:    []string{"Yes", "No"},
	}
	_, result, err := prompt.Run()
	if err != nil {
		log.Fatalf("Prompt failed %v\n", err)
	}
	return result == "Yes"
}
