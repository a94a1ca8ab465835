package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var pubkeyCmd = &cobra.Command{
	Use:   "pubkey",
	Short: "Print the oracle public key",
	Long:  `Load or generate the oracle key and print its x-only public key as hex`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		registry, err := loadKeys(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), registry.PubkeyHex())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pubkeyCmd)
}
