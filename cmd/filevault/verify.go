package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <id>",
	Short: "Checks that a blob decrypts and matches its checksum",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]

		password, err := readPassword(cmd, passwordEnv, "Password: ")
		if err != nil {
			return err
		}
		defer clear(password)

		vault, release, err := openVault()
		if err != nil {
			return err
		}
		defer release()

		stop := startSpinner(cmd, "Verifying "+id+"...")
		err = vault.Verify(cmd.Context(), id, password)
		stop()
		if err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s failed verification\n", color.RedString("✗"), id)
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s %s verified\n", color.GreenString("✓"), id)
		return nil
	},
}
