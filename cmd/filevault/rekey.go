package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var newPasswordEnv string

var rekeyCmd = &cobra.Command{
	Use:   "rekey <id>",
	Short: "Re-encrypts a blob under a new password",
	Long: `Re-encrypts a blob under a new password with the current cipher and KDF
settings. The blob gets a new ID; the old blob is removed once the new one is stored.

Without --password-env and --new-password-env, the old and new passwords are
read from the terminal, or as the first two lines of stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]

		oldPassword, err := readPassword(cmd, passwordEnv, "Current password: ")
		if err != nil {
			return err
		}
		defer clear(oldPassword)

		newPassword, err := readPassword(cmd, newPasswordEnv, "New password: ")
		if err != nil {
			return err
		}
		defer clear(newPassword)

		vault, release, err := openVault()
		if err != nil {
			return err
		}
		defer release()

		stop := startSpinner(cmd, "Re-encrypting "+id+"...")
		rekeyed, err := vault.Rotate(cmd.Context(), id, oldPassword, newPassword)
		stop()
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s Re-encrypted %s as %s\n",
			color.GreenString("✓"), id, color.YellowString(rekeyed.ID))
		return nil
	},
}

func init() {
	rekeyCmd.Flags().StringVar(&newPasswordEnv, "new-password-env", "", "read the new password from this environment variable")
}

func resetRekeyCommandState() {
	newPasswordEnv = ""
}
