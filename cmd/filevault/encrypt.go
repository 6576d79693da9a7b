package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var encryptName string

var encryptCmd = &cobra.Command{
	Use:   "encrypt <file>",
	Short: "Encrypts a file into the blob store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		log.Infof("Starting encrypt command for %s", path)

		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer f.Close()

		name := encryptName
		if name == "" {
			name = filepath.Base(path)
		}

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

		stop := startSpinner(cmd, "Encrypting "+name+"...")
		blob, err := vault.UploadReader(cmd.Context(), name, f, password)
		stop()
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s Encrypted %s as %s\n",
			color.GreenString("✓"), color.YellowString(name), blob.ID)
		return nil
	},
}

func init() {
	encryptCmd.Flags().StringVar(&encryptName, "name", "", "filename to record instead of the base name of <file>")
}
