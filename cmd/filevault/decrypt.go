package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	decryptOutput string
	decryptForce  bool
)

var decryptCmd = &cobra.Command{
	Use:   "decrypt <id>",
	Short: "Decrypts a blob back into its original file",
	Long: `Decrypts a blob and writes it under its original filename in the current
directory, or to the path given with -o. Use -o - to write to stdout.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]
		log.Infof("Starting decrypt command for %s", id)

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

		stop := startSpinner(cmd, "Decrypting "+id+"...")
		file, err := vault.Download(cmd.Context(), id, password)
		stop()
		if err != nil {
			return err
		}
		defer clear(file.Data)

		if decryptOutput == "-" {
			_, err := cmd.OutOrStdout().Write(file.Data)
			return err
		}

		out := decryptOutput
		if out == "" {
			// Only the base name is trusted from the blob
			out = filepath.Base(filepath.Clean(file.Filename))
		}

		flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
		if decryptForce {
			flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
		}
		f, err := os.OpenFile(out, flags, 0600)
		if err != nil {
			if os.IsExist(err) {
				return fmt.Errorf("%s already exists (use --force to overwrite)", out)
			}
			return err
		}
		if _, err := f.Write(file.Data); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s Decrypted %s to %s (%d bytes)\n",
			color.GreenString("✓"), id, color.YellowString(out), file.Size())
		return nil
	},
}

func init() {
	decryptCmd.Flags().StringVarP(&decryptOutput, "output", "o", "", "output path, or - for stdout")
	decryptCmd.Flags().BoolVarP(&decryptForce, "force", "f", false, "overwrite an existing output file")
}

func resetDecryptCommandState() {
	decryptOutput = ""
	decryptForce = false
}
