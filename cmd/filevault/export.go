package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/absfs/filevault"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var exportOutput string

var exportCmd = &cobra.Command{
	Use:   "export <id>",
	Short: "Writes a blob as JSON without decrypting it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		vault, release, err := openVault()
		if err != nil {
			return err
		}
		defer release()

		blob, err := vault.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		data, err := json.MarshalIndent(blob, "", "  ")
		if err != nil {
			return err
		}
		data = append(data, '\n')

		if exportOutput == "" || exportOutput == "-" {
			_, err := cmd.OutOrStdout().Write(data)
			return err
		}
		if err := os.WriteFile(exportOutput, data, 0600); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Exported %s to %s\n",
			color.GreenString("✓"), blob.ID, color.YellowString(exportOutput))
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <json-file>",
	Short: "Stores a blob previously written by export",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}

		var blob filevault.SealedBlob
		if err := json.Unmarshal(data, &blob); err != nil {
			return err
		}

		vault, release, err := openVault()
		if err != nil {
			return err
		}
		defer release()

		if err := vault.Import(cmd.Context(), &blob); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Imported %s (%s)\n",
			color.GreenString("✓"), blob.ID, color.YellowString(blob.OriginalFilename))
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file (default stdout)")
}

func resetExportCommandState() {
	exportOutput = ""
}
