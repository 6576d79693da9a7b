package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Lists stored blobs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		vault, release, err := openVault()
		if err != nil {
			return err
		}
		defer release()

		infos, err := vault.List(cmd.Context())
		if err != nil {
			return err
		}
		log.Debugf("Found %d blobs", len(infos))

		if len(infos) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), color.CyanString("→")+" No blobs stored")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSIZE\tCREATED\tNAME")
		for _, info := range infos {
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\n",
				info.ID, info.Size, info.CreatedAt.Local().Format(time.DateTime), info.Filename)
		}
		return w.Flush()
	},
}
