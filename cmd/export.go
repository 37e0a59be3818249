package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/doc-investigator/internal/export"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the evaluation CSV snapshot",
	Long:  "Overwrites the evaluation CSV with every logged interaction, ordered by id.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		out, _ := cmd.Flags().GetString("out")
		if out == "" {
			out = cfg.Export.Path
		}

		n, err := export.New(st).Export(ctx, out)
		if err != nil {
			return eris.Wrap(err, "export")
		}

		fmt.Fprintf(os.Stdout, "Exported %d interactions to %s\n", n, out)
		return nil
	},
}

func init() {
	exportCmd.Flags().String("out", "", "output CSV path (default from config)")
	rootCmd.AddCommand(exportCmd)
}
