package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/doc-investigator/internal/investigator"
	"github.com/sells-group/doc-investigator/internal/model"
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question about one or more documents",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		files, _ := cmd.Flags().GetStringSlice("file")
		docs, err := readDocuments(files)
		if err != nil {
			return err
		}

		env, err := initApp(ctx, "ask")
		if err != nil {
			return err
		}
		defer env.Close()

		ans, err := env.Investigator.Ask(ctx, docs, args[0])
		if err != nil {
			return eris.Wrap(err, "ask")
		}

		formatAnswer(os.Stdout, ans)
		return nil
	},
}

// readDocuments loads each path into memory, keeping the given order.
func readDocuments(paths []string) ([]model.Document, error) {
	docs := make([]model.Document, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, eris.Wrapf(err, "read document %s", p)
		}
		docs = append(docs, model.Document{Name: p, Data: data})
	}
	return docs, nil
}

func formatAnswer(w io.Writer, ans *investigator.Answer) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Record:\t%d\n", ans.RecordID)
	fmt.Fprintf(tw, "Documents:\t%s\n", ans.Documents)
	fmt.Fprintf(tw, "Source:\t%s\n", ans.Source)
	fmt.Fprintf(tw, "Classification:\t%s\n", ans.Classification)
	tw.Flush() //nolint:errcheck
	fmt.Fprintf(w, "\n%s\n", ans.Text)
}

func init() {
	askCmd.Flags().StringSliceP("file", "f", nil, "document to query (repeatable)")
	_ = askCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(askCmd)
}
