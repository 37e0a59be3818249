package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/doc-investigator/internal/investigator"
	"github.com/sells-group/doc-investigator/internal/model"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate <record-id> <yes|no>",
	Short: "Record a human verdict on a logged answer",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return eris.Wrapf(err, "invalid record id %q", args[0])
		}
		verdict, err := model.ParseVerdict(args[1])
		if err != nil {
			return eris.Wrapf(err, "verdict %q", args[1])
		}
		reason, _ := cmd.Flags().GetString("reason")

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		ev := investigator.NewEvaluator(st, cfg.Investigator.NoReasonGiven)
		if err := ev.Evaluate(ctx, id, verdict, reason); err != nil {
			return eris.Wrap(err, "evaluate")
		}

		fmt.Fprintf(os.Stdout, "Record %d marked %s\n", id, verdict)
		return nil
	},
}

func init() {
	evaluateCmd.Flags().String("reason", "", "free-text justification")
	rootCmd.AddCommand(evaluateCmd)
}
