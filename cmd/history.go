package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/doc-investigator/internal/cache"
	"github.com/sells-group/doc-investigator/internal/model"
	"github.com/sells-group/doc-investigator/internal/store"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect the interaction log",
	Long:  "Commands for listing, viewing, and summarizing logged question/answer exchanges.",
}

// -- history list --

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List logged interactions, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		rawEval, _ := cmd.Flags().GetString("evaluation")
		evaluation, ok := parseEvaluationFilter(rawEval)
		if !ok {
			return eris.Errorf("evaluation must be UNSET, YES or NO, got %q", rawEval)
		}
		fingerprint, _ := cmd.Flags().GetString("fingerprint")
		limit, _ := cmd.Flags().GetInt("limit")

		filter := store.ListFilter{
			Fingerprint: fingerprint,
			Evaluation:  evaluation,
			Limit:       limit,
		}

		records, err := st.List(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "history list")
		}

		if len(records) == 0 {
			fmt.Fprintln(os.Stderr, "No interactions found.")
			return nil
		}

		formatHistoryList(os.Stdout, records)
		return nil
	},
}

// -- history show --

var historyShowCmd = &cobra.Command{
	Use:   "show <record-id>",
	Short: "Show full details of an interaction",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return eris.Wrapf(err, "invalid record id %q", args[0])
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		rec, err := st.Get(ctx, id)
		if err != nil {
			return eris.Wrap(err, "history show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	},
}

// -- history stats --

var historyStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show how often answers were served from the log",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		stats, err := cache.New(st).Stats(ctx)
		if err != nil {
			return eris.Wrap(err, "history stats")
		}

		formatCacheStats(os.Stdout, stats)
		return nil
	},
}

const questionPreviewLen = 48

func formatHistoryList(w io.Writer, records []model.InteractionRecord) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSOURCE\tEVALUATION\tCREATED\tQUESTION")
	for _, r := range records {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
			r.ID,
			r.AnswerSource,
			r.Evaluation,
			r.CreatedAt.Format(time.DateTime),
			preview(r.Question, questionPreviewLen),
		)
	}
	tw.Flush() //nolint:errcheck
}

func formatCacheStats(w io.Writer, s cache.Stats) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Interactions:\t%d\n", s.Total)
	fmt.Fprintf(tw, "LLM answers:\t%d\n", s.LLMAnswers)
	fmt.Fprintf(tw, "Cache answers:\t%d\n", s.CacheAnswers)
	fmt.Fprintf(tw, "Hit rate:\t%.1f%%\n", s.HitRate*100)
	tw.Flush() //nolint:errcheck
}

// preview flattens whitespace and cuts s to at most n runes.
func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func init() {
	historyListCmd.Flags().String("evaluation", "", "filter by evaluation (UNSET, YES, NO)")
	historyListCmd.Flags().String("fingerprint", "", "filter by document fingerprint")
	historyListCmd.Flags().Int("limit", 20, "max interactions to list")

	historyCmd.AddCommand(historyListCmd, historyShowCmd, historyStatsCmd)
	rootCmd.AddCommand(historyCmd)
}
