package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/doc-investigator/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "docinv",
	Short: "Question answering over uploaded documents",
	Long:  "Answers questions about PDF, DOCX, XLSX and TXT documents with Claude, logs every exchange, collects human evaluations, and exports CSV snapshots and profiling reports.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
