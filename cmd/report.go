package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/doc-investigator/internal/report"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Profile the evaluation CSV",
	Long:  "Builds a profiling report from the evaluation CSV and writes it as a standalone HTML artifact or prints it as YAML.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		source, _ := cmd.Flags().GetString("source")
		out, _ := cmd.Flags().GetString("out")
		label, _ := cmd.Flags().GetString("label")
		format, _ := cmd.Flags().GetString("format")

		if source == "" {
			source = cfg.Export.Path
		}

		h, err := report.NewGenerator(cfg.Report.Title).Generate(ctx, source)
		if err != nil {
			return eris.Wrap(err, "report")
		}

		switch format {
		case "yaml":
			data, err := h.YAML()
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(data)
			return err
		case "html":
			if out == "" {
				out = report.DefaultArtifactPath(cfg.Report.OutputDir, time.Now())
			}
			if err := h.Export(out, label); err != nil {
				return eris.Wrap(err, "report")
			}
			fmt.Fprintf(os.Stdout, "Report written to %s\n", out)
			return nil
		default:
			return eris.Errorf("unsupported report format: %s", format)
		}
	},
}

func init() {
	reportCmd.Flags().String("source", "", "evaluation CSV to profile (default from config)")
	reportCmd.Flags().String("out", "", "HTML artifact path (default: timestamped file in report.output_dir)")
	reportCmd.Flags().String("label", "", "artifact title (default from config)")
	reportCmd.Flags().String("format", "html", "output format: html or yaml")
	rootCmd.AddCommand(reportCmd)
}
