package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	analysis "github.com/zhouzirui/sentiscope/backend/internal/analysis/sentiment"
)

func newAnalyzeCmd(opts *rootOptions) *cobra.Command {
	var (
		asJSON bool
		report bool
	)

	cmd := &cobra.Command{
		Use:   "analyze [text]",
		Short: "Analyze the sentiment of one text (reads stdin when no text is given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if len(args) == 0 {
				raw, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				text = string(raw)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			services, err := opts.services(ctx)
			if err != nil {
				return err
			}
			defer services.Close()

			out := cmd.OutOrStdout()
			if report {
				rep, err := services.Pipeline.Run(ctx, text)
				if err != nil {
					return err
				}
				return writeJSON(out, rep)
			}
			if asJSON {
				return writeJSON(out, services.Analyzer.AnalyzeSafe(ctx, text))
			}

			result, err := services.Analyzer.Analyze(ctx, text)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, analysis.FormatDisplay(result))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the safe response envelope as JSON")
	cmd.Flags().BoolVar(&report, "report", false, "print the post-processed report as JSON")

	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

