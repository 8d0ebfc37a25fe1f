package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	model "github.com/zhouzirui/sentiscope/backend/internal/model/sentiment"
	"github.com/zhouzirui/sentiscope/backend/internal/service/sentiment"
)

func newBatchCmd(opts *rootOptions) *cobra.Command {
	var (
		concurrency int
		asJSON      bool
		quiet       bool
	)

	cmd := &cobra.Command{
		Use:   "batch [file|-]",
		Short: "Analyze one text per line, concurrently",
		Long:  "Analyze every line of a file (or stdin) as its own text. Results keep input order; a bad line fails on its own.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var src io.Reader = cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				src = f
			}
			texts, err := readLines(src)
			if err != nil {
				return err
			}
			if len(texts) == 0 {
				return fmt.Errorf("no input lines")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			services, err := opts.services(ctx)
			if err != nil {
				return err
			}
			defer services.Close()

			var batchOpts []sentiment.BatchOption
			if !quiet {
				errOut := cmd.ErrOrStderr()
				batchOpts = append(batchOpts, sentiment.WithProgress(func(_ model.Outcome, done, total int) {
					fmt.Fprintf(errOut, "\r%d/%d", done, total)
					if done == total {
						fmt.Fprintln(errOut)
					}
				}))
			}

			outcomes, batchErr := services.Analyzer.AnalyzeBatch(ctx, texts, concurrency, batchOpts...)

			out := cmd.OutOrStdout()
			if asJSON {
				if err := writeJSON(out, outcomes); err != nil {
					return err
				}
			} else {
				printOutcomes(out, outcomes)
			}
			return batchErr
		},
	}

	cmd.Flags().IntVarP(&concurrency, "concurrency", "c", 0, "max model calls in flight (default LLM_CONCURRENCY_LIMIT)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print outcomes as JSON")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "hide the progress counter")

	return cmd
}

// readLines 逐行读取。末尾换行不产生空项，
// 中间的空行保留，保证下标对齐。
func readLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}

func printOutcomes(w io.Writer, outcomes []model.Outcome) {
	ok := 0
	for _, o := range outcomes {
		if o.OK() {
			ok++
			fmt.Fprintf(w, "[%d] %-8s %3.0f%%  %s\n", o.Index, o.Result.Sentiment, o.Result.Confidence*100, o.Result.Summary)
			continue
		}
		fmt.Fprintf(w, "[%d] error    %s\n", o.Index, strings.TrimSpace(o.Err.Error()))
	}
	fmt.Fprintf(w, "%d/%d succeeded\n", ok, len(outcomes))
}
