package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/sentiscope/backend/internal/app"
	"github.com/zhouzirui/sentiscope/backend/internal/config"
	"github.com/zhouzirui/sentiscope/backend/internal/logging"
)

type rootOptions struct {
	envFile  string
	logLevel string
	model    string

	log *logging.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "sentiscope",
		Short: "Sentiscope: sentiment analysis backed by LLMs",
		Long:  "Sentiscope classifies the sentiment of text with a hosted LLM (or the offline lexicon) and keeps chat sessions.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.envFile != "" {
				if err := godotenv.Load(opts.envFile); err != nil {
					return fmt.Errorf("loading %s: %w", opts.envFile, err)
				}
			} else {
				_ = godotenv.Load()
			}
			level := opts.logLevel
			if level == "" {
				level = "warn"
			}
			opts.log = logging.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), NoColor: true, TimeFormat: time.Kitchen}, level)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "dotenv file to load (default .env when present)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (trace, debug, info, warn, error, silent)")
	cmd.PersistentFlags().StringVarP(&opts.model, "model", "m", "", "model key (see `sentiscope models`)")

	cmd.AddCommand(newAnalyzeCmd(opts))
	cmd.AddCommand(newBatchCmd(opts))
	cmd.AddCommand(newChatCmd(opts))
	cmd.AddCommand(newModelsCmd(opts))

	return cmd
}

// services 加载配置并为本次命令装配服务
func (o *rootOptions) services(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if o.model != "" {
		cfg.LLM.Model = o.model
	}
	return app.New(ctx, cfg, o.log)
}

// Execute 执行根命令
func Execute() error {
	err := newRootCmd().Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return err
}
