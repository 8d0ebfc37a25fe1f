package cli

import (
	"bufio"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newChatCmd(opts *rootOptions) *cobra.Command {
	var session string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive multi-turn chat (type /help for commands)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			services, err := opts.services(ctx)
			if err != nil {
				return err
			}
			defer services.Close()

			conv := services.Conversation
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Chatting with %s in session %q. /help lists commands.\n", conv.ModelFor(session), session)

			scanner := bufio.NewScanner(cmd.InOrStdin())
			for {
				fmt.Fprint(out, "> ")
				if !scanner.Scan() {
					fmt.Fprintln(out)
					return scanner.Err()
				}

				res, err := conv.Execute(ctx, session, scanner.Text())
				if err != nil {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					fmt.Fprintln(out, "Error:", err)
					continue
				}
				if res.Output != "" {
					fmt.Fprintln(out, res.Output)
				}
				if res.Quit {
					return nil
				}
			}
		},
	}

	cmd.Flags().StringVarP(&session, "session", "s", "cli", "session key")

	return cmd
}

func newModelsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List selectable models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			services, err := opts.services(cmd.Context())
			if err != nil {
				return err
			}
			defer services.Close()

			out := cmd.OutOrStdout()
			for _, spec := range services.Registry.Specs() {
				marker := " "
				if spec.Key == services.ModelKey {
					marker = "*"
				}
				fmt.Fprintf(out, "%s %-10s %-8s %-14s $%.2f/$%.2f per 1M tokens  %s\n",
					marker, spec.Key, spec.Provider, spec.ModelID, spec.InputCostPer1M, spec.OutputCostPer1M, spec.DisplayName)
			}
			return nil
		},
	}
}
