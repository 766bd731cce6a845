package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"mindfulbot/internal/config"
	"mindfulbot/internal/infra/adapters/terminal"
	"mindfulbot/internal/infra/logging"
)

func newChatCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Talk to MindfulBot in this terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig(flags.configPath, flags.dev)
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			// a local terminal session keeps its conversation in process
			cfg.Redis.Enabled = false
			return runChat(cmd.Context(), cfg)
		},
	}
}

func runChat(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGTERM)
	defer stop()

	// logs would interleave with the conversation; only dev mode shows them
	var out io.Writer = io.Discard
	if cfg.Runtime.Dev {
		out = os.Stderr
	}
	logger := logging.NewWithWriter(out, cfg.Log, cfg.Runtime.Dev)

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	a.start(ctx)
	defer func() {
		// the conversation is gone; replies still in flight are dropped on arrival
		a.shutdown(context.Background())
	}()

	rl, err := terminal.NewLineReader()
	if err != nil {
		return fmt.Errorf("terminal: %w", err)
	}
	defer rl.Close()

	return terminal.NewSession(a.chat, a.hub, a.tr, rl, logger).Run(ctx)
}
