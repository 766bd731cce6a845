package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

type rootFlags struct {
	configPath string
	dev        bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:           "mindfulbot",
		Short:         "Supportive chat companion with rule-based replies",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "config.yaml", "path to YAML config file")
	root.PersistentFlags().BoolVar(&flags.dev, "dev", false, "developer mode: console logs, unredacted text, generated auth secret")

	root.AddCommand(
		newServeCmd(flags),
		newChatCmd(flags),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "mindfulbot %s (commit %s, %s)\n", version, commit, runtime.Version())
		},
	}
}
