package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "parley",
	Short: "Conversational analytics agent",
	Long: `Parley is a conversational agent backend for business analytics.

It resolves user messages to intents through a three-tier resolver
(structured function calling, guided prompting, keyword rules), maps the
intent to capabilities, and runs them as dependency-ordered concurrent
batches over a metrics warehouse.

Run "parley serve" to start the HTTP API, or "parley chat" for a local
REPL against the same pipeline.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
