// Package cmd provides the parley CLI.
//
// Commands:
//   - serve: HTTP API server with SSE streaming
//   - version: build information
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "parley",
	Short: "Parley - conversational assistant backend",
	Long: `Parley is the backend of a conversational assistant. It mediates between
a chat UI and two families of LLM backends: hosted chat-completion providers
consumed as token streams, and a stateful agent service with server-side
threads, tool-augmented runs and annotated citations.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
