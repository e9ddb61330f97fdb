package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "arete",
	Short: "Personal fact store for AI agents",
	Long:  "Arete stores durable facts about a user with confidence decay, candidate inference, and task-aware retrieval, served over a local HTTP API.",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(sweepCmd)
}
