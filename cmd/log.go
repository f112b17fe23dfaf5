package cmd

import (
	"github.com/spf13/cobra"

	"github.com/dgerlanc/mayi/internal/hook"
	"github.com/dgerlanc/mayi/internal/logger"
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Record a completed tool call from a PostToolUse hook payload",
	Long: `Log reads a PostToolUse hook payload from stdin and appends the tool call
to the audit log. It writes nothing to stdout and always exits 0.`,
	Args: cobra.NoArgs,
	RunE: runLog,
}

func init() {
	rootCmd.AddCommand(logCmd)
}

func runLog(cmd *cobra.Command, args []string) error {
	if err := hook.RunLog(cmd.InOrStdin()); err != nil {
		logger.Debug("failed to log tool call", "error", err)
	}
	return nil
}
