package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dgerlanc/mayi/internal/hook"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check a tool call from a PreToolUse hook payload",
	Long: `Check reads a PreToolUse hook payload from stdin and writes an allow or
deny decision as hook JSON to stdout.

Calls that need approval go to the remote approval service when logged in,
otherwise to the terminal. Empty or malformed payloads are allowed. The
command always exits 0 so the agent's pipeline keeps running.`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	res := hook.RunCheck(commandContext(cmd), newAuthorizer(), cmd.InOrStdin())
	fmt.Fprintln(cmd.OutOrStdout(), res.Output)
	return nil
}
