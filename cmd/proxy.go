package cmd

import (
	"github.com/spf13/cobra"

	"github.com/dgerlanc/mayi/internal/proxy"
)

var proxyCmd = &cobra.Command{
	Use:   "proxy -- <command> [args...]",
	Short: "Run a JSON-RPC tool server and gate the tool calls it emits",
	Long: `Proxy starts the given command and relays its line-delimited JSON-RPC
stream. Standard input is passed to the command unchanged. Each tool call
on the command's output (tools/call, call_tool, use_tool) is authorized
first; a denied call is replaced by a JSON-RPC error response with the same
id. The exit code mirrors the command's.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runProxy,
}

func init() {
	rootCmd.AddCommand(proxyCmd)
	// Everything after the command name belongs to the command.
	proxyCmd.Flags().SetInterspersed(false)
}

func runProxy(cmd *cobra.Command, args []string) error {
	p := proxy.New(newAuthorizer(), proxy.Options{
		Stdin:  cmd.InOrStdin(),
		Stdout: cmd.OutOrStdout(),
		Stderr: cmd.ErrOrStderr(),
	})
	code, err := p.Run(commandContext(cmd), args[0], args[1:])
	if err != nil {
		return err
	}
	if code != 0 {
		return &ExitError{Code: code}
	}
	return nil
}
