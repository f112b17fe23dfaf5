package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dgerlanc/mayi/internal/policy"
)

var evaluateJSON bool

var evaluateCmd = &cobra.Command{
	Use:   "evaluate <tool> [args-json]",
	Short: "Show the policy decision for a tool call",
	Long: `Evaluate runs the policy engine on a tool call and prints the decision
(allow or review) with its reason. Nothing is prompted, sent or logged.

Examples:
  mayi evaluate delete_user
  mayi evaluate bash '{"command": "rm -rf node_modules"}'`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runEvaluate,
}

func init() {
	rootCmd.AddCommand(evaluateCmd)
	evaluateCmd.Flags().BoolVar(&evaluateJSON, "json", false, "Print the decision as JSON")
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	var toolArgs policy.Args
	if len(args) == 2 {
		if err := json.Unmarshal([]byte(args[1]), &toolArgs); err != nil {
			return fmt.Errorf("invalid args JSON: %w", err)
		}
	}

	engine := policy.NewEngine(getResolver(), policy.WithEnvironment(activeEnvironment()))
	v := engine.Explain(args[0], toolArgs)

	out := cmd.OutOrStdout()
	if evaluateJSON {
		enc := json.NewEncoder(out)
		enc.SetEscapeHTML(false)
		return enc.Encode(struct {
			Tool     string          `json:"toolName"`
			Decision policy.Decision `json:"decision"`
			Reason   string          `json:"reason"`
		}{args[0], v.Decision, v.Reason})
	}
	fmt.Fprintf(out, "%s: %s\n", v.Decision, v.Reason)
	return nil
}
