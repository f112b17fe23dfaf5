package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/dgerlanc/mayi/internal/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration and show the resolved policy",
	Long: `Validate resolves the mayi configuration and displays the policy in effect.

This is useful for:
- Seeing which file was used (project, global or built-in defaults)
- Catching unknown keys, invalid modes and malformed glob patterns
- Checking what rules apply before wiring mayi into an agent`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	r := getResolver()
	cfg := r.Get()
	out := cmd.OutOrStdout()

	source := cfg.Source
	if source == "" || source == config.SourceDefault {
		source = "built-in defaults"
	}
	fmt.Fprintf(out, "Source: %s\n", source)

	for _, w := range r.Warnings() {
		fmt.Fprintf(out, "Warning: %s\n", w)
	}

	if problems := cfg.Validate(); len(problems) > 0 {
		fmt.Fprintln(out, "Configuration invalid:")
		for _, p := range problems {
			fmt.Fprintf(out, "  - %s\n", p)
		}
		return fmt.Errorf("configuration has %d problem(s)", len(problems))
	}

	fmt.Fprintln(out, "Configuration valid!")
	fmt.Fprintln(out)

	fmt.Fprintf(out, "Mode: %s\n", cfg.Settings.Mode)
	fmt.Fprintf(out, "Environment: %s\n", activeEnvironment())
	fmt.Fprintln(out)

	fmt.Fprintf(out, "Dangerous words: %d\n", len(cfg.Policy.DangerousWords))
	for _, w := range cfg.Policy.DangerousWords {
		fmt.Fprintf(out, "  - %s\n", w)
	}
	fmt.Fprintln(out)

	fmt.Fprintf(out, "Ignored tools: %d\n", len(cfg.Policy.IgnoredTools))
	for _, t := range cfg.Policy.IgnoredTools {
		fmt.Fprintf(out, "  - %s\n", t)
	}
	fmt.Fprintln(out)

	tools := make([]string, 0, len(cfg.Policy.ToolInspection))
	for k := range cfg.Policy.ToolInspection {
		tools = append(tools, k)
	}
	sort.Strings(tools)
	fmt.Fprintf(out, "Tool inspection: %d\n", len(tools))
	for _, k := range tools {
		fmt.Fprintf(out, "  - %s: %s\n", k, cfg.Policy.ToolInspection[k])
	}
	fmt.Fprintln(out)

	fmt.Fprintf(out, "Rules: %d\n", len(cfg.Policy.Rules))
	for _, rule := range cfg.Policy.Rules {
		fmt.Fprintf(out, "  - %s: allow %v, block %v\n", rule.Action, rule.AllowPaths, rule.BlockPaths)
	}

	return nil
}
