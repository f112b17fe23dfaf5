// mayi (may I?) - approval gate for AI agent tool calls
//
// mayi classifies each tool call an agent makes as safe to run or needing
// human approval, and enforces the decision as a hook or as a proxy around
// a JSON-RPC tool server.
//
// Usage in ~/.claude/settings.json:
//
//	"hooks": {
//	  "PreToolUse": [{
//	    "matcher": "*",
//	    "hooks": [{"type": "command", "command": "mayi check"}]
//	  }],
//	  "PostToolUse": [{
//	    "matcher": "*",
//	    "hooks": [{"type": "command", "command": "mayi log"}]
//	  }]
//	}
//
// Test:
//
//	echo '{"tool_name": "Bash", "tool_input": {"command": "rm -rf node_modules"}}' | mayi check
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/dgerlanc/mayi/cmd"
)

func main() {
	err := cmd.Execute()
	var exitErr *cmd.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(cmd.ExitCode(err))
}
