package hook

import "github.com/dgerlanc/mayi/internal/policy"

/*
Type Relationships in the hook package:

Data Flow:
  Payload (JSON from the agent's PreToolUse / PostToolUse hook)
    → ParseInput() → Input{ToolName, Args}
    → Checker.Check() → authz.Result
    → FormatAllow() / FormatDeny() → Output (JSON to the agent)
    → audit.Entry (one per call)

Related packages:
  - policy.Args: the tool arguments, looked up by dot-path
  - authz.Authorizer: satisfies Checker
  - audit: receives one Entry per processed payload
*/

// Input is a hook payload reduced to what the policy engine needs. Agents
// disagree on field names, so ToolName comes from tool_name, toolName or
// name, and Args from tool_input, args or arguments.
type Input struct {
	ToolName  string
	Args      policy.Args
	SessionID string
	ToolUseID string
	Cwd       string
}

// Output is the JSON response written to the agent.
type Output struct {
	HookSpecificOutput SpecificOutput `json:"hookSpecificOutput"`
}

// SpecificOutput contains the permission decision.
// PermissionDecision is either "allow" or "deny".
type SpecificOutput struct {
	HookEventName            string `json:"hookEventName"`
	PermissionDecision       string `json:"permissionDecision"`
	PermissionDecisionReason string `json:"permissionDecisionReason"`
}

// Result is the outcome of a check.
type Result struct {
	ToolName string // Tool the payload named, empty if unreadable
	Approved bool   // Whether the call may proceed
	Reason   string // Why
	Output   string // JSON written to the agent
}
