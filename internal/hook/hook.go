// Package hook implements the process-boundary integration for mayi: it reads
// an agent's hook payload, asks for authorization and formats the answer.
package hook

import (
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/dgerlanc/mayi/internal/audit"
	"github.com/dgerlanc/mayi/internal/authz"
	"github.com/dgerlanc/mayi/internal/logger"
	"github.com/dgerlanc/mayi/internal/policy"
)

// Hook event names
const (
	EventPreToolUse  = "PreToolUse"
	EventPostToolUse = "PostToolUse"
)

// Permission decisions
const (
	DecisionAllow = "allow"
	DecisionDeny  = "deny"
)

// Payload keys, in lookup order.
var (
	nameKeys = []string{"tool_name", "toolName", "name"}
	argsKeys = []string{"tool_input", "args", "arguments"}
)

// Checker authorizes a tool call without failing. *authz.Authorizer
// satisfies it.
type Checker interface {
	Check(ctx context.Context, name string, args policy.Args) authz.Result
}

// ParseInput extracts the tool call from a hook payload. It reports false
// when the payload is not a JSON object or names no tool.
func ParseInput(data []byte) (Input, bool) {
	if !gjson.ValidBytes(data) {
		return Input{}, false
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return Input{}, false
	}

	var in Input
	for _, k := range nameKeys {
		if v := root.Get(k); v.Type == gjson.String && strings.TrimSpace(v.Str) != "" {
			in.ToolName = v.Str
			break
		}
	}
	if in.ToolName == "" {
		return Input{}, false
	}
	for _, k := range argsKeys {
		if v := root.Get(k); v.Exists() {
			in.Args = policy.RawArgs([]byte(v.Raw))
			break
		}
	}
	in.SessionID = root.Get("session_id").String()
	in.ToolUseID = root.Get("tool_use_id").String()
	in.Cwd = root.Get("cwd").String()
	return in, true
}

// RunCheck handles a PreToolUse payload. Unreadable or empty payloads are
// allowed: they carry no tool call to judge.
func RunCheck(ctx context.Context, c Checker, r io.Reader) Result {
	data, err := io.ReadAll(r)
	if err != nil {
		logger.Debug("failed to read hook input", "error", err)
		return allowed("", "no tool call")
	}

	in, ok := ParseInput(data)
	if !ok {
		logger.Debug("hook payload has no tool call", "bytes", len(data))
		return allowed("", "no tool call")
	}
	logger.Debug("checking tool call",
		"tool", in.ToolName,
		"session", in.SessionID,
		"toolUseId", in.ToolUseID,
		"cwd", in.Cwd)

	res := c.Check(ctx, in.ToolName, in.Args)

	var result Result
	if res.Approved {
		result = allowed(in.ToolName, "approved by mayi")
	} else {
		result = Result{
			ToolName: in.ToolName,
			Reason:   res.Reason,
			Output:   FormatDeny(res.Reason),
		}
	}
	logAudit(in, decisionOf(result.Approved), result.Reason)
	return result
}

// RunLog handles a PostToolUse payload by appending it to the audit log.
// Payloads without a tool call are skipped.
func RunLog(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		logger.Debug("failed to read hook input", "error", err)
		return err
	}
	in, ok := ParseInput(data)
	if !ok {
		logger.Debug("hook payload has no tool call", "bytes", len(data))
		return nil
	}
	return audit.Log(audit.Entry{
		ToolName: in.ToolName,
		Args:     in.Args.JSON(),
		Source:   audit.SourceHook,
	})
}

func allowed(tool, reason string) Result {
	return Result{ToolName: tool, Approved: true, Reason: reason, Output: FormatAllow(reason)}
}

func decisionOf(approved bool) string {
	if approved {
		return DecisionAllow
	}
	return DecisionDeny
}

func logAudit(in Input, decision, reason string) {
	err := audit.Log(audit.Entry{
		ToolName: in.ToolName,
		Args:     in.Args.JSON(),
		Decision: decision,
		Reason:   reason,
		Source:   audit.SourceHook,
	})
	if err != nil {
		logger.Debug("failed to write audit log", "error", err)
	}
}

// FormatAllow returns the JSON allow output
func FormatAllow(reason string) string {
	return format(DecisionAllow, reason)
}

// FormatDeny returns the JSON deny output
func FormatDeny(reason string) string {
	return format(DecisionDeny, reason)
}

func format(decision, reason string) string {
	output := Output{
		HookSpecificOutput: SpecificOutput{
			HookEventName:            EventPreToolUse,
			PermissionDecision:       decision,
			PermissionDecisionReason: reason,
		},
	}
	data, err := json.Marshal(output)
	if err != nil {
		logger.Debug("failed to marshal hook output", "error", err)
		return `{"hookSpecificOutput":{"hookEventName":"PreToolUse","permissionDecision":"deny","permissionDecisionReason":"internal error"}}`
	}
	return string(data)
}
