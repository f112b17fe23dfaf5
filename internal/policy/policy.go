// Package policy decides whether a tool call may run unattended.
//
// The engine is pure given its configuration snapshot: the same name, args
// and configuration always produce the same decision.
package policy

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dgerlanc/mayi/internal/analyzer"
	"github.com/dgerlanc/mayi/internal/config"
	"github.com/dgerlanc/mayi/internal/constants"
	"github.com/dgerlanc/mayi/internal/logger"
	"github.com/dgerlanc/mayi/internal/patterns"
)

// Decision is the engine's only output.
type Decision string

const (
	DecisionAllow  Decision = "allow"
	DecisionReview Decision = "review"
)

// ToolCall is one requested action.
type ToolCall struct {
	Name string `json:"toolName"`
	Args Args   `json:"args"`
}

// Verdict is a Decision with a human-readable reason.
type Verdict struct {
	Decision Decision
	Reason   string
}

// Allowed reports whether the verdict lets the call run.
func (v Verdict) Allowed() bool {
	return v.Decision == DecisionAllow
}

func allow(format string, a ...any) Verdict {
	return Verdict{Decision: DecisionAllow, Reason: fmt.Sprintf(format, a...)}
}

func review(format string, a ...any) Verdict {
	return Verdict{Decision: DecisionReview, Reason: fmt.Sprintf(format, a...)}
}

// Engine evaluates tool calls against a configuration source.
type Engine struct {
	src         config.Source
	environment string
}

// Option configures an Engine.
type Option func(*Engine)

// WithEnvironment sets the active environment name used for overrides.
func WithEnvironment(name string) Option {
	return func(e *Engine) {
		if name != "" {
			e.environment = name
		}
	}
}

// NewEngine returns an Engine reading configuration from src.
func NewEngine(src config.Source, opts ...Option) *Engine {
	e := &Engine{src: src, environment: constants.DefaultEnvironment}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the configuration snapshot the engine decides against.
func (e *Engine) Config() *config.Config {
	if e.src == nil {
		return config.Defaults()
	}
	return e.src.Get()
}

// Environment returns the active environment name.
func (e *Engine) Environment() string {
	return e.environment
}

// Evaluate returns the decision for a tool call.
func (e *Engine) Evaluate(name string, args Args) Decision {
	return e.Explain(name, args).Decision
}

// Explain returns the decision for a tool call together with its reason.
func (e *Engine) Explain(name string, args Args) Verdict {
	cfg := e.Config()
	v := e.explain(cfg, strings.TrimSpace(name), args)
	logger.Debug("policy decision",
		"tool", name,
		"decision", v.Decision,
		"reason", v.Reason,
		"mode", cfg.Settings.Mode,
		"environment", e.environment)
	return v
}

func (e *Engine) explain(cfg *config.Config, name string, args Args) Verdict {
	if patterns.Matches(name, cfg.Policy.IgnoredTools) {
		return allow("tool %q is ignored", name)
	}

	if path, ok := inspectionPath(cfg.Policy.ToolInspection, name); ok {
		if cmd, ok := args.String(path); ok && strings.TrimSpace(cmd) != "" {
			return explainCommand(cfg, cmd)
		}
	}

	v := explainName(cfg, name)
	if v.Decision == DecisionReview {
		if env, ok := cfg.Environment(e.environment); ok && env.RequireApproval != nil && !*env.RequireApproval {
			return allow("approval not required in environment %q", e.environment)
		}
	}
	return v
}

// explainCommand decides a call whose arguments carry a shell command.
// Every detected action is checked; a single review wins.
func explainCommand(cfg *config.Config, cmd string) Verdict {
	a := analyzer.Analyze(cmd)

	matched := false
	for _, action := range a.Actions {
		rule, ok := findRule(cfg.Policy.Rules, action)
		if !ok {
			continue
		}
		matched = true
		if v := judgePaths(rule, action, a); v.Decision == DecisionReview {
			return v
		}
	}
	if matched {
		return allow("all paths allowed by matching rules")
	}

	if word, ok := dangerousToken(a.Tokens, cfg.Policy.DangerousWords); ok {
		return review("command contains dangerous word %q", word)
	}
	if cfg.IsStrict() {
		return review("strict mode requires approval")
	}
	return allow("no rule or dangerous word matched")
}

// judgePaths applies a matched rule to the detected path operands. A path
// only known after shell expansion needs review. Block wins over allow;
// paths not covered by allowPaths need review.
func judgePaths(rule config.Rule, action string, a analyzer.Analysis) Verdict {
	paths := a.Paths
	if len(paths) == 0 {
		return review("rule %q matched %q with no paths", rule.Action, action)
	}
	if len(a.Unresolved) > 0 {
		return review("path %q for %q depends on shell expansion", a.Unresolved[0], action)
	}
	for _, p := range paths {
		if patterns.Matches(patterns.NormalizePath(p), rule.BlockPaths) {
			return review("path %q is blocked for %q", p, action)
		}
	}
	for _, p := range paths {
		if !patterns.Matches(patterns.NormalizePath(p), rule.AllowPaths) {
			return review("path %q is not allowed for %q", p, action)
		}
	}
	return allow("all paths allowed for %q", action)
}

// explainName decides a call by tokenizing its tool name.
func explainName(cfg *config.Config, name string) Verdict {
	if word, ok := dangerousToken(nameTokens(name), cfg.Policy.DangerousWords); ok {
		return review("tool name contains dangerous word %q", word)
	}
	if cfg.IsStrict() {
		return review("strict mode requires approval")
	}
	return allow("tool name has no dangerous words")
}

// nameTokens splits a tool name on "_", ".", "-" and whitespace.
func nameTokens(name string) []string {
	return strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		switch r {
		case '_', '.', '-', ' ', '\t', '\n':
			return true
		}
		return false
	})
}

// dangerousToken returns the first dangerous word equal to some token.
func dangerousToken(tokens, words []string) (string, bool) {
	for _, tok := range tokens {
		for _, w := range words {
			w = strings.TrimSpace(w)
			if w != "" && strings.EqualFold(tok, w) {
				return strings.ToLower(w), true
			}
		}
	}
	return "", false
}

// findRule returns the first rule whose action matches: exactly, as a glob,
// or against the basename of a path-like action. An action containing glob
// characters (as in "/bin/r?") is also matched as a pattern against the rule.
func findRule(rules []config.Rule, action string) (config.Rule, bool) {
	base := action
	if i := strings.LastIndexByte(action, '/'); i >= 0 && i+1 < len(action) {
		base = action[i+1:]
	}
	for _, r := range rules {
		ra := strings.TrimSpace(r.Action)
		if ra == "" {
			continue
		}
		switch {
		case strings.EqualFold(ra, action),
			patterns.Match(ra, action),
			base != action && patterns.Match(ra, base),
			hasGlobMeta(base) && patterns.Match(base, ra):
			return r, true
		}
	}
	return config.Rule{}, false
}

func hasGlobMeta(s string) bool {
	return strings.ContainsAny(s, "*?[")
}

// inspectionPath returns the dot-path configured for a tool. An exact key
// wins over patterns; patterns are tried in sorted order.
func inspectionPath(inspection map[string]string, name string) (string, bool) {
	if len(inspection) == 0 {
		return "", false
	}
	keys := make([]string, 0, len(inspection))
	for k := range inspection {
		if strings.EqualFold(k, name) {
			return inspection[k], strings.TrimSpace(inspection[k]) != ""
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if patterns.Match(k, name) {
			return inspection[k], strings.TrimSpace(inspection[k]) != ""
		}
	}
	return "", false
}
