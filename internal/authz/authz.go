// Package authz resolves policy verdicts into approvals.
//
// An allow verdict is approved immediately. A review verdict goes to the
// remote approval service when credentials are configured, otherwise to the
// operator's terminal, otherwise it fails closed.
package authz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgerlanc/mayi/internal/audit"
	"github.com/dgerlanc/mayi/internal/cloud"
	"github.com/dgerlanc/mayi/internal/config"
	"github.com/dgerlanc/mayi/internal/constants"
	"github.com/dgerlanc/mayi/internal/credentials"
	"github.com/dgerlanc/mayi/internal/logger"
	"github.com/dgerlanc/mayi/internal/policy"
	"github.com/dgerlanc/mayi/internal/terminal"
)

// ErrNoApprovalChannel is returned when a call needs review but neither
// remote approval nor a terminal is available.
var ErrNoApprovalChannel = errors.New("approval required but no approval channel is available")

// LoginHint tells the operator how to enable headless approval.
const LoginHint = `run "mayi login" to enable remote approval, or run from an interactive terminal`

// DeniedError reports a call that was reviewed and not approved.
type DeniedError struct {
	Tool   string
	Reason string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("mayi: %s denied: %s", e.Tool, e.Reason)
}

// Result is the non-failing form of an authorization outcome.
type Result struct {
	Approved bool   `json:"approved"`
	Reason   string `json:"reason,omitempty"`
}

// Prompter asks the operator for confirmation.
type Prompter interface {
	Interactive() bool
	Confirm(ctx context.Context, req terminal.Request) (bool, error)
}

// Approver asks the remote approval service.
type Approver interface {
	RequestApproval(ctx context.Context, req cloud.Request) (cloud.Response, error)
}

// Options configures an Authorizer. Engine wins over Config/Environment;
// Approver wins over Credentials.
type Options struct {
	Engine      *policy.Engine
	Config      config.Source
	Environment string

	Prompter    Prompter
	Approver    Approver
	Credentials *credentials.Credentials

	// Timeout bounds a remote approval call. Zero means the default.
	Timeout time.Duration
}

// Authorizer runs the policy engine and resolves review verdicts.
type Authorizer struct {
	engine   *policy.Engine
	prompter Prompter
	approver Approver
	timeout  time.Duration
}

// New returns an Authorizer.
func New(opts Options) *Authorizer {
	engine := opts.Engine
	if engine == nil {
		engine = policy.NewEngine(opts.Config, policy.WithEnvironment(opts.Environment))
	}

	approver := opts.Approver
	if approver == nil && opts.Credentials != nil && opts.Credentials.APIKey != "" {
		approver = cloud.NewClient(opts.Credentials.APIURL, opts.Credentials.APIKey)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = constants.DefaultApprovalTimeout
	}

	return &Authorizer{
		engine:   engine,
		prompter: opts.Prompter,
		approver: approver,
		timeout:  timeout,
	}
}

// Authorize blocks until the call is approved or denied. It returns nil when
// approved, a *DeniedError when denied and an error wrapping
// ErrNoApprovalChannel when nobody can be asked.
func (a *Authorizer) Authorize(ctx context.Context, name string, args policy.Args) error {
	v := a.engine.Explain(name, args)
	if v.Allowed() {
		return nil
	}

	switch {
	case a.approver != nil:
		return a.remote(ctx, name, args)
	case a.prompter != nil && a.prompter.Interactive():
		return a.prompt(ctx, name, args, v.Reason)
	default:
		logger.Info("approval required but headless", "tool", name, "reason", v.Reason)
		return fmt.Errorf("%w: %s needs approval (%s); %s", ErrNoApprovalChannel, name, v.Reason, LoginHint)
	}
}

// Check is the non-failing form of Authorize used at process boundaries.
// It never panics; any internal failure becomes a denial with a reason.
func (a *Authorizer) Check(ctx context.Context, name string, args policy.Args) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("authorization panicked", "tool", name, "panic", r)
			res = Result{Approved: false, Reason: fmt.Sprintf("internal error while authorizing %s: %v", name, r)}
		}
	}()

	if err := a.Authorize(ctx, name, args); err != nil {
		return Result{Approved: false, Reason: err.Error()}
	}
	return Result{Approved: true}
}

func (a *Authorizer) remote(ctx context.Context, name string, args policy.Args) error {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	req := cloud.Request{
		ToolName: name,
		Args:     args.JSON(),
		Context:  cloud.CurrentContext(),
	}
	if env, ok := a.engine.Config().Environment(a.engine.Environment()); ok {
		req.SlackChannel = env.SlackChannel
	}

	resp, err := a.approver.RequestApproval(ctx, req)
	if err != nil {
		logger.Warn("remote approval failed", "tool", name, "error", err)
		return &DeniedError{Tool: name, Reason: fmt.Sprintf("remote approval failed: %v", err)}
	}
	if !resp.Approved {
		reason := resp.Message
		if reason == "" {
			reason = "rejected by remote approver"
		}
		return &DeniedError{Tool: name, Reason: reason}
	}
	logger.Info("remote approval granted", "tool", name)
	return nil
}

func (a *Authorizer) prompt(ctx context.Context, name string, args policy.Args, reason string) error {
	ok, err := a.prompter.Confirm(ctx, terminal.Request{
		ToolName: name,
		Args:     string(args.JSON()),
		Reason:   reason,
	})
	if err != nil {
		return &DeniedError{Tool: name, Reason: fmt.Sprintf("terminal prompt failed: %v", err)}
	}
	if !ok {
		return &DeniedError{Tool: name, Reason: "denied by operator"}
	}
	return nil
}

// Protect wraps fn so every call is authorized first. The argument value is
// encoded to JSON for policy evaluation; fn runs only when approved.
func Protect[A, R any](a *Authorizer, name string, fn func(context.Context, A) (R, error)) func(context.Context, A) (R, error) {
	return func(ctx context.Context, arg A) (R, error) {
		var zero R
		args, err := policy.ArgsOf(arg)
		if err != nil {
			return zero, fmt.Errorf("mayi: %s: %w", name, err)
		}
		err = a.Authorize(ctx, name, args)
		entry := audit.Entry{ToolName: name, Args: args.JSON(), Decision: "allow", Source: audit.SourceSDK}
		if err != nil {
			entry.Decision, entry.Reason = "deny", err.Error()
		}
		if logErr := audit.Log(entry); logErr != nil {
			logger.Debug("failed to write audit log", "error", logErr)
		}
		if err != nil {
			return zero, err
		}
		return fn(ctx, arg)
	}
}
