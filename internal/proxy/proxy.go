// Package proxy wraps a child process that speaks line-delimited JSON-RPC
// and authorizes the tool calls it emits before they reach the consumer.
package proxy

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"

	"github.com/dgerlanc/mayi/internal/audit"
	"github.com/dgerlanc/mayi/internal/authz"
	"github.com/dgerlanc/mayi/internal/logger"
	"github.com/dgerlanc/mayi/internal/policy"
)

// DeniedCode is the JSON-RPC error code sent for a denied tool call.
const DeniedCode = -32000

// toolMethods are the JSON-RPC methods treated as tool invocations.
var toolMethods = map[string]bool{
	"tools/call": true,
	"call_tool":  true,
	"use_tool":   true,
}

// Authorizer decides on a tool call without failing. *authz.Authorizer
// satisfies it.
type Authorizer interface {
	Check(ctx context.Context, name string, args policy.Args) authz.Result
}

// Options sets the operator-facing streams. Nil streams default to the
// process's own.
type Options struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Proxy runs one child process per Run.
type Proxy struct {
	auth   Authorizer
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// New returns a Proxy that consults auth for every tool call.
func New(auth Authorizer, opts Options) *Proxy {
	p := &Proxy{auth: auth, stdin: opts.Stdin, stdout: opts.Stdout, stderr: opts.Stderr}
	if p.stdin == nil {
		p.stdin = os.Stdin
	}
	if p.stdout == nil {
		p.stdout = os.Stdout
	}
	if p.stderr == nil {
		p.stderr = os.Stderr
	}
	return p
}

// Run starts name with args and pumps its streams until its output closes.
// The returned code mirrors the child's exit code. An error is returned only
// when the child could not be started or the output pump failed.
//
// Operator input is copied for as long as the child runs; Run does not wait
// for the operator's reader to end.
func (p *Proxy) Run(ctx context.Context, name string, args []string) (int, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	// A file descriptor is handed to the child as is; any other reader is
	// copied through a pipe.
	var in io.WriteCloser
	if f, ok := p.stdin.(*os.File); ok {
		cmd.Stdin = f
	} else {
		var err error
		if in, err = cmd.StdinPipe(); err != nil {
			return 1, fmt.Errorf("failed to open child stdin: %w", err)
		}
	}

	out, err := cmd.StdoutPipe()
	if err != nil {
		return 1, fmt.Errorf("failed to open child stdout: %w", err)
	}
	errOut, err := cmd.StderrPipe()
	if err != nil {
		return 1, fmt.Errorf("failed to open child stderr: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return 1, fmt.Errorf("failed to start %s: %w", name, err)
	}
	log := logger.With("command", name, "pid", cmd.Process.Pid)
	log.Debug("proxy started")

	if in != nil {
		// Not part of the group: the operator's reader may never end.
		// The pipe is closed by cmd.Wait once the child exits.
		go func() {
			defer in.Close()
			if _, err := io.Copy(in, p.stdin); err != nil {
				log.Debug("stdin pump stopped", "error", err)
			}
		}()
	}

	var g errgroup.Group
	g.Go(func() error {
		err := p.pump(ctx, out)
		if err != nil {
			log.Warn("output pump failed, stopping child", "error", err)
			_ = cmd.Process.Kill()
		}
		return err
	})
	g.Go(func() error {
		if _, err := io.Copy(p.stderr, errOut); err != nil {
			log.Debug("stderr pump stopped", "error", err)
		}
		return nil
	})

	pumpErr := g.Wait()

	waitErr := cmd.Wait()
	code := exitCode(waitErr)
	log.Debug("proxy child exited", "code", code)

	if pumpErr != nil {
		return code, pumpErr
	}
	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		return code, fmt.Errorf("failed to wait for %s: %w", name, waitErr)
	}
	return code, nil
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if code := exitErr.ExitCode(); code >= 0 {
			return code
		}
	}
	return 1
}

// pump reads the child's output one line at a time, with no length limit,
// and writes each line or its replacement before reading the next.
func (p *Proxy) pump(ctx context.Context, r io.Reader) error {
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadBytes('\n')
		if len(line) > 0 {
			if _, werr := p.stdout.Write(p.Intercept(ctx, line)); werr != nil {
				return fmt.Errorf("failed to write output: %w", werr)
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read child output: %w", err)
		}
	}
}

// Intercept returns what should be written in place of line: line itself,
// unless it is a tool call that was denied. A tool call with a duplicated
// object key is denied without consulting the authorizer, since consumers
// resolve duplicates differently than the checks here would.
func (p *Proxy) Intercept(ctx context.Context, line []byte) []byte {
	body := bytes.TrimSpace(line)
	if len(body) == 0 || body[0] != '{' || !gjson.ValidBytes(body) {
		return line
	}
	msg := gjson.ParseBytes(body)
	if !isToolMethod(msg) {
		return line
	}

	if key, ok := duplicateKey(msg); ok {
		reason := fmt.Sprintf("ambiguous tool call: duplicate key %q", key)
		params := lastValue(msg, "params")
		p.record(lastValue(params, "name").String(), policy.RawArgs([]byte(lastValue(params, "arguments").Raw)), false, reason)
		logger.Warn("tool call denied", "reason", reason)
		return denial(lastValue(msg, "id"), reason)
	}

	name, args, ok := toolCall(msg.Get("params"))
	if !ok {
		return line
	}

	res := p.auth.Check(ctx, name, args)
	p.record(name, args, res.Approved, res.Reason)
	if res.Approved {
		return line
	}
	logger.Info("tool call denied", "tool", name, "reason", res.Reason)
	return denial(msg.Get("id"), res.Reason)
}

func (p *Proxy) record(name string, args policy.Args, approved bool, reason string) {
	decision := "allow"
	if !approved {
		decision = "deny"
	}
	if err := audit.Log(audit.Entry{
		ToolName: name,
		Args:     args.JSON(),
		Decision: decision,
		Reason:   reason,
		Source:   audit.SourceProxy,
	}); err != nil {
		logger.Debug("failed to write audit log", "error", err)
	}
}

// isToolMethod reports whether any "method" member of msg names a tool call.
func isToolMethod(msg gjson.Result) bool {
	tool := false
	msg.ForEach(func(k, v gjson.Result) bool {
		if k.Str == "method" && toolMethods[v.String()] {
			tool = true
		}
		return !tool
	})
	return tool
}

// duplicateKey returns the first object key found twice in the same object,
// at any depth.
func duplicateKey(r gjson.Result) (string, bool) {
	var dup string
	found := false
	switch {
	case r.IsObject():
		seen := make(map[string]bool)
		r.ForEach(func(k, v gjson.Result) bool {
			if seen[k.Str] {
				dup, found = k.Str, true
				return false
			}
			seen[k.Str] = true
			dup, found = duplicateKey(v)
			return !found
		})
	case r.IsArray():
		r.ForEach(func(_, v gjson.Result) bool {
			dup, found = duplicateKey(v)
			return !found
		})
	}
	return dup, found
}

// lastValue returns the last member named key, the one JSON decoders that
// overwrite on duplicates end up with.
func lastValue(obj gjson.Result, key string) gjson.Result {
	var out gjson.Result
	obj.ForEach(func(k, v gjson.Result) bool {
		if k.Str == key {
			out = v
		}
		return true
	})
	return out
}

// toolCall reads params.name/params.arguments, or
// params.tool_name/params.tool_input.
func toolCall(params gjson.Result) (string, policy.Args, bool) {
	if !params.IsObject() {
		return "", policy.Args{}, false
	}
	for _, pair := range [][2]string{{"name", "arguments"}, {"tool_name", "tool_input"}} {
		n := params.Get(pair[0])
		if n.Type != gjson.String || n.Str == "" {
			continue
		}
		var args policy.Args
		if a := params.Get(pair[1]); a.Exists() {
			args = policy.RawArgs([]byte(a.Raw))
		}
		return n.Str, args, true
	}
	return "", policy.Args{}, false
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Error   rpcError        `json:"error"`
}

// denial builds the newline-terminated error response that replaces a
// denied call, reusing the call's id verbatim.
func denial(id gjson.Result, message string) []byte {
	raw := json.RawMessage("null")
	if id.Exists() {
		raw = json.RawMessage(id.Raw)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(errorResponse{
		JSONRPC: "2.0",
		ID:      raw,
		Error:   rpcError{Code: DeniedCode, Message: message},
	}); err != nil {
		logger.Debug("failed to encode denial", "error", err)
		return []byte(`{"jsonrpc":"2.0","id":null,"error":{"code":-32000,"message":"denied"}}` + "\n")
	}
	return buf.Bytes()
}
