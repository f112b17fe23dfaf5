package main

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/dgerlanc/mayi/internal/analyzer"
	"github.com/dgerlanc/mayi/internal/authz"
	"github.com/dgerlanc/mayi/internal/config"
	"github.com/dgerlanc/mayi/internal/hook"
	"github.com/dgerlanc/mayi/internal/policy"
	"github.com/dgerlanc/mayi/internal/proxy"
)

// FuzzAnalyze tests command analysis for crashes and case folding
func FuzzAnalyze(f *testing.F) {
	f.Add("git status")
	f.Add("git status && echo done")
	f.Add("echo 'hello && world'")
	f.Add("ls | grep foo | wc -l")
	f.Add("/usr/bin/rm -rf /")
	f.Add(`r\m -rf src`)
	f.Add("sudo env FOO=1 timeout 5 rm x")
	f.Add("bash -c 'bash -c \"rm -rf /\"'")
	f.Add("")
	f.Add("   ")
	f.Add("$(cat /etc/passwd)")
	f.Add("`whoami`")
	f.Add("rm${IFS}-rf${IFS}/")
	f.Add("for i in 1 2 3; do echo $i; done")
	f.Add("cat <<EOF | sh\nrm -rf /\nEOF")
	f.Add("echo $'\\x72\\x6d'")

	f.Fuzz(func(t *testing.T, cmd string) {
		a := analyzer.Analyze(cmd)
		for _, s := range append(append(a.Actions, a.Paths...), a.Tokens...) {
			if s != strings.ToLower(s) {
				t.Errorf("Analyze(%q) produced non-folded %q", cmd, s)
			}
		}
	})
}

// FuzzEvaluate tests the policy engine for crashes
func FuzzEvaluate(f *testing.F) {
	f.Add("bash", "rm -rf node_modules")
	f.Add("bash", "rm -rf /")
	f.Add("delete_user", "")
	f.Add("list_users", "rm")
	f.Add("", "")
	f.Add("terminal.execute", "find . -delete")

	engine := policy.NewEngine(nil)

	f.Fuzz(func(t *testing.T, name, cmd string) {
		args, err := policy.ArgsOf(map[string]string{"command": cmd})
		if err != nil {
			t.Skip()
		}
		switch d := engine.Evaluate(name, args); d {
		case policy.DecisionAllow, policy.DecisionReview:
		default:
			t.Errorf("Evaluate(%q, %q) = %q", name, cmd, d)
		}
	})
}

// FuzzCheck tests that the hook check never panics and always answers
// with valid hook JSON
func FuzzCheck(f *testing.F) {
	f.Add(`{"tool_name":"Bash","tool_input":{"command":"git status"}}`)
	f.Add(`{"tool_name":"Bash","tool_input":{"command":"rm -rf /"}}`)
	f.Add(`{"tool_name":"Bash","tool_input":{"command":""}}`)
	f.Add(`{"toolName":"delete_user","args":{"id":1}}`)
	f.Add(`{"name":"x","arguments":null}`)
	f.Add(`{"tool_name":"Read","tool_input":{}}`)
	f.Add(`{}`)
	f.Add(`not json`)
	f.Add(``)

	a := authz.New(authz.Options{Config: config.Static(nil)})

	f.Fuzz(func(t *testing.T, input string) {
		res := hook.RunCheck(context.Background(), a, strings.NewReader(input))
		var out hook.Output
		if err := json.Unmarshal([]byte(res.Output), &out); err != nil {
			t.Fatalf("invalid output for %q: %v", input, err)
		}
	})
}

// FuzzIntercept tests JSON-RPC interception for crashes
func FuzzIntercept(f *testing.F) {
	f.Add(`{"jsonrpc":"2.0","id":7,"method":"tools/call","params":{"name":"delete_db","arguments":{}}}`)
	f.Add(`{"jsonrpc":"2.0","id":"a","method":"use_tool","params":{"tool_name":"x","tool_input":[1]}}`)
	f.Add(`{"jsonrpc":"2.0","method":"notifications/initialized"}`)
	f.Add(`{"method":"tools/call","params":"oops"}`)
	f.Add(`plain text`)

	p := proxy.New(authz.New(authz.Options{Config: config.Static(nil)}), proxy.Options{})

	f.Fuzz(func(t *testing.T, line string) {
		out := p.Intercept(context.Background(), []byte(line+"\n"))
		if len(out) == 0 {
			t.Errorf("Intercept(%q) dropped the line", line)
		}
	})
}
