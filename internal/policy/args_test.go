package policy

import (
	"encoding/json"
	"testing"

	"github.com/tidwall/gjson"
)

func TestArgsLookup(t *testing.T) {
	args := RawArgs([]byte(`{
		"command": "ls",
		"input": {"cmd": "rm x", "files": ["a", "b"]},
		"count": 3,
		"flag": false,
		"empty": null
	}`))

	tests := []struct {
		path     string
		wantOK   bool
		wantType gjson.Type
	}{
		{"command", true, gjson.String},
		{"input.cmd", true, gjson.String},
		{"input.files.1", true, gjson.String},
		{"input", true, gjson.JSON},
		{"count", true, gjson.Number},
		{"flag", true, gjson.False},
		{"empty", true, gjson.Null},
		{"missing", false, gjson.Null},
		{"input.missing.deeper", false, gjson.Null},
		{"command.sub", false, gjson.Null},
		{"", false, gjson.Null},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			r, ok := args.Lookup(tt.path)
			if ok != tt.wantOK {
				t.Fatalf("Lookup(%q) ok = %v, want %v", tt.path, ok, tt.wantOK)
			}
			if ok && r.Type != tt.wantType {
				t.Errorf("Lookup(%q) type = %v, want %v", tt.path, r.Type, tt.wantType)
			}
		})
	}
}

func TestArgsString(t *testing.T) {
	args := RawArgs([]byte(`{"command": "rm -rf /", "count": 3, "list": ["x"]}`))

	if s, ok := args.String("command"); !ok || s != "rm -rf /" {
		t.Errorf(`String("command") = %q, %v`, s, ok)
	}
	for _, path := range []string{"count", "list", "missing"} {
		if _, ok := args.String(path); ok {
			t.Errorf("String(%q) should be absent", path)
		}
	}
}

func TestRawArgsInvalid(t *testing.T) {
	for _, raw := range []string{"", "{", "not json", `{"a":}`} {
		args := RawArgs([]byte(raw))
		if _, ok := args.Lookup("a"); ok {
			t.Errorf("RawArgs(%q).Lookup should be absent", raw)
		}
		if string(args.JSON()) != "{}" {
			t.Errorf("RawArgs(%q).JSON() = %s, want {}", raw, args.JSON())
		}
	}
}

func TestArgsOf(t *testing.T) {
	args, err := ArgsOf(map[string]any{"path": "dist"})
	if err != nil {
		t.Fatal(err)
	}
	if s, _ := args.String("path"); s != "dist" {
		t.Errorf("String(path) = %q", s)
	}

	if _, err := ArgsOf(make(chan int)); err == nil {
		t.Error("expected error for unencodable value")
	}

	same, err := ArgsOf(args)
	if err != nil || string(same.JSON()) != string(args.JSON()) {
		t.Errorf("ArgsOf(Args) = %s, %v", same.JSON(), err)
	}
}

func TestToolCallJSON(t *testing.T) {
	var call ToolCall
	if err := json.Unmarshal([]byte(`{"toolName":"bash","args":{"command":"ls"}}`), &call); err != nil {
		t.Fatal(err)
	}
	if call.Name != "bash" {
		t.Errorf("Name = %q", call.Name)
	}
	if s, _ := call.Args.String("command"); s != "ls" {
		t.Errorf("Args.command = %q", s)
	}

	out, err := json.Marshal(ToolCall{Name: "noop"})
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != `{"toolName":"noop","args":{}}` {
		t.Errorf("Marshal = %s", out)
	}
}
