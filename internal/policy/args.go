package policy

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// Args holds the arguments of a tool call as raw JSON. Nothing about their
// shape is assumed; fields are looked up by dot-path and absence is reported
// rather than guessed.
type Args struct {
	raw []byte
}

// RawArgs wraps JSON-encoded arguments. Invalid JSON yields an Args in
// which every lookup is absent.
func RawArgs(raw []byte) Args {
	if len(raw) == 0 || !gjson.ValidBytes(raw) {
		return Args{}
	}
	return Args{raw: raw}
}

// ArgsOf encodes an arbitrary Go value as Args.
func ArgsOf(v any) (Args, error) {
	if v == nil {
		return Args{}, nil
	}
	if a, ok := v.(Args); ok {
		return a, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return Args{}, fmt.Errorf("encode args: %w", err)
	}
	return Args{raw: raw}, nil
}

// Lookup resolves a dot-path such as "input.command" or "files.0".
func (a Args) Lookup(path string) (gjson.Result, bool) {
	if len(a.raw) == 0 || path == "" {
		return gjson.Result{}, false
	}
	r := gjson.GetBytes(a.raw, path)
	if !r.Exists() {
		return gjson.Result{}, false
	}
	return r, true
}

// String resolves a dot-path that must hold a JSON string.
func (a Args) String(path string) (string, bool) {
	r, ok := a.Lookup(path)
	if !ok || r.Type != gjson.String {
		return "", false
	}
	return r.Str, true
}

// JSON returns the arguments as JSON, "{}" when empty.
func (a Args) JSON() json.RawMessage {
	if len(a.raw) == 0 {
		return json.RawMessage("{}")
	}
	return json.RawMessage(a.raw)
}

// MarshalJSON implements json.Marshaler.
func (a Args) MarshalJSON() ([]byte, error) {
	return a.JSON(), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *Args) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid args JSON")
	}
	if string(data) == "null" {
		a.raw = nil
		return nil
	}
	a.raw = append([]byte(nil), data...)
	return nil
}
