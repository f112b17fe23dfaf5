package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestInit(t *testing.T) {
	defer Reset()

	var buf bytes.Buffer
	if err := Init(Options{Level: "debug", Output: &buf}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	Debug("test message", "key", "value")

	output := buf.String()
	if !strings.Contains(output, "test message") {
		t.Errorf("expected output to contain 'test message', got: %s", output)
	}
	if !strings.Contains(output, "key=value") {
		t.Errorf("expected output to contain 'key=value', got: %s", output)
	}
	if !strings.Contains(output, "app=mayi") {
		t.Errorf("expected output to carry app attribute, got: %s", output)
	}
}

func TestInitOnlyOnce(t *testing.T) {
	defer Reset()

	var buf1, buf2 bytes.Buffer
	Init(Options{Verbose: true, Output: &buf1})
	Init(Options{Verbose: true, Output: &buf2})

	Debug("test message")

	if buf1.Len() == 0 {
		t.Error("expected first buffer to have output")
	}
	if buf2.Len() != 0 {
		t.Error("expected second buffer to be empty")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelError, false},
		{"error", slog.LevelError, false},
		{"DEBUG", slog.LevelDebug, false},
		{" info ", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"loud", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestInvalidLevelFallsBackToError(t *testing.T) {
	defer Reset()

	var buf bytes.Buffer
	if err := Init(Options{Level: "loud", Output: &buf}); err == nil {
		t.Fatal("expected error for invalid level")
	}

	Warn("warn message")
	if buf.Len() != 0 {
		t.Errorf("expected warn to be filtered, got: %s", buf.String())
	}
	Error("error message")
	if !strings.Contains(buf.String(), "error message") {
		t.Error("expected error message to be logged")
	}
}

func TestIsVerbose(t *testing.T) {
	defer Reset()

	if IsVerbose() {
		t.Error("expected IsVerbose to be false before Init")
	}

	Init(Options{Verbose: true, Output: &bytes.Buffer{}})

	if !IsVerbose() {
		t.Error("expected IsVerbose to be true after Init with Verbose: true")
	}
}

func TestDefaultLevelIsQuiet(t *testing.T) {
	defer Reset()

	var buf bytes.Buffer
	Init(Options{Output: &buf})

	Debug("debug message")
	Info("info message")
	Warn("warn message")

	if buf.Len() != 0 {
		t.Errorf("expected no output below error level, got: %s", buf.String())
	}
}

func TestJSONFormat(t *testing.T) {
	defer Reset()

	var buf bytes.Buffer
	Init(Options{Verbose: true, Output: &buf, JSON: true})

	Debug("test message", "key", "value")

	output := buf.String()
	if !strings.Contains(output, `"msg":"test message"`) {
		t.Errorf("expected JSON output with msg field, got: %s", output)
	}
	if !strings.Contains(output, `"key":"value"`) {
		t.Errorf("expected JSON output with key field, got: %s", output)
	}
}

func TestWith(t *testing.T) {
	defer Reset()

	var buf bytes.Buffer
	Init(Options{Verbose: true, Output: &buf})

	With("component", "proxy").Debug("child message")

	if !strings.Contains(buf.String(), "component=proxy") {
		t.Errorf("expected output to contain 'component=proxy', got: %s", buf.String())
	}
}

func TestLogBeforeInit(t *testing.T) {
	defer Reset()

	Debug("debug")
	Info("info")
	Warn("warn")
	Error("error")
	With("k", "v").Info("discarded")
}
