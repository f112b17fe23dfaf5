package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dgerlanc/mayi/internal/constants"
)

func writeConfig(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func newTestResolver(t *testing.T) (*Resolver, string, string) {
	t.Helper()
	projectDir := t.TempDir()
	globalDir := t.TempDir()
	return NewResolver(ResolverOptions{ProjectDir: projectDir, GlobalDir: globalDir}), projectDir, globalDir
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Source != SourceDefault {
		t.Errorf("Source = %q, want %q", cfg.Source, SourceDefault)
	}
	if cfg.Settings.Mode != ModeStandard {
		t.Errorf("Mode = %q, want %q", cfg.Settings.Mode, ModeStandard)
	}
	if len(cfg.Policy.DangerousWords) == 0 {
		t.Error("expected default dangerous words")
	}
	if cfg.Policy.ToolInspection["bash"] != "command" {
		t.Errorf("expected bash inspection on command, got %q", cfg.Policy.ToolInspection["bash"])
	}
	if problems := cfg.Validate(); len(problems) != 0 {
		t.Errorf("default config has problems: %v", problems)
	}
}

func TestDefaultsAreIndependentCopies(t *testing.T) {
	a := Defaults()
	a.Policy.DangerousWords[0] = "mutated"

	b := Defaults()
	if b.Policy.DangerousWords[0] == "mutated" {
		t.Error("Defaults() shares state between calls")
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
		check   func(t *testing.T, cfg *Config)
	}{
		{
			name:  "empty object uses defaults",
			input: `{}`,
			check: func(t *testing.T, cfg *Config) {
				if len(cfg.Policy.DangerousWords) != len(Defaults().Policy.DangerousWords) {
					t.Error("expected default dangerous words")
				}
			},
		},
		{
			name:  "present policy replaces default wholesale",
			input: `{"policy": {"dangerousWords": ["nuke"]}}`,
			check: func(t *testing.T, cfg *Config) {
				if len(cfg.Policy.DangerousWords) != 1 || cfg.Policy.DangerousWords[0] != "nuke" {
					t.Errorf("DangerousWords = %v", cfg.Policy.DangerousWords)
				}
				if len(cfg.Policy.IgnoredTools) != 0 {
					t.Errorf("expected no ignored tools, got %v", cfg.Policy.IgnoredTools)
				}
				if len(cfg.Policy.Rules) != 0 {
					t.Errorf("expected no rules, got %v", cfg.Policy.Rules)
				}
			},
		},
		{
			name:  "null section falls back to default",
			input: `{"policy": null, "settings": {"mode": "strict"}}`,
			check: func(t *testing.T, cfg *Config) {
				if len(cfg.Policy.DangerousWords) == 0 {
					t.Error("expected default policy for null section")
				}
				if !cfg.IsStrict() {
					t.Error("expected strict mode")
				}
			},
		},
		{
			name:  "mode is case folded",
			input: `{"settings": {"mode": " STRICT "}}`,
			check: func(t *testing.T, cfg *Config) {
				if cfg.Settings.Mode != ModeStrict {
					t.Errorf("Mode = %q", cfg.Settings.Mode)
				}
			},
		},
		{
			name:  "empty environments replaces defaults",
			input: `{"environments": {}}`,
			check: func(t *testing.T, cfg *Config) {
				if _, ok := cfg.Environment("production"); ok {
					t.Error("expected no production environment")
				}
			},
		},
		{
			name:  "environment override",
			input: `{"environments": {"staging": {"requireApproval": false, "slackChannel": "#ops"}}}`,
			check: func(t *testing.T, cfg *Config) {
				env, ok := cfg.Environment("staging")
				if !ok {
					t.Fatal("expected staging environment")
				}
				if env.RequireApproval == nil || *env.RequireApproval {
					t.Errorf("RequireApproval = %v, want false", env.RequireApproval)
				}
				if env.SlackChannel != "#ops" {
					t.Errorf("SlackChannel = %q", env.SlackChannel)
				}
			},
		},
		{name: "invalid json", input: `{"policy": `, wantErr: true},
		{name: "top level array", input: `[]`, wantErr: true},
		{name: "top level null", input: `null`, wantErr: true},
		{name: "wrong section type", input: `{"policy": "strict"}`, wantErr: true},
		{name: "wrong field type", input: `{"policy": {"dangerousWords": 5}}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, _, err := Parse([]byte(tt.input))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrMalformed) {
					t.Errorf("expected ErrMalformed, got %v", err)
				}
				return
			}
			tt.check(t, cfg)
		})
	}
}

func TestParseUnknownKeysWarn(t *testing.T) {
	cfg, warnings, err := Parse([]byte(`{
		"colour": "blue",
		"policy": {"dangerousWords": ["drop"], "extra": true}
	}`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(cfg.Policy.DangerousWords) != 1 {
		t.Errorf("DangerousWords = %v", cfg.Policy.DangerousWords)
	}
	joined := strings.Join(warnings, "\n")
	if !strings.Contains(joined, "colour") {
		t.Errorf("expected warning for top-level key, got %v", warnings)
	}
	if !strings.Contains(joined, "policy.extra") {
		t.Errorf("expected warning for nested key, got %v", warnings)
	}
}

func TestResolverNoFiles(t *testing.T) {
	r, _, _ := newTestResolver(t)

	cfg := r.Get()
	if cfg.Source != SourceDefault {
		t.Errorf("Source = %q, want default", cfg.Source)
	}
}

func TestResolverProjectShadowsGlobal(t *testing.T) {
	r, projectDir, globalDir := newTestResolver(t)
	writeConfig(t, globalDir, constants.ConfigFileName, `{"policy": {"dangerousWords": ["global"]}}`)
	writeConfig(t, projectDir, constants.ProjectConfigFile, `{"policy": {"dangerousWords": []}}`)

	cfg := r.Get()
	if cfg.Source != filepath.Join(projectDir, constants.ProjectConfigFile) {
		t.Errorf("Source = %q", cfg.Source)
	}
	if len(cfg.Policy.DangerousWords) != 0 {
		t.Errorf("expected project's empty list to win, got %v", cfg.Policy.DangerousWords)
	}
}

func TestResolverMalformedProjectFallsThrough(t *testing.T) {
	r, projectDir, globalDir := newTestResolver(t)
	writeConfig(t, projectDir, constants.ProjectConfigFile, `{not json`)
	writeConfig(t, globalDir, constants.ConfigFileName, `{"settings": {"mode": "strict"}}`)

	cfg := r.Get()
	if cfg.Source != filepath.Join(globalDir, constants.ConfigFileName) {
		t.Errorf("Source = %q, want global file", cfg.Source)
	}
	if !cfg.IsStrict() {
		t.Error("expected strict mode from global file")
	}
}

func TestResolverMalformedEverywhereUsesDefaults(t *testing.T) {
	r, projectDir, globalDir := newTestResolver(t)
	writeConfig(t, projectDir, constants.ProjectConfigFile, `[1, 2]`)
	writeConfig(t, globalDir, constants.ConfigFileName, `{"policy": 7}`)

	if got := r.Get().Source; got != SourceDefault {
		t.Errorf("Source = %q, want default", got)
	}
}

func TestResolverCachesUntilReset(t *testing.T) {
	r, projectDir, _ := newTestResolver(t)
	writeConfig(t, projectDir, constants.ProjectConfigFile, `{"settings": {"mode": "standard"}}`)

	first := r.Get()
	writeConfig(t, projectDir, constants.ProjectConfigFile, `{"settings": {"mode": "strict"}}`)

	if r.Get() != first {
		t.Error("expected cached snapshot before Reset")
	}
	if r.Get().IsStrict() {
		t.Error("cached snapshot should not see file changes")
	}

	r.Reset()
	if !r.Get().IsStrict() {
		t.Error("expected re-read after Reset")
	}
}

func TestResolverWarnings(t *testing.T) {
	r, projectDir, _ := newTestResolver(t)
	writeConfig(t, projectDir, constants.ProjectConfigFile, `{"settings": {"mode": "strict", "color": "red"}}`)

	warnings := r.Warnings()
	if len(warnings) != 1 || !strings.Contains(warnings[0], "settings.color") {
		t.Errorf("Warnings() = %v", warnings)
	}
	if !r.Get().IsStrict() {
		t.Error("unknown keys must not fail resolution")
	}
}

func TestResolverPaths(t *testing.T) {
	r, projectDir, globalDir := newTestResolver(t)

	paths := r.Paths()
	want := []string{
		filepath.Join(projectDir, constants.ProjectConfigFile),
		filepath.Join(globalDir, constants.ConfigFileName),
	}
	if len(paths) != len(want) {
		t.Fatalf("Paths() = %v, want %v", paths, want)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("Paths()[%d] = %q, want %q", i, paths[i], want[i])
		}
	}
}

func TestStatic(t *testing.T) {
	cfg := &Config{Settings: Settings{Mode: ModeStrict}}
	if Static(cfg).Get() != cfg {
		t.Error("Static should return the wrapped config")
	}
	if Static(nil).Get().Source != SourceDefault {
		t.Error("Static(nil) should return defaults")
	}
}

func TestEnvironmentLookup(t *testing.T) {
	cfg := Defaults()

	if _, ok := cfg.Environment("production"); !ok {
		t.Error("expected production environment")
	}
	if _, ok := cfg.Environment("Production"); !ok {
		t.Error("expected case-insensitive environment lookup")
	}
	if _, ok := cfg.Environment("development"); ok {
		t.Error("expected no development override")
	}
	if _, ok := cfg.Environment(""); ok {
		t.Error("expected no override for empty name")
	}
}

func TestValidate(t *testing.T) {
	cfg := &Config{
		Settings: Settings{Mode: "paranoid"},
		Policy: Policy{
			IgnoredTools:   []string{"list_*", "[bad"},
			ToolInspection: map[string]string{"bash": ""},
			Rules: []Rule{
				{Action: ""},
				{Action: "rm", AllowPaths: []string{"dist/**"}, BlockPaths: []string{"[oops"}},
			},
		},
	}

	problems := cfg.Validate()
	joined := strings.Join(problems, "\n")
	for _, want := range []string{
		"settings.mode",
		"policy.ignoredTools[1]",
		"policy.toolInspection[bash]: empty path",
		"policy.rules[0]: missing action",
		"policy.rules[1].blockPaths[0]",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("expected problem %q in:\n%s", want, joined)
		}
	}
	if len(problems) != 5 {
		t.Errorf("expected 5 problems, got %d:\n%s", len(problems), joined)
	}
}

func TestGetConfigDir(t *testing.T) {
	t.Run("env override", func(t *testing.T) {
		t.Setenv(constants.EnvConfigDir, "/custom/dir")
		dir, err := GetConfigDir()
		if err != nil {
			t.Fatal(err)
		}
		if dir != "/custom/dir" {
			t.Errorf("GetConfigDir() = %q", dir)
		}
	})

	t.Run("home default", func(t *testing.T) {
		t.Setenv(constants.EnvConfigDir, "")
		home := t.TempDir()
		t.Setenv("HOME", home)
		dir, err := GetConfigDir()
		if err != nil {
			t.Fatal(err)
		}
		if want := filepath.Join(home, ".config", "mayi"); dir != want {
			t.Errorf("GetConfigDir() = %q, want %q", dir, want)
		}
	})
}

func TestEnsureConfigFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "mayi")

	if err := EnsureConfigFiles(dir); err != nil {
		t.Fatalf("EnsureConfigFiles() error = %v", err)
	}

	path := filepath.Join(dir, constants.ConfigFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if string(data) != string(GetDefaultConfig()) {
		t.Error("written config differs from embedded default")
	}

	// Existing files are left alone.
	writeConfig(t, dir, constants.ConfigFileName, `{"settings": {"mode": "strict"}}`)
	if err := EnsureConfigFiles(dir); err != nil {
		t.Fatal(err)
	}
	data, _ = os.ReadFile(path)
	if !strings.Contains(string(data), "strict") {
		t.Error("EnsureConfigFiles overwrote an existing file")
	}
}

func TestDefaultConfigParses(t *testing.T) {
	cfg, warnings, err := Parse(GetDefaultConfig())
	if err != nil {
		t.Fatalf("Parse(default) error = %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("default config has unknown keys: %v", warnings)
	}
	if len(cfg.Policy.Rules) == 0 {
		t.Error("expected default rules")
	}
}
