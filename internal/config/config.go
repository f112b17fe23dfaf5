// Package config resolves the layered mayi configuration.
//
// Sources are searched in order: the project file in the working directory,
// the user-global file, then the embedded defaults. The first source that
// exists and decodes cleanly wins. Each top-level section it carries
// (settings, policy, environments) replaces the default section wholesale;
// sections it omits fall back to the defaults. There is no field-level merge.
package config

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/dgerlanc/mayi/internal/constants"
	"github.com/dgerlanc/mayi/internal/logger"
	"github.com/dgerlanc/mayi/internal/patterns"
	"github.com/go-viper/mapstructure/v2"
)

//go:embed config.json
var defaultConfig []byte

// Mode selects how conservative the engine is for unmatched calls.
type Mode string

const (
	ModeStandard Mode = "standard"
	ModeStrict   Mode = "strict"
)

// SourceDefault is reported by Config.Source when no file was used.
const SourceDefault = "default"

// ErrMalformed is returned by Parse for input that is not a JSON object of
// the expected shape.
var ErrMalformed = errors.New("malformed configuration")

// Settings is the "settings" section.
type Settings struct {
	Mode Mode `json:"mode"`
}

// Rule classifies the path operands of one shell action.
type Rule struct {
	Action     string   `json:"action"`
	AllowPaths []string `json:"allowPaths,omitempty"`
	BlockPaths []string `json:"blockPaths,omitempty"`
}

// Policy is the "policy" section.
type Policy struct {
	DangerousWords []string          `json:"dangerousWords"`
	IgnoredTools   []string          `json:"ignoredTools"`
	ToolInspection map[string]string `json:"toolInspection"`
	Rules          []Rule            `json:"rules"`
}

// EnvOverride adjusts behaviour for one named environment.
type EnvOverride struct {
	RequireApproval *bool  `json:"requireApproval,omitempty"`
	SlackChannel    string `json:"slackChannel,omitempty"`
}

// Config is one resolved, immutable configuration snapshot.
type Config struct {
	Version      string                 `json:"version,omitempty"`
	Settings     Settings               `json:"settings"`
	Policy       Policy                 `json:"policy"`
	Environments map[string]EnvOverride `json:"environments"`

	// Source is the file the snapshot came from, or SourceDefault.
	Source string `json:"-"`
}

// Source supplies the configuration snapshot used for a decision.
type Source interface {
	Get() *Config
}

type staticSource struct {
	cfg *Config
}

func (s staticSource) Get() *Config { return s.cfg }

// Static adapts a fixed configuration to Source. A nil cfg yields the
// defaults.
func Static(cfg *Config) Source {
	if cfg == nil {
		cfg = Defaults()
	}
	return staticSource{cfg: cfg}
}

// fileConfig mirrors the on-disk shape. Sections are pointers so presence
// can be told apart from zero values.
type fileConfig struct {
	Version      any                    `json:"version"`
	Settings     *Settings              `json:"settings"`
	Policy       *Policy                `json:"policy"`
	Environments map[string]EnvOverride `json:"environments"`
}

// Parse decodes configuration data and overlays its sections on the
// defaults. Unknown keys are returned as warnings, not errors.
func Parse(data []byte) (*Config, []string, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if raw == nil {
		return nil, nil, fmt.Errorf("%w: top level must be an object", ErrMalformed)
	}

	var fc fileConfig
	var md mapstructure.Metadata
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:   &fc,
		TagName:  "json",
		Metadata: &md,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create decoder: %w", err)
	}
	if err := dec.Decode(raw); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	cfg := Defaults()
	if fc.Version != nil {
		cfg.Version = fmt.Sprint(fc.Version)
	}
	if raw["settings"] != nil && fc.Settings != nil {
		cfg.Settings = *fc.Settings
	}
	if raw["policy"] != nil && fc.Policy != nil {
		cfg.Policy = *fc.Policy
	}
	if raw["environments"] != nil {
		cfg.Environments = fc.Environments
		if cfg.Environments == nil {
			cfg.Environments = map[string]EnvOverride{}
		}
	}
	cfg.Settings.Mode = Mode(strings.ToLower(strings.TrimSpace(string(cfg.Settings.Mode))))

	warnings := make([]string, 0, len(md.Unused))
	for _, key := range md.Unused {
		warnings = append(warnings, "unknown key: "+key)
	}
	sort.Strings(warnings)
	return cfg, warnings, nil
}

// Defaults returns a fresh copy of the embedded default configuration.
func Defaults() *Config {
	var cfg Config
	if err := json.Unmarshal(defaultConfig, &cfg); err != nil {
		// The embedded file is part of the binary; failing here is a build defect.
		panic(fmt.Sprintf("embedded default config is invalid: %v", err))
	}
	cfg.Source = SourceDefault
	if cfg.Environments == nil {
		cfg.Environments = map[string]EnvOverride{}
	}
	return &cfg
}

// GetDefaultConfig returns the embedded default configuration file.
func GetDefaultConfig() []byte {
	return defaultConfig
}

// Environment returns the override for the named environment.
func (c *Config) Environment(name string) (EnvOverride, bool) {
	if c == nil || name == "" {
		return EnvOverride{}, false
	}
	if env, ok := c.Environments[name]; ok {
		return env, true
	}
	for key, env := range c.Environments {
		if strings.EqualFold(key, name) {
			return env, true
		}
	}
	return EnvOverride{}, false
}

// IsStrict reports whether strict mode is active.
func (c *Config) IsStrict() bool {
	return c != nil && c.Settings.Mode == ModeStrict
}

// Validate reports problems that make parts of the configuration inert:
// unknown modes, malformed globs and incomplete rules.
func (c *Config) Validate() []string {
	var problems []string
	switch c.Settings.Mode {
	case ModeStandard, ModeStrict, "":
	default:
		problems = append(problems, fmt.Sprintf("settings.mode: unknown mode %q (treated as standard)", c.Settings.Mode))
	}
	for i, g := range c.Policy.IgnoredTools {
		if err := patterns.Validate(g); err != nil {
			problems = append(problems, fmt.Sprintf("policy.ignoredTools[%d]: invalid pattern %q", i, g))
		}
	}
	keys := make([]string, 0, len(c.Policy.ToolInspection))
	for k := range c.Policy.ToolInspection {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := patterns.Validate(k); err != nil {
			problems = append(problems, fmt.Sprintf("policy.toolInspection: invalid pattern %q", k))
		}
		if strings.TrimSpace(c.Policy.ToolInspection[k]) == "" {
			problems = append(problems, fmt.Sprintf("policy.toolInspection[%s]: empty path", k))
		}
	}
	for i, r := range c.Policy.Rules {
		if strings.TrimSpace(r.Action) == "" {
			problems = append(problems, fmt.Sprintf("policy.rules[%d]: missing action", i))
		} else if err := patterns.Validate(r.Action); err != nil {
			problems = append(problems, fmt.Sprintf("policy.rules[%d].action: invalid pattern %q", i, r.Action))
		}
		for j, g := range r.AllowPaths {
			if err := patterns.Validate(g); err != nil {
				problems = append(problems, fmt.Sprintf("policy.rules[%d].allowPaths[%d]: invalid pattern %q", i, j, g))
			}
		}
		for j, g := range r.BlockPaths {
			if err := patterns.Validate(g); err != nil {
				problems = append(problems, fmt.Sprintf("policy.rules[%d].blockPaths[%d]: invalid pattern %q", i, j, g))
			}
		}
	}
	return problems
}

// GetConfigDir returns the user-global config directory.
// Uses MAYI_CONFIG if set, otherwise ~/.config/mayi.
func GetConfigDir() (string, error) {
	if dir := os.Getenv(constants.EnvConfigDir); dir != "" {
		return dir, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, constants.XDGConfigSubdir, constants.AppName), nil
}

// EnsureConfigFiles creates configDir and writes the default config file if
// it doesn't exist yet.
func EnsureConfigFiles(configDir string) error {
	if err := os.MkdirAll(configDir, constants.DirMode); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configPath := filepath.Join(configDir, constants.ConfigFileName)
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := os.WriteFile(configPath, defaultConfig, constants.FileMode); err != nil {
			return fmt.Errorf("failed to write %s: %w", constants.ConfigFileName, err)
		}
	}

	return nil
}

// ResolverOptions locates the configuration sources. Empty fields use the
// working directory and GetConfigDir respectively.
type ResolverOptions struct {
	ProjectDir string
	GlobalDir  string
}

// Resolver resolves and caches the configuration for a process. It is safe
// for concurrent use; the snapshot is built at most once until Reset.
type Resolver struct {
	opts ResolverOptions

	mu       sync.Mutex
	cfg      *Config
	warnings []string
}

// NewResolver returns a Resolver for the given sources.
func NewResolver(opts ResolverOptions) *Resolver {
	return &Resolver{opts: opts}
}

// Get returns the resolved configuration, resolving it on first use.
// The returned snapshot must not be modified.
func (r *Resolver) Get() *Config {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cfg == nil {
		r.cfg, r.warnings = r.resolve()
	}
	return r.cfg
}

// Warnings returns the non-fatal warnings produced by the last resolution.
func (r *Resolver) Warnings() []string {
	r.Get()
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.warnings...)
}

// Reset discards the cached snapshot so the next Get re-reads the sources.
func (r *Resolver) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfg = nil
	r.warnings = nil
}

// Paths returns the candidate files in search order.
func (r *Resolver) Paths() []string {
	var paths []string

	projectDir := r.opts.ProjectDir
	if projectDir == "" {
		if wd, err := os.Getwd(); err == nil {
			projectDir = wd
		} else {
			logger.Debug("failed to get working directory", "error", err)
		}
	}
	if projectDir != "" {
		paths = append(paths, filepath.Join(projectDir, constants.ProjectConfigFile))
	}

	globalDir := r.opts.GlobalDir
	if globalDir == "" {
		dir, err := GetConfigDir()
		if err != nil {
			logger.Debug("failed to get config dir", "error", err)
		}
		globalDir = dir
	}
	if globalDir != "" {
		paths = append(paths, filepath.Join(globalDir, constants.ConfigFileName))
	}

	return paths
}

func (r *Resolver) resolve() (*Config, []string) {
	for _, path := range r.Paths() {
		cfg, warnings, ok := loadFile(path)
		if !ok {
			continue
		}
		for _, w := range warnings {
			logger.Warn("config warning", "path", path, "warning", w)
		}
		logger.Debug("config loaded",
			"path", path,
			"mode", cfg.Settings.Mode,
			"rules", len(cfg.Policy.Rules),
			"dangerous_words", len(cfg.Policy.DangerousWords))
		return cfg, warnings
	}

	logger.Debug("no config file found, using embedded defaults")
	return Defaults(), nil
}

func loadFile(path string) (*Config, []string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Debug("failed to read config file", "path", path, "error", err)
		}
		return nil, nil, false
	}

	cfg, warnings, err := Parse(data)
	if err != nil {
		logger.Debug("ignoring malformed config file", "path", path, "error", err)
		return nil, nil, false
	}
	cfg.Source = path
	return cfg, warnings, true
}
