// Package testutil provides shared test utilities for mayi tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dgerlanc/mayi/internal/config"
	"github.com/dgerlanc/mayi/internal/constants"
)

// SetupTestConfig points MAYI_CONFIG at a fresh temporary directory, writes
// configContent as the global config file (when non-empty) and returns a
// Resolver that searches an empty project directory before it.
func SetupTestConfig(t *testing.T, configContent string) *config.Resolver {
	t.Helper()

	globalDir := t.TempDir()
	projectDir := t.TempDir()
	t.Setenv(constants.EnvConfigDir, globalDir)

	if configContent != "" {
		WriteFile(t, globalDir, constants.ConfigFileName, configContent)
	}

	return config.NewResolver(config.ResolverOptions{
		ProjectDir: projectDir,
		GlobalDir:  globalDir,
	})
}

// WriteFile writes content to dir/name and returns the full path.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), constants.DirMode); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), constants.FileMode); err != nil {
		t.Fatal(err)
	}
	return path
}

// MustParse parses configuration JSON or fails the test.
func MustParse(t *testing.T, content string) *config.Config {
	t.Helper()

	cfg, _, err := config.Parse([]byte(content))
	if err != nil {
		t.Fatalf("config.Parse() error = %v", err)
	}
	return cfg
}

// MinimalTestConfig is a small strict-free policy used across tests.
const MinimalTestConfig = `{
  "settings": {"mode": "standard"},
  "policy": {
    "dangerousWords": ["delete", "drop", "rm"],
    "ignoredTools": ["list_*", "get_*"],
    "toolInspection": {"bash": "command"},
    "rules": [
      {"action": "rm", "allowPaths": ["dist/**"], "blockPaths": ["/etc/**"]}
    ]
  },
  "environments": {"production": {"requireApproval": true}}
}`
