package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dgerlanc/mayi/internal/credentials"
)

func TestRunLoginFlag(t *testing.T) {
	configDir := setupTestConfig(t, "", nil)
	loginAPIKey = "sk-test"
	loginAPIURL = "https://approvals.example.com/v1"

	cmd, stdout := newTestCommand("")
	if err := runLogin(cmd, nil); err != nil {
		t.Fatalf("runLogin() error = %v", err)
	}

	path := filepath.Join(configDir, "credentials.toml")
	if !strings.Contains(stdout.String(), path) {
		t.Errorf("output = %q", stdout.String())
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("credentials mode = %v, want 0600", info.Mode().Perm())
	}

	creds, err := credentials.LoadWithEnv(configDir, map[string]string{})
	if err != nil || creds == nil {
		t.Fatalf("LoadWithEnv() = %v, %v", creds, err)
	}
	if creds.APIKey != "sk-test" || creds.APIURL != "https://approvals.example.com/v1" {
		t.Errorf("saved credentials = %+v", creds)
	}
}

func TestRunLoginStdin(t *testing.T) {
	configDir := setupTestConfig(t, "", nil)

	cmd, _ := newTestCommand("  sk-from-stdin \n")
	if err := runLogin(cmd, nil); err != nil {
		t.Fatalf("runLogin() error = %v", err)
	}

	creds, err := credentials.LoadWithEnv(configDir, map[string]string{})
	if err != nil || creds == nil {
		t.Fatalf("LoadWithEnv() = %v, %v", creds, err)
	}
	if creds.APIKey != "sk-from-stdin" {
		t.Errorf("APIKey = %q", creds.APIKey)
	}
	if creds.APIURL != "https://api.mayi.dev/v1/approvals" {
		t.Errorf("APIURL = %q, want default", creds.APIURL)
	}
}

func TestRunLoginEmptyKey(t *testing.T) {
	configDir := setupTestConfig(t, "", nil)

	cmd, _ := newTestCommand("\n")
	if err := runLogin(cmd, nil); err == nil {
		t.Fatal("expected an error for an empty key")
	}
	if _, err := os.Stat(filepath.Join(configDir, "credentials.toml")); !os.IsNotExist(err) {
		t.Error("credentials file should not be written")
	}
}
