// Package credentials loads the API key used for remote approval.
//
// Credentials live in <configDir>/credentials.toml under a [default] table.
// MAYI_API_KEY and MAYI_API_URL override the file.
package credentials

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"

	"github.com/dgerlanc/mayi/internal/constants"
)

// Credentials authenticate against the remote approval service.
type Credentials struct {
	APIKey string `toml:"api_key"`
	APIURL string `toml:"api_url,omitempty"`
}

type file struct {
	Default Credentials `toml:"default"`
}

type overrides struct {
	APIKey string `env:"MAYI_API_KEY"`
	APIURL string `env:"MAYI_API_URL"`
}

// Path returns the credentials file inside configDir.
func Path(configDir string) string {
	return filepath.Join(configDir, constants.CredentialsFileName)
}

// Load returns the credentials from configDir and the process environment.
// It returns nil, nil when no API key is configured.
func Load(configDir string) (*Credentials, error) {
	return LoadWithEnv(configDir, nil)
}

// LoadWithEnv is Load with an explicit environment; nil means the process
// environment.
func LoadWithEnv(configDir string, environ map[string]string) (*Credentials, error) {
	var creds Credentials

	if configDir != "" {
		var f file
		_, err := toml.DecodeFile(Path(configDir), &f)
		switch {
		case err == nil:
			creds = f.Default
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("failed to read credentials: %w", err)
		}
	}

	var o overrides
	opts := env.Options{}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&o, opts); err != nil {
		return nil, fmt.Errorf("failed to parse credential environment: %w", err)
	}
	if o.APIKey != "" {
		creds.APIKey = o.APIKey
	}
	if o.APIURL != "" {
		creds.APIURL = o.APIURL
	}

	creds.APIKey = strings.TrimSpace(creds.APIKey)
	if creds.APIKey == "" {
		return nil, nil
	}
	if strings.TrimSpace(creds.APIURL) == "" {
		creds.APIURL = constants.DefaultAPIURL
	}
	return &creds, nil
}

// Save writes creds to configDir with owner-only permissions.
func Save(configDir string, creds Credentials) error {
	if strings.TrimSpace(creds.APIKey) == "" {
		return errors.New("api key is required")
	}
	if err := os.MkdirAll(configDir, constants.DirMode); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	path := Path(configDir)
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, constants.SecretFileMode)
	if err != nil {
		return fmt.Errorf("failed to create credentials file: %w", err)
	}
	if err := toml.NewEncoder(f).Encode(file{Default: creds}); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to encode credentials: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to save credentials: %w", err)
	}
	return nil
}
