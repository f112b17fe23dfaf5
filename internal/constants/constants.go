// Package constants defines shared constants used across the mayi codebase.
package constants

import (
	"os"
	"time"
)

// File permissions
const (
	DirMode        os.FileMode = 0755
	FileMode       os.FileMode = 0644
	SecretFileMode os.FileMode = 0600
)

// Environment variables
const (
	EnvConfigDir       = "MAYI_CONFIG"
	EnvEnvironment     = "MAYI_ENV"
	EnvAPIKey          = "MAYI_API_KEY"
	EnvAPIURL          = "MAYI_API_URL"
	EnvAuditLog        = "MAYI_AUDIT_LOG"
	EnvApprovalTimeout = "MAYI_APPROVAL_TIMEOUT"
)

// Application paths
const (
	AppName             = "mayi"
	XDGConfigSubdir     = ".config"
	XDGDataSubdir       = ".local/share"
	ConfigFileName      = "config.json"
	ProjectConfigFile   = "mayi.config.json"
	CredentialsFileName = "credentials.toml"
	AuditLogFileName    = "audit.log"
)

// Hook invocation strings wired into third-party agent settings.
const (
	CheckHookCommand = "mayi check"
	LogHookCommand   = "mayi log"
)

// Defaults
const (
	DefaultEnvironment     = "development"
	DefaultAPIURL          = "https://api.mayi.dev/v1/approvals"
	DefaultApprovalTimeout = 35 * time.Second
	DefaultAuditMaxBytes   = 10 << 20
)
