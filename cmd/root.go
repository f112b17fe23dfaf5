// Package cmd implements the CLI commands for mayi.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/cobra"

	"github.com/dgerlanc/mayi/internal/audit"
	"github.com/dgerlanc/mayi/internal/authz"
	"github.com/dgerlanc/mayi/internal/config"
	"github.com/dgerlanc/mayi/internal/constants"
	"github.com/dgerlanc/mayi/internal/credentials"
	"github.com/dgerlanc/mayi/internal/logger"
	"github.com/dgerlanc/mayi/internal/terminal"
)

var (
	// Global flags
	verbose     bool
	logLevel    string
	noAuditLog  bool
	environment string

	// Set by initApp
	settings Settings
	resolver *config.Resolver

	// newPrompter returns the operator prompt; replaced in tests.
	newPrompter = func() authz.Prompter { return terminal.New() }
)

// Settings are read from MAYI_* environment variables. MAYI_CONFIG is read
// by the config package and credentials by the credentials package.
type Settings struct {
	Environment     string        `env:"MAYI_ENV"`
	AuditLog        string        `env:"MAYI_AUDIT_LOG"`
	ApprovalTimeout time.Duration `env:"MAYI_APPROVAL_TIMEOUT"`
}

// ExitError carries a process exit code out of a command without printing
// anything.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "mayi",
	Short: "May I? - approval gate for AI agent tool calls",
	Long: `mayi ("may I?") sits between an AI agent and the actions it triggers.
Each tool call is classified as safe to run or needing human approval; calls
that need approval are sent to the remote approval service (after "mayi login")
or confirmed on the terminal, and denied when neither is available.

Hook usage in ~/.claude/settings.json:
  "hooks": {
    "PreToolUse": [{"matcher": "*", "hooks": [{"type": "command", "command": "mayi check"}]}],
    "PostToolUse": [{"matcher": "*", "hooks": [{"type": "command", "command": "mayi log"}]}]
  }

Proxy usage for a JSON-RPC tool server:
  mayi proxy -- npx some-mcp-server`,
	// Silence usage and errors; main prints errors itself
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// Interrupts cancel the command's context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// commandContext returns the command's context, or a background context
// when the command was not started through Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// ExitCode maps an error returned by Execute to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return 1
}

func init() {
	// Initialize before running any command
	cobra.OnInitialize(initApp)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output (debug logging)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (default error)")
	rootCmd.PersistentFlags().BoolVar(&noAuditLog, "no-audit-log", false, "Disable audit logging")
	rootCmd.PersistentFlags().StringVar(&environment, "env", "", "Environment name for overrides (or set MAYI_ENV)")
}

// initApp initializes the application (logger, settings, config, audit)
func initApp() {
	if err := logger.Init(logger.Options{Level: logLevel, Verbose: verbose}); err != nil {
		fmt.Fprintf(os.Stderr, "mayi: %v\n", err)
	}

	s, err := loadSettings(nil)
	if err != nil {
		logger.Warn("ignoring invalid environment settings", "error", err)
	}
	settings = s
	if environment == "" {
		environment = settings.Environment
	}

	resolver = newResolver()

	if err := audit.Init(settings.AuditLog, noAuditLog); err != nil {
		logger.Debug("audit logging unavailable", "error", err)
	}
}

// loadSettings parses MAYI_* variables from environ, or from the process
// environment when environ is nil.
func loadSettings(environ map[string]string) (Settings, error) {
	s := Settings{Environment: constants.DefaultEnvironment}
	opts := env.Options{}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&s, opts); err != nil {
		return Settings{Environment: constants.DefaultEnvironment}, err
	}
	if s.Environment == "" {
		s.Environment = constants.DefaultEnvironment
	}
	return s, nil
}

func newResolver() *config.Resolver {
	cwd, err := os.Getwd()
	if err != nil {
		logger.Debug("failed to get working directory", "error", err)
	}
	globalDir, err := config.GetConfigDir()
	if err != nil {
		logger.Debug("failed to get config directory", "error", err)
	}
	return config.NewResolver(config.ResolverOptions{ProjectDir: cwd, GlobalDir: globalDir})
}

// getResolver returns the resolver set up by initApp, creating one when a
// command runs without it (tests call run functions directly).
func getResolver() *config.Resolver {
	if resolver == nil {
		resolver = newResolver()
	}
	return resolver
}

// activeEnvironment returns the environment chosen by flag or MAYI_ENV.
func activeEnvironment() string {
	if environment != "" {
		return environment
	}
	return constants.DefaultEnvironment
}

// newAuthorizer builds the authorizer used by check and proxy. Missing or
// unreadable credentials leave remote approval off.
func newAuthorizer() *authz.Authorizer {
	var creds *credentials.Credentials
	if dir, err := config.GetConfigDir(); err == nil {
		creds, err = credentials.Load(dir)
		if err != nil {
			logger.Warn("failed to load credentials", "error", err)
		}
	}
	return authz.New(authz.Options{
		Config:      getResolver(),
		Environment: activeEnvironment(),
		Prompter:    newPrompter(),
		Credentials: creds,
		Timeout:     settings.ApprovalTimeout,
	})
}

// IsVerbose returns whether verbose mode is enabled
func IsVerbose() bool {
	return verbose
}
