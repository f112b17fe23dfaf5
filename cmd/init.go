package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dgerlanc/mayi/internal/config"
	"github.com/dgerlanc/mayi/internal/constants"
)

var (
	initForce   bool
	initProject bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new mayi configuration file",
	Long: `Initialize creates a new mayi configuration file with default settings.

The config file is written to ~/.config/mayi/config.json (or the directory
specified by the MAYI_CONFIG environment variable). With --project it is
written to ./mayi.config.json instead, which takes precedence in this
directory.

Use --force to overwrite an existing configuration file.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite existing config file")
	initCmd.Flags().BoolVar(&initProject, "project", false, "Write a project config in the current directory")
}

func runInit(cmd *cobra.Command, args []string) error {
	var configPath string
	if initProject {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get working directory: %w", err)
		}
		configPath = filepath.Join(cwd, constants.ProjectConfigFile)
	} else {
		configDir, err := config.GetConfigDir()
		if err != nil {
			return fmt.Errorf("failed to get config directory: %w", err)
		}
		configPath = filepath.Join(configDir, constants.ConfigFileName)
	}

	// Check if config already exists
	if _, err := os.Stat(configPath); err == nil && !initForce {
		return fmt.Errorf("config file already exists at %s (use --force to overwrite)", configPath)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), constants.DirMode); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(configPath, config.GetDefaultConfig(), constants.FileMode); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Configuration written to: %s\n", configPath)
	fmt.Fprintln(out, "Run 'mayi validate' to verify your configuration.")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Hook commands for your agent settings:")
	fmt.Fprintf(out, "  PreToolUse:  %s\n", constants.CheckHookCommand)
	fmt.Fprintf(out, "  PostToolUse: %s\n", constants.LogHookCommand)
	return nil
}
