package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dgerlanc/mayi/internal/config"
	"github.com/dgerlanc/mayi/internal/constants"
	"github.com/dgerlanc/mayi/internal/credentials"
)

var (
	loginAPIKey string
	loginAPIURL string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Save an API key for remote approval",
	Long: `Login stores an API key for the remote approval service in
~/.config/mayi/credentials.toml (owner-only permissions). Once logged in,
tool calls that need approval are sent to the service instead of the
terminal, which also works for headless agents.

The key is read from --api-key, or from the first line of stdin when the
flag is omitted. MAYI_API_KEY and MAYI_API_URL override the saved values
at runtime.`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

func init() {
	rootCmd.AddCommand(loginCmd)
	loginCmd.Flags().StringVar(&loginAPIKey, "api-key", "", "API key for the approval service")
	loginCmd.Flags().StringVar(&loginAPIURL, "api-url", "", "Approval service URL (default "+constants.DefaultAPIURL+")")
}

func runLogin(cmd *cobra.Command, args []string) error {
	key := strings.TrimSpace(loginAPIKey)
	if key == "" {
		fmt.Fprint(cmd.ErrOrStderr(), "API key: ")
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("failed to read API key: %w", err)
		}
		key = strings.TrimSpace(line)
	}
	if key == "" {
		return errors.New("an API key is required")
	}

	configDir, err := config.GetConfigDir()
	if err != nil {
		return fmt.Errorf("failed to get config directory: %w", err)
	}
	if err := credentials.Save(configDir, credentials.Credentials{APIKey: key, APIURL: strings.TrimSpace(loginAPIURL)}); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Credentials saved to: %s\n", credentials.Path(configDir))
	return nil
}
