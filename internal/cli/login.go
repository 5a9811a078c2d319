package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/evcraddock/house-market/internal/auth"
	"github.com/evcraddock/house-market/internal/client"
)

type loginOptions struct {
	server string
	email  string
	key    string
	name   string
}

func newLoginCmd() *cobra.Command {
	var opts loginOptions

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store an API key",
		Long: `Exchange your email and password for an API key and store it for CLI
access. Pass --key to store an existing key instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(opts, os.Stdin)
		},
	}

	cmd.Flags().StringVar(&opts.server, "server", "", "server URL (default: from config or http://localhost:8080)")
	cmd.Flags().StringVar(&opts.email, "email", "", "account email (prompted when empty)")
	cmd.Flags().StringVar(&opts.key, "key", "", "store this API key instead of signing in")
	cmd.Flags().StringVar(&opts.name, "name", "CLI", "label for the new API key")

	return cmd
}

func runLogin(opts loginOptions, in io.Reader) error {
	serverURL := opts.server
	if serverURL == "" {
		serverURL = resolveConnection().ServerURL
	}
	serverURL = strings.TrimRight(serverURL, "/")

	// Load existing config to preserve other fields
	cfg, err := loadConfig()
	if err != nil {
		cfg = CLIConfig{}
	}

	key := strings.TrimSpace(opts.key)
	if key == "" {
		reader := bufio.NewReader(in)

		email := opts.email
		if email == "" {
			email = cfg.Email
		}
		if email == "" {
			if email, err = prompt(reader, "Email: "); err != nil {
				return err
			}
		}
		password, err := prompt(reader, "Password: ")
		if err != nil {
			return err
		}

		resp, err := client.New(serverURL, "").CreateToken(email, password, opts.name)
		if err != nil {
			return fmt.Errorf("signing in: %w", err)
		}
		key = resp.Key
		cfg.Email = email
	}

	if err := validateAPIKey(key); err != nil {
		return err
	}

	cfg.APIKey = key
	if opts.server != "" {
		cfg.ServerURL = serverURL
	}

	if err := saveConfig(cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	fmt.Println("✓ API key saved. You're logged in!")
	return nil
}

func prompt(r *bufio.Reader, label string) (string, error) {
	fmt.Print(label)
	line, err := r.ReadString('\n')
	if err != nil && !(err == io.EOF && line != "") {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// validateAPIKey checks that the key is non-empty and has the expected prefix.
func validateAPIKey(key string) error {
	if key == "" {
		return fmt.Errorf("no API key provided")
	}
	if !strings.HasPrefix(key, auth.APIKeyPrefix) {
		return fmt.Errorf("invalid API key format (should start with %s)", auth.APIKeyPrefix)
	}
	return nil
}
