package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/evcraddock/house-market/internal/client"
)

func newLogoutCmd() *cobra.Command {
	var revoke bool

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Remove stored API key",
		Long:  "Removes the stored API key from the config file. With --revoke the key is also deleted on the server.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogout(revoke)
		},
	}

	cmd.Flags().BoolVar(&revoke, "revoke", false, "delete the key on the server too")

	return cmd
}

func runLogout(revoke bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if cfg.APIKey == "" {
		fmt.Println("Not logged in.")
		return nil
	}

	if revoke {
		serverURL := cfg.ServerURL
		if serverURL == "" {
			serverURL = resolveConnection().ServerURL
		}
		if err := revokeKey(client.New(serverURL, cfg.APIKey), cfg.APIKey); err != nil {
			fmt.Fprintf(os.Stderr, "warning: revoking key: %v\n", err)
		}
	}

	cfg.APIKey = ""
	if err := saveConfig(cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	fmt.Println("✓ Logged out. API key removed.")
	return nil
}

// revokeKey deletes rawKey on the server, found by its stored prefix.
func revokeKey(c *client.Client, rawKey string) error {
	keys, err := c.ListKeys()
	if err != nil {
		return err
	}
	for _, k := range keys {
		if k.KeyPrefix != "" && strings.HasPrefix(rawKey, k.KeyPrefix) {
			return c.DeleteKey(k.ID)
		}
	}
	return fmt.Errorf("key not found on server")
}
