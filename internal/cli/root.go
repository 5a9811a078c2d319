// Package cli defines the cobra command tree for house-market.
package cli

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/evcraddock/house-market/internal/client"
)

var (
	flagFormat string
	flagDB     string
)

// NewRootCmd creates the root cobra command with global flags.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "hm",
		Short:         "List homes for sale and rent",
		Long:          "A marketplace for homes for sale and rent. Run the API server, or create, edit, and browse listings against it.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flagFormat, "format", "text", "output format (text|json)")
	root.PersistentFlags().StringVar(&flagDB, "db", "", "SQLite database path for serve (default: $HM_DB or ~/.house-market/market.db)")

	root.AddCommand(
		newListCmd(),
		newRecentCmd(),
		newShowCmd(),
		newCreateCmd(),
		newEditCmd(),
		newRemoveCmd(),
		newContactCmd(),
		newServeCmd(),
		newLoginCmd(),
		newLogoutCmd(),
		newStatusCmd(),
		newVersionCmd(),
	)

	return root
}

// newAPIClient creates an HTTP client for the house-market API.
func newAPIClient() *client.Client {
	conn := resolveConnection()
	return client.New(conn.ServerURL, conn.APIKey)
}

// isJSON returns true if the --format flag is set to json.
func isJSON() bool {
	return flagFormat == "json"
}

// closeDB closes the database, logging any error to stderr.
func closeDB(database *sql.DB) {
	if err := database.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: closing database: %v\n", err)
	}
}
