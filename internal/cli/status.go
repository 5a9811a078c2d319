package cli

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/evcraddock/house-market/internal/client"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check connection and auth status",
		Long:  "Tests the connection to the server and checks if the stored API key is valid.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus()
		},
	}
}

// statusReport is what `hm status` found.
type statusReport struct {
	Server    string `json:"server"`
	KeyPrefix string `json:"key_prefix,omitempty"`
	KeySource string `json:"key_source,omitempty"`
	State     string `json:"state"` // no_key, signed_in, invalid_key, bad_response, unreachable
	User      string `json:"user,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

func checkStatus(conn connection) statusReport {
	rep := statusReport{Server: conn.ServerURL, KeySource: conn.KeySource}
	if conn.APIKey == "" {
		rep.State = "no_key"
		return rep
	}
	rep.KeyPrefix = truncate(conn.APIKey, 9)

	user, err := client.New(conn.ServerURL, conn.APIKey).Profile()
	var apiErr *client.APIError
	switch {
	case err == nil:
		rep.State = "signed_in"
		rep.User = fmt.Sprintf("%s <%s>", user.Name, user.Email)
	case errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized:
		rep.State = "invalid_key"
	case errors.As(err, &apiErr):
		rep.State = "bad_response"
		rep.Detail = fmt.Sprintf("%d %s", apiErr.StatusCode, apiErr.Message)
	default:
		rep.State = "unreachable"
		rep.Detail = err.Error()
	}
	return rep
}

func runStatus() error {
	rep := checkStatus(resolveConnection())
	if isJSON() {
		return printJSON(rep)
	}

	fmt.Printf("Server:  %s\n", rep.Server)
	if rep.State == "no_key" {
		fmt.Println("API Key: not configured")
		fmt.Println("\nRun 'hm login' to authenticate.")
		return nil
	}
	fmt.Printf("API Key: %s (from %s)\n", rep.KeyPrefix, rep.KeySource)

	switch rep.State {
	case "signed_in":
		fmt.Printf("Status:  ✓ signed in as %s\n", rep.User)
	case "invalid_key":
		fmt.Println("Status:  ✗ invalid API key")
		fmt.Println("\nRun 'hm login' to re-authenticate.")
	case "bad_response":
		fmt.Printf("Status:  ✗ unexpected response (%s)\n", rep.Detail)
	default:
		fmt.Printf("Status:  ✗ cannot reach server (%s)\n", rep.Detail)
	}
	return nil
}
