package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/evcraddock/house-market/internal/client"
)

func newContactCmd() *cobra.Command {
	var (
		message string
		dryRun  bool
	)

	cmd := &cobra.Command{
		Use:   "contact <id>",
		Short: "Email a listing's landlord",
		Long: `Send a message about a listing to its landlord. Replies go to your
account email. Use --dry-run to preview the email without sending.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(message) == "" {
				return fmt.Errorf("--message is required")
			}
			resp, err := newAPIClient().ContactLandlord(args[0], message, dryRun)
			if err != nil {
				return err
			}
			return printContact(resp, dryRun)
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "message to send")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "preview email without sending")

	return cmd
}

func printContact(resp *client.ContactResponse, dryRun bool) error {
	if isJSON() {
		return printJSON(resp)
	}

	if dryRun {
		fmt.Printf("To: %s\n", strings.Join(resp.To, ", "))
		fmt.Printf("Subject: %s\n", resp.Subject)
		fmt.Println("---")
		fmt.Print(resp.Body)
		return nil
	}

	fmt.Printf("Email sent to %s\n", strings.Join(resp.To, ", "))
	return nil
}
