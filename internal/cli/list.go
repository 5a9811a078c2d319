package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/evcraddock/house-market/internal/client"
	"github.com/evcraddock/house-market/internal/listing"
)

func newListCmd() *cobra.Command {
	var opts client.ListOptions

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List listings",
		Long:  "List listings newest first, optionally filtered by type or offers. Pass --cursor from a previous page to continue.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Type != "" && !listing.ValidType(opts.Type) {
				return fmt.Errorf("invalid type %q (want sale or rent)", opts.Type)
			}
			return runList(opts)
		},
	}

	cmd.Flags().StringVar(&opts.Type, "type", "", "only sale or rent listings")
	cmd.Flags().BoolVar(&opts.OffersOnly, "offers", false, "only listings with a discount")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "page size")
	cmd.Flags().StringVar(&opts.Cursor, "cursor", "", "continue from a previous page")

	return cmd
}

func runList(opts client.ListOptions) error {
	page, err := newAPIClient().ListListings(opts)
	if err != nil {
		return err
	}

	if isJSON() {
		return printJSON(page)
	}

	if err := printListingTable(page.Listings); err != nil {
		return err
	}
	if page.HasMore {
		fmt.Printf("More: hm list --cursor %s\n", page.NextCursor)
	}
	return nil
}
