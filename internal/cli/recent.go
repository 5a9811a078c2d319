package cli

import (
	"github.com/spf13/cobra"
)

func newRecentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recent",
		Short: "Show the newest listings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			recs, err := newAPIClient().RecentListings()
			if err != nil {
				return err
			}
			if isJSON() {
				return printJSON(recs)
			}
			return printListingTable(recs)
		},
	}
}
