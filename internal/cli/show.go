package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show listing details",
		Long:  "Show full details for a listing, including its image URLs and landlord.",
		Args:  cobra.ExactArgs(1),
		RunE:  runShow,
	}
}

func runShow(cmd *cobra.Command, args []string) error {
	c := newAPIClient()

	rec, err := c.GetListing(args[0])
	if err != nil {
		return err
	}

	if isJSON() {
		return printJSON(rec)
	}

	printListingSummary(rec)
	if landlord, err := c.GetLandlord(rec.ID); err == nil {
		fmt.Printf("  Landlord: %s <%s>\n", landlord.Name, landlord.Email)
	}

	fmt.Println()
	if len(rec.ImageURLs) == 0 {
		fmt.Println("No images.")
		return nil
	}
	fmt.Printf("Images (%d):\n", len(rec.ImageURLs))
	for i, u := range rec.ImageURLs {
		fmt.Printf("  %d. %s\n", i+1, u)
	}
	return nil
}
