package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/evcraddock/house-market/internal/client"
)

func newCreateCmd() *cobra.Command {
	var images []string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a listing",
		Long: `Create a listing from flags and upload its images in order.

Example:
  hm create --type sale --name "Cozy family home" --bedrooms 3 --bathrooms 2 \
    --address "12 Elm St, Springfield" --regular-price 250000 \
    --image front.jpg --image kitchen.jpg`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(images) == 0 {
				return fmt.Errorf("at least one --image is required")
			}
			form := client.ListingForm{Fields: changedFields(cmd.Flags()), Images: images}
			return runWrite("created", func(c *client.Client) (*client.WriteResponse, error) {
				return c.CreateListing(form)
			})
		},
	}

	addListingFlags(cmd.Flags())
	cmd.Flags().StringArrayVar(&images, "image", nil, "image file to upload (repeatable)")

	return cmd
}

// runWrite sends a create or update and prints the result.
func runWrite(verb string, send func(*client.Client) (*client.WriteResponse, error)) error {
	resp, err := send(newAPIClient())
	if err != nil {
		return err
	}

	if isJSON() {
		return printJSON(resp)
	}

	fmt.Printf("Listing %s.\n", verb)
	printListingSummary(resp.Listing)
	printWarnings(resp.Warnings)
	return nil
}
