package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/evcraddock/house-market/internal/client"
)

func newEditCmd() *cobra.Command {
	var add, remove []string

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit a listing",
		Long: `Change fields of one of your listings, add images, or remove images by
URL. Fields without a flag keep their current values.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			form := client.ListingForm{
				Fields: changedFields(cmd.Flags()),
				Images: add,
				Remove: remove,
			}
			if len(form.Fields) == 0 && len(add) == 0 && len(remove) == 0 {
				return fmt.Errorf("nothing to change")
			}
			return runWrite("updated", func(c *client.Client) (*client.WriteResponse, error) {
				return c.UpdateListing(args[0], form)
			})
		},
	}

	addListingFlags(cmd.Flags())
	cmd.Flags().StringArrayVar(&add, "add-image", nil, "image file to upload (repeatable)")
	cmd.Flags().StringArrayVar(&remove, "remove-image", nil, "image URL to remove (repeatable)")

	return cmd
}
