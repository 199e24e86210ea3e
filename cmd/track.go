package cmd

import (
	"fmt"

	"github.com/lehigh-university-libraries/circdesk/internal/circulation"
	"github.com/spf13/cobra"
)

func newTrackCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "track <qrData>",
		Short:   "Look up a book by its QR code",
		Example: `  circdesk track 3f6c1a52-9d0e-4d7a-8f7e-2b1c0e5a9d41`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := opts.client()
			if err != nil {
				return err
			}
			res, err := client.Track(cmd.Context(), args[0])
			view := circulation.NewLookupView(args[0], res, err)
			if view.State == circulation.LookupFailed {
				return fmt.Errorf("lookup failed: %w", err)
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), circulation.RenderLookup(*view))
			return err
		},
	}
	return cmd
}
