package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/SscSPs/geexpress_backend/internal/core/domain"
)

// TrackingCmd returns the tracking command
func TrackingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tracking",
		Short: "Tracking number utilities",
	}
	cmd.AddCommand(trackingNewCmd())
	return cmd
}

func trackingNewCmd() *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "new",
		Short: "Print fresh tracking numbers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if count < 1 {
				return fmt.Errorf("--count must be at least 1")
			}
			for i := 0; i < count; i++ {
				tn, err := domain.GenerateTrackingNumber(time.Now())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), tn)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 1, "how many numbers to print")
	return cmd
}
