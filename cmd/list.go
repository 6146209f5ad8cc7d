// File: cmd/list.go
package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wabisuke-dev/thsrbot/internal/booking"
	"github.com/wabisuke-dev/thsrbot/internal/observability"
)

// newListCmd creates the `list` command: it runs the workflow up to the train
// listing and prints the rows without booking anything.
func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Lists the trains available for the configured trip",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := observability.GetLogger()

			orch, err := buildOrchestrator(cfg, logger)
			if err != nil {
				return err
			}
			orch.ListOnly = true

			outcome := orch.Run(cmd.Context(), tripFromConfig(cfg.Booking))
			switch outcome.Status {
			case booking.StatusCancelled:
				return errors.New("listing aborted by user signal")
			case booking.StatusFailed:
				return outcome.Err
			}

			fmt.Printf("\nAvailable trains on %s:\n", cfg.Booking.Date)
			for i, tr := range outcome.Trains {
				fmt.Printf("%2d. %s\n", i+1, tr)
			}
			return nil
		},
	}
}
