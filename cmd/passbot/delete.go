package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jwcutler/passbot/internal/tracker"
)

func (a *app) deleteCmd() *cobra.Command {
	var (
		days      int
		satellite string
		cal       calendarFlags
	)
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete pass events created by passbot",
		Long: `delete removes passbot events from the last week up to --days ahead.
Only events carrying passbot's marker are touched. --satellite limits the
deletion to one satellite's passes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cal.apply(a, cmd)
			if days < 1 {
				return fmt.Errorf("--days must be at least 1, got %d", days)
			}
			return a.runDelete(cmd, satellite, time.Duration(days)*24*time.Hour)
		},
	}
	cmd.Flags().IntVar(&days, "days", 30, "days ahead to search for events")
	cmd.Flags().StringVar(&satellite, "satellite", "", "only delete passes of this satellite")
	cal.register(cmd)
	return cmd
}

func (a *app) runDelete(cmd *cobra.Command, satellite string, lookAhead time.Duration) error {
	ctx := cmd.Context()
	publisher, err := a.newPublisher(ctx, "")
	if err != nil {
		return err
	}

	var n int
	if satellite == "" {
		n, err = tracker.New(nil, publisher, nil, a.logger).DeleteAll(ctx, lookAhead)
	} else {
		n, err = publisher.DeleteSatelliteEvents(ctx, satellite, lookAhead)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d satellite pass events\n", n)
	return nil
}
