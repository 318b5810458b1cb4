package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jwcutler/passbot/internal/tracker"
)

func (a *app) batchCmd() *cobra.Command {
	var concurrency int
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Track every satellite in the configuration file",
		Long: `batch creates calendar events for each configured satellite. A failure of
one satellite does not stop the others; the command exits non-zero if any
satellite failed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("concurrency") {
				a.cfg.Tracking.Concurrency = concurrency
			}
			return a.runBatch(cmd)
		},
	}
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "satellites processed in parallel")
	return cmd
}

func (a *app) runBatch(cmd *cobra.Command) error {
	ctx := cmd.Context()
	if err := a.cfg.ValidateBatch(); err != nil {
		return err
	}
	obs, err := a.cfg.Location()
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	resolver, _, cleanup, err := a.newResolver(ctx)
	if err != nil {
		return err
	}
	defer cleanup()
	publisher, err := a.newPublisher(ctx, runID)
	if err != nil {
		return err
	}

	jobs := make([]tracker.Job, 0, len(a.cfg.Satellites))
	for _, s := range a.cfg.Satellites {
		jobs = append(jobs, tracker.Job{Name: s.Name, Input: s.Input()})
	}

	sum := tracker.New(resolver, publisher, nil, a.logger).RunBatch(ctx, jobs, tracker.Options{
		Observer:       obs,
		Window:         a.cfg.Window(),
		MinElevation:   a.cfg.Tracking.MinElevation,
		DeleteExisting: a.cfg.Tracking.DeleteExisting,
		Concurrency:    a.cfg.Tracking.Concurrency,
		RunID:          runID,
	})

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Processed %d/%d satellites, created %d calendar events\n",
		sum.Succeeded, sum.Total, sum.EventsCreated)
	for _, f := range sum.Failures {
		fmt.Fprintf(out, "  failed: %s: %v\n", f.Satellite, f.Err)
	}
	if sum.ExitCode() != 0 {
		return errFailures
	}
	return nil
}
