package main

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jwcutler/passbot/internal/tracker"
)

type trackFlags struct {
	lat            float64
	lon            float64
	elevation      float64
	days           int
	minElevation   float64
	deleteExisting bool
	deleteAll      bool
	calendar       calendarFlags
}

func (a *app) trackCmd() *cobra.Command {
	var f trackFlags
	cmd := &cobra.Command{
		Use:   "track <tle|norad-id|url>",
		Short: "Create calendar events for the passes of one satellite",
		Long: `track resolves a satellite from literal TLE text, a NORAD catalog number
or a URL, predicts its passes over the observer and creates one calendar
event per pass. With --delete-all it instead removes every pass event and
exits.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f.apply(a, cmd)
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			if f.deleteAll {
				return a.runDelete(cmd, "", a.cfg.Window())
			}
			if len(args) == 0 {
				return errors.New("a TLE, NORAD id or URL is required (unless using --delete-all)")
			}
			return a.runTrack(cmd, args[0])
		},
	}

	fl := cmd.Flags()
	fl.Float64Var(&f.lat, "lat", 0, "observer latitude in degrees")
	fl.Float64Var(&f.lon, "lon", 0, "observer longitude in degrees")
	fl.Float64Var(&f.elevation, "elevation", 0, "observer elevation in metres")
	fl.IntVar(&f.days, "days", 5, "days ahead to calculate passes")
	fl.Float64Var(&f.minElevation, "min-elevation", 10, "minimum peak elevation in degrees")
	fl.BoolVar(&f.deleteExisting, "delete-existing", false, "delete this satellite's events before creating new ones")
	fl.BoolVar(&f.deleteAll, "delete-all", false, "delete all satellite pass events and exit")
	f.calendar.register(cmd)
	return cmd
}

func (f *trackFlags) apply(a *app, cmd *cobra.Command) {
	fl := cmd.Flags()
	if fl.Changed("lat") {
		a.cfg.Observer.Latitude = &f.lat
	}
	if fl.Changed("lon") {
		a.cfg.Observer.Longitude = &f.lon
	}
	if fl.Changed("elevation") {
		a.cfg.Observer.Elevation = f.elevation
	}
	if fl.Changed("days") {
		a.cfg.Tracking.DaysAhead = f.days
	}
	if fl.Changed("min-elevation") {
		a.cfg.Tracking.MinElevation = f.minElevation
	}
	if fl.Changed("delete-existing") {
		a.cfg.Tracking.DeleteExisting = f.deleteExisting
	}
	f.calendar.apply(a, cmd)
}

func (a *app) runTrack(cmd *cobra.Command, input string) error {
	ctx := cmd.Context()
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

	t := tracker.New(resolver, publisher, nil, a.logger.With("run_id", runID))
	res, err := t.TrackSatellite(ctx, input, "", tracker.Options{
		Observer:       obs,
		Window:         a.cfg.Window(),
		MinElevation:   a.cfg.Tracking.MinElevation,
		DeleteExisting: a.cfg.Tracking.DeleteExisting,
		RunID:          runID,
	})
	if err != nil && res.NORADID == 0 {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Found %d passes of %s\n", len(res.Passes), res.Satellite)
	fmt.Fprintf(out, "Created %d calendar events\n", len(res.EventLinks))
	for _, link := range res.EventLinks {
		if link != "" {
			fmt.Fprintf(out, "Event: %s\n", link)
		}
	}
	return err
}
