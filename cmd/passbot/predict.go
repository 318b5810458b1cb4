package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jwcutler/passbot/internal/tracker"
)

// predictCmd prints passes without touching a calendar.
func (a *app) predictCmd() *cobra.Command {
	var (
		f      trackFlags
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "predict <tle|norad-id|url>",
		Short: "Print the passes of one satellite",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f.apply(a, cmd)
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			obs, err := a.cfg.Location()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			resolver, _, cleanup, err := a.newResolver(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			entry, err := resolver.Resolve(ctx, args[0], "")
			if err != nil {
				return err
			}
			found, stats, err := tracker.NewPredictor(a.logger).Passes(ctx, entry, tracker.PredictRequest{
				Observer:     obs,
				Start:        time.Now().UTC().Truncate(time.Second),
				Window:       a.cfg.Window(),
				MinElevation: a.cfg.Tracking.MinElevation,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(tracker.Prediction{NORADID: entry.NORADID, Satellite: entry.Name, Passes: found})
			}
			fmt.Fprintf(out, "%s (NORAD %d) epoch %s\n", entry.Name, entry.NORADID, entry.Epoch.Format(time.RFC3339))
			for i, p := range found {
				fmt.Fprintf(out, "  pass %d: rise=%s max=%s maxEl=%.1f° set=%s dur=%.0fs\n",
					i+1,
					p.RiseTime.Format(time.RFC3339),
					p.CulminationTime.Format(time.RFC3339),
					p.MaxElevation,
					p.SetTime.Format(time.RFC3339),
					p.Duration().Seconds(),
				)
			}
			fmt.Fprintf(out, "Total passes found: %d (below threshold %d, truncated %d)\n",
				len(found), stats.BelowThreshold, stats.Truncated)
			return nil
		},
	}

	fl := cmd.Flags()
	fl.Float64Var(&f.lat, "lat", 0, "observer latitude in degrees")
	fl.Float64Var(&f.lon, "lon", 0, "observer longitude in degrees")
	fl.Float64Var(&f.elevation, "elevation", 0, "observer elevation in metres")
	fl.IntVar(&f.days, "days", 5, "days ahead to calculate passes")
	fl.Float64Var(&f.minElevation, "min-elevation", 10, "minimum peak elevation in degrees")
	fl.BoolVar(&asJSON, "json", false, "print JSON instead of text")
	return cmd
}
