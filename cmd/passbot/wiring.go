package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/jwcutler/passbot/internal/calendar"
	"github.com/jwcutler/passbot/internal/health"
	"github.com/jwcutler/passbot/internal/tle"
	"github.com/jwcutler/passbot/internal/tracker"
)

// calendarFlags are shared by every command that writes to a calendar.
type calendarFlags struct {
	calendarID  string
	credentials string
	token       string
}

func (f *calendarFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.calendarID, "calendar-id", "primary", "Google Calendar ID")
	fl.StringVar(&f.credentials, "credentials", "credentials.json", "Google API credentials file")
	fl.StringVar(&f.token, "token", "token.json", "authorized user token file")
}

// apply copies explicitly set flags over the loaded configuration.
func (f *calendarFlags) apply(a *app, cmd *cobra.Command) {
	fl := cmd.Flags()
	if fl.Changed("calendar-id") {
		a.cfg.Calendar.CalendarID = f.calendarID
	}
	if fl.Changed("credentials") {
		a.cfg.Calendar.Credentials = f.credentials
	}
	if fl.Changed("token") {
		a.cfg.Calendar.Token = f.token
	}
}

// newResolver builds the TLE resolver over a Redis cache when one is
// configured and a disk cache otherwise. The returned check backs /readyz;
// it is nil for the disk cache.
func (a *app) newResolver(ctx context.Context) (*tle.Resolver, health.Check, func(), error) {
	tc := a.cfg.TLE

	var (
		cache tle.Cache
		ready health.Check
	)
	cleanup := func() {}
	if tc.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     tc.RedisAddr,
			Password: tc.RedisPassword,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, nil, fmt.Errorf("connecting to redis at %s: %w", tc.RedisAddr, err)
		}
		cache = tle.NewRedisCache(client, tc.MaxAge)
		ready = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		cleanup = func() { client.Close() }
		a.logger.Info("using redis TLE cache", "addr", tc.RedisAddr)
	} else {
		cache = tle.NewDiskCache(tc.CacheDir, tc.CacheFiles)
		a.logger.Debug("using disk TLE cache", "dir", tc.CacheDir, "max_files", tc.CacheFiles)
	}

	fetcher := tle.NewFetcher(tle.FetcherConfig{
		Timeout: tc.Timeout,
		Cache:   cache,
		MaxAge:  tc.MaxAge,
	}, a.logger)
	return tle.NewResolver(fetcher, tle.NewStore(), tc.MaxAge, a.logger), ready, cleanup, nil
}

// newPublisher returns a calendar publisher, or a logging stand-in under
// --dry-run. Credential files are checked before any network call.
func (a *app) newPublisher(ctx context.Context, runID string) (tracker.Publisher, error) {
	if a.dryRun {
		a.logger.Info("dry run: calendar will not be modified")
		return calendar.NewLogPublisher(a.logger), nil
	}

	creds := calendar.Credentials{
		CredentialsFile: a.cfg.Calendar.Credentials,
		TokenFile:       a.cfg.Calendar.Token,
		Subject:         a.cfg.Calendar.Subject,
	}
	if err := calendar.CheckCredentials(creds); err != nil {
		return nil, err
	}
	session, err := calendar.NewSession(ctx, creds, a.logger)
	if err != nil {
		return nil, err
	}
	return calendar.NewPublisher(session, calendar.Config{
		CalendarID: a.cfg.Calendar.CalendarID,
		Reminder:   a.cfg.Reminder(),
		RunID:      runID,
	}, a.logger), nil
}
