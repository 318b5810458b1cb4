package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/jwcutler/passbot/internal/api"
	"github.com/jwcutler/passbot/internal/auth"
	"github.com/jwcutler/passbot/internal/orbit"
	"github.com/jwcutler/passbot/internal/tracker"
)

func (a *app) serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve pass predictions over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("addr") {
				a.cfg.Server.Addr = addr
			}
			return a.runServe(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	return cmd
}

func (a *app) runServe(ctx context.Context) error {
	if err := a.cfg.Validate(); err != nil {
		return err
	}

	var observer *orbit.Observer
	if a.cfg.Observer.Latitude != nil && a.cfg.Observer.Longitude != nil {
		obs, err := a.cfg.Location()
		if err != nil {
			return err
		}
		observer = &obs
	}

	resolver, ready, cleanup, err := a.newResolver(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	srv := api.NewServer(api.Config{
		Addr:         a.cfg.Server.Addr,
		Auth:         auth.Config{Enabled: a.cfg.Server.AuthEnabled, Token: a.cfg.Server.AuthToken},
		TrustProxy:   a.cfg.Server.TrustProxy,
		Observer:     observer,
		DaysAhead:    a.cfg.Tracking.DaysAhead,
		MinElevation: a.cfg.Tracking.MinElevation,
		Satellites:   a.cfg.Satellites,
		Ready:        ready,
	}, resolver, tracker.NewPredictor(a.logger), a.logger)

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("starting server",
			"addr", a.cfg.Server.Addr,
			"auth_enabled", a.cfg.Server.AuthEnabled,
			"satellites", len(a.cfg.Satellites),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}
	a.logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		return err
	}

	a.logger.Info("server stopped")
	return nil
}
