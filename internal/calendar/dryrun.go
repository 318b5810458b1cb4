package calendar

import (
	"context"
	"log/slog"
	"time"

	"github.com/jwcutler/passbot/internal/passes"
)

// LogPublisher logs what would be written instead of calling the API.
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher creates a LogPublisher.
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger.With("component", "calendar", "dry_run", true)}
}

func (l *LogPublisher) CreatePassEvent(_ context.Context, p passes.Pass) (string, error) {
	l.logger.Info("would create event",
		"summary", Title(p),
		"start", p.RiseTime.UTC().Format(time.RFC3339),
		"end", p.SetTime.UTC().Format(time.RFC3339),
		"max_elevation", p.MaxElevation,
	)
	return "", nil
}

func (l *LogPublisher) DeleteSatelliteEvents(_ context.Context, satellite string, lookAhead time.Duration) (int, error) {
	l.logger.Info("would delete events", "satellite", satellite, "look_ahead_hours", lookAhead.Hours())
	return 0, nil
}
