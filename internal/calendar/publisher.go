package calendar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"

	"github.com/jwcutler/passbot/internal/metrics"
	"github.com/jwcutler/passbot/internal/passes"
)

// DefaultLookBack is how far before now deletion searches for old events.
const DefaultLookBack = 7 * 24 * time.Hour

// Config configures a Publisher.
type Config struct {
	CalendarID string        // default "primary"
	Reminder   time.Duration // popup lead time; negative disables
	LookBack   time.Duration // default DefaultLookBack
	RunID      string        // stored on every created event

	// NewBackOff returns the retry policy for rate-limited calls.
	// Defaults to exponential backoff capped at five minutes.
	NewBackOff func() backoff.BackOff
}

// Publisher writes passes to one calendar.
// It is safe for concurrent use when the underlying API is.
type Publisher struct {
	api    API
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

// NewPublisher creates a Publisher over api.
func NewPublisher(api API, cfg Config, logger *slog.Logger) *Publisher {
	if cfg.CalendarID == "" {
		cfg.CalendarID = "primary"
	}
	if cfg.LookBack <= 0 {
		cfg.LookBack = DefaultLookBack
	}
	if cfg.NewBackOff == nil {
		cfg.NewBackOff = func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.MaxElapsedTime = 5 * time.Minute
			return b
		}
	}
	return &Publisher{
		api:    api,
		cfg:    cfg,
		logger: logger.With("component", "calendar", "calendar_id", cfg.CalendarID),
		now:    time.Now,
	}
}

// CreatePassEvent inserts one event for p and returns its HTML link.
// Errors wrap ErrCalendarAPI.
func (p *Publisher) CreatePassEvent(ctx context.Context, pass passes.Pass) (string, error) {
	ev := NewEvent(pass, p.cfg.Reminder, p.cfg.RunID)
	created, err := withRetry(ctx, p.cfg.NewBackOff(), func() (*calendar.Event, error) {
		return p.api.InsertEvent(ctx, p.cfg.CalendarID, ev)
	})
	metrics.RecordCalendarRequest("insert", err)
	if err != nil {
		return "", fmt.Errorf("%w: insert %q: %w", ErrCalendarAPI, ev.Summary, err)
	}

	p.logger.Debug("created pass event",
		"satellite", pass.SatelliteName,
		"rise", pass.RiseTime.UTC().Format(time.RFC3339),
		"max_elevation", pass.MaxElevation,
		"event_id", created.Id,
	)
	return created.HtmlLink, nil
}

// DeleteSatelliteEvents removes passbot events between now-LookBack and
// now+lookAhead. With an empty satellite every passbot event in the window
// is removed. Events that fail to delete are logged and skipped; only a
// failure to list returns an error. Repeating the call is harmless.
func (p *Publisher) DeleteSatelliteEvents(ctx context.Context, satellite string, lookAhead time.Duration) (int, error) {
	now := p.now().UTC()
	timeMin := now.Add(-p.cfg.LookBack).Format(time.RFC3339)
	timeMax := now.Add(lookAhead).Format(time.RFC3339)

	deleted := 0
	pageToken := ""
	for {
		list, err := withRetry(ctx, p.cfg.NewBackOff(), func() (*calendar.Events, error) {
			return p.api.ListEvents(ctx, p.cfg.CalendarID, timeMin, timeMax, pageToken)
		})
		metrics.RecordCalendarRequest("list", err)
		if err != nil {
			return deleted, fmt.Errorf("%w: list events: %w", ErrCalendarAPI, err)
		}

		for _, item := range list.Items {
			if !IsPassEvent(item, satellite) {
				continue
			}
			_, err := withRetry(ctx, p.cfg.NewBackOff(), func() (struct{}, error) {
				return struct{}{}, p.api.DeleteEvent(ctx, p.cfg.CalendarID, item.Id)
			})
			metrics.RecordCalendarRequest("delete", err)
			switch {
			case err == nil:
				deleted++
			case isGone(err):
				// Removed by someone else since the listing.
			default:
				if ctx.Err() != nil {
					return deleted, ctx.Err()
				}
				p.logger.Warn("could not delete event",
					"event_id", item.Id,
					"summary", item.Summary,
					"error", err,
				)
			}
		}

		pageToken = list.NextPageToken
		if pageToken == "" {
			break
		}
	}

	p.logger.Info("deleted pass events", "satellite", satellite, "count", deleted)
	return deleted, nil
}

// withRetry calls fn until it succeeds, fails with a non rate-limit error,
// or b gives up.
func withRetry[T any](ctx context.Context, b backoff.BackOff, fn func() (T, error)) (T, error) {
	var result T
	err := backoff.Retry(
		func() error {
			var err error
			result, err = fn()
			if err != nil {
				if isRateLimited(err) {
					return err
				}
				return backoff.Permanent(err)
			}
			return nil
		}, backoff.WithContext(b, ctx),
	)
	return result, err
}

func isRateLimited(err error) bool {
	if err == nil {
		return false
	}
	var ae *googleapi.Error
	ok := errors.As(err, &ae)
	return ok && (ae.Code == http.StatusTooManyRequests ||
		(ae.Code == http.StatusForbidden &&
			(ae.Message == "Rate Limit Exceeded" || ae.Message == "User Rate Limit Exceeded" || ae.Message == "Calendar usage limits exceeded." || strings.HasPrefix(
				ae.Message, "Quota exceeded",
			))))
}

func isGone(err error) bool {
	var ae *googleapi.Error
	return errors.As(err, &ae) && (ae.Code == http.StatusNotFound || ae.Code == http.StatusGone)
}
