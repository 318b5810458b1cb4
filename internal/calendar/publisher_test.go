package calendar

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"

	"github.com/jwcutler/passbot/internal/passes"
)

var (
	baseCtx    = context.Background()
	testLogger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	fixedNow   = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
)

type MockCalendarAPI struct {
	ListEventsFunc  func(calendarID, timeMin, timeMax, pageToken string) (*calendar.Events, error)
	InsertEventFunc func(calendarID string, event *calendar.Event) (*calendar.Event, error)
	DeleteEventFunc func(calendarID, eventID string) error
}

func (m *MockCalendarAPI) ListEvents(_ context.Context, calendarID, timeMin, timeMax, pageToken string) (*calendar.Events, error) {
	return m.ListEventsFunc(calendarID, timeMin, timeMax, pageToken)
}

func (m *MockCalendarAPI) InsertEvent(_ context.Context, calendarID string, event *calendar.Event) (*calendar.Event, error) {
	return m.InsertEventFunc(calendarID, event)
}

func (m *MockCalendarAPI) DeleteEvent(_ context.Context, calendarID, eventID string) error {
	return m.DeleteEventFunc(calendarID, eventID)
}

func makePublisher(api API) *Publisher {
	p := NewPublisher(api, Config{
		CalendarID: "cal-id",
		Reminder:   10 * time.Minute,
		RunID:      "run-1",
		NewBackOff: func() backoff.BackOff {
			return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 3)
		},
	}, testLogger)
	p.now = func() time.Time { return fixedNow }
	return p
}

func samplePass() passes.Pass {
	rise := time.Date(2025, 3, 2, 1, 0, 0, 0, time.UTC)
	return passes.Pass{
		RiseTime:        rise,
		CulminationTime: rise.Add(5 * time.Minute),
		SetTime:         rise.Add(10 * time.Minute),
		MaxElevation:    45.24,
		SatelliteName:   "ISS",
	}
}

func passEvent(id, summary string) *calendar.Event {
	return &calendar.Event{Id: id, Summary: summary, Description: "Max elevation: 12.0°\n" + ProvenanceMarker}
}

func TestNewEvent(t *testing.T) {
	ev := NewEvent(samplePass(), 10*time.Minute, "run-1")

	assert.Equal(t, "ISS Pass", ev.Summary)
	assert.Equal(t, "Max elevation: 45.2°\nCreated by Satellite Pass Tracker", ev.Description)
	assert.Equal(t, "2025-03-02T01:00:00Z", ev.Start.DateTime)
	assert.Equal(t, "UTC", ev.Start.TimeZone)
	assert.Equal(t, "2025-03-02T01:10:00Z", ev.End.DateTime)
	assert.Equal(t, "UTC", ev.End.TimeZone)
	require.NotNil(t, ev.Reminders)
	assert.False(t, ev.Reminders.UseDefault)
	require.Len(t, ev.Reminders.Overrides, 1)
	assert.Equal(t, "popup", ev.Reminders.Overrides[0].Method)
	assert.EqualValues(t, 10, ev.Reminders.Overrides[0].Minutes)
	assert.Equal(t, "run-1", ev.ExtendedProperties.Private[propRun])
	assert.Equal(t, "ISS", ev.ExtendedProperties.Private[propSatellite])
	assert.Equal(t, "2025-03-02T01:05:00Z", ev.ExtendedProperties.Private[propCulmination])

	// The produced event is recognised by the deletion filter.
	assert.True(t, IsPassEvent(ev, ""))
	assert.True(t, IsPassEvent(ev, "ISS"))

	noReminder := NewEvent(samplePass(), -1, "")
	assert.Empty(t, noReminder.Reminders.Overrides)
	assert.NotContains(t, noReminder.ExtendedProperties.Private, propRun)
}

func TestNewEventConvertsToUTC(t *testing.T) {
	p := samplePass()
	p.RiseTime = p.RiseTime.In(time.FixedZone("EST", -5*3600))
	ev := NewEvent(p, 0, "")
	assert.Equal(t, "2025-03-02T01:00:00Z", ev.Start.DateTime)
	assert.EqualValues(t, 0, ev.Reminders.Overrides[0].Minutes)
}

func TestIsPassEvent(t *testing.T) {
	tests := []struct {
		name      string
		ev        *calendar.Event
		satellite string
		want      bool
	}{
		{"ours", passEvent("1", "ISS Pass"), "", true},
		{"ours for satellite", passEvent("1", "ISS Pass"), "ISS", true},
		{"other satellite", passEvent("1", "NOAA 19 Pass"), "ISS", false},
		{"no marker", &calendar.Event{Summary: "ISS Pass", Description: "Max elevation: 12.0°"}, "", false},
		{"no Pass in title", &calendar.Event{Summary: "ISS", Description: ProvenanceMarker}, "", false},
		{"lowercase pass", &calendar.Event{Summary: "ISS pass", Description: ProvenanceMarker}, "", false},
		{"nil", nil, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsPassEvent(tt.ev, tt.satellite))
		})
	}
}

func TestPublisher_CreatePassEvent(t *testing.T) {
	mockAPI := &MockCalendarAPI{}
	mockAPI.InsertEventFunc = func(calendarID string, event *calendar.Event) (*calendar.Event, error) {
		assert.Equal(t, "cal-id", calendarID)
		assert.Equal(t, "ISS Pass", event.Summary)
		return &calendar.Event{Id: "ev-1", HtmlLink: "https://calendar.example/ev-1"}, nil
	}

	pub := makePublisher(mockAPI)
	link, err := pub.CreatePassEvent(baseCtx, samplePass())
	require.NoError(t, err)
	assert.Equal(t, "https://calendar.example/ev-1", link)

	// API error test
	mockAPI.InsertEventFunc = func(calendarID string, event *calendar.Event) (*calendar.Event, error) {
		return nil, assert.AnError
	}
	_, err = pub.CreatePassEvent(baseCtx, samplePass())
	assert.ErrorIs(t, err, ErrCalendarAPI)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestPublisher_CreatePassEventRetriesRateLimit(t *testing.T) {
	calls := 0
	mockAPI := &MockCalendarAPI{}
	mockAPI.InsertEventFunc = func(calendarID string, event *calendar.Event) (*calendar.Event, error) {
		calls++
		if calls < 3 {
			return nil, &googleapi.Error{Code: http.StatusForbidden, Message: "Rate Limit Exceeded"}
		}
		return &calendar.Event{Id: "ev-1", HtmlLink: "link"}, nil
	}

	link, err := makePublisher(mockAPI).CreatePassEvent(baseCtx, samplePass())
	require.NoError(t, err)
	assert.Equal(t, "link", link)
	assert.Equal(t, 3, calls)
}

func TestPublisher_CreatePassEventGivesUp(t *testing.T) {
	calls := 0
	mockAPI := &MockCalendarAPI{}
	mockAPI.InsertEventFunc = func(calendarID string, event *calendar.Event) (*calendar.Event, error) {
		calls++
		return nil, &googleapi.Error{Code: http.StatusTooManyRequests}
	}

	_, err := makePublisher(mockAPI).CreatePassEvent(baseCtx, samplePass())
	assert.ErrorIs(t, err, ErrCalendarAPI)
	// One attempt plus three retries.
	assert.Equal(t, 4, calls)
}

func TestPublisher_NoRetryOnPermanentError(t *testing.T) {
	calls := 0
	mockAPI := &MockCalendarAPI{}
	mockAPI.InsertEventFunc = func(calendarID string, event *calendar.Event) (*calendar.Event, error) {
		calls++
		return nil, &googleapi.Error{Code: http.StatusForbidden, Message: "Forbidden"}
	}

	_, err := makePublisher(mockAPI).CreatePassEvent(baseCtx, samplePass())
	assert.ErrorIs(t, err, ErrCalendarAPI)
	assert.Equal(t, 1, calls)
}

func TestPublisher_DeleteSatelliteEvents(t *testing.T) {
	pages := map[string]*calendar.Events{
		"": {
			Items: []*calendar.Event{
				passEvent("a", "ISS Pass"),
				passEvent("b", "NOAA 19 Pass"),
				{Id: "c", Summary: "Dentist", Description: "bring card"},
			},
			NextPageToken: "p2",
		},
		"p2": {
			Items: []*calendar.Event{
				passEvent("d", "ISS Pass"),
				passEvent("e", "ISS Pass"),
			},
		},
	}

	var deletedIDs []string
	mockAPI := &MockCalendarAPI{}
	mockAPI.ListEventsFunc = func(calendarID, timeMin, timeMax, pageToken string) (*calendar.Events, error) {
		assert.Equal(t, "cal-id", calendarID)
		assert.Equal(t, "2025-02-22T12:00:00Z", timeMin)
		assert.Equal(t, "2025-03-06T12:00:00Z", timeMax)
		return pages[pageToken], nil
	}
	mockAPI.DeleteEventFunc = func(calendarID, eventID string) error {
		if eventID == "e" {
			return assert.AnError
		}
		deletedIDs = append(deletedIDs, eventID)
		return nil
	}

	pub := makePublisher(mockAPI)
	n, err := pub.DeleteSatelliteEvents(baseCtx, "ISS", 5*24*time.Hour)
	require.NoError(t, err, "a single failed delete must not fail the call")
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"a", "d"}, deletedIDs)

	// Empty name deletes every passbot event.
	deletedIDs = nil
	mockAPI.DeleteEventFunc = func(calendarID, eventID string) error {
		deletedIDs = append(deletedIDs, eventID)
		return nil
	}
	n, err = pub.DeleteSatelliteEvents(baseCtx, "", 5*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []string{"a", "b", "d", "e"}, deletedIDs)
}

func TestPublisher_DeleteIsIdempotent(t *testing.T) {
	remaining := map[string]*calendar.Event{
		"a": passEvent("a", "ISS Pass"),
		"b": passEvent("b", "ISS Pass"),
	}
	mockAPI := &MockCalendarAPI{}
	mockAPI.ListEventsFunc = func(calendarID, timeMin, timeMax, pageToken string) (*calendar.Events, error) {
		var items []*calendar.Event
		for _, id := range []string{"a", "b"} {
			if ev, ok := remaining[id]; ok {
				items = append(items, ev)
			}
		}
		return &calendar.Events{Items: items}, nil
	}
	mockAPI.DeleteEventFunc = func(calendarID, eventID string) error {
		delete(remaining, eventID)
		return nil
	}

	pub := makePublisher(mockAPI)
	n, err := pub.DeleteSatelliteEvents(baseCtx, "ISS", 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = pub.DeleteSatelliteEvents(baseCtx, "ISS", 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestPublisher_DeleteSkipsGoneEvents(t *testing.T) {
	mockAPI := &MockCalendarAPI{}
	mockAPI.ListEventsFunc = func(calendarID, timeMin, timeMax, pageToken string) (*calendar.Events, error) {
		return &calendar.Events{Items: []*calendar.Event{passEvent("a", "ISS Pass")}}, nil
	}
	mockAPI.DeleteEventFunc = func(calendarID, eventID string) error {
		return &googleapi.Error{Code: http.StatusGone}
	}

	n, err := makePublisher(mockAPI).DeleteSatelliteEvents(baseCtx, "", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestPublisher_DeleteListError(t *testing.T) {
	mockAPI := &MockCalendarAPI{}
	mockAPI.ListEventsFunc = func(calendarID, timeMin, timeMax, pageToken string) (*calendar.Events, error) {
		return nil, errors.New("backend down")
	}

	_, err := makePublisher(mockAPI).DeleteSatelliteEvents(baseCtx, "", time.Hour)
	assert.ErrorIs(t, err, ErrCalendarAPI)
}

func TestIsRateLimited(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{assert.AnError, false},
		{&googleapi.Error{Code: http.StatusTooManyRequests}, true},
		{&googleapi.Error{Code: http.StatusForbidden, Message: "User Rate Limit Exceeded"}, true},
		{&googleapi.Error{Code: http.StatusForbidden, Message: "Quota exceeded for quota metric"}, true},
		{&googleapi.Error{Code: http.StatusForbidden, Message: "Forbidden"}, false},
		{&googleapi.Error{Code: http.StatusInternalServerError}, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isRateLimited(tt.err), "%v", tt.err)
	}
}

func TestLogPublisher(t *testing.T) {
	lp := NewLogPublisher(testLogger)
	link, err := lp.CreatePassEvent(baseCtx, samplePass())
	require.NoError(t, err)
	assert.Empty(t, link)

	n, err := lp.DeleteSatelliteEvents(baseCtx, "ISS", time.Hour)
	require.NoError(t, err)
	assert.Zero(t, n)
}
