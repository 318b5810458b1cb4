// Package calendar publishes satellite passes as Google Calendar events and
// removes the events it previously created.
package calendar

import (
	"context"
	"errors"

	"google.golang.org/api/calendar/v3"
)

var (
	// ErrCalendarAPI wraps any failure talking to the calendar provider.
	ErrCalendarAPI = errors.New("calendar: api request failed")

	// ErrCredentials is returned when the credential or token file is missing
	// or unreadable.
	ErrCredentials = errors.New("calendar: invalid credentials")
)

// ProvenanceMarker is the last line of every event description written by
// passbot. Deletion only ever touches events that carry it.
const ProvenanceMarker = "Created by Satellite Pass Tracker"

// API is the subset of the Calendar v3 service used by Publisher.
type API interface {
	ListEvents(ctx context.Context, calendarID, timeMin, timeMax, pageToken string) (*calendar.Events, error)
	InsertEvent(ctx context.Context, calendarID string, event *calendar.Event) (*calendar.Event, error)
	DeleteEvent(ctx context.Context, calendarID, eventID string) error
}

// Session is an authenticated Calendar v3 client. It implements API.
type Session struct {
	service *calendar.Service
}

// NewSessionWithService wraps an already configured service.
func NewSessionWithService(service *calendar.Service) *Session {
	return &Session{service: service}
}

// ListEvents returns one page of single (expanded) events ordered by start time.
func (s *Session) ListEvents(ctx context.Context, calendarID, timeMin, timeMax, pageToken string) (*calendar.Events, error) {
	call := s.service.Events.List(calendarID).
		SingleEvents(true).
		OrderBy("startTime").
		ShowDeleted(false).
		MaxResults(250).
		TimeMin(timeMin).
		TimeMax(timeMax).
		Context(ctx)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}
	return call.Do()
}

func (s *Session) InsertEvent(ctx context.Context, calendarID string, event *calendar.Event) (*calendar.Event, error) {
	return s.service.Events.Insert(calendarID, event).Context(ctx).Do()
}

func (s *Session) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	return s.service.Events.Delete(calendarID, eventID).Context(ctx).Do()
}
