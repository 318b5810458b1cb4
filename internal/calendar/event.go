package calendar

import (
	"fmt"
	"strings"
	"time"

	"google.golang.org/api/calendar/v3"

	"github.com/jwcutler/passbot/internal/passes"
)

// Private extended property keys set on every created event.
const (
	propRun         = "passbotRun"
	propSatellite   = "passbotSatellite"
	propCulmination = "passbotCulmination"
)

// Title returns the event title for a pass.
func Title(p passes.Pass) string {
	return p.SatelliteName + " Pass"
}

// Description returns the event body: the maximum elevation to one decimal
// place followed by ProvenanceMarker on its own line.
func Description(p passes.Pass) string {
	return fmt.Sprintf("Max elevation: %.1f°\n%s", p.MaxElevation, ProvenanceMarker)
}

// NewEvent builds the event payload for p. A negative reminder disables the
// popup; otherwise it fires that long before rise.
func NewEvent(p passes.Pass, reminder time.Duration, runID string) *calendar.Event {
	ev := &calendar.Event{
		Summary:     Title(p),
		Description: Description(p),
		Start: &calendar.EventDateTime{
			DateTime: p.RiseTime.UTC().Format(time.RFC3339),
			TimeZone: "UTC",
		},
		End: &calendar.EventDateTime{
			DateTime: p.SetTime.UTC().Format(time.RFC3339),
			TimeZone: "UTC",
		},
		Reminders: &calendar.EventReminders{
			UseDefault:      false,
			ForceSendFields: []string{"UseDefault"},
		},
		ExtendedProperties: &calendar.EventExtendedProperties{
			Private: map[string]string{
				propSatellite:   p.SatelliteName,
				propCulmination: p.CulminationTime.UTC().Format(time.RFC3339),
			},
		},
	}
	if reminder >= 0 {
		ev.Reminders.Overrides = []*calendar.EventReminder{
			{Method: "popup", Minutes: int64(reminder / time.Minute), ForceSendFields: []string{"Minutes"}},
		}
	}
	if runID != "" {
		ev.ExtendedProperties.Private[propRun] = runID
	}
	return ev
}

// IsPassEvent reports whether ev was created by passbot: the title contains
// "Pass" and the description contains ProvenanceMarker. A non-empty
// satellite further requires the title to contain that name.
func IsPassEvent(ev *calendar.Event, satellite string) bool {
	if ev == nil {
		return false
	}
	if !strings.Contains(ev.Summary, "Pass") || !strings.Contains(ev.Description, ProvenanceMarker) {
		return false
	}
	return satellite == "" || strings.Contains(ev.Summary, satellite)
}
