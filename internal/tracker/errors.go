package tracker

import (
	"github.com/jwcutler/passbot/internal/calendar"
	"github.com/jwcutler/passbot/internal/orbit"
	"github.com/jwcutler/passbot/internal/tle"
)

// Error kinds a satellite can fail with. Test with errors.Is.
var (
	ErrInputFetch       = tle.ErrInputFetch
	ErrOrbitPropagation = orbit.ErrOrbitPropagation
	ErrCalendarAPI      = calendar.ErrCalendarAPI
)
