package tle

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInputFetch is returned when orbital elements cannot be obtained, either
// because the source was unreachable or because it did not contain a TLE.
var ErrInputFetch = errors.New("tle: input fetch failed")

// unknownName labels two-line element sets that carry no title line.
const unknownName = "Unknown Satellite"

// TLEEntry represents a single satellite's two-line element set.
type TLEEntry struct {
	NORADID int
	Name    string
	Epoch   time.Time
	Line1   string
	Line2   string
}

// Dataset is the parsed content of one source at one point in time.
type Dataset struct {
	Source    string
	FetchedAt time.Time
	Entries   []TLEEntry
}

// tleLineLen is the fixed width of both element lines.
const tleLineLen = 69

// CheckLines reports whether both lines have the fixed-width layout SGP4
// initialization expects.
func (e TLEEntry) CheckLines() error {
	for i, line := range [...]string{e.Line1, e.Line2} {
		line = strings.TrimSpace(line)
		if n := len(line); n != tleLineLen {
			return fmt.Errorf("line%d has %d characters, want %d", i+1, n, tleLineLen)
		}
		valid := isLine1
		if i == 1 {
			valid = isLine2
		}
		if !valid(line) {
			return fmt.Errorf("line%d does not start with %q", i+1, fmt.Sprintf("%d ", i+1))
		}
	}
	return nil
}
