package tle

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// Parse reads TLE data from r and returns every entry it can decode.
// Entries may be in 3-line form (title, line 1, line 2) or bare 2-line form.
// Malformed entries are skipped with a warning log.
func Parse(r io.Reader, logger *slog.Logger) ([]TLEEntry, error) {
	lines, err := readLines(r)
	if err != nil {
		return nil, err
	}

	var entries []TLEEntry
	for i := 0; i < len(lines); {
		name := unknownName
		j := i
		if !isLine1(lines[j]) {
			name = strings.TrimSpace(lines[j])
			j++
		}
		if j+1 >= len(lines) {
			break
		}
		line1, line2 := lines[j], lines[j+1]
		if !isLine1(line1) || !isLine2(line2) {
			logger.Warn("skipping malformed TLE entry", "line_index", i, "name", name)
			i++
			continue
		}

		entry, err := newEntry(name, line1, line2)
		if err != nil {
			logger.Warn("skipping TLE entry", "name", name, "error", err)
		} else {
			entries = append(entries, entry)
		}
		i = j + 2
	}

	return entries, nil
}

// ParseText decodes a single element set. With three or more lines and a
// title first, the title is used as the name; with two lines the name is
// "Unknown Satellite". Extra trailing lines are ignored.
func ParseText(text string) (TLEEntry, error) {
	lines, err := readLines(strings.NewReader(text))
	if err != nil {
		return TLEEntry{}, err
	}
	if len(lines) < 2 {
		return TLEEntry{}, errors.New("TLE must contain at least 2 lines")
	}

	name := unknownName
	line1, line2 := lines[0], lines[1]
	if len(lines) >= 3 && !isLine1(lines[0]) {
		name = strings.TrimSpace(lines[0])
		line1, line2 = lines[1], lines[2]
	}
	if !isLine1(line1) || !isLine2(line2) {
		return TLEEntry{}, fmt.Errorf("malformed TLE lines for %q", name)
	}
	return newEntry(name, line1, line2)
}

func readLines(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	var lines []string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading TLE data: %w", err)
	}
	return lines, nil
}

func isLine1(s string) bool { return strings.HasPrefix(s, "1 ") }
func isLine2(s string) bool { return strings.HasPrefix(s, "2 ") }

func newEntry(name, line1, line2 string) (TLEEntry, error) {
	if len(line1) < 32 {
		return TLEEntry{}, fmt.Errorf("line1 too short (%d chars)", len(line1))
	}

	// NORAD catalog number: columns 3-7.
	noradStr := strings.TrimSpace(line1[2:7])
	noradID, err := strconv.Atoi(noradStr)
	if err != nil {
		return TLEEntry{}, fmt.Errorf("invalid NORAD ID %q", noradStr)
	}

	// Epoch: columns 19-32.
	epochStr := strings.TrimSpace(line1[18:32])
	epoch, err := parseEpoch(epochStr)
	if err != nil {
		return TLEEntry{}, err
	}

	return TLEEntry{
		NORADID: noradID,
		Name:    name,
		Epoch:   epoch,
		Line1:   line1,
		Line2:   line2,
	}, nil
}

// parseEpoch converts a TLE epoch string in YYDDD.DDDDDDDD format to time.Time.
// Year 00-56 → 2000s, 57-99 → 1900s.
func parseEpoch(s string) (time.Time, error) {
	if len(s) < 5 {
		return time.Time{}, fmt.Errorf("epoch string too short: %q", s)
	}

	year, err := strconv.Atoi(s[:2])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid epoch year %q: %w", s[:2], err)
	}
	if year >= 57 {
		year += 1900
	} else {
		year += 2000
	}

	dayOfYear, err := strconv.ParseFloat(s[2:], 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid epoch day %q: %w", s[2:], err)
	}

	// Day 1 is Jan 1.
	t := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	return t.Add(time.Duration((dayOfYear - 1) * float64(24*time.Hour))), nil
}
