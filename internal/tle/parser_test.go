package tle

import (
	"strings"
	"testing"
	"time"
)

const (
	issLine1      = "1 25544U 98067A   24100.50000000  .00016717  00000-0  10270-3 0  9005"
	issLine2      = "2 25544  51.6400 100.0000 0001000   0.0000   0.0000 15.50000000    09"
	starlinkLine1 = "1 44713U 19074A   24100.50000000  .00001000  00000-0  10000-4 0  9995"
	starlinkLine2 = "2 44713  53.0000 200.0000 0001500  90.0000 270.0000 15.06000000    05"
)

func TestParseMixedEntries(t *testing.T) {
	data := strings.Join([]string{
		"ISS (ZARYA)", issLine1, issLine2,
		"",
		starlinkLine1, starlinkLine2,
		"GARBAGE", "2 not a line one",
		"TRUNCATED",
	}, "\r\n")

	entries, err := Parse(strings.NewReader(data), testLogger)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d: %+v", len(entries), entries)
	}
	if entries[0].NORADID != 25544 || entries[0].Name != "ISS (ZARYA)" {
		t.Errorf("entry 0 = %d %q", entries[0].NORADID, entries[0].Name)
	}
	if entries[1].NORADID != 44713 || entries[1].Name != "Unknown Satellite" {
		t.Errorf("entry 1 = %d %q", entries[1].NORADID, entries[1].Name)
	}

	wantEpoch := time.Date(2024, 4, 9, 12, 0, 0, 0, time.UTC)
	if !entries[0].Epoch.Equal(wantEpoch) {
		t.Errorf("epoch = %v, want %v", entries[0].Epoch, wantEpoch)
	}
}

func TestParseText(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		wantName string
		wantID   int
		wantErr  bool
	}{
		{"three lines", "ISS (ZARYA)\n" + issLine1 + "\n" + issLine2, "ISS (ZARYA)", 25544, false},
		{"two lines", issLine1 + "\n" + issLine2, "Unknown Satellite", 25544, false},
		{"surrounding blank lines", "\n\n  ISS (ZARYA)  \n" + issLine1 + "\n" + issLine2 + "\n\n", "ISS (ZARYA)", 25544, false},
		{"one line", issLine1, "", 0, true},
		{"wrong prefixes", "ISS\nfoo\nbar", "", 0, true},
		{"empty", "", "", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseText(tt.text)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseText error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got.Name != tt.wantName || got.NORADID != tt.wantID {
				t.Errorf("got %q/%d, want %q/%d", got.Name, got.NORADID, tt.wantName, tt.wantID)
			}
			if got.Line1 != issLine1 || got.Line2 != issLine2 {
				t.Errorf("lines not preserved: %q %q", got.Line1, got.Line2)
			}
		})
	}
}

func TestParseEpoch(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"24100.50000000", time.Date(2024, 4, 9, 12, 0, 0, 0, time.UTC)},
		{"99001.00000000", time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"57001.25000000", time.Date(1957, 1, 1, 6, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		got, err := parseEpoch(tt.in)
		if err != nil {
			t.Fatalf("parseEpoch(%q) failed: %v", tt.in, err)
		}
		if !got.Equal(tt.want) {
			t.Errorf("parseEpoch(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	if _, err := parseEpoch("24"); err == nil {
		t.Error("expected error for short epoch")
	}
}

func TestCheckLines(t *testing.T) {
	tests := []struct {
		name   string
		entry  TLEEntry
		errSub string
	}{
		{"valid", TLEEntry{Line1: issLine1, Line2: issLine2}, ""},
		{"surrounding whitespace", TLEEntry{Line1: " " + issLine1 + "\r", Line2: issLine2 + "  "}, ""},
		{"short line1", TLEEntry{Line1: issLine1[:60], Line2: issLine2}, "line1 has 60 characters"},
		{"long line2", TLEEntry{Line1: issLine1, Line2: issLine2 + "0"}, "line2 has 70 characters"},
		{"swapped", TLEEntry{Line1: issLine2, Line2: issLine1}, "line1 does not start"},
		{"empty", TLEEntry{}, "line1 has 0 characters"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.entry.CheckLines()
			if tt.errSub == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.errSub) {
				t.Errorf("CheckLines() = %v, want error containing %q", err, tt.errSub)
			}
		})
	}
}
