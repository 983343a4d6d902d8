// Package timetable turns free-text course meeting expressions such as
// "Mon 09:00-10:30", "Tuesday 14:00" or "900-1030" into structured weekly
// schedule slots. Parsing is deliberately lenient: human-entered schedule
// strings are inconsistent, and a slot placed at a default position is more
// useful to the caller than a dropped row.
package timetable

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Slot is a structured (day, start, end) triple. DayOfWeek uses the
// Sunday=0 .. Saturday=6 convention so it can index a 7-element day array.
// StartTime and EndTime are zero-padded 24-hour "HH:MM" strings, which makes
// lexicographic comparison equivalent to chronological comparison.
type Slot struct {
	DayOfWeek int    `json:"day_of_week"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// DayNames maps a Slot.DayOfWeek index to its display name.
var DayNames = [7]string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

// DefaultDay is used when the expression carries no recognizable day token.
const DefaultDay = 1 // Monday

var dayTokens = map[string]int{
	"sunday": 0, "sun": 0,
	"monday": 1, "mon": 1,
	"tuesday": 2, "tue": 2,
	"wednesday": 3, "wed": 3,
	"thursday": 4, "thu": 4,
	"friday": 5, "fri": 5,
	"saturday": 6, "sat": 6,
}

var (
	leadingWordRe = regexp.MustCompile(`^(\w+)\s+`)
	timeRangeRe   = regexp.MustCompile(`(\d{1,2}:?\d{2})\s*-\s*(\d{1,2}:?\d{2})`)
	singleTimeRe  = regexp.MustCompile(`(\d{1,2}:?\d{2})`)
)

// Parse extracts a Slot from a free-text course-time expression. It returns
// nil when the expression is empty, whitespace-only or contains no
// recognizable time token; callers apply their own fallback in that case.
//
// Accepted shapes, first match wins:
//
//	"Monday 09:00-10:30"  day + range
//	"Mon 9:00-1030"       abbreviated day, mixed compact forms
//	"09:00-10:30"         range only (day defaults to Monday)
//	"Fri 14:00"           single time (end = start + 1h, hour mod 24)
//
// Only a leading day token is recognized; a day name embedded later in the
// string is treated as noise.
func Parse(expr string) *Slot {
	t := strings.TrimSpace(expr)
	if t == "" {
		return nil
	}

	day := -1
	rest := t
	if m := leadingWordRe.FindStringSubmatch(t); m != nil {
		if d, ok := dayTokens[strings.ToLower(m[1])]; ok {
			day = d
			rest = strings.TrimSpace(t[len(m[0]):])
		}
	}
	if day < 0 {
		day = DefaultDay
	}

	if m := timeRangeRe.FindStringSubmatch(rest); m != nil {
		return &Slot{
			DayOfWeek: day,
			StartTime: normalizeTime(m[1]),
			EndTime:   normalizeTime(m[2]),
		}
	}

	if m := singleTimeRe.FindStringSubmatch(rest); m != nil {
		start := normalizeTime(m[1])
		return &Slot{
			DayOfWeek: day,
			StartTime: start,
			EndTime:   plusOneHour(start),
		}
	}

	return nil
}

// normalizeTime converts a matched token into zero-padded "HH:MM". Compact
// tokens ("900", "1030") are left-padded to four digits before the colon is
// inserted, so "900" reads as 09:00 rather than the malformed "90:0" a purely
// positional split would yield.
func normalizeTime(token string) string {
	var hh, mm string
	if idx := strings.IndexByte(token, ':'); idx >= 0 {
		hh, mm = token[:idx], token[idx+1:]
	} else {
		padded := token
		for len(padded) < 4 {
			padded = "0" + padded
		}
		hh, mm = padded[:2], padded[2:]
	}
	if len(hh) < 2 {
		hh = "0" + hh
	}
	return hh + ":" + mm
}

// plusOneHour advances the hour of a normalized "HH:MM" by one, wrapping
// modulo 24. The minute is preserved; no day rollover is tracked.
func plusOneHour(start string) string {
	h, err := strconv.Atoi(start[:2])
	if err != nil {
		return start
	}
	return fmt.Sprintf("%02d:%s", (h+1)%24, start[3:])
}
