// File: internal/codec/timecode.go
package codec

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeCode is the form's token for a half-hour departure slot. The trailing
// letter disambiguates the halves of the day; the midnight and noon slots use
// dedicated sentinels ("1201A", "1230A", "1200N", "1230P").
type TimeCode string

// timetable is the canonical slot list in calendar order, exactly as the
// toTimeTable select renders it.
var timetable = []TimeCode{
	"1201A", "1230A",
	"600A", "630A", "700A", "730A", "800A", "830A", "900A", "930A",
	"1000A", "1030A", "1100A", "1130A",
	"1200N", "1230P",
	"100P", "130P", "200P", "230P", "300P", "330P", "400P", "430P",
	"500P", "530P", "600P", "630P", "700P", "730P", "800P", "830P",
	"900P", "930P", "1000P", "1030P", "1100P", "1130P",
}

// Timetable returns the canonical ordered slot list.
func Timetable() []TimeCode {
	out := make([]TimeCode, len(timetable))
	copy(out, timetable)
	return out
}

// EncodeTimeSlot converts a requested "HH:MM" clock time into the slot token,
// flooring the minute to the nearest half hour first.
func EncodeTimeSlot(hhmm string) (TimeCode, error) {
	parts := strings.SplitN(strings.TrimSpace(hhmm), ":", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("malformed time %q, want HH:MM", hhmm)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return "", fmt.Errorf("malformed hour in %q", hhmm)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return "", fmt.Errorf("malformed minute in %q", hhmm)
	}
	if m >= 30 {
		m = 30
	} else {
		m = 0
	}

	t := h*100 + m
	switch {
	case t == 0:
		return "1201A", nil
	case t == 30:
		return "1230A", nil
	case t == 1200:
		return "1200N", nil
	case t == 1230:
		return "1230P", nil
	case t < 1200:
		return TimeCode(fmt.Sprintf("%dA", t)), nil
	default:
		return TimeCode(fmt.Sprintf("%dP", t-1200)), nil
	}
}

// Minutes decodes the token back to minutes after midnight. It is the inverse
// of EncodeTimeSlot over the canonical timetable.
func (c TimeCode) Minutes() (int, error) {
	s := string(c)
	if len(s) < 2 {
		return 0, fmt.Errorf("malformed time code %q", c)
	}
	suffix := s[len(s)-1]
	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil {
		return 0, fmt.Errorf("malformed time code %q", c)
	}

	switch suffix {
	case 'A':
		if n/100 == 12 {
			// Midnight sentinels: 1201A is 00:00, 1230A is 00:30.
			n = n % 1200
			if n == 1 {
				n = 0
			}
		}
	case 'N':
		if n != 1200 {
			return 0, fmt.Errorf("malformed time code %q", c)
		}
	case 'P':
		if n != 1230 {
			n += 1200
		}
	default:
		return 0, fmt.Errorf("malformed time code %q", c)
	}
	return (n/100)*60 + n%100, nil
}

// AvailableSlots lists the timetable slots still bookable for the given
// travel date, dropping slots already in the past when the date is today.
// date uses the form's "2006/01/02" layout.
func AvailableSlots(date string, now time.Time) ([]TimeCode, error) {
	day, err := time.ParseInLocation("2006/01/02", date, now.Location())
	if err != nil {
		return nil, fmt.Errorf("malformed travel date %q: %w", date, err)
	}

	var out []TimeCode
	for _, code := range timetable {
		mins, err := code.Minutes()
		if err != nil {
			return nil, err
		}
		slot := day.Add(time.Duration(mins) * time.Minute)
		if !slot.Before(now) {
			out = append(out, code)
		}
	}
	return out, nil
}
