// Package expiration turns the advisory offer expiration date and free-text
// time into an instant and a countdown. Nothing here rejects input; malformed
// values fall back to end of day or to "no expiration".
package expiration

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

var timePattern = regexp.MustCompile(`(?i)^(\d{1,2}):(\d{2})\s*(a\.?\s*m\.?|p\.?\s*m\.?)?$`)

// Combine resolves date and timeText in loc. ok is false when the date is
// absent or unparsable. An unreadable time means end of day.
func Combine(date, timeText string, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.UTC
	}
	day, err := time.ParseInLocation(dateLayout, strings.TrimSpace(date), loc)
	if err != nil {
		return time.Time{}, false
	}
	hour, minute, ok := parseClock(timeText)
	if !ok {
		return time.Date(day.Year(), day.Month(), day.Day(), 23, 59, 59, int(999*time.Millisecond), loc), true
	}
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, loc), true
}

func parseClock(timeText string) (int, int, bool) {
	match := timePattern.FindStringSubmatch(strings.TrimSpace(timeText))
	if match == nil {
		return 0, 0, false
	}
	hour, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, 0, false
	}
	minute, err := strconv.Atoi(match[2])
	if err != nil || minute > 59 || hour > 23 {
		return 0, 0, false
	}

	meridiem := strings.ToLower(strings.NewReplacer(".", "", " ", "", "\t", "").Replace(match[3]))
	switch meridiem {
	case "pm":
		if hour < 12 {
			hour += 12
		}
	case "am":
		if hour == 12 {
			hour = 0
		}
	}
	return hour, minute, true
}

// NoExpirationText labels offers without a readable expiration.
const NoExpirationText = "No expiration"

type Countdown struct {
	Text    string `json:"text"`
	Expired bool   `json:"expired"`
}

// FormatCountdown describes the time left until expiry. The expiry instant
// itself counts as expired.
func FormatCountdown(expiry, now time.Time) Countdown {
	if !now.Before(expiry) {
		return Countdown{Text: "Expired", Expired: true}
	}
	remaining := expiry.Sub(now)
	days := int(remaining / (24 * time.Hour))
	hours := int(remaining % (24 * time.Hour) / time.Hour)
	minutes := int(remaining % time.Hour / time.Minute)

	switch {
	case days > 0:
		return Countdown{Text: fmt.Sprintf("%dd %dh %dm", days, hours, minutes)}
	case hours > 0:
		return Countdown{Text: fmt.Sprintf("%dh %dm", hours, minutes)}
	case minutes > 0:
		return Countdown{Text: fmt.Sprintf("%dm", minutes)}
	default:
		return Countdown{Text: "< 1 min"}
	}
}

// IsExpired reports whether the expiration has passed. Offers without a
// readable expiration date never expire.
func IsExpired(date, timeText string, loc *time.Location, now time.Time) bool {
	expiry, ok := Combine(date, timeText, loc)
	if !ok {
		return false
	}
	return !now.Before(expiry)
}
