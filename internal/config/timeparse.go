package config

import (
	"strings"
	"time"

	"github.com/xvierd/thirdtime/internal/domain"
)

// ParseEndAt reads an absolute end time. It accepts RFC3339 or a wall
// clock time "HH:MM" in now's location, always on now's date. A time that
// has already passed is returned as is; the cycle ends the interval at once.
func ParseEndAt(value string, now time.Time) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	clock, err := time.ParseInLocation("15:04", value, now.Location())
	if err != nil {
		return time.Time{}, domain.InvalidArgument("at", value)
	}
	return time.Date(now.Year(), now.Month(), now.Day(), clock.Hour(), clock.Minute(), 0, 0, now.Location()), nil
}
