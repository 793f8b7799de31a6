package booking

import (
	"fmt"
	"time"
)

// Cutover is the fixed daily UTC instant at which every booking ends.
type Cutover struct {
	Hour   int
	Minute int
}

// ParseCutover parses an "HH:MM" value interpreted in UTC.
func ParseCutover(s string) (Cutover, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return Cutover{}, fmt.Errorf("parse cutover %q: %w", s, err)
	}
	return Cutover{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (c Cutover) String() string { return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute) }

// OccupiedUntil returns the expiry of a reservation made at now: today's
// cutover if now is before it, otherwise tomorrow's.  now equal to the
// cutover counts as after it.
func (c Cutover) OccupiedUntil(now time.Time) time.Time {
	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), c.Hour, c.Minute, 0, 0, time.UTC)
	if now.Before(today) {
		return today
	}
	return today.AddDate(0, 0, 1)
}
