package types

import (
	"slices"
	"time"
)

// DateLayout is the calendar-date form used for availability and start dates.
const DateLayout = "2006-01-02"

// Availability lists the calendar days a candidate declared as working or off.
type Availability struct {
	WorkingDays []string `json:"workingDays,omitempty"`
	OffDays     []string `json:"offDays,omitempty"`
}

// IsEmpty reports whether neither list has entries.
func (a Availability) IsEmpty() bool {
	return len(a.WorkingDays) == 0 && len(a.OffDays) == 0
}

func (a Availability) Works(day string) bool {
	return slices.Contains(a.WorkingDays, day)
}

func (a Availability) Off(day string) bool {
	return slices.Contains(a.OffDays, day)
}

// DateKey formats t as a calendar date without shifting time zones.
func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}
