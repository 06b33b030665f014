package escalation

import (
	"math"
	"time"
)

const day = 24 * time.Hour

// FormatSubjectDate renders t as dd-MM-yyyy in loc, the format used in email subjects.
func FormatSubjectDate(t time.Time, loc *time.Location) string {
	return inLocation(t, loc).Format("02-01-2006")
}

// FormatSheetDate renders t as dd/MM/yyyy in loc, the format used in exported sheets.
func FormatSheetDate(t time.Time, loc *time.Location) string {
	return inLocation(t, loc).Format("02/01/2006")
}

// FailureDays is the number of started days between created and now.
func FailureDays(created, now time.Time) int {
	return int(math.Ceil(float64(now.Sub(created)) / float64(day)))
}

// DaysRemaining is the signed number of days from now until target, rounded up.
// Negative values mean the target has passed.
func DaysRemaining(target, now time.Time) int {
	return int(math.Ceil(float64(target.Sub(now)) / float64(day)))
}

func inLocation(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		return t
	}
	return t.In(loc)
}
