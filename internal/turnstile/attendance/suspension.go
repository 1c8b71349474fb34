package attendance

import "time"

// IsActiveSuspension reports whether r bars entry at now.
//
// A bounded suspension is active while its due instant lies after now.  A
// date-only due date covers its whole last day, 23:59:59.999 included.
func IsActiveSuspension(r Report, now time.Time, loc *time.Location) bool {
	if !r.Suspended {
		return false
	}
	due, bounded := NormalizeDue(r.DueDate, loc)
	if !bounded {
		return true
	}
	nowMs := now.UnixMilli()
	if r.DueDate.IsDateOnly() {
		return due >= nowMs
	}
	return due > nowMs
}

// IsActivelySuspended reports whether any report in the collection bars
// entry at now.
func IsActivelySuspended(reports []Report, now time.Time, loc *time.Location) bool {
	for _, r := range reports {
		if IsActiveSuspension(r, now, loc) {
			return true
		}
	}
	return false
}
