package attendance

import (
	"strconv"
	"strings"
	"time"
)

// Window is an inclusive [Start, End] range in epoch milliseconds.
type Window struct {
	Start int64
	End   int64
}

func (w Window) Contains(at int64) bool { return at >= w.Start && at <= w.End }

// DayWindow returns the local calendar day containing ref:
// [00:00:00.000, 23:59:59.999] in loc.
func DayWindow(ref time.Time, loc *time.Location) Window {
	if loc == nil {
		loc = time.Local
	}
	t := ref.In(loc)
	y, m, d := t.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, loc)
	end := time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), loc)
	return Window{Start: start.UnixMilli(), End: end.UnixMilli()}
}

// EndOfDay returns 23:59:59.999 in loc on the calendar day of t.
func EndOfDay(t time.Time, loc *time.Location) time.Time {
	return time.UnixMilli(DayWindow(t, loc).End).In(loc)
}

// Layouts accepted for absolute due dates.  Zone-less layouts are read in
// the evaluation location.
var dueLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// NormalizeDue turns a due date into a comparable instant in epoch ms.
// ok is false when the date imposes no bound: absent, unparseable, or
// resolving to zero or a negative instant.
func NormalizeDue(d DueDate, loc *time.Location) (ms int64, ok bool) {
	if loc == nil {
		loc = time.Local
	}
	s := strings.TrimSpace(string(d))
	if s == "" {
		return 0, false
	}

	if d.IsDateOnly() {
		day, err := time.ParseInLocation("2006-01-02", s, loc)
		if err != nil {
			return 0, false
		}
		return positive(EndOfDay(day, loc).UnixMilli())
	}

	if d.isNumeric() {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, false
		}
		return positive(n)
	}

	for _, layout := range dueLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return positive(t.UnixMilli())
		}
	}
	return 0, false
}

func positive(ms int64) (int64, bool) {
	if ms <= 0 {
		return 0, false
	}
	return ms, true
}
