package attendance

// Presence is where a student stands for the day.
type Presence int

const (
	// Absent: no accepted entry in the window.  Counted neither inside nor outside.
	Absent Presence = iota
	Inside
	Outside
)

func (p Presence) String() string {
	switch p {
	case Inside:
		return "inside"
	case Outside:
		return "outside"
	default:
		return "absent"
	}
}

// PresenceIn classifies a student's logs for window w.
func PresenceIn(logs []EntranceLog, w Window) Presence {
	last, ok := LastAccepted(logs, w)
	switch {
	case !ok:
		return Absent
	case last.Exit:
		return Outside
	default:
		return Inside
	}
}

// Occupancy is the derived head count for one window.
type Occupancy struct {
	Inside      int `json:"inside"`
	Outside     int `json:"outside"`
	LoginsToday int `json:"logins_today"`
}

// Tally reduces a snapshot of students to occupancy counts.  LoginsToday
// counts accepted entries, not distinct students.
func Tally(students []Student, w Window) Occupancy {
	var o Occupancy
	for _, s := range students {
		switch PresenceIn(s.Logs, w) {
		case Inside:
			o.Inside++
		case Outside:
			o.Outside++
		}
		o.LoginsToday += CountLogins(s.Logs, w)
	}
	return o
}

// CountLogins counts accepted entry (exit=false) events inside w.
func CountLogins(logs []EntranceLog, w Window) int {
	n := 0
	for _, l := range logs {
		if l.Accepted && !l.Exit && w.Contains(l.At) {
			n++
		}
	}
	return n
}

// FilterInside returns the students currently inside for w, preserving order.
func FilterInside(students []Student, w Window) []Student {
	out := make([]Student, 0)
	for _, s := range students {
		if PresenceIn(s.Logs, w) == Inside {
			out = append(out, s)
		}
	}
	return out
}
