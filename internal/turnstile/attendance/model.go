// Package attendance holds the gate decision engine: local-day windows,
// suspension evaluation, the in/out alternation rule, occupancy tallies and
// the report ledger.  Everything here is a pure function over a snapshot of
// student records; persistence and delivery live in other packages.
package attendance

import "time"

// Direction is the side of the gate a student is moving towards.
type Direction int

const (
	Enter Direction = iota
	Exit
)

// DirectionFromExit maps the wire-level "exit" flag to a Direction.
func DirectionFromExit(exit bool) Direction {
	if exit {
		return Exit
	}
	return Enter
}

func (d Direction) IsExit() bool { return d == Exit }

func (d Direction) String() string {
	if d == Exit {
		return "exit"
	}
	return "enter"
}

// EntranceLog is one check-in/check-out attempt.  Entries are never edited
// after they are appended; the only deletion is a bulk clear.
type EntranceLog struct {
	At        int64 `json:"at"` // ms since epoch
	Exit      bool  `json:"exit"`
	Accepted  bool  `json:"accepted"`
	Suspended bool  `json:"suspended,omitempty"`
}

func (l EntranceLog) Time() time.Time { return time.UnixMilli(l.At) }

// Report is a disciplinary note.  At doubles as its key within one student.
type Report struct {
	Reason     string  `json:"reason"`
	At         int64   `json:"at"`
	ReportedBy string  `json:"reported_by"`
	DueDate    DueDate `json:"due_date"`
	Suspended  bool    `json:"suspended"`
}

// ReportPatch carries the fields of an edit.  Nil pointers and an unset
// DueDate leave the stored value untouched.
type ReportPatch struct {
	Reason     *string         `json:"reason,omitempty"`
	ReportedBy *string         `json:"reported_by,omitempty"`
	DueDate    OptionalDueDate `json:"due_date"`
	Suspended  *bool           `json:"suspended,omitempty"`
}

// Student is the record the engine reasons over.  Version is bumped by the
// store on every mutation and is used as the compare-and-swap token when a
// decision is appended.
type Student struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Career       string        `json:"career"`
	PrevSemester string        `json:"prev_semester"`
	Semester     string        `json:"semester"`
	Gender       string        `json:"gender"`
	Age          string        `json:"age"`
	Shift        string        `json:"shift"`
	PrevGroup    string        `json:"prev_group"`
	Group        string        `json:"group"`
	Logs         []EntranceLog `json:"logs"`
	Reports      []Report      `json:"reports"`
	Version      int64         `json:"version"`
}

// NewSemester is the semester value that marks a first-term student.
const NewSemester = "1"

// Clone returns a deep copy so callers can hand out snapshots without
// sharing the backing arrays.
func (s Student) Clone() Student {
	out := s
	if s.Logs != nil {
		out.Logs = append([]EntranceLog(nil), s.Logs...)
	}
	if s.Reports != nil {
		out.Reports = append([]Report(nil), s.Reports...)
	}
	return out
}
