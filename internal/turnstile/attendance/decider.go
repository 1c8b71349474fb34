package attendance

import "time"

// LastAccepted returns the chronologically last accepted entry inside w.
// Entries sharing the same At are ordered by their position in logs, so the
// later append wins.
func LastAccepted(logs []EntranceLog, w Window) (EntranceLog, bool) {
	var (
		last  EntranceLog
		found bool
	)
	for _, l := range logs {
		if !l.Accepted || !w.Contains(l.At) {
			continue
		}
		if !found || l.At >= last.At {
			last = l
			found = true
		}
	}
	return last, found
}

// Decide evaluates one attempt against a student's logs and reports and
// returns the entry to append.  It never mutates its inputs.
//
// An entry attempt under an active suspension is rejected with Suspended
// set.  Exits are never blocked by a suspension.  Otherwise only today's
// accepted entries matter: an exit needs the student to be inside, an entry
// needs them outside or not yet seen today.
func Decide(logs []EntranceLog, reports []Report, dir Direction, now time.Time, loc *time.Location) EntranceLog {
	at := now.UnixMilli()

	if dir == Enter && IsActivelySuspended(reports, now, loc) {
		return EntranceLog{At: at, Exit: false, Accepted: false, Suspended: true}
	}

	last, found := LastAccepted(logs, DayWindow(now, loc))

	var accepted bool
	if dir == Exit {
		accepted = found && !last.Exit
	} else {
		accepted = !found || last.Exit
	}

	return EntranceLog{At: at, Exit: dir.IsExit(), Accepted: accepted}
}

// Engine binds the decision functions to one local time zone.
type Engine struct {
	loc *time.Location
}

func NewEngine(loc *time.Location) *Engine {
	if loc == nil {
		loc = time.Local
	}
	return &Engine{loc: loc}
}

func (e *Engine) Location() *time.Location { return e.loc }

func (e *Engine) Today(now time.Time) Window { return DayWindow(now, e.loc) }

func (e *Engine) IsActivelySuspended(reports []Report, now time.Time) bool {
	return IsActivelySuspended(reports, now, e.loc)
}

func (e *Engine) Decide(s Student, dir Direction, now time.Time) EntranceLog {
	return Decide(s.Logs, s.Reports, dir, now, e.loc)
}
