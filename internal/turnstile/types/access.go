package types

import "github.com/prepa3/turnstile/internal/turnstile/attendance"

// AccessRequest is one gate attempt.  Exit is a pointer so a missing field
// is rejected instead of defaulting to an entry.
type AccessRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	Exit      *bool  `json:"exit" validate:"required"`
}

// LoggedStudent is the outcome of one attempt as shown to dashboards.
type LoggedStudent struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	At        int64  `json:"at"`
	Exit      bool   `json:"exit"`
	Accepted  bool   `json:"accepted"`
	Suspended bool   `json:"suspended"`
}

func NewLoggedStudent(s attendance.Student, l attendance.EntranceLog) LoggedStudent {
	return LoggedStudent{
		ID:        s.ID,
		Name:      s.Name,
		At:        l.At,
		Exit:      l.Exit,
		Accepted:  l.Accepted,
		Suspended: l.Suspended,
	}
}

type AccessResponse struct {
	LoggedStudent
	Reason     string `json:"reason"`
	ServerTime string `json:"server_time"`
}

// Decision reasons.
const (
	ReasonAccepted      = "accepted"
	ReasonSuspended     = "suspended"
	ReasonAlreadyInside = "already_inside"
	ReasonNotInside     = "not_inside"
)

// ReasonFor names why l was accepted or rejected.
func ReasonFor(l attendance.EntranceLog) string {
	switch {
	case l.Accepted:
		return ReasonAccepted
	case l.Suspended:
		return ReasonSuspended
	case l.Exit:
		return ReasonNotInside
	default:
		return ReasonAlreadyInside
	}
}
