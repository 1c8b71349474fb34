package store

import (
	"context"
	"errors"
	"strings"

	"github.com/prepa3/turnstile/internal/turnstile/attendance"
)

var (
	ErrNotFound      = errors.New("student not found")
	ErrAlreadyExists = errors.New("student already exists")
	// ErrConflict means the student changed since it was read; the caller
	// should re-read and re-evaluate.
	ErrConflict = errors.New("student version conflict")
)

// StudentFilter narrows List and Count.  Name and ID match as
// case-insensitive substrings; the rest match exactly.  Empty fields are
// ignored.
type StudentFilter struct {
	Name     string
	ID       string
	Group    string
	Semester string
	Career   string
	Shift    string
}

// Normalize trims every field.
func (f StudentFilter) Normalize() StudentFilter {
	return StudentFilter{
		Name:     strings.TrimSpace(f.Name),
		ID:       strings.TrimSpace(f.ID),
		Group:    strings.TrimSpace(f.Group),
		Semester: strings.TrimSpace(f.Semester),
		Career:   strings.TrimSpace(f.Career),
		Shift:    strings.TrimSpace(f.Shift),
	}
}

func (f StudentFilter) IsEmpty() bool {
	return f.Normalize() == StudentFilter{}
}

// Match applies the filter in memory.  Backends that cannot push the filter
// down into a query use this.
func (f StudentFilter) Match(s attendance.Student) bool {
	f = f.Normalize()
	if f.Name != "" && !containsFold(s.Name, f.Name) {
		return false
	}
	if f.ID != "" && !containsFold(s.ID, f.ID) {
		return false
	}
	if f.Group != "" && s.Group != f.Group {
		return false
	}
	if f.Semester != "" && s.Semester != f.Semester {
		return false
	}
	if f.Career != "" && s.Career != f.Career {
		return false
	}
	if f.Shift != "" && s.Shift != f.Shift {
		return false
	}
	return true
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

// ReportsFn rewrites a student's whole report collection.
type ReportsFn func(reports []attendance.Report) ([]attendance.Report, error)

// StudentStore is the authoritative record holder.  Every mutation bumps
// the student's Version.
type StudentStore interface {
	Create(ctx context.Context, s attendance.Student) error
	Get(ctx context.Context, id string) (attendance.Student, error)
	List(ctx context.Context, f StudentFilter) ([]attendance.Student, error)
	Count(ctx context.Context, f StudentFilter) (int, error)

	// AppendLog appends entry only if the stored version still equals
	// expectedVersion, returning ErrConflict otherwise.
	AppendLog(ctx context.Context, id string, expectedVersion int64, entry attendance.EntranceLog) (attendance.Student, error)
	ClearLogs(ctx context.Context, id string) (attendance.Student, error)
	// ClearAllLogs empties every student's log and returns how many
	// students had entries removed.
	ClearAllLogs(ctx context.Context) (int64, error)

	// UpdateReports reads the report collection, applies fn and writes the
	// result back atomically.  An error from fn aborts the write.
	UpdateReports(ctx context.Context, id string, fn ReportsFn) (attendance.Student, error)
}

// OccupancyStore answers the windowed "last accepted entry" questions
// across all students.
type OccupancyStore interface {
	Occupancy(ctx context.Context, w attendance.Window) (attendance.Occupancy, error)
	ListInside(ctx context.Context, w attendance.Window) ([]attendance.Student, error)
}

// Store is what the services need from a backend.
type Store interface {
	StudentStore
	OccupancyStore
}
