package service

import (
	"context"
	"log"
	"strings"

	"github.com/prepa3/turnstile/internal/turnstile/attendance"
	"github.com/prepa3/turnstile/internal/turnstile/store"
	"github.com/prepa3/turnstile/internal/turnstile/types"
)

// RosterService registers, looks up and filters students, and performs the
// administrative log clears.
type RosterService struct {
	store  store.StudentStore
	logger *log.Logger
}

func NewRosterService(s store.StudentStore, logger *log.Logger) *RosterService {
	return &RosterService{store: s, logger: logger}
}

func (s *RosterService) Register(ctx context.Context, req types.RegisterStudentRequest) (attendance.Student, error) {
	req = req.Trim()
	if err := validateRequest(req); err != nil {
		return attendance.Student{}, err
	}

	st := attendance.Student{
		ID:           req.ID,
		Name:         req.Name,
		Career:       req.Career,
		PrevSemester: req.PrevSemester,
		Semester:     req.Semester,
		Gender:       req.Gender,
		Age:          req.Age,
		Shift:        req.Shift,
		PrevGroup:    req.PrevGroup,
		Group:        req.Group,
	}
	if err := s.store.Create(ctx, st); err != nil {
		return attendance.Student{}, upstream("register "+req.ID, err)
	}

	out, err := s.store.Get(ctx, req.ID)
	return out, upstream("register reload "+req.ID, err)
}

func (s *RosterService) Get(ctx context.Context, studentID string) (attendance.Student, error) {
	id := strings.TrimSpace(studentID)
	if id == "" {
		return attendance.Student{}, invalid("student_id is required")
	}
	st, err := s.store.Get(ctx, id)
	return st, upstream("get "+id, err)
}

// Filter lists the students matching f; an empty filter lists everyone.
func (s *RosterService) Filter(ctx context.Context, f store.StudentFilter) ([]attendance.Student, error) {
	out, err := s.store.List(ctx, f.Normalize())
	if err != nil {
		return nil, upstream("filter", err)
	}
	return out, nil
}

func (s *RosterService) ClearLogs(ctx context.Context, studentID string) (attendance.Student, error) {
	id := strings.TrimSpace(studentID)
	if id == "" {
		return attendance.Student{}, invalid("student_id is required")
	}
	st, err := s.store.ClearLogs(ctx, id)
	if err != nil {
		return attendance.Student{}, upstream("clear logs "+id, err)
	}
	s.logger.Printf("cleared logs student=%s", id)
	return st, nil
}

// ClearAllLogs empties every student's log and reports how many students
// had entries.
func (s *RosterService) ClearAllLogs(ctx context.Context) (int64, error) {
	n, err := s.store.ClearAllLogs(ctx)
	if err != nil {
		return 0, upstream("clear all logs", err)
	}
	s.logger.Printf("cleared logs for %d students", n)
	return n, nil
}
