package service

import (
	"context"
	"strings"
	"time"

	"github.com/prepa3/turnstile/internal/turnstile/attendance"
	"github.com/prepa3/turnstile/internal/turnstile/store"
	"github.com/prepa3/turnstile/internal/turnstile/types"
)

// ReportService manages a student's disciplinary reports.  Each operation
// rewrites the whole collection in one store transaction.
type ReportService struct {
	store store.StudentStore
	now   func() time.Time
}

func NewReportService(s store.StudentStore) *ReportService {
	return &ReportService{store: s, now: time.Now}
}

func (s *ReportService) AddReport(ctx context.Context, studentID string, req types.AddReportRequest) (attendance.Student, error) {
	id := strings.TrimSpace(studentID)
	if id == "" {
		return attendance.Student{}, invalid("student_id is required")
	}
	req = req.Trim()
	if err := validateRequest(req); err != nil {
		return attendance.Student{}, err
	}

	now := s.now()
	st, err := s.store.UpdateReports(ctx, id, func(rs []attendance.Report) ([]attendance.Report, error) {
		return attendance.AddReport(rs, req.Report(), now), nil
	})
	return st, upstream("add report "+id, err)
}

// RemoveReport drops the report keyed by at.  An unknown at leaves the
// collection unchanged.
func (s *ReportService) RemoveReport(ctx context.Context, studentID string, at int64) (attendance.Student, error) {
	id := strings.TrimSpace(studentID)
	if id == "" {
		return attendance.Student{}, invalid("student_id is required")
	}

	st, err := s.store.UpdateReports(ctx, id, func(rs []attendance.Report) ([]attendance.Report, error) {
		return attendance.RemoveReport(rs, at), nil
	})
	return st, upstream("remove report "+id, err)
}

// EditReport merges p into the report keyed by at.
func (s *ReportService) EditReport(ctx context.Context, studentID string, at int64, p attendance.ReportPatch) (attendance.Student, error) {
	id := strings.TrimSpace(studentID)
	if id == "" {
		return attendance.Student{}, invalid("student_id is required")
	}
	if p.Reason != nil && strings.TrimSpace(*p.Reason) == "" {
		return attendance.Student{}, invalid("reason must not be blank")
	}
	if p.ReportedBy != nil && strings.TrimSpace(*p.ReportedBy) == "" {
		return attendance.Student{}, invalid("reported_by must not be blank")
	}

	st, err := s.store.UpdateReports(ctx, id, func(rs []attendance.Report) ([]attendance.Report, error) {
		return attendance.EditReport(rs, at, p)
	})
	return st, upstream("edit report "+id, err)
}
