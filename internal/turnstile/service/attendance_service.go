package service

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/prepa3/turnstile/internal/turnstile/attendance"
	"github.com/prepa3/turnstile/internal/turnstile/broadcast"
	"github.com/prepa3/turnstile/internal/turnstile/store"
	"github.com/prepa3/turnstile/internal/turnstile/types"
)

// AttendanceConfig holds the parameters for NewAttendanceService.
type AttendanceConfig struct {
	// Location is the local time zone that defines "today".
	Location *time.Location

	// MaxAttempts bounds how many times Decide re-reads the student after a
	// version conflict.  Defaults to 3.
	MaxAttempts int

	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// AttendanceService turns gate attempts into entrance logs and answers the
// occupancy questions.
type AttendanceService struct {
	store       store.Store
	engine      *attendance.Engine
	hub         broadcast.Broadcaster
	logger      *log.Logger
	maxAttempts int
	now         func() time.Time
}

func NewAttendanceService(s store.Store, hub broadcast.Broadcaster, cfg AttendanceConfig, logger *log.Logger) *AttendanceService {
	if hub == nil {
		hub = broadcast.Nop{}
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &AttendanceService{
		store:       s,
		engine:      attendance.NewEngine(cfg.Location),
		hub:         hub,
		logger:      logger,
		maxAttempts: attempts,
		now:         now,
	}
}

// Decision is the appended log entry together with the student record it
// was appended to.
type Decision struct {
	Student attendance.Student
	Log     attendance.EntranceLog
}

// Decide evaluates one attempt for studentID and appends exactly one log
// entry, accepted or not.  An unknown student gets no entry.
func (s *AttendanceService) Decide(ctx context.Context, studentID string, dir attendance.Direction) (Decision, error) {
	id := strings.TrimSpace(studentID)
	if id == "" {
		return Decision{}, invalid("student_id is required")
	}

	for attempt := 1; ; attempt++ {
		st, err := s.store.Get(ctx, id)
		if err != nil {
			return Decision{}, upstream("decide load "+id, err)
		}

		entry := s.engine.Decide(st, dir, s.now())

		updated, err := s.store.AppendLog(ctx, id, st.Version, entry)
		if errors.Is(err, store.ErrConflict) && attempt < s.maxAttempts {
			continue
		}
		if err != nil {
			return Decision{}, upstream("decide append "+id, err)
		}

		s.publishDecision(ctx, updated, entry)
		return Decision{Student: updated, Log: entry}, nil
	}
}

// Access is the request/response form of Decide used by the transports.
func (s *AttendanceService) Access(ctx context.Context, req types.AccessRequest) (types.AccessResponse, error) {
	req.StudentID = strings.TrimSpace(req.StudentID)
	if err := validateRequest(req); err != nil {
		return types.AccessResponse{}, err
	}

	d, err := s.Decide(ctx, req.StudentID, attendance.DirectionFromExit(*req.Exit))
	if err != nil {
		return types.AccessResponse{}, err
	}
	return types.AccessResponse{
		LoggedStudent: types.NewLoggedStudent(d.Student, d.Log),
		Reason:        types.ReasonFor(d.Log),
		ServerTime:    s.now().UTC().Format(time.RFC3339Nano),
	}, nil
}

// publishDecision announces every decision and, after an accepted one, the
// fresh head counts.  Failures are logged and never undo the decision.
func (s *AttendanceService) publishDecision(ctx context.Context, st attendance.Student, entry attendance.EntranceLog) {
	logged := broadcast.Event{
		Name: broadcast.EventStudentLogged,
		Data: types.NewLoggedStudent(st, entry),
	}
	if err := s.hub.Publish(ctx, logged); err != nil {
		s.logger.Printf("broadcast %s: %v", logged.Name, err)
	}

	if !entry.Accepted {
		return
	}

	occ, err := s.store.Occupancy(ctx, s.engine.Today(s.now()))
	if err != nil {
		s.logger.Printf("broadcast counts: occupancy: %v", err)
		return
	}
	for _, ev := range []broadcast.Event{
		{Name: broadcast.EventCountCurrentlyInside, Data: types.CountPayload{Count: occ.Inside}},
		{Name: broadcast.EventCountCurrentlyOutside, Data: types.CountPayload{Count: occ.Outside}},
	} {
		if err := s.hub.Publish(ctx, ev); err != nil {
			s.logger.Printf("broadcast %s: %v", ev.Name, err)
		}
	}
}

func (s *AttendanceService) IsActivelySuspended(reports []attendance.Report, now time.Time) bool {
	return s.engine.IsActivelySuspended(reports, now)
}

// ── Occupancy ────────────────────────────────────────────────────────────────

func (s *AttendanceService) occupancy(ctx context.Context) (attendance.Occupancy, error) {
	occ, err := s.store.Occupancy(ctx, s.engine.Today(s.now()))
	if err != nil {
		return attendance.Occupancy{}, upstream("occupancy", err)
	}
	return occ, nil
}

func (s *AttendanceService) CountInside(ctx context.Context) (int, error) {
	occ, err := s.occupancy(ctx)
	return occ.Inside, err
}

func (s *AttendanceService) CountOutside(ctx context.Context) (int, error) {
	occ, err := s.occupancy(ctx)
	return occ.Outside, err
}

func (s *AttendanceService) CountLoginsToday(ctx context.Context) (int, error) {
	occ, err := s.occupancy(ctx)
	return occ.LoginsToday, err
}

func (s *AttendanceService) CountTotalStudents(ctx context.Context) (int, error) {
	n, err := s.store.Count(ctx, store.StudentFilter{})
	if err != nil {
		return 0, upstream("count students", err)
	}
	return n, nil
}

// CountNewStudents counts first-semester students.
func (s *AttendanceService) CountNewStudents(ctx context.Context) (int, error) {
	n, err := s.store.Count(ctx, store.StudentFilter{Semester: attendance.NewSemester})
	if err != nil {
		return 0, upstream("count new students", err)
	}
	return n, nil
}

// ListCurrentlyInside returns the full records of students inside today.
func (s *AttendanceService) ListCurrentlyInside(ctx context.Context) ([]attendance.Student, error) {
	out, err := s.store.ListInside(ctx, s.engine.Today(s.now()))
	if err != nil {
		return nil, upstream("list inside", err)
	}
	return out, nil
}

func (s *AttendanceService) Stats(ctx context.Context) (types.StatsResponse, error) {
	occ, err := s.occupancy(ctx)
	if err != nil {
		return types.StatsResponse{}, err
	}
	total, err := s.CountTotalStudents(ctx)
	if err != nil {
		return types.StatsResponse{}, err
	}
	fresh, err := s.CountNewStudents(ctx)
	if err != nil {
		return types.StatsResponse{}, err
	}
	return types.StatsResponse{
		Inside:        occ.Inside,
		Outside:       occ.Outside,
		LoginsToday:   occ.LoginsToday,
		TotalStudents: total,
		NewStudents:   fresh,
		ServerTime:    s.now().UTC().Format(time.RFC3339Nano),
	}, nil
}
