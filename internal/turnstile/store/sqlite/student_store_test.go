package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prepa3/turnstile/internal/turnstile/attendance"
	"github.com/prepa3/turnstile/internal/turnstile/store"
)

var day = time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC)

func ms(h, m int) int64 {
	return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute).UnixMilli()
}

// ── Create / Get ─────────────────────────────────────────────────────────────

func TestStore_CreateGet_RoundTrip(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	seedStudent(t, s, attendance.Student{
		ID:       "A001",
		Name:     "Ana",
		Semester: "1",
		Group:    "101",
		Logs: []attendance.EntranceLog{
			{At: ms(7, 0), Accepted: true},
			{At: ms(7, 1), Accepted: false, Suspended: true},
		},
		Reports: []attendance.Report{
			{At: 10, Reason: "late", ReportedBy: "prefect", DueDate: "2026-02-20", Suspended: true},
			{At: 20, Reason: "noise", ReportedBy: "prefect"},
		},
	})

	got, err := s.Get(ctx, "A001")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != "Ana" || got.Semester != "1" || got.Group != "101" {
		t.Errorf("unexpected roster fields: %+v", got)
	}
	if got.Version != 1 {
		t.Errorf("expected version=1, got %d", got.Version)
	}
	if len(got.Logs) != 2 || !got.Logs[0].Accepted || !got.Logs[1].Suspended {
		t.Errorf("unexpected logs: %+v", got.Logs)
	}
	if len(got.Reports) != 2 {
		t.Fatalf("expected 2 reports, got %d", len(got.Reports))
	}
	if got.Reports[0].DueDate != "2026-02-20" {
		t.Errorf("expected due_date preserved, got %q", got.Reports[0].DueDate)
	}
	if !got.Reports[1].DueDate.IsZero() {
		t.Errorf("expected NULL due_date to load as zero, got %q", got.Reports[1].DueDate)
	}
}

func TestStore_Create_Duplicate(t *testing.T) {
	s, _ := newTestStore(t)
	seedStudent(t, s, attendance.Student{ID: "A001", Name: "Ana"})

	err := s.Create(context.Background(), attendance.Student{ID: "A001", Name: "Otra"})
	if !errors.Is(err, store.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestStore_Get_Unknown(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.Get(context.Background(), "nope")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// ── List / Count ─────────────────────────────────────────────────────────────

func TestStore_ListAndCount_Filters(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	seedStudent(t, s, attendance.Student{ID: "A002", Name: "Bruno Diaz", Semester: "1", Shift: "M"})
	seedStudent(t, s, attendance.Student{ID: "A001", Name: "Ana Lopez", Semester: "3", Shift: "M"})
	seedStudent(t, s, attendance.Student{ID: "B001", Name: "Carla Ruiz", Semester: "1", Shift: "V"})

	all, err := s.List(ctx, store.StudentFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 || all[0].ID != "A001" {
		t.Fatalf("expected 3 students ordered by id, got %+v", all)
	}

	byName, err := s.List(ctx, store.StudentFilter{Name: "  diaz "})
	if err != nil {
		t.Fatalf("List by name: %v", err)
	}
	if len(byName) != 1 || byName[0].ID != "A002" {
		t.Errorf("expected case-insensitive name match on A002, got %+v", byName)
	}

	byID, err := s.List(ctx, store.StudentFilter{ID: "a0", Shift: "M"})
	if err != nil {
		t.Fatalf("List by id: %v", err)
	}
	if len(byID) != 2 {
		t.Errorf("expected 2 students, got %d", len(byID))
	}

	n, err := s.Count(ctx, store.StudentFilter{Semester: attendance.NewSemester})
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 new students, got %d", n)
	}

	total, err := s.Count(ctx, store.StudentFilter{})
	if err != nil {
		t.Fatalf("Count all: %v", err)
	}
	if total != 3 {
		t.Errorf("expected 3 students, got %d", total)
	}
}

// ── AppendLog: conditional append ────────────────────────────────────────────

func TestStore_AppendLog_BumpsVersion(t *testing.T) {
	s, conn := newTestStore(t)
	ctx := context.Background()
	seedStudent(t, s, attendance.Student{ID: "A001", Name: "Ana"})

	got, err := s.AppendLog(ctx, "A001", 1, attendance.EntranceLog{At: ms(7, 0), Accepted: true})
	if err != nil {
		t.Fatalf("AppendLog: %v", err)
	}
	if got.Version != 2 {
		t.Errorf("expected version=2, got %d", got.Version)
	}
	if len(got.Logs) != 1 {
		t.Errorf("expected 1 log, got %d", len(got.Logs))
	}

	var count int
	if err := conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM entrance_logs WHERE student_id = ?`, "A001",
	).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 entrance_logs row, got %d", count)
	}
}

func TestStore_AppendLog_StaleVersionConflicts(t *testing.T) {
	s, conn := newTestStore(t)
	ctx := context.Background()
	seedStudent(t, s, attendance.Student{ID: "A001", Name: "Ana"})

	if _, err := s.AppendLog(ctx, "A001", 1, attendance.EntranceLog{At: ms(7, 0), Accepted: true}); err != nil {
		t.Fatalf("first append: %v", err)
	}

	_, err := s.AppendLog(ctx, "A001", 1, attendance.EntranceLog{At: ms(7, 1), Accepted: true})
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	var count int
	if err := conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM entrance_logs`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("expected the conflicting append to roll back, got %d rows", count)
	}
}

func TestStore_AppendLog_UnknownStudent(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.AppendLog(context.Background(), "ghost", 1, attendance.EntranceLog{At: ms(7, 0)})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// ── Clearing logs ────────────────────────────────────────────────────────────

func TestStore_ClearLogs(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	seedStudent(t, s, attendance.Student{ID: "A001", Name: "Ana", Logs: []attendance.EntranceLog{{At: ms(7, 0), Accepted: true}}})
	seedStudent(t, s, attendance.Student{ID: "A002", Name: "Bruno", Logs: []attendance.EntranceLog{{At: ms(7, 5), Accepted: true}}})
	seedStudent(t, s, attendance.Student{ID: "A003", Name: "Carla"})

	got, err := s.ClearLogs(ctx, "A001")
	if err != nil {
		t.Fatalf("ClearLogs: %v", err)
	}
	if len(got.Logs) != 0 || got.Version != 2 {
		t.Errorf("expected empty logs and version 2, got %+v", got)
	}

	cleaned, err := s.ClearAllLogs(ctx)
	if err != nil {
		t.Fatalf("ClearAllLogs: %v", err)
	}
	if cleaned != 1 {
		t.Errorf("expected 1 student cleaned, got %d", cleaned)
	}

	if _, err := s.ClearLogs(ctx, "ghost"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

// ── UpdateReports ────────────────────────────────────────────────────────────

func TestStore_UpdateReports_ReplacesCollection(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	seedStudent(t, s, attendance.Student{ID: "A001", Name: "Ana"})

	now := day.Add(9 * time.Hour)
	got, err := s.UpdateReports(ctx, "A001", func(rs []attendance.Report) ([]attendance.Report, error) {
		return attendance.AddReport(rs, attendance.Report{Reason: "fight", ReportedBy: "p", Suspended: true}, now), nil
	})
	if err != nil {
		t.Fatalf("UpdateReports add: %v", err)
	}
	if len(got.Reports) != 1 || got.Reports[0].At != now.UnixMilli() {
		t.Fatalf("unexpected reports: %+v", got.Reports)
	}

	got, err = s.UpdateReports(ctx, "A001", func(rs []attendance.Report) ([]attendance.Report, error) {
		return attendance.RemoveReport(rs, now.UnixMilli()), nil
	})
	if err != nil {
		t.Fatalf("UpdateReports remove: %v", err)
	}
	if len(got.Reports) != 0 {
		t.Errorf("expected no reports, got %+v", got.Reports)
	}
	if got.Version != 3 {
		t.Errorf("expected version=3, got %d", got.Version)
	}
}

func TestStore_UpdateReports_FnErrorAborts(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	seedStudent(t, s, attendance.Student{ID: "A001", Name: "Ana", Reports: []attendance.Report{{At: 5, Reason: "x"}}})

	_, err := s.UpdateReports(ctx, "A001", func(rs []attendance.Report) ([]attendance.Report, error) {
		return attendance.EditReport(rs, 99, attendance.ReportPatch{})
	})
	if !errors.Is(err, attendance.ErrReportNotFound) {
		t.Fatalf("expected ErrReportNotFound, got %v", err)
	}

	got, err := s.Get(ctx, "A001")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.Reports) != 1 || got.Version != 1 {
		t.Errorf("expected untouched student, got %+v", got)
	}
}

// ── Occupancy: SQL reduction agrees with the in-memory tally ─────────────────

func TestStore_Occupancy_MatchesTally(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	students := []attendance.Student{
		{ID: "in1", Name: "a", Logs: []attendance.EntranceLog{{At: ms(7, 0), Accepted: true}}},
		{ID: "in2", Name: "b", Logs: []attendance.EntranceLog{
			{At: ms(7, 0), Accepted: true},
			{At: ms(8, 0), Exit: true, Accepted: true},
			{At: ms(9, 0), Accepted: true},
			{At: ms(9, 5), Exit: true, Accepted: false},
		}},
		{ID: "out", Name: "c", Logs: []attendance.EntranceLog{
			{At: ms(7, 0), Accepted: true},
			{At: ms(12, 0), Exit: true, Accepted: true},
		}},
		{ID: "tie", Name: "d", Logs: []attendance.EntranceLog{
			{At: ms(10, 0), Accepted: true},
			{At: ms(10, 0), Exit: true, Accepted: true},
		}},
		{ID: "yesterday", Name: "e", Logs: []attendance.EntranceLog{{At: ms(-3, 0), Accepted: true}}},
		{ID: "none", Name: "f"},
	}
	for _, st := range students {
		seedStudent(t, s, st)
	}

	w := attendance.DayWindow(day.Add(13*time.Hour), time.UTC)
	want := attendance.Tally(students, w)

	got, err := s.Occupancy(ctx, w)
	if err != nil {
		t.Fatalf("Occupancy: %v", err)
	}
	if got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}
	if got.Inside != 2 || got.Outside != 2 || got.LoginsToday != 5 {
		t.Errorf("unexpected occupancy %+v", got)
	}

	inside, err := s.ListInside(ctx, w)
	if err != nil {
		t.Fatalf("ListInside: %v", err)
	}
	if len(inside) != 2 || inside[0].ID != "in1" || inside[1].ID != "in2" {
		t.Errorf("unexpected inside list: %+v", inside)
	}
	if len(inside[1].Logs) != 4 {
		t.Errorf("expected full records, got %d logs", len(inside[1].Logs))
	}
}

func TestStore_Occupancy_Empty(t *testing.T) {
	s, _ := newTestStore(t)
	got, err := s.Occupancy(context.Background(), attendance.DayWindow(day, time.UTC))
	if err != nil {
		t.Fatalf("Occupancy: %v", err)
	}
	if got != (attendance.Occupancy{}) {
		t.Errorf("expected zero occupancy, got %+v", got)
	}
}

// ── Foreign keys ─────────────────────────────────────────────────────────────

func TestStore_LogsRequireStudent(t *testing.T) {
	_, conn := newTestStore(t)
	_, err := conn.ExecContext(context.Background(), `
INSERT INTO entrance_logs(student_id, at_ms, is_exit, accepted) VALUES ('ghost', 1, 0, 1);`)
	if err == nil {
		t.Fatal("expected foreign key violation")
	}
}
