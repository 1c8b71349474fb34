package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	dbpkg "github.com/prepa3/turnstile/internal/db"
	"github.com/prepa3/turnstile/internal/turnstile/attendance"
	"github.com/prepa3/turnstile/internal/turnstile/store"
)

// Store persists students, their entrance logs and reports in SQLite.
// Reads go straight to the pool; every write runs on the single Worker.
type Store struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewStore(db *sql.DB, writer *dbpkg.Worker) *Store {
	return &Store{db: db, writer: writer}
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const studentColumns = `student_id, name, career, prev_semester, semester, gender, age,
  shift, prev_group, group_name, version`

func (s *Store) Create(ctx context.Context, st attendance.Student) error {
	id := strings.TrimSpace(st.ID)
	nowMs := time.Now().UTC().UnixMilli()

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
INSERT OR IGNORE INTO students(
  student_id, name, career, prev_semester, semester, gender, age,
  shift, prev_group, group_name, version, created_at_ms, updated_at_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?);
`, id, st.Name, st.Career, st.PrevSemester, st.Semester, st.Gender, st.Age,
			st.Shift, st.PrevGroup, st.Group, nowMs, nowMs)
		if err != nil {
			return fmt.Errorf("Create insert student: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return store.ErrAlreadyExists
		}

		for _, l := range st.Logs {
			if err := insertLog(ctx, tx, id, l); err != nil {
				return err
			}
		}
		return insertReports(ctx, tx, id, st.Reports)
	})
}

func (s *Store) Get(ctx context.Context, id string) (attendance.Student, error) {
	return loadStudent(ctx, s.db, id)
}

func (s *Store) List(ctx context.Context, f store.StudentFilter) ([]attendance.Student, error) {
	where, args := filterClause(f)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+studentColumns+` FROM students`+where+` ORDER BY student_id;`, args...)
	if err != nil {
		return nil, fmt.Errorf("List query: %w", err)
	}

	var out []attendance.Student
	for rows.Next() {
		st, err := scanStudent(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("List scan: %w", err)
		}
		out = append(out, st)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("List rows: %w", err)
	}

	// Children are loaded after the cursor is closed: the pool has a
	// single connection.
	for i := range out {
		if err := loadChildren(ctx, s.db, &out[i]); err != nil {
			return nil, err
		}
	}
	if out == nil {
		out = []attendance.Student{}
	}
	return out, nil
}

func (s *Store) Count(ctx context.Context, f store.StudentFilter) (int, error) {
	where, args := filterClause(f)
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM students`+where+`;`, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("Count query: %w", err)
	}
	return n, nil
}

func filterClause(f store.StudentFilter) (string, []any) {
	f = f.Normalize()
	var (
		conds []string
		args  []any
	)
	if f.Name != "" {
		conds = append(conds, "instr(lower(name), lower(?)) > 0")
		args = append(args, f.Name)
	}
	if f.ID != "" {
		conds = append(conds, "instr(lower(student_id), lower(?)) > 0")
		args = append(args, f.ID)
	}
	exact := []struct {
		col, val string
	}{
		{"group_name", f.Group},
		{"semester", f.Semester},
		{"career", f.Career},
		{"shift", f.Shift},
	}
	for _, e := range exact {
		if e.val != "" {
			conds = append(conds, e.col+" = ?")
			args = append(args, e.val)
		}
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStudent(r rowScanner) (attendance.Student, error) {
	var st attendance.Student
	err := r.Scan(&st.ID, &st.Name, &st.Career, &st.PrevSemester, &st.Semester,
		&st.Gender, &st.Age, &st.Shift, &st.PrevGroup, &st.Group, &st.Version)
	return st, err
}

// loadStudent reads one student with its logs (arrival order) and reports.
func loadStudent(ctx context.Context, q querier, id string) (attendance.Student, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+studentColumns+` FROM students WHERE student_id = ?;`, id)
	st, err := scanStudent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return attendance.Student{}, store.ErrNotFound
	}
	if err != nil {
		return attendance.Student{}, fmt.Errorf("loadStudent %s: %w", id, err)
	}
	if err := loadChildren(ctx, q, &st); err != nil {
		return attendance.Student{}, err
	}
	return st, nil
}

func loadChildren(ctx context.Context, q querier, st *attendance.Student) error {
	logs, err := loadLogs(ctx, q, st.ID)
	if err != nil {
		return err
	}
	reports, err := loadReports(ctx, q, st.ID)
	if err != nil {
		return err
	}
	st.Logs = logs
	st.Reports = reports
	return nil
}

func loadLogs(ctx context.Context, q querier, id string) ([]attendance.EntranceLog, error) {
	rows, err := q.QueryContext(ctx, `
SELECT at_ms, is_exit, accepted, suspended
FROM entrance_logs
WHERE student_id = ?
ORDER BY log_id;
`, id)
	if err != nil {
		return nil, fmt.Errorf("loadLogs %s: %w", id, err)
	}
	defer rows.Close()

	out := []attendance.EntranceLog{}
	for rows.Next() {
		var (
			l                          attendance.EntranceLog
			isExit, accepted, suspended int
		)
		if err := rows.Scan(&l.At, &isExit, &accepted, &suspended); err != nil {
			return nil, fmt.Errorf("loadLogs scan: %w", err)
		}
		l.Exit = isExit == 1
		l.Accepted = accepted == 1
		l.Suspended = suspended == 1
		out = append(out, l)
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
