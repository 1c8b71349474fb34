package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/prepa3/turnstile/internal/turnstile/attendance"
	"github.com/prepa3/turnstile/internal/turnstile/store"
)

// UpdateReports rewrites the student's whole report collection inside one
// transaction.
func (s *Store) UpdateReports(ctx context.Context, id string, fn store.ReportsFn) (attendance.Student, error) {
	var out attendance.Student
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		current, err := loadStudent(ctx, tx, id)
		if err != nil {
			return err
		}

		next, err := fn(current.Reports)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM reports WHERE student_id = ?;`, id); err != nil {
			return fmt.Errorf("UpdateReports delete: %w", err)
		}
		if err := insertReports(ctx, tx, id, next); err != nil {
			return err
		}
		if err := bumpVersion(ctx, tx, id, &current.Version); err != nil {
			return err
		}

		st, err := loadStudent(ctx, tx, id)
		if err != nil {
			return err
		}
		out = st
		return nil
	})
	return out, err
}

func insertReports(ctx context.Context, tx *sql.Tx, id string, reports []attendance.Report) error {
	for _, r := range reports {
		var due any
		if !r.DueDate.IsZero() {
			due = string(r.DueDate)
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO reports(student_id, at_ms, reason, reported_by, due_date, suspended)
VALUES (?, ?, ?, ?, ?, ?);
`, id, r.At, r.Reason, r.ReportedBy, due, boolInt(r.Suspended)); err != nil {
			return fmt.Errorf("insert report at=%d: %w", r.At, err)
		}
	}
	return nil
}

func loadReports(ctx context.Context, q querier, id string) ([]attendance.Report, error) {
	rows, err := q.QueryContext(ctx, `
SELECT at_ms, reason, reported_by, due_date, suspended
FROM reports
WHERE student_id = ?
ORDER BY report_id;
`, id)
	if err != nil {
		return nil, fmt.Errorf("loadReports %s: %w", id, err)
	}
	defer rows.Close()

	out := []attendance.Report{}
	for rows.Next() {
		var (
			r         attendance.Report
			due       sql.NullString
			suspended int
		)
		if err := rows.Scan(&r.At, &r.Reason, &r.ReportedBy, &due, &suspended); err != nil {
			return nil, fmt.Errorf("loadReports scan: %w", err)
		}
		if due.Valid {
			r.DueDate = attendance.DueDate(due.String)
		}
		r.Suspended = suspended == 1
		out = append(out, r)
	}
	return out, rows.Err()
}
