package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/prepa3/turnstile/internal/turnstile/attendance"
	"github.com/prepa3/turnstile/internal/turnstile/store"
)

// AppendLog bumps the student's version conditioned on expectedVersion and
// inserts the entry in the same transaction.
func (s *Store) AppendLog(ctx context.Context, id string, expectedVersion int64, entry attendance.EntranceLog) (attendance.Student, error) {
	var out attendance.Student
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := bumpVersion(ctx, tx, id, &expectedVersion); err != nil {
			return err
		}
		if err := insertLog(ctx, tx, id, entry); err != nil {
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

func (s *Store) ClearLogs(ctx context.Context, id string) (attendance.Student, error) {
	var out attendance.Student
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := bumpVersion(ctx, tx, id, nil); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM entrance_logs WHERE student_id = ?;`, id); err != nil {
			return fmt.Errorf("ClearLogs delete: %w", err)
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

func (s *Store) ClearAllLogs(ctx context.Context) (int64, error) {
	var cleaned int64
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		nowMs := time.Now().UTC().UnixMilli()
		res, err := tx.ExecContext(ctx, `
UPDATE students
SET version = version + 1,
    updated_at_ms = ?
WHERE student_id IN (SELECT DISTINCT student_id FROM entrance_logs);
`, nowMs)
		if err != nil {
			return fmt.Errorf("ClearAllLogs bump versions: %w", err)
		}
		cleaned, _ = res.RowsAffected()

		if _, err := tx.ExecContext(ctx, `DELETE FROM entrance_logs;`); err != nil {
			return fmt.Errorf("ClearAllLogs delete: %w", err)
		}
		return nil
	})
	return cleaned, err
}

// bumpVersion increments the student's version.  With a non-nil expected
// version the update is conditional and a mismatch yields store.ErrConflict.
func bumpVersion(ctx context.Context, tx *sql.Tx, id string, expected *int64) error {
	nowMs := time.Now().UTC().UnixMilli()

	var (
		res sql.Result
		err error
	)
	if expected != nil {
		res, err = tx.ExecContext(ctx, `
UPDATE students
SET version = version + 1,
    updated_at_ms = ?
WHERE student_id = ? AND version = ?;
`, nowMs, id, *expected)
	} else {
		res, err = tx.ExecContext(ctx, `
UPDATE students
SET version = version + 1,
    updated_at_ms = ?
WHERE student_id = ?;
`, nowMs, id)
	}
	if err != nil {
		return fmt.Errorf("bump version %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}

	var one int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM students WHERE student_id = ?;`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return store.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("bump version lookup %s: %w", id, err)
	}
	return store.ErrConflict
}

func insertLog(ctx context.Context, tx *sql.Tx, id string, l attendance.EntranceLog) error {
	if _, err := tx.ExecContext(ctx, `
INSERT INTO entrance_logs(student_id, at_ms, is_exit, accepted, suspended)
VALUES (?, ?, ?, ?, ?);
`, id, l.At, boolInt(l.Exit), boolInt(l.Accepted), boolInt(l.Suspended)); err != nil {
		return fmt.Errorf("insert entrance log: %w", err)
	}
	return nil
}
