package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

type SeedStudent struct {
	ID       string
	Name     string
	Semester string
	Group    string
}

type SeedDevOptions struct {
	// Students to pre-create.  Defaults to one demo student.
	Students []SeedStudent
}

var defaultSeed = []SeedStudent{
	{ID: "DEV0001", Name: "Estudiante Demo", Semester: "1", Group: "101"},
}

// SeedDev inserts demo students for local development.  Existing rows are
// left alone so a restart never wipes their logs.
func SeedDev(ctx context.Context, db *sql.DB, opt SeedDevOptions) error {
	students := opt.Students
	if len(students) == 0 {
		students = defaultSeed
	}
	now := time.Now().UTC().UnixMilli()

	for _, s := range students {
		id := strings.TrimSpace(s.ID)
		if id == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, `
INSERT OR IGNORE INTO students(
  student_id, name, semester, group_name, version, created_at_ms, updated_at_ms
) VALUES (?, ?, ?, ?, 1, ?, ?);
`, id, s.Name, s.Semester, s.Group, now, now); err != nil {
			return fmt.Errorf("seed student %s: %w", id, err)
		}
	}

	return nil
}
