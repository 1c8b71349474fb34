package sqlite

import (
	"context"
	"fmt"

	"github.com/prepa3/turnstile/internal/turnstile/attendance"
)

// lastAcceptedCTE ranks each student's accepted entries inside the window,
// newest first, breaking timestamp ties by arrival order.  It uses the
// idx_entrance_logs_accepted_time index for the range scan.
const lastAcceptedCTE = `
WITH ranked AS (
  SELECT student_id, is_exit,
         ROW_NUMBER() OVER (
           PARTITION BY student_id
           ORDER BY at_ms DESC, log_id DESC
         ) AS rn
  FROM entrance_logs
  WHERE accepted = 1 AND at_ms BETWEEN ? AND ?
)`

func (s *Store) Occupancy(ctx context.Context, w attendance.Window) (attendance.Occupancy, error) {
	var o attendance.Occupancy
	err := s.db.QueryRowContext(ctx, lastAcceptedCTE+`
SELECT
  COALESCE(SUM(CASE WHEN is_exit = 0 THEN 1 ELSE 0 END), 0),
  COALESCE(SUM(CASE WHEN is_exit = 1 THEN 1 ELSE 0 END), 0)
FROM ranked
WHERE rn = 1;
`, w.Start, w.End).Scan(&o.Inside, &o.Outside)
	if err != nil {
		return attendance.Occupancy{}, fmt.Errorf("Occupancy last-accepted: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
SELECT COUNT(*)
FROM entrance_logs
WHERE accepted = 1 AND is_exit = 0 AND at_ms BETWEEN ? AND ?;
`, w.Start, w.End).Scan(&o.LoginsToday)
	if err != nil {
		return attendance.Occupancy{}, fmt.Errorf("Occupancy logins: %w", err)
	}
	return o, nil
}

func (s *Store) ListInside(ctx context.Context, w attendance.Window) ([]attendance.Student, error) {
	rows, err := s.db.QueryContext(ctx, lastAcceptedCTE+`
SELECT student_id
FROM ranked
WHERE rn = 1 AND is_exit = 0
ORDER BY student_id;
`, w.Start, w.End)
	if err != nil {
		return nil, fmt.Errorf("ListInside query: %w", err)
	}

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("ListInside scan: %w", err)
		}
		ids = append(ids, id)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("ListInside rows: %w", err)
	}

	out := make([]attendance.Student, 0, len(ids))
	for _, id := range ids {
		st, err := loadStudent(ctx, s.db, id)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}
