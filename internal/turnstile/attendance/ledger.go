package attendance

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrReportNotFound = errors.New("report not found")

// AddReport appends r.  A zero At is stamped with now so every report has
// a usable key.
func AddReport(reports []Report, r Report, now time.Time) []Report {
	if r.At == 0 {
		r.At = now.UnixMilli()
	}
	r.Reason = strings.TrimSpace(r.Reason)
	r.ReportedBy = strings.TrimSpace(r.ReportedBy)

	out := make([]Report, 0, len(reports)+1)
	out = append(out, reports...)
	return append(out, r)
}

// RemoveReport drops every report keyed by at.  Removing an unknown key is
// a no-op.
func RemoveReport(reports []Report, at int64) []Report {
	out := make([]Report, 0, len(reports))
	for _, r := range reports {
		if r.At != at {
			out = append(out, r)
		}
	}
	return out
}

// EditReport applies p to the first report keyed by at.
func EditReport(reports []Report, at int64, p ReportPatch) ([]Report, error) {
	idx := -1
	for i, r := range reports {
		if r.At == at {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("edit report at=%d: %w", at, ErrReportNotFound)
	}

	out := append([]Report(nil), reports...)
	r := out[idx]
	if p.Reason != nil {
		r.Reason = strings.TrimSpace(*p.Reason)
	}
	if p.ReportedBy != nil {
		r.ReportedBy = strings.TrimSpace(*p.ReportedBy)
	}
	if p.DueDate.Set {
		r.DueDate = p.DueDate.Value
	}
	if p.Suspended != nil {
		r.Suspended = *p.Suspended
	}
	out[idx] = r
	return out, nil
}
