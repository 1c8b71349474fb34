package types

import (
	"strings"

	"github.com/prepa3/turnstile/internal/turnstile/attendance"
)

type AddReportRequest struct {
	Reason     string             `json:"reason" validate:"required"`
	ReportedBy string             `json:"reported_by" validate:"required"`
	DueDate    attendance.DueDate `json:"due_date"`
	Suspended  bool               `json:"suspended"`
	// At is optional; zero means "now".
	At int64 `json:"at,omitempty" validate:"gte=0"`
}

func (r AddReportRequest) Trim() AddReportRequest {
	r.Reason = strings.TrimSpace(r.Reason)
	r.ReportedBy = strings.TrimSpace(r.ReportedBy)
	r.DueDate = attendance.DueDate(strings.TrimSpace(string(r.DueDate)))
	return r
}

func (r AddReportRequest) Report() attendance.Report {
	return attendance.Report{
		Reason:     r.Reason,
		At:         r.At,
		ReportedBy: r.ReportedBy,
		DueDate:    r.DueDate,
		Suspended:  r.Suspended,
	}
}
