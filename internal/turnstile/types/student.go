package types

import "strings"

// RegisterStudentRequest carries the roster fields for a new student.
type RegisterStudentRequest struct {
	ID           string `json:"id" validate:"required"`
	Name         string `json:"name" validate:"required"`
	Career       string `json:"career"`
	PrevSemester string `json:"prev_semester"`
	Semester     string `json:"semester"`
	Gender       string `json:"gender"`
	Age          string `json:"age"`
	Shift        string `json:"shift"`
	PrevGroup    string `json:"prev_group"`
	Group        string `json:"group"`
}

// Trim returns a copy with surrounding whitespace removed from every field.
func (r RegisterStudentRequest) Trim() RegisterStudentRequest {
	return RegisterStudentRequest{
		ID:           strings.TrimSpace(r.ID),
		Name:         strings.TrimSpace(r.Name),
		Career:       strings.TrimSpace(r.Career),
		PrevSemester: strings.TrimSpace(r.PrevSemester),
		Semester:     strings.TrimSpace(r.Semester),
		Gender:       strings.TrimSpace(r.Gender),
		Age:          strings.TrimSpace(r.Age),
		Shift:        strings.TrimSpace(r.Shift),
		PrevGroup:    strings.TrimSpace(r.PrevGroup),
		Group:        strings.TrimSpace(r.Group),
	}
}

type ClearAllLogsResponse struct {
	Cleaned int64 `json:"cleaned"`
}
