package attendance

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// DueDate keeps a report's due date in the shape it arrived in: empty for
// "indefinite", a bare calendar date, an epoch-millisecond number, or an
// ISO-like timestamp.  Normalization happens at evaluation time so legacy
// values keep round-tripping unchanged.
type DueDate string

var (
	dateOnlyRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	digitsRe   = regexp.MustCompile(`^-?\d+$`)
)

// DueDateFromMillis builds a numeric due date.
func DueDateFromMillis(ms int64) DueDate {
	return DueDate(strconv.FormatInt(ms, 10))
}

func (d DueDate) IsZero() bool { return strings.TrimSpace(string(d)) == "" }

// IsDateOnly reports whether the value is a calendar date with no time part.
func (d DueDate) IsDateOnly() bool {
	return dateOnlyRe.MatchString(strings.TrimSpace(string(d)))
}

func (d DueDate) isNumeric() bool {
	return digitsRe.MatchString(strings.TrimSpace(string(d)))
}

// MarshalJSON writes numbers as JSON numbers, everything else as a string,
// and the empty value as null.
func (d DueDate) MarshalJSON() ([]byte, error) {
	s := strings.TrimSpace(string(d))
	switch {
	case s == "":
		return []byte("null"), nil
	case d.isNumeric():
		return []byte(s), nil
	default:
		return json.Marshal(s)
	}
}

func (d *DueDate) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*d = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*d = DueDate(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("due_date: expected string, number or null: %w", err)
	}
	// Integral floats ("1.7e12") collapse to their integer spelling.
	if i, err := n.Int64(); err == nil {
		*d = DueDateFromMillis(i)
		return nil
	}
	f, err := n.Float64()
	if err != nil {
		return fmt.Errorf("due_date: %w", err)
	}
	*d = DueDateFromMillis(int64(f))
	return nil
}

// OptionalDueDate distinguishes "field absent" from "explicitly null" in a
// patch body.  encoding/json calls UnmarshalJSON for an explicit null on a
// non-pointer field, so Set is true for both a value and a null.
type OptionalDueDate struct {
	Set   bool
	Value DueDate
}

// SetDueDate is a convenience for building patches in code.
func SetDueDate(d DueDate) OptionalDueDate {
	return OptionalDueDate{Set: true, Value: d}
}

func (o OptionalDueDate) MarshalJSON() ([]byte, error) {
	return o.Value.MarshalJSON()
}

func (o *OptionalDueDate) UnmarshalJSON(b []byte) error {
	o.Set = true
	return o.Value.UnmarshalJSON(b)
}
