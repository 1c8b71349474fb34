package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/prepa3/turnstile/internal/turnstile/attendance"
	"github.com/prepa3/turnstile/internal/turnstile/store"
)

var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	ErrNotFound       = store.ErrNotFound
	ErrAlreadyExists  = store.ErrAlreadyExists
	ErrConflict       = store.ErrConflict
	ErrReportNotFound = attendance.ErrReportNotFound
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// upstream passes domain errors through untouched and tags everything else
// as an unavailable collaborator.
func upstream(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrAlreadyExists),
		errors.Is(err, ErrConflict),
		errors.Is(err, ErrReportNotFound),
		errors.Is(err, ErrInvalidInput),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w", op, err)
	default:
		return fmt.Errorf("%s: %w: %w", op, ErrUpstreamUnavailable, err)
	}
}
