package service_test

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/prepa3/turnstile/internal/turnstile/attendance"
	"github.com/prepa3/turnstile/internal/turnstile/broadcast"
	"github.com/prepa3/turnstile/internal/turnstile/service"
	"github.com/prepa3/turnstile/internal/turnstile/store"
	"github.com/prepa3/turnstile/internal/turnstile/store/memory"
)

// cst is a fixed campus zone so day boundaries do not depend on the host.
var cst = time.FixedZone("CST", -6*60*60)

func silentLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// fakeClock is a settable time source.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock(t time.Time) *fakeClock { return &fakeClock{t: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

// newTestAttendance wires an AttendanceService over an in-memory store and
// a recording broadcaster.
func newTestAttendance(t *testing.T, s store.Store, clock *fakeClock) (*service.AttendanceService, *broadcast.Recorder) {
	t.Helper()
	rec := &broadcast.Recorder{}
	svc := service.NewAttendanceService(s, rec, service.AttendanceConfig{
		Location: cst,
		Now:      clock.Now,
	}, silentLogger())
	return svc, rec
}

func seed(t *testing.T, s store.StudentStore, students ...attendance.Student) {
	t.Helper()
	for _, st := range students {
		if err := s.Create(context.Background(), st); err != nil {
			t.Fatalf("seed %s: %v", st.ID, err)
		}
	}
}

// conflictingStore fails the first n appends with ErrConflict.
type conflictingStore struct {
	*memory.Store
	mu        sync.Mutex
	remaining int
	appends   int
}

func (s *conflictingStore) AppendLog(ctx context.Context, id string, v int64, e attendance.EntranceLog) (attendance.Student, error) {
	s.mu.Lock()
	s.appends++
	if s.remaining > 0 {
		s.remaining--
		s.mu.Unlock()
		return attendance.Student{}, store.ErrConflict
	}
	s.mu.Unlock()
	return s.Store.AppendLog(ctx, id, v, e)
}

var errDBDown = errors.New("database is down")

// brokenStore fails every read with errDBDown.
type brokenStore struct {
	*memory.Store
}

func (brokenStore) Get(context.Context, string) (attendance.Student, error) {
	return attendance.Student{}, errDBDown
}

func (brokenStore) Occupancy(context.Context, attendance.Window) (attendance.Occupancy, error) {
	return attendance.Occupancy{}, errDBDown
}
