package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/prepa3/turnstile/internal/turnstile/attendance"
	"github.com/prepa3/turnstile/internal/turnstile/store"
)

// Store keeps student records in process memory.  It is intended for tests
// and dev environments; records handed out are deep copies.
type Store struct {
	mu    sync.RWMutex
	data  map[string]*attendance.Student
	order []string // insertion order
}

func New() *Store {
	return &Store{
		data: make(map[string]*attendance.Student),
	}
}

func (s *Store) Create(_ context.Context, st attendance.Student) error {
	id := strings.TrimSpace(st.ID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data[id]; ok {
		return store.ErrAlreadyExists
	}
	rec := st.Clone()
	rec.ID = id
	rec.Version = 1
	if rec.Logs == nil {
		rec.Logs = []attendance.EntranceLog{}
	}
	if rec.Reports == nil {
		rec.Reports = []attendance.Report{}
	}
	s.data[id] = &rec
	s.order = append(s.order, id)
	return nil
}

func (s *Store) Get(_ context.Context, id string) (attendance.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.data[id]
	if !ok {
		return attendance.Student{}, store.ErrNotFound
	}
	return rec.Clone(), nil
}

func (s *Store) List(_ context.Context, f store.StudentFilter) ([]attendance.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]attendance.Student, 0, len(s.order))
	for _, id := range s.order {
		rec := s.data[id]
		if f.Match(*rec) {
			out = append(out, rec.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) Count(_ context.Context, f store.StudentFilter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, rec := range s.data {
		if f.Match(*rec) {
			n++
		}
	}
	return n, nil
}

func (s *Store) AppendLog(_ context.Context, id string, expectedVersion int64, entry attendance.EntranceLog) (attendance.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.data[id]
	if !ok {
		return attendance.Student{}, store.ErrNotFound
	}
	if rec.Version != expectedVersion {
		return attendance.Student{}, store.ErrConflict
	}
	rec.Logs = append(rec.Logs, entry)
	rec.Version++
	return rec.Clone(), nil
}

func (s *Store) ClearLogs(_ context.Context, id string) (attendance.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.data[id]
	if !ok {
		return attendance.Student{}, store.ErrNotFound
	}
	rec.Logs = []attendance.EntranceLog{}
	rec.Version++
	return rec.Clone(), nil
}

func (s *Store) ClearAllLogs(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var cleaned int64
	for _, rec := range s.data {
		if len(rec.Logs) == 0 {
			continue
		}
		rec.Logs = []attendance.EntranceLog{}
		rec.Version++
		cleaned++
	}
	return cleaned, nil
}

func (s *Store) UpdateReports(_ context.Context, id string, fn store.ReportsFn) (attendance.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.data[id]
	if !ok {
		return attendance.Student{}, store.ErrNotFound
	}
	next, err := fn(append([]attendance.Report(nil), rec.Reports...))
	if err != nil {
		return attendance.Student{}, err
	}
	if next == nil {
		next = []attendance.Report{}
	}
	rec.Reports = next
	rec.Version++
	return rec.Clone(), nil
}

func (s *Store) Occupancy(_ context.Context, w attendance.Window) (attendance.Occupancy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return attendance.Tally(s.snapshotLocked(), w), nil
}

func (s *Store) ListInside(_ context.Context, w attendance.Window) ([]attendance.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inside := attendance.FilterInside(s.snapshotLocked(), w)
	for i := range inside {
		inside[i] = inside[i].Clone()
	}
	sort.SliceStable(inside, func(i, j int) bool { return inside[i].ID < inside[j].ID })
	return inside, nil
}

// snapshotLocked returns shallow copies; callers must hold mu and must not
// retain the slices past the lock.
func (s *Store) snapshotLocked() []attendance.Student {
	out := make([]attendance.Student, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.data[id])
	}
	return out
}
