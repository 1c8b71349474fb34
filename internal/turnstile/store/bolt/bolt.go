// Package bolt stores each student as one JSON document in a bbolt bucket,
// keyed by student ID.  Every write is a single bbolt Update transaction,
// so the read-check-write in AppendLog is atomic.
package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.etcd.io/bbolt"

	"github.com/prepa3/turnstile/internal/turnstile/attendance"
	"github.com/prepa3/turnstile/internal/turnstile/store"
)

var studentsBucket = []byte("Students")

type Store struct {
	db *bbolt.DB
}

// Open opens (or creates) the database file at path and ensures the
// students bucket exists.
func Open(path string) (*Store, error) {
	if path == "" {
		path = "./data/turnstile.bolt"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir bolt dir: %w", err)
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 3 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(studentsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create bucket: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Create(ctx context.Context, st attendance.Student) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rec := st.Clone()
	rec.ID = strings.TrimSpace(rec.ID)
	rec.Version = 1
	if rec.Logs == nil {
		rec.Logs = []attendance.EntranceLog{}
	}
	if rec.Reports == nil {
		rec.Reports = []attendance.Report{}
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(studentsBucket)
		if b.Get([]byte(rec.ID)) != nil {
			return store.ErrAlreadyExists
		}
		return put(b, rec)
	})
}

func (s *Store) Get(ctx context.Context, id string) (attendance.Student, error) {
	if err := ctx.Err(); err != nil {
		return attendance.Student{}, err
	}
	var out attendance.Student
	err := s.db.View(func(tx *bbolt.Tx) error {
		st, err := get(tx.Bucket(studentsBucket), id)
		out = st
		return err
	})
	return out, err
}

// List walks the bucket in key order, which is student ID order.
func (s *Store) List(ctx context.Context, f store.StudentFilter) ([]attendance.Student, error) {
	out := []attendance.Student{}
	err := s.each(ctx, func(st attendance.Student) {
		if f.Match(st) {
			out = append(out, st)
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) Count(ctx context.Context, f store.StudentFilter) (int, error) {
	n := 0
	err := s.each(ctx, func(st attendance.Student) {
		if f.Match(st) {
			n++
		}
	})
	return n, err
}

func (s *Store) AppendLog(ctx context.Context, id string, expectedVersion int64, entry attendance.EntranceLog) (attendance.Student, error) {
	return s.mutate(ctx, id, func(st *attendance.Student) error {
		if st.Version != expectedVersion {
			return store.ErrConflict
		}
		st.Logs = append(st.Logs, entry)
		return nil
	})
}

func (s *Store) ClearLogs(ctx context.Context, id string) (attendance.Student, error) {
	return s.mutate(ctx, id, func(st *attendance.Student) error {
		st.Logs = []attendance.EntranceLog{}
		return nil
	})
}

func (s *Store) ClearAllLogs(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var cleaned int64
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(studentsBucket)

		// Collect first: bbolt forbids Put while iterating with ForEach.
		var dirty []attendance.Student
		err := b.ForEach(func(_, v []byte) error {
			var st attendance.Student
			if err := json.Unmarshal(v, &st); err != nil {
				return fmt.Errorf("decode student: %w", err)
			}
			if len(st.Logs) > 0 {
				dirty = append(dirty, st)
			}
			return nil
		})
		if err != nil {
			return err
		}

		for _, st := range dirty {
			st.Logs = []attendance.EntranceLog{}
			st.Version++
			if err := put(b, st); err != nil {
				return err
			}
		}
		cleaned = int64(len(dirty))
		return nil
	})
	return cleaned, err
}

func (s *Store) UpdateReports(ctx context.Context, id string, fn store.ReportsFn) (attendance.Student, error) {
	return s.mutate(ctx, id, func(st *attendance.Student) error {
		next, err := fn(st.Reports)
		if err != nil {
			return err
		}
		if next == nil {
			next = []attendance.Report{}
		}
		st.Reports = next
		return nil
	})
}

func (s *Store) Occupancy(ctx context.Context, w attendance.Window) (attendance.Occupancy, error) {
	var all []attendance.Student
	if err := s.each(ctx, func(st attendance.Student) { all = append(all, st) }); err != nil {
		return attendance.Occupancy{}, err
	}
	return attendance.Tally(all, w), nil
}

func (s *Store) ListInside(ctx context.Context, w attendance.Window) ([]attendance.Student, error) {
	out := []attendance.Student{}
	err := s.each(ctx, func(st attendance.Student) {
		if attendance.PresenceIn(st.Logs, w) == attendance.Inside {
			out = append(out, st)
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// mutate loads the document, applies fn, bumps the version and writes it
// back in one Update transaction.  An error from fn discards the change.
func (s *Store) mutate(ctx context.Context, id string, fn func(st *attendance.Student) error) (attendance.Student, error) {
	if err := ctx.Err(); err != nil {
		return attendance.Student{}, err
	}
	var out attendance.Student
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(studentsBucket)
		st, err := get(b, id)
		if err != nil {
			return err
		}
		if err := fn(&st); err != nil {
			return err
		}
		st.Version++
		if err := put(b, st); err != nil {
			return err
		}
		out = st
		return nil
	})
	return out, err
}

func (s *Store) each(ctx context.Context, fn func(st attendance.Student)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(studentsBucket).ForEach(func(_, v []byte) error {
			var st attendance.Student
			if err := json.Unmarshal(v, &st); err != nil {
				return fmt.Errorf("decode student: %w", err)
			}
			fn(st)
			return nil
		})
	})
}

func get(b *bbolt.Bucket, id string) (attendance.Student, error) {
	v := b.Get([]byte(id))
	if v == nil {
		return attendance.Student{}, store.ErrNotFound
	}
	var st attendance.Student
	if err := json.Unmarshal(v, &st); err != nil {
		return attendance.Student{}, fmt.Errorf("decode student %s: %w", id, err)
	}
	return st, nil
}

func put(b *bbolt.Bucket, st attendance.Student) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode student %s: %w", st.ID, err)
	}
	return b.Put([]byte(st.ID), data)
}
