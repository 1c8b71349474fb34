package sqlite_test

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/prepa3/turnstile/internal/db"
	"github.com/prepa3/turnstile/internal/turnstile/attendance"
	sqlitestore "github.com/prepa3/turnstile/internal/turnstile/store/sqlite"
)

// openTestDB returns an in-memory SQLite connection with the same PRAGMAs,
// pool settings and schema as production.  The connection is closed
// automatically when the test finishes.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	// Each test gets its own named in-memory database; the shared cache
	// keeps it alive as long as the pool holds a connection.
	name := "test_" + strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	conn, err := db.OpenDSN(context.Background(), db.MemoryDSN(name))
	if err != nil {
		t.Fatalf("openTestDB: %v", err)
	}

	t.Cleanup(func() { conn.Close() })
	return conn
}

// newTestWriter returns a db.Worker backed by conn.  The worker is closed
// automatically when the test finishes.
func newTestWriter(t *testing.T, conn *sql.DB) *db.Worker {
	t.Helper()

	w := db.NewWorker(conn)
	t.Cleanup(func() { w.Close() })
	return w
}

func newTestStore(t *testing.T) (*sqlitestore.Store, *sql.DB) {
	t.Helper()
	conn := openTestDB(t)
	return sqlitestore.NewStore(conn, newTestWriter(t, conn)), conn
}

// seedStudent creates a student or fails the test.
func seedStudent(t *testing.T, s *sqlitestore.Store, st attendance.Student) {
	t.Helper()
	if err := s.Create(context.Background(), st); err != nil {
		t.Fatalf("seedStudent(%s): %v", st.ID, err)
	}
}
