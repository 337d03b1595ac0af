package hashstore

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/hazyhaar/pagewatch/tracker/snapshot"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

// exercise runs the shared contract against any backend.
func exercise(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	fp, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("load empty: %v", err)
	}
	if !fp.IsZero() {
		t.Fatalf("empty store returned %q", fp)
	}

	first := snapshot.Of([]byte("old"))
	if err := s.Save(ctx, first); err != nil {
		t.Fatalf("save: %v", err)
	}
	if got, _ := s.Load(ctx); got != first {
		t.Fatalf("load after save: got %q, want %q", got, first)
	}

	second := snapshot.Of([]byte("new"))
	if err := s.Save(ctx, second); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if got, _ := s.Load(ctx); got != second {
		t.Fatalf("load after overwrite: got %q, want %q", got, second)
	}
}

func TestFile_Contract(t *testing.T) {
	exercise(t, NewFile(filepath.Join(t.TempDir(), "state", "website_hash.txt")))
}

func TestFile_SingleValueOnDisk(t *testing.T) {
	// WHAT: The file holds exactly the last digest, nothing appended.
	path := filepath.Join(t.TempDir(), "website_hash.txt")
	s := NewFile(path)
	ctx := context.Background()
	s.Save(ctx, snapshot.Of([]byte("a")))
	s.Save(ctx, snapshot.Of([]byte("b")))

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != string(snapshot.Of([]byte("b"))) {
		t.Fatalf("file content: %q", data)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Fatalf("expected only the state file, found %d entries", len(entries))
	}
}

func TestFile_TrimsWhitespace(t *testing.T) {
	// WHAT: A hand-edited file with a trailing newline still loads cleanly.
	path := filepath.Join(t.TempDir(), "website_hash.txt")
	want := snapshot.Of([]byte("x"))
	if err := os.WriteFile(path, []byte(string(want)+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := NewFile(path).Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestFile_ReadError(t *testing.T) {
	// A directory in place of the file is a real storage failure.
	dir := t.TempDir()
	if _, err := NewFile(dir).Load(context.Background()); err == nil {
		t.Fatal("expected error reading a directory")
	}
}

func TestSQLite_Contract(t *testing.T) {
	s, err := NewSQLite(testDB(t))
	if err != nil {
		t.Fatal(err)
	}
	exercise(t, s)
}

func TestSQLite_SingleRow(t *testing.T) {
	db := testDB(t)
	s, err := NewSQLite(db)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	for _, v := range []string{"a", "b", "c"} {
		if err := s.Save(ctx, snapshot.Of([]byte(v))); err != nil {
			t.Fatal(err)
		}
	}
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM tracker_state").Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected 1 row, got %d", n)
	}
}

func TestOpenSQLite_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db", "pagewatch.db")
	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	want := snapshot.Of([]byte("persisted"))
	if err := s.Save(context.Background(), want); err != nil {
		t.Fatal(err)
	}
	s.Close()

	// Reopen: value survives the process boundary.
	s2, err := OpenSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()
	got, err := s2.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestOpen_Drivers(t *testing.T) {
	dir := t.TempDir()
	if s, err := Open("file", filepath.Join(dir, "h.txt")); err != nil {
		t.Fatal(err)
	} else if _, ok := s.(*File); !ok {
		t.Fatalf("file driver returned %T", s)
	}
	s, err := Open("sqlite", filepath.Join(dir, "h.db"))
	if err != nil {
		t.Fatal(err)
	}
	s.Close()
	if _, err := Open("redis", "x"); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
