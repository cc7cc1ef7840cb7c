package storage

import (
	"path/filepath"
	"testing"
)

func runDatabaseSuite(t *testing.T, db Database) {
	t.Helper()

	if got, err := db.Get([]byte("missing")); err != nil || got != nil {
		t.Fatalf("absent key must read as nil without error, got %q err=%v", got, err)
	}

	pairs := map[string]string{
		"p/a": "1",
		"p/b": "2",
		"p/c": "3",
		"q/z": "other",
	}
	for k, v := range pairs {
		if err := db.Put([]byte(k), []byte(v)); err != nil {
			t.Fatalf("Put %s: %v", k, err)
		}
	}
	got, err := db.Get([]byte("p/b"))
	if err != nil || string(got) != "2" {
		t.Fatalf("Get p/b: %q err=%v", got, err)
	}

	var keys []string
	if err := db.Iterate([]byte("p/"), nil, func(key, _ []byte) bool {
		keys = append(keys, string(key))
		return true
	}); err != nil {
		t.Fatalf("Iterate: %v", err)
	}
	if len(keys) != 3 || keys[0] != "p/a" || keys[2] != "p/c" {
		t.Fatalf("expected ascending prefix walk, got %v", keys)
	}

	// Start is exclusive.
	keys = keys[:0]
	if err := db.Iterate([]byte("p/"), []byte("p/a"), func(key, _ []byte) bool {
		keys = append(keys, string(key))
		return true
	}); err != nil {
		t.Fatalf("Iterate after start: %v", err)
	}
	if len(keys) != 2 || keys[0] != "p/b" {
		t.Fatalf("expected walk strictly after p/a, got %v", keys)
	}

	// fn returning false stops the walk.
	keys = keys[:0]
	if err := db.Iterate([]byte("p/"), nil, func(key, _ []byte) bool {
		keys = append(keys, string(key))
		return false
	}); err != nil {
		t.Fatalf("Iterate early stop: %v", err)
	}
	if len(keys) != 1 {
		t.Fatalf("expected single visited key, got %v", keys)
	}

	if err := db.Delete([]byte("p/b")); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got, _ := db.Get([]byte("p/b")); got != nil {
		t.Fatalf("deleted key must read as nil, got %q", got)
	}
}

func TestMemDB(t *testing.T) {
	db := NewMemDB()
	t.Cleanup(db.Close)
	runDatabaseSuite(t, db)
}

func TestLevelDB(t *testing.T) {
	db, err := NewLevelDB(filepath.Join(t.TempDir(), "db"))
	if err != nil {
		t.Fatalf("NewLevelDB: %v", err)
	}
	t.Cleanup(db.Close)
	runDatabaseSuite(t, db)
}

func TestMemDBCopiesValues(t *testing.T) {
	db := NewMemDB()
	t.Cleanup(db.Close)
	value := []byte("original")
	if err := db.Put([]byte("k"), value); err != nil {
		t.Fatalf("Put: %v", err)
	}
	value[0] = 'X'
	got, _ := db.Get([]byte("k"))
	if string(got) != "original" {
		t.Fatalf("stored value must not alias the caller's slice, got %q", got)
	}
	got[0] = 'Y'
	again, _ := db.Get([]byte("k"))
	if string(again) != "original" {
		t.Fatalf("returned value must not alias the stored slice, got %q", again)
	}
}
