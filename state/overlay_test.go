package state_test

import (
	"testing"

	"otcswap/state"
	"otcswap/storage"
)

func TestOverlayCommitFlushesWrites(t *testing.T) {
	base := storage.NewMemDB()
	t.Cleanup(base.Close)
	overlay := state.NewOverlay(base)

	if err := overlay.Put([]byte("k1"), []byte("v1")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := overlay.Get([]byte("k1"))
	if err != nil || string(got) != "v1" {
		t.Fatalf("overlay read-your-write: %q err=%v", got, err)
	}
	if got, _ := base.Get([]byte("k1")); got != nil {
		t.Fatalf("base must not see uncommitted writes, got %q", got)
	}

	if err := overlay.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	got, _ = base.Get([]byte("k1"))
	if string(got) != "v1" {
		t.Fatalf("base after commit: %q", got)
	}
}

func TestOverlayDiscardIsFree(t *testing.T) {
	base := storage.NewMemDB()
	t.Cleanup(base.Close)
	if err := base.Put([]byte("k1"), []byte("base")); err != nil {
		t.Fatalf("seed base: %v", err)
	}

	overlay := state.NewOverlay(base)
	if err := overlay.Put([]byte("k1"), []byte("staged")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := overlay.Delete([]byte("k1")); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	// Dropping the overlay without committing leaves the base untouched.
	got, _ := base.Get([]byte("k1"))
	if string(got) != "base" {
		t.Fatalf("base changed without commit: %q", got)
	}
}

func TestOverlayDeleteShadowsBase(t *testing.T) {
	base := storage.NewMemDB()
	t.Cleanup(base.Close)
	if err := base.Put([]byte("k1"), []byte("base")); err != nil {
		t.Fatalf("seed base: %v", err)
	}
	overlay := state.NewOverlay(base)
	if err := overlay.Delete([]byte("k1")); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got, _ := overlay.Get([]byte("k1")); got != nil {
		t.Fatalf("deleted key must read as absent, got %q", got)
	}
	if err := overlay.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if got, _ := base.Get([]byte("k1")); got != nil {
		t.Fatalf("base must drop the key after commit, got %q", got)
	}
}

func TestOverlayIterateMerges(t *testing.T) {
	base := storage.NewMemDB()
	t.Cleanup(base.Close)
	seed := map[string]string{
		"p/a": "base-a",
		"p/c": "base-c",
		"p/e": "base-e",
		"q/x": "other",
	}
	for k, v := range seed {
		if err := base.Put([]byte(k), []byte(v)); err != nil {
			t.Fatalf("seed %s: %v", k, err)
		}
	}

	overlay := state.NewOverlay(base)
	if err := overlay.Put([]byte("p/b"), []byte("staged-b")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := overlay.Put([]byte("p/c"), []byte("staged-c")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := overlay.Delete([]byte("p/e")); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	var keys, values []string
	err := overlay.Iterate([]byte("p/"), nil, func(key, value []byte) bool {
		keys = append(keys, string(key))
		values = append(values, string(value))
		return true
	})
	if err != nil {
		t.Fatalf("Iterate: %v", err)
	}
	wantKeys := []string{"p/a", "p/b", "p/c"}
	wantValues := []string{"base-a", "staged-b", "staged-c"}
	if len(keys) != len(wantKeys) {
		t.Fatalf("unexpected keys %v", keys)
	}
	for i := range wantKeys {
		if keys[i] != wantKeys[i] || values[i] != wantValues[i] {
			t.Fatalf("entry %d: got %s=%s, want %s=%s", i, keys[i], values[i], wantKeys[i], wantValues[i])
		}
	}
}

func TestOverlayIterateStartAndStop(t *testing.T) {
	base := storage.NewMemDB()
	t.Cleanup(base.Close)
	if err := base.Put([]byte("p/a"), []byte("1")); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := base.Put([]byte("p/c"), []byte("3")); err != nil {
		t.Fatalf("seed: %v", err)
	}
	overlay := state.NewOverlay(base)
	if err := overlay.Put([]byte("p/b"), []byte("2")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := overlay.Put([]byte("p/d"), []byte("4")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	var keys []string
	err := overlay.Iterate([]byte("p/"), []byte("p/a"), func(key, _ []byte) bool {
		keys = append(keys, string(key))
		return len(keys) < 2
	})
	if err != nil {
		t.Fatalf("Iterate: %v", err)
	}
	if len(keys) != 2 || keys[0] != "p/b" || keys[1] != "p/c" {
		t.Fatalf("expected [p/b p/c] strictly after start, got %v", keys)
	}
}
