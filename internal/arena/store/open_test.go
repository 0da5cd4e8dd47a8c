package store

import (
	"context"
	"path/filepath"
	"testing"
)

func TestOpenSQLiteFilePersists(t *testing.T) {
	ctx := context.Background()
	opts := Options{Driver: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "arena", "arena.db")}

	st, closeFn, err := Open(ctx, opts)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	m := createMatch(t, st)
	if err := closeFn(); err != nil {
		t.Fatalf("close: %v", err)
	}

	st, closeFn, err = Open(ctx, opts)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer closeFn()
	got, err := st.GetMatch(ctx, m.ID)
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if got.Topic != m.Topic || got.Participant1ID != "A" {
		t.Fatalf("got = %+v", got)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, _, err := Open(context.Background(), Options{Driver: "mongo"}); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}
