package kvstore

import (
	"context"
	"errors"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

func newTestStore(t *testing.T) *Sqlite {
	t.Helper()

	db, err := sqlx.Connect("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open in-memory sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	db.MustExec(`CREATE TABLE kv_store (
		key        TEXT PRIMARY KEY,
		value      BLOB NOT NULL,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`)

	return NewSqlite(db)
}

func TestSetGet(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if err := store.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}

	got, err := store.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got != "v" {
		t.Errorf("got %q, want %q", got, "v")
	}
}

func TestGetAbsent(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestSetOverwrites(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if err := store.Set(ctx, "k", "old"); err != nil {
		t.Fatal(err)
	}
	if err := store.Set(ctx, "k", "new"); err != nil {
		t.Fatal(err)
	}

	got, err := store.Get(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	if got != "new" {
		t.Errorf("got %q, want %q", got, "new")
	}
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if err := store.Set(ctx, "k", "v"); err != nil {
		t.Fatal(err)
	}
	if err := store.Remove(ctx, "k"); err != nil {
		t.Fatalf("Remove returned error: %v", err)
	}
	if _, err := store.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v after remove, want ErrNotFound", err)
	}

	// removing an absent key is not an error
	if err := store.Remove(ctx, "missing"); err != nil {
		t.Errorf("Remove of absent key returned error: %v", err)
	}
}

func TestHas(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	exists, err := store.Has(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	if exists {
		t.Error("absent key should not exist")
	}

	if err := store.Set(ctx, "k", "v"); err != nil {
		t.Fatal(err)
	}

	exists, err = store.Has(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	if !exists {
		t.Error("stored key should exist")
	}
}

func TestKeysSorted(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	for _, key := range []string{"charlie", "alpha", "bravo"} {
		if err := store.Set(ctx, key, "v"); err != nil {
			t.Fatal(err)
		}
	}

	keys, err := store.Keys(ctx)
	if err != nil {
		t.Fatalf("Keys returned error: %v", err)
	}

	want := []string{"alpha", "bravo", "charlie"}
	if len(keys) != len(want) {
		t.Fatalf("got %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("got %v, want %v", keys, want)
		}
	}
}
