package snapshot_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"

	"github.com/dshills/isoflux/internal/snapshot"
)

func TestFileStoreSaveLoad(t *testing.T) {
	fs, err := snapshot.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	ctx := context.Background()

	s := snapshot.New(json.RawMessage(`{"stores":{"todo":{"items":["a"]}}}`))
	_ = s.SetPlugin("X", map[string]int{"n": 7})
	s.Reserved = map[string]json.RawMessage{"future": json.RawMessage(`true`)}

	if err := fs.Save(ctx, "req-1", s); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := fs.Load(ctx, "req-1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	var state map[string]int
	if _, err := loaded.DecodePlugin("X", &state); err != nil {
		t.Fatalf("DecodePlugin failed: %v", err)
	}
	if state["n"] != 7 {
		t.Errorf("expected n = 7, got %d", state["n"])
	}
	if string(loaded.Reserved["future"]) != "true" {
		t.Errorf("expected reserved key to survive persistence, got %s", loaded.Reserved["future"])
	}
}

func TestFileStoreLoadMissing(t *testing.T) {
	fs, _ := snapshot.NewFileStore(t.TempDir())

	_, err := fs.Load(context.Background(), "nope")
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected os.ErrNotExist, got %v", err)
	}
}

func TestFileStoreInvalidKey(t *testing.T) {
	fs, _ := snapshot.NewFileStore(t.TempDir())
	s := snapshot.New(json.RawMessage(`{}`))

	for _, key := range []string{"", "..", "a/b", `a\b`} {
		if err := fs.Save(context.Background(), key, s); !errors.Is(err, snapshot.ErrInvalidKey) {
			t.Errorf("Save(%q): expected ErrInvalidKey, got %v", key, err)
		}
	}
}

func TestFileStoreDelete(t *testing.T) {
	fs, _ := snapshot.NewFileStore(t.TempDir())
	ctx := context.Background()
	_ = fs.Save(ctx, "k", snapshot.New(json.RawMessage(`{}`)))

	if err := fs.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := fs.Delete(ctx, "k"); err != nil {
		t.Errorf("expected deleting a missing key to succeed, got %v", err)
	}
	if _, err := fs.Load(ctx, "k"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected os.ErrNotExist after delete, got %v", err)
	}
}

func TestFileStoreCancelledContext(t *testing.T) {
	fs, _ := snapshot.NewFileStore(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := fs.Save(ctx, "k", snapshot.New(json.RawMessage(`{}`))); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
