// Package contenttest provides a conformance suite exercised against
// every content store backend.
package contenttest

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/caskfs/caskfs/pkg/content"
)

// StoreFactory builds a fresh, empty store for one test.
type StoreFactory func(t *testing.T) content.Store

// RunConformanceSuite runs the shared behavior tests against factory.
func RunConformanceSuite(t *testing.T, factory StoreFactory) {
	t.Run("WriteThenRead", func(t *testing.T) { testWriteThenRead(t, factory(t)) })
	t.Run("WritesGetDistinctIDs", func(t *testing.T) { testDistinctIDs(t, factory(t)) })
	t.Run("ReadUnknown", func(t *testing.T) { testReadUnknown(t, factory(t)) })
	t.Run("SizeAndExists", func(t *testing.T) { testSizeAndExists(t, factory(t)) })
	t.Run("DeleteIsIdempotent", func(t *testing.T) { testDelete(t, factory(t)) })
	t.Run("EmptyBlob", func(t *testing.T) { testEmptyBlob(t, factory(t)) })
	t.Run("HealthCheck", func(t *testing.T) { testHealthCheck(t, factory(t)) })
}

func testWriteThenRead(t *testing.T, store content.Store) {
	ctx := t.Context()
	payload := "design document, draft three"

	id, size, err := store.Write(ctx, strings.NewReader(payload))
	if err != nil {
		t.Fatalf("Write() failed: %v", err)
	}
	if id == "" {
		t.Fatal("Write() returned empty ID")
	}
	if size != int64(len(payload)) {
		t.Errorf("Write() size = %d, want %d", size, len(payload))
	}

	reader, err := store.Read(ctx, id)
	if err != nil {
		t.Fatalf("Read() failed: %v", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("reading blob failed: %v", err)
	}
	if string(data) != payload {
		t.Errorf("blob = %q, want %q", data, payload)
	}
}

func testDistinctIDs(t *testing.T, store content.Store) {
	ctx := t.Context()
	seen := make(map[string]bool)

	for i := 0; i < 10; i++ {
		id, _, err := store.Write(ctx, strings.NewReader("same payload"))
		if err != nil {
			t.Fatalf("Write() failed: %v", err)
		}
		if seen[id] {
			t.Fatalf("duplicate blob ID %s", id)
		}
		seen[id] = true
	}
}

func testReadUnknown(t *testing.T, store content.Store) {
	ctx := t.Context()

	_, err := store.Read(ctx, "00000000-0000-0000-0000-000000000000")
	if !errors.Is(err, content.ErrContentNotFound) {
		t.Errorf("Read() unknown = %v, want ErrContentNotFound", err)
	}

	_, err = store.Size(ctx, "00000000-0000-0000-0000-000000000000")
	if !errors.Is(err, content.ErrContentNotFound) {
		t.Errorf("Size() unknown = %v, want ErrContentNotFound", err)
	}
}

func testSizeAndExists(t *testing.T, store content.Store) {
	ctx := t.Context()

	id, _, err := store.Write(ctx, strings.NewReader("0123456789"))
	if err != nil {
		t.Fatalf("Write() failed: %v", err)
	}

	size, err := store.Size(ctx, id)
	if err != nil {
		t.Fatalf("Size() failed: %v", err)
	}
	if size != 10 {
		t.Errorf("Size() = %d, want 10", size)
	}

	ok, err := store.Exists(ctx, id)
	if err != nil {
		t.Fatalf("Exists() failed: %v", err)
	}
	if !ok {
		t.Error("Exists() = false for stored blob")
	}

	ok, err = store.Exists(ctx, "00000000-0000-0000-0000-000000000000")
	if err != nil {
		t.Fatalf("Exists() on unknown ID failed: %v", err)
	}
	if ok {
		t.Error("Exists() = true for unknown blob")
	}
}

func testDelete(t *testing.T, store content.Store) {
	ctx := t.Context()

	id, _, err := store.Write(ctx, strings.NewReader("ephemeral"))
	if err != nil {
		t.Fatalf("Write() failed: %v", err)
	}

	if err := store.Delete(ctx, id); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	ok, err := store.Exists(ctx, id)
	if err != nil {
		t.Fatalf("Exists() after delete failed: %v", err)
	}
	if ok {
		t.Error("blob still exists after delete")
	}

	if err := store.Delete(ctx, id); err != nil {
		t.Errorf("second Delete() failed: %v", err)
	}
}

func testEmptyBlob(t *testing.T, store content.Store) {
	ctx := t.Context()

	id, size, err := store.Write(ctx, strings.NewReader(""))
	if err != nil {
		t.Fatalf("Write() of empty payload failed: %v", err)
	}
	if size != 0 {
		t.Errorf("size = %d, want 0", size)
	}

	got, err := store.Size(ctx, id)
	if err != nil {
		t.Fatalf("Size() failed: %v", err)
	}
	if got != 0 {
		t.Errorf("Size() = %d, want 0", got)
	}
}

func testHealthCheck(t *testing.T, store content.Store) {
	if err := store.HealthCheck(t.Context()); err != nil {
		t.Errorf("HealthCheck() failed: %v", err)
	}
}
