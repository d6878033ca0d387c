package storetest

import (
	"testing"
	"time"

	"github.com/caskfs/caskfs/pkg/metadata"
)

// runLockTests runs all lock table conformance tests.
func runLockTests(t *testing.T, factory StoreFactory) {
	t.Run("GetLockUnlocked", func(t *testing.T) { testGetLockUnlocked(t, factory) })
	t.Run("SetAndGetLock", func(t *testing.T) { testSetAndGetLock(t, factory) })
	t.Run("SetLockOverwrites", func(t *testing.T) { testSetLockOverwrites(t, factory) })
	t.Run("ClearLock", func(t *testing.T) { testClearLock(t, factory) })
	t.Run("ClearLockIdempotent", func(t *testing.T) { testClearLockIdempotent(t, factory) })
	t.Run("ListLocksSorted", func(t *testing.T) { testListLocksSorted(t, factory) })
}

func testGetLockUnlocked(t *testing.T, factory StoreFactory) {
	store := factory(t)
	ctx := t.Context()

	entry, err := store.GetLock(ctx, "free.txt")
	if err != nil {
		t.Fatalf("GetLock() failed: %v", err)
	}
	if entry != nil {
		t.Errorf("expected nil entry for unlocked file, got %+v", entry)
	}
}

func testSetAndGetLock(t *testing.T, factory StoreFactory) {
	store := factory(t)
	ctx := t.Context()

	acquired := time.Now().Truncate(time.Millisecond)
	if err := store.SetLock(ctx, "spec.txt", metadata.LockEntry{Holder: "alice", AcquiredAt: acquired}); err != nil {
		t.Fatalf("SetLock() failed: %v", err)
	}

	entry, err := store.GetLock(ctx, "spec.txt")
	if err != nil {
		t.Fatalf("GetLock() failed: %v", err)
	}
	if entry == nil {
		t.Fatal("expected lock entry, got nil")
	}
	if entry.Holder != "alice" {
		t.Errorf("Holder = %q, want %q", entry.Holder, "alice")
	}
	if !entry.AcquiredAt.Equal(acquired) {
		t.Errorf("AcquiredAt = %v, want %v", entry.AcquiredAt, acquired)
	}
}

func testSetLockOverwrites(t *testing.T, factory StoreFactory) {
	store := factory(t)
	ctx := t.Context()

	if err := store.SetLock(ctx, "spec.txt", metadata.LockEntry{Holder: "alice", AcquiredAt: time.Now()}); err != nil {
		t.Fatalf("SetLock() failed: %v", err)
	}
	if err := store.SetLock(ctx, "spec.txt", metadata.LockEntry{Holder: "bob", AcquiredAt: time.Now()}); err != nil {
		t.Fatalf("SetLock() overwrite failed: %v", err)
	}

	entry, err := store.GetLock(ctx, "spec.txt")
	if err != nil {
		t.Fatalf("GetLock() failed: %v", err)
	}
	if entry == nil || entry.Holder != "bob" {
		t.Errorf("entry = %+v, want holder bob", entry)
	}
}

func testClearLock(t *testing.T, factory StoreFactory) {
	store := factory(t)
	ctx := t.Context()

	if err := store.SetLock(ctx, "spec.txt", metadata.LockEntry{Holder: "alice", AcquiredAt: time.Now()}); err != nil {
		t.Fatalf("SetLock() failed: %v", err)
	}
	if err := store.ClearLock(ctx, "spec.txt"); err != nil {
		t.Fatalf("ClearLock() failed: %v", err)
	}

	entry, err := store.GetLock(ctx, "spec.txt")
	if err != nil {
		t.Fatalf("GetLock() failed: %v", err)
	}
	if entry != nil {
		t.Errorf("expected nil entry after clear, got %+v", entry)
	}
}

func testClearLockIdempotent(t *testing.T, factory StoreFactory) {
	store := factory(t)
	ctx := t.Context()

	if err := store.ClearLock(ctx, "never-locked.txt"); err != nil {
		t.Fatalf("ClearLock() on unlocked file should be a no-op, got: %v", err)
	}
}

func testListLocksSorted(t *testing.T, factory StoreFactory) {
	store := factory(t)
	ctx := t.Context()

	for _, name := range []string{"c.txt", "a.txt", "b.txt"} {
		if err := store.SetLock(ctx, name, metadata.LockEntry{Holder: "alice", AcquiredAt: time.Now()}); err != nil {
			t.Fatalf("SetLock(%q) failed: %v", name, err)
		}
	}

	infos, err := store.ListLocks(ctx)
	if err != nil {
		t.Fatalf("ListLocks() failed: %v", err)
	}
	want := []string{"a.txt", "b.txt", "c.txt"}
	if len(infos) != len(want) {
		t.Fatalf("len(infos) = %d, want %d", len(infos), len(want))
	}
	for i, name := range want {
		if infos[i].Name != name {
			t.Errorf("infos[%d].Name = %q, want %q", i, infos[i].Name, name)
		}
	}
}
