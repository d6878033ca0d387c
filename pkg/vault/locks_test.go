package vault

import (
	"strings"
	"testing"

	"github.com/caskfs/caskfs/pkg/metadata"
)

func TestExplicitLockBlocksOtherUploaders(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	alice := Principal{Name: "alice"}
	if err := f.coordinator.AcquireLock(ctx, "spec.txt", alice); err != nil {
		t.Fatalf("AcquireLock() failed: %v", err)
	}

	err := f.coordinator.AcquireLock(ctx, "spec.txt", Principal{Name: "bob"})
	if metadata.CodeOf(err) != metadata.ErrFileLocked {
		t.Errorf("error code = %v, want ErrFileLocked", metadata.CodeOf(err))
	}

	if err := f.coordinator.ReleaseLock(ctx, "spec.txt", alice); err != nil {
		t.Fatalf("ReleaseLock() failed: %v", err)
	}
	if err := f.coordinator.AcquireLock(ctx, "spec.txt", Principal{Name: "bob"}); err != nil {
		t.Errorf("AcquireLock() after release failed: %v", err)
	}
}

func TestReleaseLockRequiresHolder(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	if err := f.coordinator.AcquireLock(ctx, "spec.txt", Principal{Name: "alice"}); err != nil {
		t.Fatalf("AcquireLock() failed: %v", err)
	}

	err := f.coordinator.ReleaseLock(ctx, "spec.txt", Principal{Name: "bob"})
	if metadata.CodeOf(err) != metadata.ErrFileLocked {
		t.Errorf("error code = %v, want ErrFileLocked", metadata.CodeOf(err))
	}

	// Alice still holds it.
	entry, err := f.coordinator.GetLock(ctx, "spec.txt")
	if err != nil {
		t.Fatalf("GetLock() failed: %v", err)
	}
	if entry == nil || entry.Holder != "alice" {
		t.Errorf("lock = %+v, want held by alice", entry)
	}
}

func TestReleaseUnheldLockSucceeds(t *testing.T) {
	f := newFixture(t)
	if err := f.coordinator.ReleaseLock(t.Context(), "spec.txt", Principal{Name: "alice"}); err != nil {
		t.Errorf("ReleaseLock() of unheld lock failed: %v", err)
	}
}

func TestForceUnlockRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	if err := f.coordinator.AcquireLock(ctx, "spec.txt", Principal{Name: "alice"}); err != nil {
		t.Fatalf("AcquireLock() failed: %v", err)
	}

	err := f.coordinator.ForceUnlock(ctx, "spec.txt", Principal{Name: "bob"})
	if metadata.CodeOf(err) != metadata.ErrPrivilegeRequired {
		t.Errorf("error code = %v, want ErrPrivilegeRequired", metadata.CodeOf(err))
	}

	if err := f.coordinator.ForceUnlock(ctx, "spec.txt", Principal{Name: "root", Admin: true}); err != nil {
		t.Fatalf("ForceUnlock() by admin failed: %v", err)
	}
	entry, err := f.coordinator.GetLock(ctx, "spec.txt")
	if err != nil {
		t.Fatalf("GetLock() failed: %v", err)
	}
	if entry != nil {
		t.Errorf("lock survived admin force unlock: %+v", entry)
	}
}

func TestLockedFileStillReadable(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	if _, err := f.coordinator.Submit(ctx, "spec.txt", "alice", strings.NewReader("v1")); err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}
	if err := f.coordinator.AcquireLock(ctx, "spec.txt", Principal{Name: "alice"}); err != nil {
		t.Fatalf("AcquireLock() failed: %v", err)
	}

	// Reads and verification ignore locks.
	reader, _, err := f.coordinator.Open(ctx, "spec.txt", 0)
	if err != nil {
		t.Fatalf("Open() of locked file failed: %v", err)
	}
	reader.Close()

	if _, err := f.coordinator.Verify(ctx, "spec.txt", 0); err != nil {
		t.Errorf("Verify() of locked file failed: %v", err)
	}
}

func TestListLocks(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	if err := f.coordinator.AcquireLock(ctx, "b.txt", Principal{Name: "bob"}); err != nil {
		t.Fatalf("AcquireLock() failed: %v", err)
	}
	if err := f.coordinator.AcquireLock(ctx, "a.txt", Principal{Name: "alice"}); err != nil {
		t.Fatalf("AcquireLock() failed: %v", err)
	}

	locks, err := f.coordinator.ListLocks(ctx)
	if err != nil {
		t.Fatalf("ListLocks() failed: %v", err)
	}
	if len(locks) != 2 || locks[0].Name != "a.txt" || locks[1].Name != "b.txt" {
		t.Errorf("ListLocks() = %+v, want a.txt then b.txt", locks)
	}
}
