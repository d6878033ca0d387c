package storetest

import (
	"sync"
	"testing"
	"time"

	"github.com/caskfs/caskfs/pkg/metadata"
)

// runFileTests runs all file and version conformance tests.
func runFileTests(t *testing.T, factory StoreFactory) {
	t.Run("GetFileUnknown", func(t *testing.T) { testGetFileUnknown(t, factory) })
	t.Run("FirstAppendCreatesRecord", func(t *testing.T) { testFirstAppendCreatesRecord(t, factory) })
	t.Run("VersionsAreContiguous", func(t *testing.T) { testVersionsAreContiguous(t, factory) })
	t.Run("ListFilesInsertionOrder", func(t *testing.T) { testListFilesInsertionOrder(t, factory) })
	t.Run("SnapshotsAreIsolated", func(t *testing.T) { testSnapshotsAreIsolated(t, factory) })
	t.Run("ConcurrentAppendsDistinctFiles", func(t *testing.T) { testConcurrentAppendsDistinctFiles(t, factory) })
	t.Run("ConcurrentAppendsSameFile", func(t *testing.T) { testConcurrentAppendsSameFile(t, factory) })
	t.Run("EmptyNameRejected", func(t *testing.T) { testEmptyNameRejected(t, factory) })
}

// draft returns a VersionDraft with distinguishable fields.
func draft(principal, path string) metadata.VersionDraft {
	return metadata.VersionDraft{
		StoragePath: path,
		ContentHash: "deadbeef",
		UploadedBy:  principal,
		UploadedAt:  time.Now().Truncate(time.Millisecond),
	}
}

func testGetFileUnknown(t *testing.T, factory StoreFactory) {
	store := factory(t)
	ctx := t.Context()

	_, err := store.GetFile(ctx, "missing.txt")
	if err == nil {
		t.Fatal("expected error for unknown file")
	}
	if metadata.CodeOf(err) != metadata.ErrNotFound {
		t.Errorf("error code = %v, want ErrNotFound", metadata.CodeOf(err))
	}
}

func testFirstAppendCreatesRecord(t *testing.T, factory StoreFactory) {
	store := factory(t)
	ctx := t.Context()

	d := draft("alice", "blobs/1")
	version, err := store.AppendVersion(ctx, "spec.txt", d)
	if err != nil {
		t.Fatalf("AppendVersion() failed: %v", err)
	}
	if version.Version != 1 {
		t.Errorf("first version = %d, want 1", version.Version)
	}
	if version.StoragePath != "blobs/1" {
		t.Errorf("storage path = %q, want %q", version.StoragePath, "blobs/1")
	}

	file, err := store.GetFile(ctx, "spec.txt")
	if err != nil {
		t.Fatalf("GetFile() failed: %v", err)
	}
	if file.Name != "spec.txt" {
		t.Errorf("Name = %q, want %q", file.Name, "spec.txt")
	}
	if file.NextVersion != 2 {
		t.Errorf("NextVersion = %d, want 2", file.NextVersion)
	}
	if len(file.Versions) != 1 {
		t.Fatalf("len(Versions) = %d, want 1", len(file.Versions))
	}
	if file.Versions[0].UploadedBy != "alice" {
		t.Errorf("UploadedBy = %q, want %q", file.Versions[0].UploadedBy, "alice")
	}
	if !file.Versions[0].UploadedAt.Equal(d.UploadedAt) {
		t.Errorf("UploadedAt = %v, want %v", file.Versions[0].UploadedAt, d.UploadedAt)
	}
}

func testVersionsAreContiguous(t *testing.T, factory StoreFactory) {
	store := factory(t)
	ctx := t.Context()

	for i := 0; i < 5; i++ {
		version, err := store.AppendVersion(ctx, "notes.md", draft("alice", "blobs/x"))
		if err != nil {
			t.Fatalf("AppendVersion() #%d failed: %v", i+1, err)
		}
		if version.Version != uint64(i+1) {
			t.Errorf("version = %d, want %d", version.Version, i+1)
		}
	}

	file, err := store.GetFile(ctx, "notes.md")
	if err != nil {
		t.Fatalf("GetFile() failed: %v", err)
	}
	for i, v := range file.Versions {
		if v.Version != uint64(i+1) {
			t.Errorf("Versions[%d].Version = %d, want %d", i, v.Version, i+1)
		}
	}
	if file.NextVersion != 6 {
		t.Errorf("NextVersion = %d, want 6", file.NextVersion)
	}
}

func testListFilesInsertionOrder(t *testing.T, factory StoreFactory) {
	store := factory(t)
	ctx := t.Context()

	names := []string{"zebra.txt", "alpha.txt", "mid.txt"}
	for _, name := range names {
		if _, err := store.AppendVersion(ctx, name, draft("alice", "blobs/x")); err != nil {
			t.Fatalf("AppendVersion(%q) failed: %v", name, err)
		}
	}

	files, err := store.ListFiles(ctx)
	if err != nil {
		t.Fatalf("ListFiles() failed: %v", err)
	}
	if len(files) != len(names) {
		t.Fatalf("len(files) = %d, want %d", len(files), len(names))
	}
	for i, name := range names {
		if files[i].Name != name {
			t.Errorf("files[%d].Name = %q, want %q (insertion order)", i, files[i].Name, name)
		}
	}
}

func testSnapshotsAreIsolated(t *testing.T, factory StoreFactory) {
	store := factory(t)
	ctx := t.Context()

	if _, err := store.AppendVersion(ctx, "doc.txt", draft("alice", "blobs/1")); err != nil {
		t.Fatalf("AppendVersion() failed: %v", err)
	}

	file, err := store.GetFile(ctx, "doc.txt")
	if err != nil {
		t.Fatalf("GetFile() failed: %v", err)
	}

	// Mutating the returned snapshot must not affect the store.
	file.Versions[0].ContentHash = "tampered"
	file.NextVersion = 99

	fresh, err := store.GetFile(ctx, "doc.txt")
	if err != nil {
		t.Fatalf("GetFile() failed: %v", err)
	}
	if fresh.Versions[0].ContentHash == "tampered" {
		t.Error("store state changed through a returned snapshot")
	}
	if fresh.NextVersion != 2 {
		t.Errorf("NextVersion = %d, want 2", fresh.NextVersion)
	}
}

func testConcurrentAppendsDistinctFiles(t *testing.T, factory StoreFactory) {
	store := factory(t)
	ctx := t.Context()

	const writers = 8
	const appends = 10

	var wg sync.WaitGroup
	errs := make(chan error, writers*appends)

	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			name := string(rune('a'+w)) + ".txt"
			for i := 0; i < appends; i++ {
				if _, err := store.AppendVersion(ctx, name, draft("alice", "blobs/x")); err != nil {
					errs <- err
				}
			}
		}(w)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent AppendVersion() failed: %v", err)
	}

	files, err := store.ListFiles(ctx)
	if err != nil {
		t.Fatalf("ListFiles() failed: %v", err)
	}
	if len(files) != writers {
		t.Fatalf("len(files) = %d, want %d", len(files), writers)
	}
	for _, f := range files {
		if len(f.Versions) != appends {
			t.Errorf("file %q has %d versions, want %d", f.Name, len(f.Versions), appends)
		}
		for i, v := range f.Versions {
			if v.Version != uint64(i+1) {
				t.Errorf("file %q Versions[%d].Version = %d, want %d", f.Name, i, v.Version, i+1)
			}
		}
	}
}

func testConcurrentAppendsSameFile(t *testing.T, factory StoreFactory) {
	store := factory(t)
	ctx := t.Context()

	const writers = 16

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.AppendVersion(ctx, "contended.txt", draft("alice", "blobs/x")); err != nil {
				t.Errorf("AppendVersion() failed: %v", err)
			}
		}()
	}
	wg.Wait()

	file, err := store.GetFile(ctx, "contended.txt")
	if err != nil {
		t.Fatalf("GetFile() failed: %v", err)
	}
	if len(file.Versions) != writers {
		t.Fatalf("len(Versions) = %d, want %d", len(file.Versions), writers)
	}
	seen := make(map[uint64]bool)
	for _, v := range file.Versions {
		if seen[v.Version] {
			t.Errorf("duplicate version number %d", v.Version)
		}
		seen[v.Version] = true
	}
	for i := uint64(1); i <= writers; i++ {
		if !seen[i] {
			t.Errorf("missing version number %d", i)
		}
	}
}

func testEmptyNameRejected(t *testing.T, factory StoreFactory) {
	store := factory(t)
	ctx := t.Context()

	_, err := store.AppendVersion(ctx, "", draft("alice", "blobs/x"))
	if metadata.CodeOf(err) != metadata.ErrInvalidArgument {
		t.Errorf("error code = %v, want ErrInvalidArgument", metadata.CodeOf(err))
	}
}
