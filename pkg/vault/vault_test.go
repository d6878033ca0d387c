package vault

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	contentmemory "github.com/caskfs/caskfs/pkg/content/memory"
	"github.com/caskfs/caskfs/pkg/metadata"
	metamemory "github.com/caskfs/caskfs/pkg/metadata/store/memory"
	"github.com/caskfs/caskfs/pkg/notify"
)

// SHA-256 of "hello world".
const helloWorldSHA256 = "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"

type fixture struct {
	coordinator *Coordinator
	meta        *metamemory.Store
	blobs       *contentmemory.Store
	broadcaster *notify.Broadcaster
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	meta := metamemory.New()
	blobs := contentmemory.New()
	broadcaster := notify.NewBroadcaster()
	t.Cleanup(broadcaster.Close)

	coordinator, err := New(Config{
		Metadata: meta,
		Content:  blobs,
		Notifier: broadcaster,
	})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return &fixture{coordinator: coordinator, meta: meta, blobs: blobs, broadcaster: broadcaster}
}

func TestSubmitFirstVersion(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	version, err := f.coordinator.Submit(ctx, "spec.txt", "alice", strings.NewReader("hello world"))
	if err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}
	if version.Version != 1 {
		t.Errorf("Version = %d, want 1", version.Version)
	}
	if version.ContentHash != helloWorldSHA256 {
		t.Errorf("ContentHash = %s, want %s", version.ContentHash, helloWorldSHA256)
	}
	if version.UploadedBy != "alice" {
		t.Errorf("UploadedBy = %s, want alice", version.UploadedBy)
	}
	if version.StoragePath == "" {
		t.Error("StoragePath is empty")
	}
}

func TestSubmitAssignsContiguousVersions(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	for want := uint64(1); want <= 5; want++ {
		version, err := f.coordinator.Submit(ctx, "spec.txt", "alice",
			strings.NewReader(fmt.Sprintf("draft %d", want)))
		if err != nil {
			t.Fatalf("Submit() %d failed: %v", want, err)
		}
		if version.Version != want {
			t.Errorf("Version = %d, want %d", version.Version, want)
		}
	}

	file, err := f.coordinator.GetFile(ctx, "spec.txt")
	if err != nil {
		t.Fatalf("GetFile() failed: %v", err)
	}
	for i, v := range file.Versions {
		if v.Version != uint64(i+1) {
			t.Errorf("Versions[%d].Version = %d, want %d", i, v.Version, i+1)
		}
	}
}

func TestSubmitReleasesLockOnSuccess(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	if _, err := f.coordinator.Submit(ctx, "spec.txt", "alice", strings.NewReader("v1")); err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}

	entry, err := f.coordinator.GetLock(ctx, "spec.txt")
	if err != nil {
		t.Fatalf("GetLock() failed: %v", err)
	}
	if entry != nil {
		t.Errorf("file still locked after successful upload: %+v", entry)
	}

	// A different principal can upload immediately.
	if _, err := f.coordinator.Submit(ctx, "spec.txt", "bob", strings.NewReader("v2")); err != nil {
		t.Errorf("follow-up Submit() by bob failed: %v", err)
	}
}

func TestSubmitAgainstHeldLockFailsFast(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	if err := f.coordinator.AcquireLock(ctx, "spec.txt", Principal{Name: "alice"}); err != nil {
		t.Fatalf("AcquireLock() failed: %v", err)
	}

	_, err := f.coordinator.Submit(ctx, "spec.txt", "bob", strings.NewReader("payload"))
	if metadata.CodeOf(err) != metadata.ErrFileLocked {
		t.Fatalf("error code = %v, want ErrFileLocked", metadata.CodeOf(err))
	}
	var storeErr *metadata.StoreError
	if !errors.As(err, &storeErr) || storeErr.Holder != "alice" {
		t.Errorf("conflict should name the holder, got %v", err)
	}

	// The holder can still upload; their lock is consumed by the upload.
	if _, err := f.coordinator.Submit(ctx, "spec.txt", "alice", strings.NewReader("payload")); err != nil {
		t.Fatalf("Submit() by lock holder failed: %v", err)
	}
	entry, err := f.coordinator.GetLock(ctx, "spec.txt")
	if err != nil {
		t.Fatalf("GetLock() failed: %v", err)
	}
	if entry != nil {
		t.Errorf("lock survived the holder's upload: %+v", entry)
	}
}

func TestSubmitContentFailureLeavesFileUnlocked(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	f.blobs.FailWrites(errors.New("backend unavailable"))

	_, err := f.coordinator.Submit(ctx, "spec.txt", "alice", strings.NewReader("payload"))
	if metadata.CodeOf(err) != metadata.ErrStorageFailure {
		t.Fatalf("error code = %v, want ErrStorageFailure", metadata.CodeOf(err))
	}

	entry, err := f.coordinator.GetLock(ctx, "spec.txt")
	if err != nil {
		t.Fatalf("GetLock() failed: %v", err)
	}
	if entry != nil {
		t.Errorf("file left locked after failed upload: %+v", entry)
	}

	// No version was recorded.
	if _, err := f.coordinator.GetFile(ctx, "spec.txt"); !metadata.IsNotFound(err) {
		t.Errorf("GetFile() = %v, want not found", err)
	}

	// Recovery works and versions resume at 1.
	f.blobs.RestoreWrites()
	version, err := f.coordinator.Submit(ctx, "spec.txt", "alice", strings.NewReader("payload"))
	if err != nil {
		t.Fatalf("Submit() after recovery failed: %v", err)
	}
	if version.Version != 1 {
		t.Errorf("Version = %d, want 1", version.Version)
	}
}

func TestSubmitMetadataFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	cause := errors.New("disk full")
	f.meta.FailCommits(cause)

	_, err := f.coordinator.Submit(ctx, "spec.txt", "alice", strings.NewReader("payload"))
	if metadata.CodeOf(err) != metadata.ErrStorageFailure {
		t.Fatalf("error code = %v, want ErrStorageFailure", metadata.CodeOf(err))
	}

	f.meta.RestoreCommits()

	// Lock released despite the failure.
	entry, err := f.coordinator.GetLock(ctx, "spec.txt")
	if err != nil {
		t.Fatalf("GetLock() failed: %v", err)
	}
	if entry != nil {
		t.Errorf("file left locked after metadata failure: %+v", entry)
	}
	// No version visible.
	if _, err := f.coordinator.GetFile(ctx, "spec.txt"); !metadata.IsNotFound(err) {
		t.Errorf("GetFile() = %v, want not found", err)
	}
}

func TestSubmitMetadataFailureRemovesOrphanBlob(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	// Locks must keep working while version commits fail, so inject the
	// failure only around AppendVersion.
	meta := &appendFailingStore{Store: f.meta, cause: errors.New("disk full")}
	coordinator, err := New(Config{Metadata: meta, Content: f.blobs})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	if _, err := coordinator.Submit(ctx, "spec.txt", "alice", strings.NewReader("payload")); err == nil {
		t.Fatal("Submit() succeeded, want metadata failure")
	}

	// The blob written before the failed commit was cleaned up.
	if got := f.blobs.BlobCount(); got != 0 {
		t.Errorf("blob count = %d, want 0", got)
	}
}

func TestSubmitEmptyPayload(t *testing.T) {
	f := newFixture(t)

	version, err := f.coordinator.Submit(t.Context(), "empty.txt", "alice", strings.NewReader(""))
	if err != nil {
		t.Fatalf("Submit() of empty payload failed: %v", err)
	}
	// SHA-256 of the empty string.
	const want = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if version.ContentHash != want {
		t.Errorf("ContentHash = %s, want %s", version.ContentHash, want)
	}
}

func TestSubmitRejectsMissingArguments(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	_, err := f.coordinator.Submit(ctx, "", "alice", strings.NewReader("x"))
	if metadata.CodeOf(err) != metadata.ErrInvalidArgument {
		t.Errorf("empty name: code = %v, want ErrInvalidArgument", metadata.CodeOf(err))
	}
	_, err = f.coordinator.Submit(ctx, "spec.txt", "", strings.NewReader("x"))
	if metadata.CodeOf(err) != metadata.ErrInvalidArgument {
		t.Errorf("empty principal: code = %v, want ErrInvalidArgument", metadata.CodeOf(err))
	}
}

func TestConcurrentSubmitsSameFile(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	const uploads = 20

	var wg sync.WaitGroup
	var committed, conflicts atomic.Int64

	for i := 0; i < uploads; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			_, err := f.coordinator.Submit(ctx, "hot.txt", fmt.Sprintf("user-%02d", id),
				strings.NewReader(fmt.Sprintf("draft %d", id)))
			switch {
			case err == nil:
				committed.Add(1)
			case metadata.IsLocked(err):
				conflicts.Add(1)
			default:
				t.Errorf("unexpected Submit() error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if committed.Load()+conflicts.Load() != uploads {
		t.Fatalf("committed %d + conflicts %d != %d uploads", committed.Load(), conflicts.Load(), uploads)
	}
	if committed.Load() == 0 {
		t.Fatal("no upload committed")
	}

	// Committed uploads got contiguous version numbers with no gaps.
	file, err := f.coordinator.GetFile(ctx, "hot.txt")
	if err != nil {
		t.Fatalf("GetFile() failed: %v", err)
	}
	if int64(len(file.Versions)) != committed.Load() {
		t.Errorf("history has %d versions, want %d", len(file.Versions), committed.Load())
	}
	for i, v := range file.Versions {
		if v.Version != uint64(i+1) {
			t.Errorf("Versions[%d].Version = %d, want %d", i, v.Version, i+1)
		}
	}
}

func TestOpenLatestAndSpecificVersion(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	for i := 1; i <= 3; i++ {
		if _, err := f.coordinator.Submit(ctx, "spec.txt", "alice",
			strings.NewReader(fmt.Sprintf("draft %d", i))); err != nil {
			t.Fatalf("Submit() failed: %v", err)
		}
	}

	// Version 0 resolves to the latest.
	reader, record, err := f.coordinator.Open(ctx, "spec.txt", 0)
	if err != nil {
		t.Fatalf("Open(latest) failed: %v", err)
	}
	defer reader.Close()
	if record.Version != 3 {
		t.Errorf("latest version = %d, want 3", record.Version)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("reading payload failed: %v", err)
	}
	if string(data) != "draft 3" {
		t.Errorf("payload = %q, want %q", data, "draft 3")
	}

	// An older version stays readable after later uploads.
	reader1, record1, err := f.coordinator.Open(ctx, "spec.txt", 1)
	if err != nil {
		t.Fatalf("Open(1) failed: %v", err)
	}
	defer reader1.Close()
	if record1.Version != 1 {
		t.Errorf("version = %d, want 1", record1.Version)
	}
	data1, err := io.ReadAll(reader1)
	if err != nil {
		t.Fatalf("reading payload failed: %v", err)
	}
	if string(data1) != "draft 1" {
		t.Errorf("payload = %q, want %q", data1, "draft 1")
	}
}

func TestOpenUnknownVersion(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	if _, err := f.coordinator.Submit(ctx, "spec.txt", "alice", strings.NewReader("v1")); err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}

	_, _, err := f.coordinator.Open(ctx, "spec.txt", 9)
	if metadata.CodeOf(err) != metadata.ErrVersionNotFound {
		t.Errorf("error code = %v, want ErrVersionNotFound", metadata.CodeOf(err))
	}

	_, _, err = f.coordinator.Open(ctx, "missing.txt", 0)
	if !metadata.IsNotFound(err) {
		t.Errorf("Open() unknown file = %v, want not found", err)
	}
}

func TestSubmitPublishesEvent(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	events, cancel := f.broadcaster.Subscribe()
	defer cancel()

	if _, err := f.coordinator.Submit(ctx, "spec.txt", "alice", strings.NewReader("hello world")); err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}

	select {
	case event := <-events:
		if event.File != "spec.txt" || event.Version != 1 || event.UploadedBy != "alice" {
			t.Errorf("event = %+v", event)
		}
		if event.Hash != helloWorldSHA256 {
			t.Errorf("event hash = %s, want %s", event.Hash, helloWorldSHA256)
		}
	default:
		t.Fatal("no event published")
	}
}

// appendFailingStore fails AppendVersion only, leaving lock operations
// intact.
type appendFailingStore struct {
	*metamemory.Store
	cause error
}

func (s *appendFailingStore) AppendVersion(ctx context.Context, name string, draft metadata.VersionDraft) (*metadata.VersionRecord, error) {
	return nil, metadata.NewStorageFailureError(s.cause)
}
