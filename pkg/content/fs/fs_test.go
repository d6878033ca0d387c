package fs

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/caskfs/caskfs/pkg/content"
	"github.com/caskfs/caskfs/pkg/content/contenttest"
)

func TestFSStoreConformance(t *testing.T) {
	contenttest.RunConformanceSuite(t, func(t *testing.T) content.Store {
		store, err := New(t.TempDir())
		if err != nil {
			t.Fatalf("New() failed: %v", err)
		}
		return store
	})
}

func TestBlobsFanOutByIDPrefix(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	id, _, err := store.Write(t.Context(), strings.NewReader("payload"))
	if err != nil {
		t.Fatalf("Write() failed: %v", err)
	}

	want := filepath.Join(dir, id[:2], id)
	if _, err := os.Stat(want); err != nil {
		t.Errorf("blob not at fan-out path %s: %v", want, err)
	}
}

func TestFailedWriteLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	_, _, err = store.Write(t.Context(), failingReader{})
	if err == nil {
		t.Fatal("Write() with failing reader succeeded")
	}

	var leftovers []string
	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".tmp") {
			leftovers = append(leftovers, path)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walking content dir failed: %v", err)
	}
	if len(leftovers) > 0 {
		t.Errorf("temp files left behind: %v", leftovers)
	}
}

func TestEmptyBasePathRejected(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Error("New(\"\") succeeded, want error")
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, os.ErrClosed
}
