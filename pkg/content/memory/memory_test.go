package memory

import (
	"errors"
	"strings"
	"testing"

	"github.com/caskfs/caskfs/pkg/content"
	"github.com/caskfs/caskfs/pkg/content/contenttest"
)

func TestMemoryStoreConformance(t *testing.T) {
	contenttest.RunConformanceSuite(t, func(t *testing.T) content.Store {
		return New()
	})
}

func TestFailWrites(t *testing.T) {
	store := New()
	ctx := t.Context()

	cause := errors.New("backend unavailable")
	store.FailWrites(cause)

	_, _, err := store.Write(ctx, strings.NewReader("payload"))
	if !errors.Is(err, cause) {
		t.Fatalf("Write() error = %v, want %v", err, cause)
	}

	store.RestoreWrites()
	if _, _, err := store.Write(ctx, strings.NewReader("payload")); err != nil {
		t.Errorf("Write() after restore failed: %v", err)
	}
}
