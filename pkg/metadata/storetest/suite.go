// Package storetest provides a conformance test suite shared by all
// metadata store backends. Backend packages call RunConformanceSuite from
// their own tests so every implementation is held to the same contract.
package storetest

import (
	"testing"

	"github.com/caskfs/caskfs/pkg/metadata"
)

// StoreFactory creates a fresh Store instance for each test. The factory
// receives *testing.T so it can use t.TempDir() for stores that need
// filesystem paths and t.Cleanup() for teardown.
type StoreFactory func(t *testing.T) metadata.Store

// RunConformanceSuite runs the full conformance test suite against the
// provided store factory. Each test gets a fresh store for isolation.
func RunConformanceSuite(t *testing.T, factory StoreFactory) {
	t.Helper()

	t.Run("Files", func(t *testing.T) {
		runFileTests(t, factory)
	})

	t.Run("Locks", func(t *testing.T) {
		runLockTests(t, factory)
	})
}
