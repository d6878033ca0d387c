package memory

import (
	"testing"

	"github.com/caskfs/caskfs/pkg/metadata"
	"github.com/caskfs/caskfs/pkg/metadata/storetest"
)

func TestMemoryStoreConformance(t *testing.T) {
	storetest.RunConformanceSuite(t, func(t *testing.T) metadata.Store {
		return New()
	})
}
