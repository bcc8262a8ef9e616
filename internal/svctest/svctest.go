// Package svctest builds a throwaway ServiceOS for engine unit tests, the
// same way services/base's own tests do.
package svctest

import (
	"context"
	"testing"

	"github.com/cradle-labs/cradle-core/platform/os"
	"github.com/cradle-labs/cradle-core/tee"
)

// New builds a simulated ServiceOS scoped to the given capabilities and
// returns it along with a cleanup function the caller must defer.
func New(t *testing.T, serviceID string, caps ...os.Capability) (os.ServiceOS, func()) {
	t.Helper()

	trustRoot, err := tee.NewSimulation(serviceID + "-enclave")
	if err != nil {
		t.Fatalf("trust root: %v", err)
	}

	ctx := context.Background()
	if err := trustRoot.Start(ctx); err != nil {
		t.Fatalf("start trust root: %v", err)
	}

	manifest := &os.LegacyManifest{
		ServiceID:            serviceID,
		RequiredCapabilities: caps,
	}

	svcCtx, err := os.NewServiceContext(manifest, trustRoot, nil)
	if err != nil {
		trustRoot.Stop(ctx)
		t.Fatalf("service context: %v", err)
	}

	cleanup := func() {
		svcCtx.Close()
		trustRoot.Stop(ctx)
	}

	return svcCtx, cleanup
}
