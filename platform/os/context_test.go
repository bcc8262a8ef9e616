// Package os provides the ServiceOS abstraction layer.
package os

import (
	"context"
	"testing"
	"time"

	"github.com/cradle-labs/cradle-core/tee"
)

// TestNewServiceContext tests ServiceContext creation.
func TestNewServiceContext(t *testing.T) {
	trustRoot, err := tee.NewSimulation("test-enclave")
	if err != nil {
		t.Fatalf("failed to create trust root: %v", err)
	}

	ctx := context.Background()
	if err := trustRoot.Start(ctx); err != nil {
		t.Fatalf("failed to start trust root: %v", err)
	}
	defer trustRoot.Stop(ctx)

	tests := []struct {
		name        string
		manifest    *LegacyManifest
		trustRoot   *tee.TrustRoot
		expectError bool
	}{
		{
			name:        "nil manifest",
			manifest:    nil,
			trustRoot:   trustRoot,
			expectError: true,
		},
		{
			name: "nil trust root",
			manifest: &LegacyManifest{
				ServiceID: "test-service",
			},
			trustRoot:   nil,
			expectError: true,
		},
		{
			name: "valid context",
			manifest: &LegacyManifest{
				ServiceID:            "test-service",
				RequiredCapabilities: []Capability{CapStorage, CapNetwork},
			},
			trustRoot:   trustRoot,
			expectError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svcCtx, err := NewServiceContext(tt.manifest, tt.trustRoot, nil)
			if tt.expectError {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if svcCtx == nil {
				t.Fatal("expected non-nil context")
			}
			if svcCtx.ServiceID() != tt.manifest.ServiceID {
				t.Errorf("expected service ID %s, got %s", tt.manifest.ServiceID, svcCtx.ServiceID())
			}
		})
	}
}

// TestServiceContextCapabilities tests capability checking.
func TestServiceContextCapabilities(t *testing.T) {
	trustRoot, err := tee.NewSimulation("test-enclave")
	if err != nil {
		t.Fatalf("failed to create trust root: %v", err)
	}

	ctx := context.Background()
	if err := trustRoot.Start(ctx); err != nil {
		t.Fatalf("failed to start trust root: %v", err)
	}
	defer trustRoot.Stop(ctx)

	manifest := &LegacyManifest{
		ServiceID:            "test-service",
		RequiredCapabilities: []Capability{CapStorage, CapNetwork},
		OptionalCapabilities: []Capability{CapCache},
	}

	svcCtx, err := NewServiceContext(manifest, trustRoot, nil)
	if err != nil {
		t.Fatalf("failed to create context: %v", err)
	}

	tests := []struct {
		cap      Capability
		expected bool
	}{
		{CapStorage, true},
		{CapNetwork, true},
		{CapCache, true},
		{CapDatabase, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.cap), func(t *testing.T) {
			if got := svcCtx.HasCapability(tt.cap); got != tt.expected {
				t.Errorf("HasCapability(%s) = %v, want %v", tt.cap, got, tt.expected)
			}
		})
	}

	if err := svcCtx.RequireCapability(CapStorage); err != nil {
		t.Errorf("RequireCapability(CapStorage) should not error: %v", err)
	}
	if err := svcCtx.RequireCapability(CapDatabase); err == nil {
		t.Error("RequireCapability(CapDatabase) should error")
	}
}

// TestServiceContextAPIs tests that APIs are lazily initialized.
func TestServiceContextAPIs(t *testing.T) {
	trustRoot, err := tee.NewSimulation("test-enclave")
	if err != nil {
		t.Fatalf("failed to create trust root: %v", err)
	}

	ctx := context.Background()
	if err := trustRoot.Start(ctx); err != nil {
		t.Fatalf("failed to start trust root: %v", err)
	}
	defer trustRoot.Stop(ctx)

	manifest := &LegacyManifest{
		ServiceID: "test-service",
		RequiredCapabilities: []Capability{
			CapStorage, CapNetwork, CapDatabase, CapDatabaseWrite, CapMetrics, CapCache,
		},
	}

	svcCtx, err := NewServiceContext(manifest, trustRoot, nil)
	if err != nil {
		t.Fatalf("failed to create context: %v", err)
	}

	if svcCtx.Network() == nil {
		t.Error("Network() returned nil")
	}
	if svcCtx.Storage() == nil {
		t.Error("Storage() returned nil")
	}
	if svcCtx.Database() == nil {
		t.Error("Database() returned nil")
	}
	if svcCtx.Metrics() == nil {
		t.Error("Metrics() returned nil")
	}
	if svcCtx.Cache() == nil {
		t.Error("Cache() returned nil")
	}
}

// TestServiceContextClose tests context closing.
func TestServiceContextClose(t *testing.T) {
	trustRoot, err := tee.NewSimulation("test-enclave")
	if err != nil {
		t.Fatalf("failed to create trust root: %v", err)
	}

	ctx := context.Background()
	if err := trustRoot.Start(ctx); err != nil {
		t.Fatalf("failed to start trust root: %v", err)
	}
	defer trustRoot.Stop(ctx)

	manifest := &LegacyManifest{
		ServiceID: "test-service",
	}

	svcCtx, err := NewServiceContext(manifest, trustRoot, nil)
	if err != nil {
		t.Fatalf("failed to create context: %v", err)
	}

	if err := svcCtx.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}

	select {
	case <-svcCtx.Context().Done():
	case <-time.After(100 * time.Millisecond):
		t.Error("context should be cancelled after Close()")
	}
}
