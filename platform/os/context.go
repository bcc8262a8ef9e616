// Package os provides the ServiceOS abstraction layer.
// ServiceOS is like Android OS - it abstracts TEE details and provides
// capability-based access control for services.
package os

import (
	"context"
	"fmt"
	"sync"

	"github.com/cradle-labs/cradle-core/tee"
)

// ServiceContext implements ServiceOS for a specific service.
// It provides capability-checked access to all platform APIs.
// Note: Uses LegacyManifest for per-service configuration.
// The new Manifest type is for mesh-wide configuration (MarbleRun-style).
type ServiceContext struct {
	mu sync.RWMutex

	manifest     *LegacyManifest
	trustRoot    *tee.TrustRoot
	capabilities map[Capability]bool
	ctx          context.Context
	cancel       context.CancelFunc
	logger       Logger

	// API implementations (lazy initialized)
	networkAPI  *networkAPIImpl
	storageAPI  *storageAPIImpl
	databaseAPI *databaseAPIImpl
	metricsAPI  *metricsAPIImpl
	cacheAPI    *cacheAPIImpl
}

// NewServiceContext creates a new ServiceContext for a service.
// Uses LegacyManifest for per-service configuration.
func NewServiceContext(manifest *LegacyManifest, trustRoot *tee.TrustRoot, logger Logger) (*ServiceContext, error) {
	if manifest == nil {
		return nil, fmt.Errorf("manifest is required")
	}
	if trustRoot == nil {
		return nil, fmt.Errorf("trust_root is required")
	}

	ctx, cancel := context.WithCancel(context.Background())

	// Build capability set from manifest
	caps := make(map[Capability]bool)
	for _, cap := range manifest.RequiredCapabilities {
		caps[cap] = true
	}
	for _, cap := range manifest.OptionalCapabilities {
		caps[cap] = true
	}

	if logger == nil {
		logger = newDefaultLogger(manifest.ServiceID)
	}

	return &ServiceContext{
		manifest:     manifest,
		trustRoot:    trustRoot,
		capabilities: caps,
		ctx:          ctx,
		cancel:       cancel,
		logger:       logger,
	}, nil
}

// =============================================================================
// Identity Methods
// =============================================================================

// ServiceID returns the service identifier.
func (c *ServiceContext) ServiceID() string {
	return c.manifest.ServiceID
}

// Manifest returns the service manifest (legacy format).
func (c *ServiceContext) Manifest() *LegacyManifest {
	return c.manifest
}

// =============================================================================
// Capability Methods
// =============================================================================

// HasCapability checks if the service has a capability.
func (c *ServiceContext) HasCapability(cap Capability) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.capabilities[cap]
}

// RequireCapability returns an error if capability is not granted.
func (c *ServiceContext) RequireCapability(cap Capability) error {
	if !c.HasCapability(cap) {
		return ErrCapabilityDenied(cap)
	}
	return nil
}

// =============================================================================
// Core TEE-backed APIs
// =============================================================================

// Network returns the NetworkAPI.
func (c *ServiceContext) Network() NetworkAPI {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.networkAPI == nil {
		c.networkAPI = newNetworkAPI(c, c.trustRoot.Network(), c.manifest.ServiceID, c.manifest.AllowedHosts)
	}
	return c.networkAPI
}

// Storage returns the StorageAPI.
func (c *ServiceContext) Storage() StorageAPI {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.storageAPI == nil {
		c.storageAPI = newStorageAPI(c, c.trustRoot.Vault(), c.manifest.ServiceID)
	}
	return c.storageAPI
}

// =============================================================================
// Infrastructure APIs
// =============================================================================

// Database returns the DatabaseAPI.
func (c *ServiceContext) Database() DatabaseAPI {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.databaseAPI == nil {
		c.databaseAPI = newDatabaseAPI(c, c.manifest.ServiceID)
	}
	return c.databaseAPI
}

// Cache returns the CacheAPI.
func (c *ServiceContext) Cache() CacheAPI {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cacheAPI == nil {
		c.cacheAPI = newCacheAPI(c, c.manifest.ServiceID)
	}
	return c.cacheAPI
}

// =============================================================================
// Service Management APIs
// =============================================================================

// Metrics returns the MetricsAPI.
func (c *ServiceContext) Metrics() MetricsAPI {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.metricsAPI == nil {
		c.metricsAPI = newMetricsAPI(c, c.manifest.ServiceID)
	}
	return c.metricsAPI
}

// =============================================================================
// Lifecycle Methods
// =============================================================================

// Context returns the service context.
func (c *ServiceContext) Context() context.Context {
	return c.ctx
}

// Logger returns the service logger.
func (c *ServiceContext) Logger() Logger {
	return c.logger
}

// Close closes the service context and releases resources.
func (c *ServiceContext) Close() error {
	c.cancel()
	return nil
}
