// Package base provides base components for all services.
package base

import (
	"context"
	"fmt"
	"sync"

	"github.com/cradle-labs/cradle-core/platform/os"
)

// Enclave is the base interface for service enclave operations.
// Enclave operations run inside the TEE and have access to secrets.
type Enclave interface {
	// Initialize initializes the enclave
	Initialize(ctx context.Context) error

	// Shutdown shuts down the enclave
	Shutdown(ctx context.Context) error

	// Health checks enclave health
	Health(ctx context.Context) error
}

// BaseEnclave provides common enclave functionality.
type BaseEnclave struct {
	mu sync.RWMutex

	serviceID string
	os        os.ServiceOS
	logger    os.Logger
	ready     bool
}

// NewBaseEnclave creates a new BaseEnclave.
func NewBaseEnclave(serviceID string, serviceOS os.ServiceOS) *BaseEnclave {
	return &BaseEnclave{
		serviceID: serviceID,
		os:        serviceOS,
		logger:    serviceOS.Logger(),
	}
}

// Initialize initializes the base enclave.
func (e *BaseEnclave) Initialize(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.ready {
		return nil
	}

	e.logger.Info("enclave initializing", "service", e.serviceID)
	e.ready = true
	e.logger.Info("enclave initialized", "service", e.serviceID)

	return nil
}

// Shutdown shuts down the base enclave.
func (e *BaseEnclave) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.ready {
		return nil
	}

	e.logger.Info("enclave shutting down", "service", e.serviceID)
	e.ready = false
	e.logger.Info("enclave shut down", "service", e.serviceID)

	return nil
}

// Health checks if the enclave is healthy.
func (e *BaseEnclave) Health(ctx context.Context) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if !e.ready {
		return fmt.Errorf("enclave not ready")
	}
	return nil
}

// OS returns the ServiceOS.
func (e *BaseEnclave) OS() os.ServiceOS {
	return e.os
}

// Logger returns the logger.
func (e *BaseEnclave) Logger() os.Logger {
	return e.logger
}

// ServiceID returns the service ID.
func (e *BaseEnclave) ServiceID() string {
	return e.serviceID
}

// IsReady returns whether the enclave is ready.
func (e *BaseEnclave) IsReady() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ready
}

// =============================================================================
// Enclave Operations Helpers
// =============================================================================

// UseStorage executes a callback with a stored value without exporting it to the caller.
func (e *BaseEnclave) UseStorage(ctx context.Context, key string, fn func(value []byte) error) error {
	if !e.IsReady() {
		return fmt.Errorf("enclave not ready")
	}
	return e.os.Storage().Use(ctx, key, fn)
}

// StorageExists checks if a storage key exists in the enclave-backed store.
func (e *BaseEnclave) StorageExists(ctx context.Context, key string) (bool, error) {
	if !e.IsReady() {
		return false, fmt.Errorf("enclave not ready")
	}
	return e.os.Storage().Exists(ctx, key)
}
