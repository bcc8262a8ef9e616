// Package tee provides the Trust Root for the Service Layer.
// TEE (Trusted Execution Environment) is the foundation of all secure operations.
// All sensitive data (secrets, keys, credentials) NEVER leave the enclave in plaintext.
package tee

import (
	"context"
	"fmt"
	"sync"

	"github.com/cradle-labs/cradle-core/tee/bridge"
	"github.com/cradle-labs/cradle-core/tee/enclave"
	"github.com/cradle-labs/cradle-core/tee/network"
	"github.com/cradle-labs/cradle-core/tee/types"
	"github.com/cradle-labs/cradle-core/tee/vault"
)

// Config holds TrustRoot configuration.
type Config struct {
	// EnclaveID is the unique identifier for this enclave
	EnclaveID string

	// Mode specifies simulation or hardware mode
	Mode types.EnclaveMode

	// SealingKeyPath is the path to the sealing key (simulation mode only)
	SealingKeyPath string

	// StoragePath is the path for sealed storage (secrets, state)
	StoragePath string

	// AllowedHosts restricts outbound network destinations (optional)
	AllowedHosts []string

	// DebugMode enables debug logging
	DebugMode bool
}

// TrustRoot implements types.TrustRoot.
// It is the foundation of all secure operations in the Service Layer.
type TrustRoot struct {
	mu sync.RWMutex

	config  Config
	runtime enclave.Runtime

	// Core components
	vaultImpl   *vault.Vault
	networkImpl *network.Client

	ready bool
}

// New creates a new TrustRoot.
func New(cfg Config) (*TrustRoot, error) {
	if cfg.EnclaveID == "" {
		return nil, fmt.Errorf("enclave_id is required")
	}

	// Convert mode
	var enclaveMode enclave.Mode
	switch cfg.Mode {
	case types.EnclaveModeHardware:
		enclaveMode = enclave.ModeHardware
	default:
		enclaveMode = enclave.ModeSimulation
	}

	// Create enclave runtime
	runtime, err := enclave.New(enclave.Config{
		Mode:           enclaveMode,
		EnclaveID:      cfg.EnclaveID,
		SealingKeyPath: cfg.SealingKeyPath,
		DebugMode:      cfg.DebugMode,
	})
	if err != nil {
		return nil, fmt.Errorf("create runtime: %w", err)
	}

	return &TrustRoot{
		config:  cfg,
		runtime: runtime,
	}, nil
}

// Start initializes and starts the TrustRoot.
func (t *TrustRoot) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.ready {
		return nil
	}

	// Initialize runtime
	if err := t.runtime.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize runtime: %w", err)
	}

	// Configure sealed storage bridge if requested
	var storage vault.Storage
	if t.config.StoragePath != "" {
		bridgeStorage, err := bridge.NewStorage(bridge.StorageConfig{
			BasePath: t.config.StoragePath,
		})
		if err != nil {
			return fmt.Errorf("create storage bridge: %w", err)
		}
		storage = bridgeStorage
	}

	// Initialize vault
	vaultImpl, err := vault.New(vault.Config{
		Runtime: t.runtime,
		Storage: storage,
	})
	if err != nil {
		return fmt.Errorf("create vault: %w", err)
	}
	t.vaultImpl = vaultImpl

	// Initialize network client
	networkImpl, err := network.New(network.Config{
		Runtime:      t.runtime,
		Vault:        t.vaultImpl,
		AllowedHosts: t.config.AllowedHosts,
	})
	if err != nil {
		return fmt.Errorf("create network: %w", err)
	}
	t.networkImpl = networkImpl

	t.ready = true
	return nil
}

// Stop shuts down the TrustRoot.
func (t *TrustRoot) Stop(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.ready {
		return nil
	}

	// Shutdown runtime
	if err := t.runtime.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown runtime: %w", err)
	}

	t.ready = false
	return nil
}

// Health checks if the TrustRoot is healthy.
func (t *TrustRoot) Health(ctx context.Context) error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if !t.ready {
		return types.ErrEnclaveNotReady
	}

	return t.runtime.Health(ctx)
}

// Mode returns the enclave mode.
func (t *TrustRoot) Mode() types.EnclaveMode {
	return t.config.Mode
}

// Vault returns the SecureVault.
func (t *TrustRoot) Vault() types.SecureVault {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.vaultImpl
}

// Network returns the SecureNetwork.
func (t *TrustRoot) Network() types.SecureNetwork {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.networkImpl
}

// Runtime returns the enclave runtime (for internal use).
func (t *TrustRoot) Runtime() enclave.Runtime {
	return t.runtime
}

// =============================================================================
// Factory Functions
// =============================================================================

// NewSimulation creates a TrustRoot in simulation mode.
func NewSimulation(enclaveID string) (*TrustRoot, error) {
	return New(Config{
		EnclaveID: enclaveID,
		Mode:      types.EnclaveModeSimulation,
		DebugMode: true,
	})
}

// NewHardware creates a TrustRoot in hardware mode.
func NewHardware(enclaveID string) (*TrustRoot, error) {
	return New(Config{
		EnclaveID: enclaveID,
		Mode:      types.EnclaveModeHardware,
	})
}
