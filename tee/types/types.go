// Package types defines all interfaces and types for the TEE (Trusted Execution Environment).
// This is the foundation layer - all types are defined here to avoid circular dependencies.
//
// Architecture:
//
//	TEE is the trust root of the entire system. All sensitive operations
//	(secrets, keys, network with credentials) happen inside the enclave.
//	Data NEVER leaves the enclave in plaintext.
package types

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// =============================================================================
// Core Errors
// =============================================================================

var (
	ErrEnclaveNotReady    = errors.New("enclave not ready")
	ErrSecretNotFound     = errors.New("secret not found")
	ErrSecretAccessDenied = errors.New("secret access denied")
	ErrNetworkNotAllowed  = errors.New("network request not allowed")
)

// =============================================================================
// Enclave Mode
// =============================================================================

// EnclaveMode specifies the TEE operation mode.
type EnclaveMode string

const (
	EnclaveModeSimulation EnclaveMode = "simulation"
	EnclaveModeHardware   EnclaveMode = "hardware"
)

// =============================================================================
// TrustRoot - The Foundation Interface
// =============================================================================

// TrustRoot is the foundation of all secure operations.
// It provides access to the TEE capabilities the service layer exercises.
type TrustRoot interface {
	// Lifecycle
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Health(ctx context.Context) error

	// Mode
	Mode() EnclaveMode

	// Core capabilities
	Vault() SecureVault
	Network() SecureNetwork
}

// =============================================================================
// SecureVault - Secret Management
// =============================================================================

// SecretConsumer is called with the secret value inside the enclave.
// The secret is ONLY available inside this callback and is zeroed after.
type SecretConsumer func(secret []byte) error

// MultiSecretConsumer is called with multiple secrets inside the enclave.
type MultiSecretConsumer func(secrets map[string][]byte) error

// SecureVault manages secrets inside the TEE enclave.
// Secrets are encrypted at rest and NEVER leave the enclave in plaintext.
type SecureVault interface {
	// Store encrypts and stores a secret.
	Store(ctx context.Context, namespace, name string, value []byte) error

	// Use executes a function with access to a secret.
	// The secret is ONLY available inside the callback.
	// This is the ONLY way to access secret values - they are never returned.
	Use(ctx context.Context, namespace, name string, fn SecretConsumer) error

	// UseMultiple executes a function with access to multiple secrets.
	UseMultiple(ctx context.Context, refs []SecretRef, fn MultiSecretConsumer) error

	// Delete removes a secret.
	Delete(ctx context.Context, namespace, name string) error

	// List returns secret names (not values) in a namespace.
	List(ctx context.Context, namespace string) ([]string, error)

	// Exists checks if a secret exists.
	Exists(ctx context.Context, namespace, name string) (bool, error)
}

// SecretRef references a secret to be made available during computation.
type SecretRef struct {
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
	Alias     string `json:"alias,omitempty"` // Optional alias for the secret
}

// =============================================================================
// SecureNetwork - Networking with TLS Inside Enclave
// =============================================================================

// SecureNetwork provides networking with TLS termination inside the enclave.
// Credentials are injected inside the enclave and never leave.
type SecureNetwork interface {
	// Fetch performs an HTTP request with TLS inside the enclave.
	Fetch(ctx context.Context, req SecureHTTPRequest) (*SecureHTTPResponse, error)

	// FetchWithSecret performs HTTP with secret-based auth.
	// The secret is retrieved from vault and injected inside the enclave.
	FetchWithSecret(ctx context.Context, req SecureHTTPRequest, namespace, secretName string, authType AuthType) (*SecureHTTPResponse, error)

	// RPC performs a JSON-RPC call.
	RPC(ctx context.Context, endpoint, method string, params any) (json.RawMessage, error)

	// RPCWithSecret performs RPC with secret-based auth.
	RPCWithSecret(ctx context.Context, endpoint, method string, params any, namespace, secretName string) (json.RawMessage, error)
}

// SecureHTTPRequest represents an HTTP request to be made inside the enclave.
type SecureHTTPRequest struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    []byte            `json:"body,omitempty"`
	Timeout time.Duration     `json:"timeout,omitempty"`
}

// SecureHTTPResponse represents an HTTP response received inside the enclave.
type SecureHTTPResponse struct {
	StatusCode int               `json:"status_code"`
	Headers    map[string]string `json:"headers,omitempty"`
	Body       []byte            `json:"body,omitempty"`
}

// AuthType specifies how to use a secret for authentication.
type AuthType string

const (
	AuthTypeBearer AuthType = "bearer"
	AuthTypeBasic  AuthType = "basic"
	AuthTypeAPIKey AuthType = "api_key"
	AuthTypeCustom AuthType = "custom"
)

// =============================================================================
// TEE Error Type
// =============================================================================

// TEEError represents a TEE-specific error.
type TEEError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *TEEError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *TEEError) Unwrap() error {
	return e.Cause
}

// NewTEEError creates a new TEE error.
func NewTEEError(code, message string, cause error) *TEEError {
	return &TEEError{Code: code, Message: message, Cause: cause}
}
