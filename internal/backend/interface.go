// Package backend builds the remote ledger client, the local identity store
// and the optional change notifier from configuration.
package backend

import (
	"context"

	"spendtrack/internal/core"
	"spendtrack/internal/identity"
	"spendtrack/internal/ledger"
)

// Notifier publishes committed changes.
type Notifier interface {
	PublishChange(ctx context.Context, ev core.ChangeEvent) error
}

// CleanupFunc releases resources held by a backend.
type CleanupFunc func() error

// Backend bundles the adapters a ledger service runs on.
type Backend struct {
	Ledger   ledger.Client
	Identity identity.Store
	// Notifier is nil when change notifications are disabled.
	Notifier Notifier
	// Remote is true when Ledger talks to a remote service.
	Remote bool
}

// BackendResult contains the backend and its cleanup function.
type BackendResult struct {
	Backend Backend
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration.
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// LedgerType selects the remote ledger implementation.
type LedgerType string

const (
	HTTPLedger   LedgerType = "http"
	MemoryLedger LedgerType = "memory"
)

func (t LedgerType) String() string { return string(t) }

func (t LedgerType) IsValid() bool {
	switch t {
	case HTTPLedger, MemoryLedger:
		return true
	default:
		return false
	}
}

// IdentityType selects where the user id and currency are persisted.
type IdentityType string

const (
	SQLiteIdentity IdentityType = "sqlite"
	MemoryIdentity IdentityType = "memory"
)

func (t IdentityType) String() string { return string(t) }

func (t IdentityType) IsValid() bool {
	switch t {
	case SQLiteIdentity, MemoryIdentity:
		return true
	default:
		return false
	}
}
