// Package identity holds the locally persisted user identifier and currency
// preference, and the per-operation session snapshot derived from them.
package identity

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Keys used in the local store.
const (
	KeyUserID   = "userId"
	KeyCurrency = "userCurrency"
)

// DefaultCurrency is used when neither the store nor the caller names one.
const DefaultCurrency = "USD"

// Store is a small key-value persistence. A missing key is reported with
// ok == false and a nil error.
type Store interface {
	GetItem(ctx context.Context, key string) (value string, ok bool, err error)
	SetItem(ctx context.Context, key, value string) error
	RemoveItem(ctx context.Context, key string) error
}

// Session is the identity read once at the start of an operation. All work
// done for that operation uses the same snapshot.
type Session struct {
	UserID   string
	Currency string
}

// Authenticated reports whether a user id was resolved.
func (s Session) Authenticated() bool {
	return s.UserID != ""
}

// Resolver yields the session for one operation.
type Resolver interface {
	Resolve(ctx context.Context) (Session, error)
}

// StoreResolver resolves sessions from a Store.
type StoreResolver struct {
	Store            Store
	FallbackCurrency string
}

// Resolve implements Resolver. A session pinned in ctx with WithSession
// is returned as is.
func (r StoreResolver) Resolve(ctx context.Context) (Session, error) {
	if sess, ok := FromContext(ctx); ok {
		return sess, nil
	}
	return Resolve(ctx, r.Store, r.FallbackCurrency)
}

type sessionKey struct{}

// WithSession pins sess for the rest of an operation so that nested calls
// see the same identity.
func WithSession(ctx context.Context, sess Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, sess)
}

// FromContext returns the session pinned with WithSession.
func FromContext(ctx context.Context) (Session, bool) {
	sess, ok := ctx.Value(sessionKey{}).(Session)
	return sess, ok
}

// Resolve reads the user id and currency from store. An absent user id
// yields an anonymous session, not an error.
func Resolve(ctx context.Context, store Store, fallbackCurrency string) (Session, error) {
	userID, _, err := store.GetItem(ctx, KeyUserID)
	if err != nil {
		return Session{}, fmt.Errorf("read %s: %w", KeyUserID, err)
	}
	currency, ok, err := store.GetItem(ctx, KeyCurrency)
	if err != nil {
		return Session{}, fmt.Errorf("read %s: %w", KeyCurrency, err)
	}
	if !ok || strings.TrimSpace(currency) == "" {
		currency = fallbackCurrency
	}
	if currency == "" {
		currency = DefaultCurrency
	}
	return Session{
		UserID:   strings.TrimSpace(userID),
		Currency: strings.ToUpper(strings.TrimSpace(currency)),
	}, nil
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]string
}

// Ensure interface conformance
var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]string)}
}

// GetItem implements Store
func (m *MemoryStore) GetItem(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.items[key]
	return v, ok, nil
}

// SetItem implements Store
func (m *MemoryStore) SetItem(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = value
	return nil
}

// RemoveItem implements Store
func (m *MemoryStore) RemoveItem(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}
