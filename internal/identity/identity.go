// Package identity resolves the anonymous owner identifier a client uses for
// every record it touches. There is no authentication; the identifier is a
// random UUID persisted in client-local storage.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"gardenkeep/pkg/domain"
)

// StorageKey is the key the identifier is persisted under.
const StorageKey = "plant_garden_user_id"

// ErrNoValue is returned by a KeyValueStore for an absent key.
var ErrNoValue = errors.New("identity: no value")

// KeyValueStore is durable client-local string storage.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Provider hands out a stable identifier backed by a KeyValueStore.
type Provider struct {
	mu    sync.Mutex
	store KeyValueStore
}

// NewProvider returns a provider over store. A nil store behaves like
// Ephemeral.
func NewProvider(store KeyValueStore) *Provider {
	return &Provider{store: store}
}

// Ephemeral returns a provider without durable storage. It always yields
// domain.NullUserID.
func Ephemeral() *Provider { return &Provider{} }

// UserID returns the persisted identifier, generating and storing a new v4
// UUID on first use.
func (p *Provider) UserID(ctx context.Context) (domain.UserID, error) {
	if p.store == nil {
		return domain.NullUserID, nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	existing, err := p.store.Get(ctx, StorageKey)
	switch {
	case err == nil && strings.TrimSpace(existing) != "":
		return domain.UserID(strings.TrimSpace(existing)), nil
	case err != nil && !errors.Is(err, ErrNoValue):
		return "", fmt.Errorf("read identity: %w", err)
	}

	id := uuid.NewString()
	if err := p.store.Set(ctx, StorageKey, id); err != nil {
		return "", fmt.Errorf("persist identity: %w", err)
	}
	return domain.UserID(id), nil
}

// Clear forgets the persisted identifier. The next UserID call generates a
// new one.
func (p *Provider) Clear(ctx context.Context) error {
	if p.store == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.store.Delete(ctx, StorageKey); err != nil && !errors.Is(err, ErrNoValue) {
		return fmt.Errorf("clear identity: %w", err)
	}
	return nil
}

// MemoryStore is an in-process KeyValueStore.
type MemoryStore struct {
	mu     sync.Mutex
	values map[string]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

// Get returns the value for key, or ErrNoValue.
func (m *MemoryStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return "", ErrNoValue
	}
	return v, nil
}

// Set stores value under key.
func (m *MemoryStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	m.values[key] = value
	m.mu.Unlock()
	return nil
}

// Delete removes key.
func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.values, key)
	m.mu.Unlock()
	return nil
}
