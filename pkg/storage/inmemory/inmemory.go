// Package inmemory provides a map-backed storage driver. State is lost when
// the process exits.
package inmemory

import (
	"context"
	"sync"

	"github.com/papercomputeco/neolink/pkg/storage"
)

// Driver implements storage.Driver using in-memory maps.
type Driver struct {
	// mu is a read write sync mutex for locking the scope maps
	mu sync.RWMutex

	values map[storage.Scope]map[string]string
}

// NewDriver creates a new in-memory driver.
func NewDriver() *Driver {
	values := make(map[storage.Scope]map[string]string, len(storage.Scopes))
	for _, scope := range storage.Scopes {
		values[scope] = make(map[string]string)
	}
	return &Driver{values: values}
}

// Get returns the value for key in scope.
func (d *Driver) Get(_ context.Context, scope storage.Scope, key string) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	v, ok := d.values[scope][key]
	if !ok {
		return "", storage.NotFoundError{Scope: scope, Key: key}
	}
	return v, nil
}

// Put creates or replaces the value for key in scope.
func (d *Driver) Put(_ context.Context, scope storage.Scope, key, value string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	m, ok := d.values[scope]
	if !ok {
		m = make(map[string]string)
		d.values[scope] = m
	}
	m[key] = value
	return nil
}

// Delete removes key from scope.
func (d *Driver) Delete(_ context.Context, scope storage.Scope, key string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, ok := d.values[scope][key]
	delete(d.values[scope], key)
	return ok, nil
}

// Close is a no-op for the in-memory driver.
func (d *Driver) Close() error {
	return nil
}
