// Package file provides a storage driver backed by a single JSON state
// file. The file is rewritten after every mutation.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/papercomputeco/neolink/pkg/storage"
)

// DefaultFileName is the state file name inside the .neolink directory.
const DefaultFileName = "user_state.json"

// state is the on-disk layout.
type state struct {
	Chats    map[string]string `json:"chats"`
	Channels map[string]string `json:"channels"`
	Guilds   map[string]string `json:"guilds"`
}

// Driver implements storage.Driver on a JSON file.
type Driver struct {
	mu    sync.RWMutex
	path  string
	state state
}

// NewDriver loads path, creating an empty state when the file is missing.
func NewDriver(path string) (*Driver, error) {
	d := &Driver{
		path: path,
		state: state{
			Chats:    map[string]string{},
			Channels: map[string]string{},
			Guilds:   map[string]string{},
		},
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return d, nil
	case err != nil:
		return nil, fmt.Errorf("reading state file: %w", err)
	}

	if len(data) > 0 {
		if err := d.load(data); err != nil {
			return nil, fmt.Errorf("parsing state file %s: %w", path, err)
		}
	}
	return d, nil
}

// load merges data into the empty state. Values may be JSON strings or
// numbers; channel ids written by older bots are bare integers.
func (d *Driver) load(data []byte) error {
	var raw map[string]map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	targets := map[string]map[string]string{
		"chats":    d.state.Chats,
		"channels": d.state.Channels,
		"guilds":   d.state.Guilds,
	}
	for section, values := range raw {
		m, ok := targets[section]
		if !ok {
			continue
		}
		for key, v := range values {
			s, err := stringify(v)
			if err != nil {
				return fmt.Errorf("%s.%s: %w", section, key, err)
			}
			m[key] = s
		}
	}
	return nil
}

func stringify(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), nil
	}
	return "", fmt.Errorf("value %s is not a string or number", string(raw))
}

// Path is the state file location.
func (d *Driver) Path() string {
	return d.path
}

// Get returns the value for key in scope.
func (d *Driver) Get(_ context.Context, scope storage.Scope, key string) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	m, err := d.scopeMap(scope)
	if err != nil {
		return "", err
	}
	v, ok := m[key]
	if !ok {
		return "", storage.NotFoundError{Scope: scope, Key: key}
	}
	return v, nil
}

// Put creates or replaces the value for key in scope and saves the file.
func (d *Driver) Put(_ context.Context, scope storage.Scope, key, value string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	m, err := d.scopeMap(scope)
	if err != nil {
		return err
	}
	m[key] = value
	return d.save()
}

// Delete removes key from scope and saves the file if it changed.
func (d *Driver) Delete(_ context.Context, scope storage.Scope, key string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	m, err := d.scopeMap(scope)
	if err != nil {
		return false, err
	}
	if _, ok := m[key]; !ok {
		return false, nil
	}
	delete(m, key)
	return true, d.save()
}

// Close is a no-op; every mutation is already on disk.
func (d *Driver) Close() error {
	return nil
}

func (d *Driver) scopeMap(scope storage.Scope) (map[string]string, error) {
	switch scope {
	case storage.ScopeSession:
		return d.state.Chats, nil
	case storage.ScopeUserChannel:
		return d.state.Channels, nil
	case storage.ScopeGuildChannel:
		return d.state.Guilds, nil
	default:
		return nil, fmt.Errorf("unknown scope %q", scope)
	}
}

// save writes to a temp file and renames it over the state file.
func (d *Driver) save() error {
	data, err := json.MarshalIndent(d.state, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(d.path), 0o755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}

	tmp := d.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing state file: %w", err)
	}
	if err := os.Rename(tmp, d.path); err != nil {
		return fmt.Errorf("replacing state file: %w", err)
	}
	return nil
}
