// Package credentials stores the neo access token in credentials.toml.
package credentials

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/papercomputeco/neolink/pkg/dotdir"
)

const (
	credentialsFile = "credentials.toml"

	currentVersion = 0

	// TokenEnvVar overrides the stored token.
	TokenEnvVar = "NEOLINK_TOKEN"
)

// ErrNoToken is returned when no token is stored or set in the environment.
var ErrNoToken = errors.New("no neo token configured (run 'neolink auth' or set " + TokenEnvVar + ")")

// Manager manages reading and writing credentials.toml in the .neolink/ directory.
type Manager struct {
	ddm        *dotdir.Manager
	targetPath string
}

// NewManager creates a new credentials Manager. If override is non-empty it is
// used as the .neolink/ directory; otherwise the standard dotdir resolution applies.
func NewManager(override string) (*Manager, error) {
	mgr := &Manager{}
	mgr.ddm = dotdir.NewManager()

	target, err := mgr.ddm.Target(override)
	if err != nil {
		return nil, err
	}

	mgr.targetPath = filepath.Join(target, credentialsFile)

	return mgr, nil
}

// Load reads credentials.toml from the target directory.
// Returns an empty Credentials if the file does not exist.
func (m *Manager) Load() (*Credentials, error) {
	data, err := os.ReadFile(m.targetPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Credentials{Version: currentVersion}, nil
		}
		return nil, fmt.Errorf("reading credentials: %w", err)
	}

	creds := &Credentials{}
	if err := toml.Unmarshal(data, creds); err != nil {
		return nil, fmt.Errorf("parsing credentials: %w", err)
	}

	return creds, nil
}

// Save writes credentials to credentials.toml with 0600 permissions.
func (m *Manager) Save(creds *Credentials) error {
	if creds == nil {
		return errors.New("cannot save nil credentials")
	}

	var buf bytes.Buffer
	encoder := toml.NewEncoder(&buf)
	if err := encoder.Encode(creds); err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}

	if err := os.WriteFile(m.targetPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing credentials: %w", err)
	}

	return nil
}

// SetToken stores the neo token.
func (m *Manager) SetToken(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("token is empty")
	}

	creds, err := m.Load()
	if err != nil {
		return err
	}

	creds.Neo.Token = token

	return m.Save(creds)
}

// Token returns the token from NEOLINK_TOKEN, else the stored one.
func (m *Manager) Token() (string, error) {
	if env := strings.TrimSpace(os.Getenv(TokenEnvVar)); env != "" {
		return env, nil
	}

	creds, err := m.Load()
	if err != nil {
		return "", err
	}

	if creds.Neo.Token == "" {
		return "", ErrNoToken
	}

	return creds.Neo.Token, nil
}

// RemoveToken deletes the stored token.
func (m *Manager) RemoveToken() error {
	creds, err := m.Load()
	if err != nil {
		return err
	}

	creds.Neo.Token = ""

	return m.Save(creds)
}

// GetTarget returns the resolved path to the credentials file.
func (m *Manager) GetTarget() string {
	return m.targetPath
}

// Mask shortens a token for display.
func Mask(token string) string {
	if len(token) <= 8 {
		return strings.Repeat("*", len(token))
	}
	return token[:4] + strings.Repeat("*", len(token)-8) + token[len(token)-4:]
}
