// Package session holds the CLI's current signed-in principal, persisted to
// disk between invocations so a login survives separate command runs.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/madhur53/library-management-system/internal/domain"
)

type PrincipalType string

const (
	PrincipalUser  PrincipalType = "USER"
	PrincipalAdmin PrincipalType = "ADMIN"
)

// Principal is the signed-in identity: a library user who can borrow, or an
// admin who manages members but never borrows.
type Principal struct {
	Type     PrincipalType `json:"type"`
	UserID   int64         `json:"userId,omitempty"`
	AdminID  int64         `json:"adminId,omitempty"`
	Username string        `json:"username"`
	Token    string        `json:"token"`
}

// Manager loads and stores the principal at a fixed path.
type Manager struct {
	path string
}

func NewManager(path string) *Manager {
	return &Manager{path: path}
}

// DefaultPath places the session file under the user's config directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "libctl", "session.json"), nil
}

// Begin replaces any existing session with the given principal.
func (m *Manager) Begin(p Principal) error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(m.path, data, 0o600)
}

// End discards the current session. Ending an absent session is a no-op.
func (m *Manager) End() error {
	err := os.Remove(m.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// Current returns the signed-in principal, or domain.ErrUnauthenticated when
// nobody is signed in.
func (m *Manager) Current() (*Principal, error) {
	data, err := os.ReadFile(m.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, domain.ErrUnauthenticated
	}
	if err != nil {
		return nil, err
	}

	var p Principal
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("corrupt session file %s: %w", m.path, err)
	}
	if p.Token == "" {
		return nil, domain.ErrUnauthenticated
	}
	return &p, nil
}

// BorrowerID returns the user id allowed to borrow. Admins manage members but
// hold no borrowing identity of their own.
func (m *Manager) BorrowerID() (int64, error) {
	p, err := m.Current()
	if err != nil {
		return 0, err
	}
	if p.Type != PrincipalUser || p.UserID <= 0 {
		return 0, fmt.Errorf("%w: only a signed-in user can borrow", domain.ErrUnauthenticated)
	}
	return p.UserID, nil
}
