package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/madhur53/library-management-system/internal/domain"
)

func newManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(filepath.Join(t.TempDir(), "session.json"))
}

func TestSessionLifecycle(t *testing.T) {
	m := newManager(t)

	_, err := m.Current()
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	require.NoError(t, m.Begin(Principal{
		Type: PrincipalUser, UserID: 7, Username: "reader", Token: "tok",
	}))

	p, err := m.Current()
	require.NoError(t, err)
	assert.Equal(t, PrincipalUser, p.Type)
	assert.EqualValues(t, 7, p.UserID)

	require.NoError(t, m.End())
	_, err = m.Current()
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	// Ending twice is fine.
	assert.NoError(t, m.End())
}

func TestBeginReplacesExistingSession(t *testing.T) {
	m := newManager(t)

	require.NoError(t, m.Begin(Principal{Type: PrincipalUser, UserID: 7, Username: "a", Token: "t1"}))
	require.NoError(t, m.Begin(Principal{Type: PrincipalAdmin, AdminID: 2, Username: "b", Token: "t2"}))

	p, err := m.Current()
	require.NoError(t, err)
	assert.Equal(t, PrincipalAdmin, p.Type)
	assert.Equal(t, "t2", p.Token)
}

func TestBorrowerIdentity(t *testing.T) {
	m := newManager(t)

	_, err := m.BorrowerID()
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	require.NoError(t, m.Begin(Principal{Type: PrincipalAdmin, AdminID: 2, Username: "staff", Token: "t"}))
	_, err = m.BorrowerID()
	assert.ErrorIs(t, err, domain.ErrUnauthenticated,
		"admins manage members, they do not borrow")

	require.NoError(t, m.Begin(Principal{Type: PrincipalUser, UserID: 7, Username: "reader", Token: "t"}))
	id, err := m.BorrowerID()
	require.NoError(t, err)
	assert.EqualValues(t, 7, id)
}

func TestCorruptSessionFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := NewManager(path).Current()
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrUnauthenticated,
		"a corrupt file is an error, not an anonymous session")
}
