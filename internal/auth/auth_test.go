package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type memUsers struct {
	hashes map[string]string
}

func (m *memUsers) GetUserHash(username string) (string, error) {
	hash, ok := m.hashes[username]
	if !ok {
		return "", errors.New("not found")
	}
	return hash, nil
}

func (m *memUsers) CreateUser(username, passwordHash, _ string) error {
	if _, ok := m.hashes[username]; ok {
		return errors.New("exists")
	}
	m.hashes[username] = passwordHash
	return nil
}

func newTestService(t *testing.T) (*Service, *memUsers) {
	t.Helper()
	users := &memUsers{hashes: map[string]string{}}
	return NewService(users, "", "", "", zap.NewNop()), users
}

func TestRegisterAndLogin(t *testing.T) {
	s, users := newTestService(t)

	require.NoError(t, s.Register("alice", "s3cret", "alice@example.com"))

	// Stored hash must verify, and must not be the raw password.
	hash := users.hashes["alice"]
	assert.NotEqual(t, "s3cret", hash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("s3cret")))

	session, err := s.Login("alice", "s3cret")
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)
	assert.Equal(t, "alice", session.Username)
	assert.True(t, session.ExpiresAt.After(time.Now()))
}

func TestLoginWrongPassword(t *testing.T) {
	s, _ := newTestService(t)
	require.NoError(t, s.Register("alice", "s3cret", ""))

	_, err := s.Login("alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginUnknownUser(t *testing.T) {
	s, _ := newTestService(t)
	_, err := s.Login("nobody", "pw")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegisterRequiresCredentials(t *testing.T) {
	s, _ := newTestService(t)
	assert.Error(t, s.Register("", "pw", ""))
	assert.Error(t, s.Register("alice", "", ""))
}

func TestValidateAndRevoke(t *testing.T) {
	s, _ := newTestService(t)
	require.NoError(t, s.Register("alice", "pw", ""))
	session, err := s.Login("alice", "pw")
	require.NoError(t, err)

	got, ok := s.Validate(session.Token)
	require.True(t, ok)
	assert.Equal(t, "alice", got.Username)

	_, ok = s.Validate("bogus")
	assert.False(t, ok)

	s.Revoke(session.Token)
	_, ok = s.Validate(session.Token)
	assert.False(t, ok)
}

func TestValidateExpiredSession(t *testing.T) {
	s, _ := newTestService(t)
	session := s.issueSession("alice", "")

	s.mu.Lock()
	session.ExpiresAt = time.Now().Add(-time.Minute)
	s.sessions[session.Token] = session
	s.mu.Unlock()

	_, ok := s.Validate(session.Token)
	assert.False(t, ok)
}

func TestOAuthDisabled(t *testing.T) {
	s, _ := newTestService(t)
	assert.False(t, s.OAuthEnabled())
	_, err := s.AuthURL("state")
	assert.Error(t, err)
}

func TestOAuthConfigured(t *testing.T) {
	users := &memUsers{hashes: map[string]string{}}
	s := NewService(users, "client-id", "client-secret", "http://localhost/cb", zap.NewNop())
	require.True(t, s.OAuthEnabled())

	url, err := s.AuthURL("xyz")
	require.NoError(t, err)
	assert.Contains(t, url, "client-id")
	assert.Contains(t, url, "state=xyz")
}
