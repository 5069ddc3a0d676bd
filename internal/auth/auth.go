// Package auth provides local password login, Google OAuth login, and
// bearer-token sessions for the REST API.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// ErrInvalidCredentials is returned for unknown users, wrong passwords
// and rejected OAuth exchanges.
var ErrInvalidCredentials = errors.New("invalid credentials")

const (
	sessionTTL        = 24 * time.Hour
	googleUserinfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
)

// UserStore resolves stored credentials for local logins.
type UserStore interface {
	GetUserHash(username string) (string, error)
	CreateUser(username, passwordHash, email string) error
}

// Session is an authenticated principal.
type Session struct {
	Token     string    `json:"token"`
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Service performs logins and validates session tokens. Sessions live in
// memory and do not survive a restart.
type Service struct {
	users  UserStore
	oauth  *oauth2.Config
	logger *zap.Logger

	mu       sync.RWMutex
	sessions map[string]Session
}

// NewService creates an auth service. OAuth login is disabled when
// clientID is empty.
func NewService(users UserStore, clientID, clientSecret, redirectURL string, logger *zap.Logger) *Service {
	s := &Service{
		users:    users,
		logger:   logger,
		sessions: make(map[string]Session),
	}
	if clientID != "" {
		s.oauth = &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		}
	}
	return s
}

// Register creates a local user with a bcrypt-hashed password.
func (s *Service) Register(username, password, email string) error {
	if username == "" || password == "" {
		return fmt.Errorf("username and password are required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	return s.users.CreateUser(username, string(hash), email)
}

// Login verifies a local password and issues a session.
func (s *Service) Login(username, password string) (*Session, error) {
	hash, err := s.users.GetUserHash(username)
	if err != nil {
		// Do not leak whether the user exists.
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	session := s.issueSession(username, "")
	s.logger.Info("user logged in", zap.String("username", username))
	return &session, nil
}

// OAuthEnabled reports whether Google login is configured.
func (s *Service) OAuthEnabled() bool {
	return s.oauth != nil
}

// AuthURL returns the Google consent URL for the given state.
func (s *Service) AuthURL(state string) (string, error) {
	if s.oauth == nil {
		return "", fmt.Errorf("oauth login is not configured")
	}
	return s.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline), nil
}

// ExchangeCode trades an OAuth authorization code for a session, using
// the Google userinfo endpoint to identify the user.
func (s *Service) ExchangeCode(ctx context.Context, code string) (*Session, error) {
	if s.oauth == nil {
		return nil, fmt.Errorf("oauth login is not configured")
	}

	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		s.logger.Warn("oauth exchange failed", zap.Error(err))
		return nil, ErrInvalidCredentials
	}

	info, err := s.fetchUserinfo(ctx, token)
	if err != nil {
		return nil, err
	}
	if info.Email == "" {
		return nil, ErrInvalidCredentials
	}

	session := s.issueSession(info.Email, info.Email)
	s.logger.Info("oauth login", zap.String("email", info.Email))
	return &session, nil
}

type userinfo struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

func (s *Service) fetchUserinfo(ctx context.Context, token *oauth2.Token) (*userinfo, error) {
	client := s.oauth.Client(ctx, token)
	resp, err := client.Get(googleUserinfoURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo returned status %d", resp.StatusCode)
	}

	var info userinfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode userinfo: %w", err)
	}
	return &info, nil
}

// Validate resolves a bearer token to its session. Expired sessions are
// evicted on access.
func (s *Service) Validate(token string) (*Session, bool) {
	s.mu.RLock()
	session, ok := s.sessions[token]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Now().After(session.ExpiresAt) {
		s.mu.Lock()
		delete(s.sessions, token)
		s.mu.Unlock()
		return nil, false
	}
	return &session, true
}

// Revoke invalidates a session token.
func (s *Service) Revoke(token string) {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
}

func (s *Service) issueSession(username, email string) Session {
	session := Session{
		Token:     newToken(),
		Username:  username,
		Email:     email,
		ExpiresAt: time.Now().Add(sessionTTL),
	}
	s.mu.Lock()
	s.sessions[session.Token] = session
	s.mu.Unlock()
	return session
}

func newToken() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("failed to read random bytes: %v", err))
	}
	return hex.EncodeToString(buf)
}
