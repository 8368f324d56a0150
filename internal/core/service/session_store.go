package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/billsight/billsight-client/internal/core/domain"
	"github.com/billsight/billsight-client/internal/core/ports"
)

// SessionStore holds the bearer token and the identity it was validated for.
// It never talks to the network; persistence goes through a TokenStore.
type SessionStore struct {
	// persist serializes writes to the backing store so a late clear cannot
	// delete a token saved after it.
	persist sync.Mutex

	mu    sync.RWMutex
	store ports.TokenStore
	token string
	user  *domain.User
}

func NewSessionStore(store ports.TokenStore) *SessionStore {
	return &SessionStore{store: store}
}

// Load reads the persisted token into memory. The user stays absent until
// the token is validated and adopted through Set.
func (s *SessionStore) Load(ctx context.Context) error {
	token, err := s.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load token: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.user = nil
	return nil
}

// Set persists token and then adopts token and user together. Memory is left
// untouched when persistence fails.
func (s *SessionStore) Set(ctx context.Context, token string, user *domain.User) error {
	if token == "" || user == nil {
		return errors.New("session: token and user are both required")
	}
	s.persist.Lock()
	defer s.persist.Unlock()
	if err := s.store.Save(ctx, token); err != nil {
		return fmt.Errorf("save token: %w", err)
	}

	u := *user
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.user = &u
	return nil
}

// Clear drops the session in memory first, then removes the persisted token.
func (s *SessionStore) Clear(ctx context.Context) error {
	s.persist.Lock()
	defer s.persist.Unlock()

	s.mu.Lock()
	s.token = ""
	s.user = nil
	s.mu.Unlock()

	if err := s.store.Delete(ctx); err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	return nil
}

// ClearToken clears the session only while it still holds token, and reports
// whether it did. A rejection of an old token must not end a newer session.
func (s *SessionStore) ClearToken(ctx context.Context, token string) (bool, error) {
	s.persist.Lock()
	defer s.persist.Unlock()

	s.mu.Lock()
	if token == "" || s.token != token {
		s.mu.Unlock()
		return false, nil
	}
	s.token = ""
	s.user = nil
	s.mu.Unlock()

	if err := s.store.Delete(ctx); err != nil {
		return true, fmt.Errorf("delete token: %w", err)
	}
	return true, nil
}

func (s *SessionStore) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != "" && s.user != nil
}

func (s *SessionStore) IsAdmin() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user.IsAdmin()
}

// Token returns the current token, which may not be validated yet.
func (s *SessionStore) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// User returns a copy of the cached identity, or nil.
func (s *SessionStore) User() *domain.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// ExpiresAt reads the exp claim of a JWT-shaped token without verifying the
// signature. ok is false for opaque tokens or tokens without exp.
func (s *SessionStore) ExpiresAt() (exp time.Time, ok bool) {
	token := s.Token()
	if token == "" {
		return time.Time{}, false
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	date, err := claims.GetExpirationTime()
	if err != nil || date == nil {
		return time.Time{}, false
	}
	return date.Time, true
}
