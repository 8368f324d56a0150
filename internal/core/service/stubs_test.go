package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/billsight/billsight-client/internal/core/domain"
	"github.com/billsight/billsight-client/internal/core/ports"
)

// ---------------------------------------------------------------------------
// Token store stub
// ---------------------------------------------------------------------------

type stubTokenStore struct {
	mu        sync.Mutex
	token     string
	saveErr   error
	deleteErr error
	loadErr   error
	deletes   int
}

func (s *stubTokenStore) Load(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, s.loadErr
}

func (s *stubTokenStore) Save(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.token = token
	return nil
}

func (s *stubTokenStore) Delete(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes++
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.token = ""
	return nil
}

func (s *stubTokenStore) stored() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// ---------------------------------------------------------------------------
// Auth API stub
// ---------------------------------------------------------------------------

type stubAuthAPI struct {
	loginFn    func(ctx context.Context, username, password string) (*ports.LoginResult, error)
	logoutFn   func(ctx context.Context, token string) error
	meFn       func(ctx context.Context, token string) (*domain.User, error)
	registerFn func(ctx context.Context, token string, in domain.NewUser) (*domain.User, error)
	listFn     func(ctx context.Context, token string) ([]domain.User, error)
	deleteFn   func(ctx context.Context, token, username string) (string, error)
	toggleFn   func(ctx context.Context, token, username string) (*ports.ToggleResult, error)

	calls int
}

var errNotStubbed = errors.New("not stubbed")

func (s *stubAuthAPI) Login(ctx context.Context, username, password string) (*ports.LoginResult, error) {
	s.calls++
	if s.loginFn == nil {
		return nil, errNotStubbed
	}
	return s.loginFn(ctx, username, password)
}

func (s *stubAuthAPI) Logout(ctx context.Context, token string) error {
	s.calls++
	if s.logoutFn == nil {
		return nil
	}
	return s.logoutFn(ctx, token)
}

func (s *stubAuthAPI) Me(ctx context.Context, token string) (*domain.User, error) {
	s.calls++
	if s.meFn == nil {
		return nil, errNotStubbed
	}
	return s.meFn(ctx, token)
}

func (s *stubAuthAPI) Register(ctx context.Context, token string, in domain.NewUser) (*domain.User, error) {
	s.calls++
	if s.registerFn == nil {
		return nil, errNotStubbed
	}
	return s.registerFn(ctx, token, in)
}

func (s *stubAuthAPI) ListUsers(ctx context.Context, token string) ([]domain.User, error) {
	s.calls++
	if s.listFn == nil {
		return nil, errNotStubbed
	}
	return s.listFn(ctx, token)
}

func (s *stubAuthAPI) DeleteUser(ctx context.Context, token, username string) (string, error) {
	s.calls++
	if s.deleteFn == nil {
		return "", errNotStubbed
	}
	return s.deleteFn(ctx, token, username)
}

func (s *stubAuthAPI) ToggleActive(ctx context.Context, token, username string) (*ports.ToggleResult, error) {
	s.calls++
	if s.toggleFn == nil {
		return nil, errNotStubbed
	}
	return s.toggleFn(ctx, token, username)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// newSession returns a session already holding a validated identity.
func newSession(t *testing.T, role string) (*SessionStore, *stubTokenStore) {
	t.Helper()
	store := &stubTokenStore{}
	session := NewSessionStore(store)
	user := &domain.User{ID: "1", Username: "alice", Email: "alice@example.com", Role: role, IsActive: true}
	if err := session.Set(context.Background(), "token-123", user); err != nil {
		t.Fatalf("seed session: %v", err)
	}
	return session, store
}

func httpError(kind domain.ErrorKind, status int, detail string) *domain.AuthError {
	msg := detail
	if msg == "" {
		msg = "request failed"
	}
	return &domain.AuthError{Kind: kind, Message: msg, Detail: detail, Status: status}
}
