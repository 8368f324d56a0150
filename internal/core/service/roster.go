package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/billsight/billsight-client/internal/core/domain"
)

// AdminRoster caches the account list for the admin screen. The cache is
// only ever replaced by a fresh server listing; every mutation is followed by
// a refetch.
type AdminRoster struct {
	gateway *AuthGateway

	mu    sync.RWMutex
	users []domain.User
}

func NewAdminRoster(gateway *AuthGateway) *AdminRoster {
	return &AdminRoster{gateway: gateway}
}

// Refresh reloads the roster from the server.
func (r *AdminRoster) Refresh(ctx context.Context) ([]domain.User, error) {
	users, err := r.gateway.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.users = users
	r.mu.Unlock()
	return r.Users(), nil
}

// Users returns a copy of the last fetched roster.
func (r *AdminRoster) Users() []domain.User {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.User, len(r.users))
	copy(out, r.users)
	return out
}

// Find returns the cached entry for username.
func (r *AdminRoster) Find(username string) (domain.User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.Username == username {
			return u, true
		}
	}
	return domain.User{}, false
}

func (r *AdminRoster) Create(ctx context.Context, in domain.NewUser) (*domain.User, error) {
	user, err := r.gateway.CreateUser(ctx, in)
	if err != nil {
		return nil, err
	}
	if _, err := r.Refresh(ctx); err != nil {
		return user, fmt.Errorf("refresh after create: %w", err)
	}
	return user, nil
}

func (r *AdminRoster) Delete(ctx context.Context, username string) (string, error) {
	msg, err := r.gateway.DeleteUser(ctx, username)
	if err != nil {
		return "", err
	}
	if _, err := r.Refresh(ctx); err != nil {
		return msg, fmt.Errorf("refresh after delete: %w", err)
	}
	return msg, nil
}

// ToggleActive flips the account's active flag and returns the server
// message. The new state is read from the refreshed roster, not inferred.
func (r *AdminRoster) ToggleActive(ctx context.Context, username string) (string, error) {
	res, err := r.gateway.ToggleActive(ctx, username)
	if err != nil {
		return "", err
	}
	if _, err := r.Refresh(ctx); err != nil {
		return res.Message, fmt.Errorf("refresh after toggle: %w", err)
	}
	return res.Message, nil
}
