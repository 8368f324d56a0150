package ports

import (
	"context"

	"github.com/billsight/billsight-client/internal/core/domain"
)

// LoginResult is the payload of a successful POST /auth/login.
type LoginResult struct {
	Token string
	User  *domain.User
}

// ToggleResult is the payload of PATCH /auth/users/{username}/toggle-active.
// IsActive is nil when the server does not report the new state.
type ToggleResult struct {
	Message  string
	IsActive *bool
}

// AuthAPI is the remote authentication/authorization contract. Every error
// returned is a *domain.AuthError.
type AuthAPI interface {
	Login(ctx context.Context, username, password string) (*LoginResult, error)
	Logout(ctx context.Context, token string) error
	Me(ctx context.Context, token string) (*domain.User, error)
	Register(ctx context.Context, token string, in domain.NewUser) (*domain.User, error)
	ListUsers(ctx context.Context, token string) ([]domain.User, error)
	DeleteUser(ctx context.Context, token, username string) (string, error)
	ToggleActive(ctx context.Context, token, username string) (*ToggleResult, error)
}
