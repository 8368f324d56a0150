package remote

import (
	"context"
	"net/http"
	"net/url"

	"github.com/billsight/billsight-client/internal/core/domain"
	"github.com/billsight/billsight-client/internal/core/ports"
)

// Login posts form-encoded credentials to /auth/login.
func (c *Client) Login(ctx context.Context, username, password string) (*ports.LoginResult, error) {
	var out loginResponse
	req := c.request(ctx, "").SetFormData(map[string]string{
		"username": username,
		"password": password,
	})
	if err := c.send("login", http.MethodPost, "/auth/login", req, &out); err != nil {
		return nil, err
	}

	res := &ports.LoginResult{Token: out.AccessToken}
	if out.User != nil {
		u := out.User.toDomain()
		res.User = &u
	}
	return res, nil
}

func (c *Client) Logout(ctx context.Context, token string) error {
	return c.send("logout", http.MethodPost, "/auth/logout", c.request(ctx, token), nil)
}

// Me returns the identity bound to token.
func (c *Client) Me(ctx context.Context, token string) (*domain.User, error) {
	var out wireUser
	if err := c.send("me", http.MethodGet, "/auth/me", c.request(ctx, token), &out); err != nil {
		return nil, err
	}
	u := out.toDomain()
	return &u, nil
}

func (c *Client) Register(ctx context.Context, token string, in domain.NewUser) (*domain.User, error) {
	var out registerResponse
	req := c.request(ctx, token).
		SetHeader("Content-Type", "application/json").
		SetBody(newUserRequest{
			Username: in.Username,
			Email:    in.Email,
			Password: in.Password,
			Role:     in.Role,
		})
	if err := c.send("register", http.MethodPost, "/auth/register", req, &out); err != nil {
		return nil, err
	}
	if u := out.created(); u != nil {
		return u, nil
	}
	// Older servers answer with only a message; echo back what was sent.
	return &domain.User{Username: in.Username, Email: in.Email, Role: in.Role, IsActive: true}, nil
}

func (c *Client) ListUsers(ctx context.Context, token string) ([]domain.User, error) {
	var out []wireUser
	if err := c.send("list_users", http.MethodGet, "/auth/users", c.request(ctx, token), &out); err != nil {
		return nil, err
	}
	users := make([]domain.User, 0, len(out))
	for _, w := range out {
		users = append(users, w.toDomain())
	}
	return users, nil
}

// DeleteUser returns the server's confirmation message.
func (c *Client) DeleteUser(ctx context.Context, token, username string) (string, error) {
	var out messageResponse
	path := "/auth/users/" + url.PathEscape(username)
	if err := c.send("delete_user", http.MethodDelete, path, c.request(ctx, token), &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

func (c *Client) ToggleActive(ctx context.Context, token, username string) (*ports.ToggleResult, error) {
	var out toggleResponse
	path := "/auth/users/" + url.PathEscape(username) + "/toggle-active"
	if err := c.send("toggle_active", http.MethodPatch, path, c.request(ctx, token), &out); err != nil {
		return nil, err
	}
	return &ports.ToggleResult{Message: out.Message, IsActive: out.IsActive}, nil
}
