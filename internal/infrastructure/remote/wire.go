package remote

import (
	"strings"
	"time"

	"github.com/billsight/billsight-client/internal/core/domain"
)

// The service emits naive UTC timestamps ("2025-01-02T15:04:05.123456"),
// which time.Time cannot unmarshal, so users are decoded through wireUser.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

type wireUser struct {
	ID           string  `json:"id"`
	Username     string  `json:"username"`
	Email        string  `json:"email"`
	Role         string  `json:"role"`
	IsActive     *bool   `json:"is_active"`
	IsLoggedIn   bool    `json:"is_logged_in"`
	LastActivity *string `json:"last_activity"`
	CreatedAt    *string `json:"created_at"`
}

func (w wireUser) toDomain() domain.User {
	u := domain.User{
		ID:           w.ID,
		Username:     w.Username,
		Email:        w.Email,
		Role:         w.Role,
		IsActive:     true,
		IsLoggedIn:   w.IsLoggedIn,
		LastActivity: parseTimestamp(w.LastActivity),
		CreatedAt:    parseTimestamp(w.CreatedAt),
	}
	if w.IsActive != nil {
		u.IsActive = *w.IsActive
	}
	return u
}

func parseTimestamp(s *string) *time.Time {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, *s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

type loginResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	User        *wireUser `json:"user"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// registerResponse accepts {"message", "user"} as well as a bare user.
type registerResponse struct {
	Message string    `json:"message"`
	User    *wireUser `json:"user"`
	wireUser
}

func (r registerResponse) created() *domain.User {
	w := r.wireUser
	if r.User != nil {
		w = *r.User
	}
	if w.Username == "" {
		return nil
	}
	u := w.toDomain()
	return &u
}

type toggleResponse struct {
	Message  string `json:"message"`
	IsActive *bool  `json:"is_active"`
}

type newUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}
