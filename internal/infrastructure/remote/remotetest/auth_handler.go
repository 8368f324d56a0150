package remotetest

import (
	"fmt"
	"net/http"
	"net/mail"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"
)

const wireTime = "2006-01-02T15:04:05.000000"

type userResponse struct {
	ID           string  `json:"id"`
	Username     string  `json:"username"`
	Email        string  `json:"email"`
	Role         string  `json:"role"`
	IsActive     bool    `json:"is_active"`
	IsLoggedIn   bool    `json:"is_logged_in"`
	LastActivity *string `json:"last_activity"`
	CreatedAt    *string `json:"created_at"`
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (s *Server) toResponse(a account) userResponse {
	created := a.CreatedAt.Format(wireTime)
	resp := userResponse{
		ID:         a.ID,
		Username:   a.Username,
		Email:      a.Email,
		Role:       a.Role,
		IsActive:   a.IsActive,
		IsLoggedIn: s.sessionActive(a),
		CreatedAt:  &created,
	}
	if a.LastActivity != nil {
		last := a.LastActivity.Format(wireTime)
		resp.LastActivity = &last
	}
	return resp
}

func (s *Server) login(c echo.Context) error {
	username := c.FormValue("username")
	password := c.FormValue("password")
	if username == "" || password == "" {
		return c.JSON(http.StatusUnprocessableEntity, detailResponse{Detail: "username and password are required"})
	}

	acct, ok := s.users.get(username)
	if !ok || bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)) != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Incorrect username or password")
	}
	if !acct.IsActive {
		return echo.NewHTTPError(http.StatusForbidden, "User account is disabled")
	}
	if s.sessionActive(acct) {
		return echo.NewHTTPError(http.StatusConflict, "Already logged in on another device")
	}

	now := s.now().UTC()
	acct, _ = s.users.update(username, func(a *account) {
		a.IsLoggedIn = true
		a.LastActivity = &now
	})

	return c.JSON(http.StatusOK, map[string]any{
		"access_token": s.IssueToken(username, s.tokenTTL),
		"token_type":   "bearer",
		"user": map[string]string{
			"id":       acct.ID,
			"username": acct.Username,
			"email":    acct.Email,
			"role":     acct.Role,
		},
	})
}

func (s *Server) logout(c echo.Context) error {
	s.users.update(currentUser(c).Username, func(a *account) {
		a.IsLoggedIn = false
		a.LastActivity = nil
	})
	return c.JSON(http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

// me also refreshes last_activity, keeping the session alive.
func (s *Server) me(c echo.Context) error {
	now := s.now().UTC()
	acct, _ := s.users.update(currentUser(c).Username, func(a *account) {
		if a.IsLoggedIn {
			a.LastActivity = &now
		}
	})
	return c.JSON(http.StatusOK, s.toResponse(acct))
}

func (s *Server) register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, detailResponse{Detail: "invalid payload"})
	}
	if req.Role == "" {
		req.Role = "user"
	}
	if msg := validateRegister(req); msg != "" {
		return c.JSON(http.StatusUnprocessableEntity, detailResponse{Detail: msg})
	}
	if _, exists := s.users.get(req.Username); exists {
		return echo.NewHTTPError(http.StatusBadRequest, "Username already registered")
	}
	if s.users.emailTaken(req.Email) {
		return echo.NewHTTPError(http.StatusBadRequest, "Email already registered")
	}

	s.AddUser(req.Username, req.Email, req.Password, req.Role)
	acct, _ := s.users.get(req.Username)

	return c.JSON(http.StatusCreated, map[string]any{
		"message": "User created successfully",
		"user": map[string]string{
			"id":       acct.ID,
			"username": acct.Username,
			"email":    acct.Email,
			"role":     acct.Role,
		},
	})
}

func validateRegister(req registerRequest) string {
	switch {
	case len(req.Username) < 3 || len(req.Username) > 50:
		return "username must be between 3 and 50 characters"
	case req.Email == "":
		return "email is required"
	case len(req.Password) < 6:
		return "password must be at least 6 characters"
	case req.Role != "user" && req.Role != "admin":
		return "role must be 'user' or 'admin'"
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return "value is not a valid email address"
	}
	return ""
}

func (s *Server) listUsers(c echo.Context) error {
	accts := s.users.list()
	out := make([]userResponse, 0, len(accts))
	for _, a := range accts {
		out = append(out, s.toResponse(a))
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) deleteUser(c echo.Context) error {
	username := c.Param("username")
	if username == currentUser(c).Username {
		return echo.NewHTTPError(http.StatusBadRequest, "Cannot delete your own account")
	}
	if !s.users.delete(username) {
		return echo.NewHTTPError(http.StatusNotFound, "User not found")
	}
	return c.JSON(http.StatusOK, map[string]string{
		"message": fmt.Sprintf("User '%s' deleted successfully", username),
	})
}

// toggleActive flips is_active; disabling also ends the account's session.
func (s *Server) toggleActive(c echo.Context) error {
	username := c.Param("username")
	if username == currentUser(c).Username {
		return echo.NewHTTPError(http.StatusBadRequest, "Cannot disable your own account")
	}
	acct, ok := s.users.update(username, func(a *account) {
		a.IsActive = !a.IsActive
		if !a.IsActive {
			a.IsLoggedIn = false
			a.LastActivity = nil
		}
	})
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "User not found")
	}

	verb := "disabled"
	if acct.IsActive {
		verb = "enabled"
	}
	return c.JSON(http.StatusOK, map[string]any{
		"message":   fmt.Sprintf("User '%s' %s successfully", username, verb),
		"is_active": acct.IsActive,
	})
}
