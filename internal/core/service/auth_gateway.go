package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/billsight/billsight-client/internal/core/domain"
	"github.com/billsight/billsight-client/internal/core/ports"
	"github.com/billsight/billsight-client/internal/metrics"
)

// AuthGateway is the only component that talks to the authentication API.
// It reads credentials from the SessionStore and tears the session down
// whenever the server rejects the token.
type AuthGateway struct {
	api       ports.AuthAPI
	session   *SessionStore
	validator *formValidator
	log       zerolog.Logger
	now       func() time.Time
}

func NewAuthGateway(api ports.AuthAPI, session *SessionStore, log zerolog.Logger) *AuthGateway {
	return &AuthGateway{
		api:       api,
		session:   session,
		validator: newFormValidator(),
		log:       log,
		now:       time.Now,
	}
}

// Session exposes the store the gateway reads credentials from.
func (g *AuthGateway) Session() *SessionStore {
	return g.session
}

// Restore loads the persisted token at startup and re-validates it. It
// returns (nil, nil) when no token is stored.
func (g *AuthGateway) Restore(ctx context.Context) (*domain.User, error) {
	if err := g.session.Load(ctx); err != nil {
		return nil, err
	}
	token := g.session.Token()
	if token == "" {
		return nil, nil
	}

	if exp, ok := g.session.ExpiresAt(); ok && !g.now().Before(exp) {
		g.log.Info().Time("expired_at", exp).Msg("stored token expired, clearing session")
		g.clearSession(ctx, "expired")
		return nil, g.fail("restore", domain.NewAuthError(domain.KindUnauthorized, "session expired"))
	}

	return g.Validate(ctx, token)
}

// Validate checks token against /auth/me and adopts the returned identity.
// Any rejection clears the session.
func (g *AuthGateway) Validate(ctx context.Context, token string) (*domain.User, error) {
	user, err := g.api.Me(ctx, token)
	if err != nil {
		ae := asAuthError(err)
		if ae.Kind != domain.KindNetwork {
			// Non-200 from /auth/me means the token is no longer usable.
			ae = &domain.AuthError{Kind: domain.KindUnauthorized, Message: ae.Message, Detail: ae.Detail, Status: ae.Status}
			g.clearSession(ctx, "unauthorized")
		}
		return nil, g.fail("validate", ae)
	}

	if err := g.session.Set(ctx, token, user); err != nil {
		return nil, g.fail("validate", err)
	}
	g.log.Debug().Str("username", user.Username).Msg("session validated")
	return user, nil
}

// Login authenticates and stores token and user. A 409 from the server is
// reported as Conflict with MsgAlreadyLoggedIn, never as invalid credentials.
func (g *AuthGateway) Login(ctx context.Context, username, password string) (*domain.User, error) {
	res, err := g.api.Login(ctx, username, password)
	if err != nil {
		ae := asAuthError(err)
		switch ae.Kind {
		case domain.KindConflict:
			ae = &domain.AuthError{Kind: domain.KindConflict, Message: domain.MsgAlreadyLoggedIn, Detail: ae.Detail, Status: ae.Status}
		case domain.KindUnauthorized, domain.KindValidation:
			msg := ae.Detail
			if msg == "" {
				msg = "Incorrect username or password"
			}
			ae = &domain.AuthError{Kind: domain.KindInvalidCredentials, Message: msg, Detail: ae.Detail, Status: ae.Status}
		}
		return nil, g.fail("login", ae)
	}
	if res.Token == "" || res.User == nil {
		return nil, g.fail("login", domain.NewAuthError(domain.KindServer, "login response is missing token or user"))
	}

	if err := g.session.Set(ctx, res.Token, res.User); err != nil {
		return nil, g.fail("login", err)
	}
	g.log.Info().Str("username", res.User.Username).Str("role", res.User.Role).Msg("logged in")
	return res.User, nil
}

// Logout invalidates the session remotely on a best-effort basis. The local
// session is always cleared; remote failures are logged and swallowed.
func (g *AuthGateway) Logout(ctx context.Context) (err error) {
	token := g.session.Token()
	defer func() {
		metrics.SessionClearsTotal.WithLabelValues("logout").Inc()
		if clearErr := g.session.Clear(context.WithoutCancel(ctx)); clearErr != nil {
			err = clearErr
		}
	}()

	if token == "" {
		return nil
	}
	if remoteErr := g.api.Logout(ctx, token); remoteErr != nil {
		ae := asAuthError(remoteErr)
		metrics.AuthFailuresTotal.WithLabelValues("logout", string(ae.Kind)).Inc()
		g.log.Warn().Err(remoteErr).Msg("remote logout failed, clearing local session anyway")
	}
	return nil
}

// CreateUser registers a new account. Admin only.
func (g *AuthGateway) CreateUser(ctx context.Context, in domain.NewUser) (*domain.User, error) {
	const op = "create_user"
	if in.Role == "" {
		in.Role = domain.RoleUser
	}
	token, err := g.adminToken(op)
	if err != nil {
		return nil, err
	}
	if err := g.validator.Validate(in); err != nil {
		return nil, g.fail(op, err)
	}

	user, err := g.api.Register(ctx, token, in)
	if err != nil {
		ae := asAuthError(err)
		if ae.Kind == domain.KindValidation && strings.Contains(strings.ToLower(ae.Detail), "already registered") {
			ae = &domain.AuthError{Kind: domain.KindConflict, Message: ae.Message, Detail: ae.Detail, Status: ae.Status}
		}
		return nil, g.authorizedFail(ctx, op, ae)
	}
	g.log.Info().Str("username", user.Username).Str("role", user.Role).Msg("user created")
	return user, nil
}

// ListUsers returns every account. Admin only.
func (g *AuthGateway) ListUsers(ctx context.Context) ([]domain.User, error) {
	const op = "list_users"
	token, err := g.adminToken(op)
	if err != nil {
		return nil, err
	}
	users, err := g.api.ListUsers(ctx, token)
	if err != nil {
		return nil, g.authorizedFail(ctx, op, asAuthError(err))
	}
	return users, nil
}

// DeleteUser removes an account and returns the server acknowledgement. Admin only.
func (g *AuthGateway) DeleteUser(ctx context.Context, username string) (string, error) {
	const op = "delete_user"
	token, err := g.adminToken(op)
	if err != nil {
		return "", err
	}
	msg, err := g.api.DeleteUser(ctx, token, username)
	if err != nil {
		return "", g.authorizedFail(ctx, op, asAuthError(err))
	}
	g.log.Info().Str("username", username).Msg("user deleted")
	return msg, nil
}

// ToggleActive flips the active flag of an account server-side. Calling it
// twice restores the original state. Admin only.
func (g *AuthGateway) ToggleActive(ctx context.Context, username string) (*ports.ToggleResult, error) {
	const op = "toggle_active"
	token, err := g.adminToken(op)
	if err != nil {
		return nil, err
	}
	res, err := g.api.ToggleActive(ctx, token, username)
	if err != nil {
		return nil, g.authorizedFail(ctx, op, asAuthError(err))
	}
	g.log.Info().Str("username", username).Str("message", res.Message).Msg("user active flag toggled")
	return res, nil
}

// adminToken performs the local privilege check before any admin call.
func (g *AuthGateway) adminToken(op string) (string, error) {
	if !g.session.IsAuthenticated() {
		return "", g.fail(op, domain.NewAuthError(domain.KindUnauthorized, "not logged in"))
	}
	if !g.session.IsAdmin() {
		return "", g.fail(op, domain.NewAuthError(domain.KindForbidden, "admin privileges required"))
	}
	return g.session.Token(), nil
}

// authorizedFail records a failed authenticated call and clears the session
// when the server rejected the token.
func (g *AuthGateway) authorizedFail(ctx context.Context, op string, ae *domain.AuthError) error {
	if ae.Kind == domain.KindUnauthorized {
		g.clearSession(ctx, "unauthorized")
	}
	return g.fail(op, ae)
}

func (g *AuthGateway) clearSession(ctx context.Context, reason string) {
	metrics.SessionClearsTotal.WithLabelValues(reason).Inc()
	if err := g.session.Clear(context.WithoutCancel(ctx)); err != nil {
		g.log.Warn().Err(err).Str("reason", reason).Msg("failed to remove persisted token")
	}
}

func (g *AuthGateway) fail(op string, err error) error {
	ae := asAuthError(err)
	metrics.AuthFailuresTotal.WithLabelValues(op, string(ae.Kind)).Inc()
	g.log.Debug().Str("operation", op).Str("kind", string(ae.Kind)).Int("status", ae.Status).Msg(ae.Message)
	return ae
}

// asAuthError guarantees the gateway boundary only ever returns AuthErrors.
func asAuthError(err error) *domain.AuthError {
	var ae *domain.AuthError
	if errors.As(err, &ae) {
		return ae
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &domain.AuthError{Kind: domain.KindNetwork, Message: err.Error()}
	}
	return &domain.AuthError{Kind: domain.KindServer, Message: err.Error()}
}
