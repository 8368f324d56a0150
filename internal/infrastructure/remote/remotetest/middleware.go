package remotetest

import (
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const ctxUser = "user"

var errCredentials = echo.NewHTTPError(http.StatusUnauthorized, "Could not validate credentials")

// IssueToken signs a token for username that expires after ttl. A negative
// ttl yields an already expired token.
func (s *Server) IssueToken(username string, ttl time.Duration) string {
	claims := jwt.MapClaims{
		"sub": username,
		"exp": s.now().Add(ttl).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		panic("remotetest: sign token: " + err.Error())
	}
	return signed
}

// authenticate validates the bearer token and loads the account it names.
func (s *Server) authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		parts := strings.SplitN(c.Request().Header.Get("Authorization"), " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			return errCredentials
		}

		claims := jwt.MapClaims{}
		tkn, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
			if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, jwt.ErrTokenSignatureInvalid
			}
			return s.secret, nil
		})
		if err != nil || !tkn.Valid {
			return errCredentials
		}
		username, _ := claims.GetSubject()
		if username == "" {
			return errCredentials
		}

		acct, ok := s.users.get(username)
		if !ok {
			return errCredentials
		}
		if !acct.IsActive {
			return echo.NewHTTPError(http.StatusForbidden, "User account is disabled")
		}

		c.Set(ctxUser, acct)
		return next(c)
	}
}

func requireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if currentUser(c).Role != "admin" {
			return echo.NewHTTPError(http.StatusForbidden, "Admin access required")
		}
		return next(c)
	}
}

func currentUser(c echo.Context) account {
	acct, _ := c.Get(ctxUser).(account)
	return acct
}
