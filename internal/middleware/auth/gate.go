package auth

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/makedist/asset_registry/internal/apperr"
	"github.com/makedist/asset_registry/internal/service/token"
)

const identityKey = "identity"

// Gate is the single authorization decision point: token verification first,
// then role membership. Self-action guards are business rules layered on top
// via ForbidSelf in the handlers that need them.
type Gate struct {
	Tokens *token.Service
}

// Require verifies the bearer token and, when roles are given, checks the
// caller's role against them. With no roles any authenticated user passes.
// Rejections happen before any business logic runs.
func (g *Gate) Require(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ident, err := g.Tokens.Verify(bearerToken(c))
			if err != nil {
				return reject(c, err)
			}
			if len(roles) > 0 && !roleAllowed(ident.Role, roles) {
				return reject(c, apperr.New(apperr.Forbidden, "insufficient privileges"))
			}
			SetIdentity(c, ident)
			return next(c)
		}
	}
}

// ForbidSelf rejects an operation whose target is the caller's own account.
// Used for role changes and user deletion, where even an admin may not act
// on themselves.
func ForbidSelf(c echo.Context, targetID uint) error {
	if ident := Identity(c); ident != nil && ident.UserID == targetID {
		return apperr.New(apperr.Forbidden, "operation not allowed on own account")
	}
	return nil
}

func SetIdentity(c echo.Context, ident *token.Identity) {
	c.Set(identityKey, ident)
	c.Set("userID", ident.UserID)
	c.Set("role", ident.Role)
}

func Identity(c echo.Context) *token.Identity {
	ident, _ := c.Get(identityKey).(*token.Identity)
	return ident
}

func bearerToken(c echo.Context) string {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}

func roleAllowed(role string, allowed []string) bool {
	for _, r := range allowed {
		if role == r {
			return true
		}
	}
	return false
}

func reject(c echo.Context, err error) error {
	var ae *apperr.Error
	if e, ok := err.(*apperr.Error); ok {
		ae = e
	} else {
		ae = apperr.New(apperr.Unauthenticated, "authentication failed")
	}
	return c.JSON(ae.Kind.HTTPStatus(), ae)
}
