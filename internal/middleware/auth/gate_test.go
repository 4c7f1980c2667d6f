package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/makedist/asset_registry/internal/models"
	"github.com/makedist/asset_registry/internal/service/token"
)

func newGateEnv(t *testing.T) (*echo.Echo, *token.Service) {
	t.Helper()
	tokens := &token.Service{Secret: []byte("test-secret")}
	gate := &Gate{Tokens: tokens}

	e := echo.New()
	e.GET("/open", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/any", func(c echo.Context) error {
		return c.JSON(http.StatusOK, Identity(c))
	}, gate.Require())
	e.GET("/admin", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, gate.Require(models.RoleAdmin))
	return e, tokens
}

func doGet(e *echo.Echo, path, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if bearer != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestGatePublicRouteSkipsAuth(t *testing.T) {
	e, _ := newGateEnv(t)
	rec := doGet(e, "/open", "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestGateMissingToken(t *testing.T) {
	e, _ := newGateEnv(t)
	rec := doGet(e, "/any", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "Unauthenticated", body["kind"])
}

func TestGateExpiredToken(t *testing.T) {
	e, _ := newGateEnv(t)
	expired := &token.Service{Secret: []byte("test-secret"), TTL: -time.Minute}
	signed, _, err := expired.Issue(&models.User{ID: 1, Username: "bob", Role: models.RoleUser})
	require.NoError(t, err)

	rec := doGet(e, "/any", signed)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Body.String(), "expired")
}

func TestGateIdentityInContext(t *testing.T) {
	e, tokens := newGateEnv(t)
	signed, _, err := tokens.Issue(&models.User{ID: 3, Username: "carol", Role: models.RoleUser})
	require.NoError(t, err)

	rec := doGet(e, "/any", signed)
	require.Equal(t, http.StatusOK, rec.Code)

	var ident token.Identity
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ident))
	require.Equal(t, uint(3), ident.UserID)
	require.Equal(t, "carol", ident.Username)
}

func TestGateRoleEnforcement(t *testing.T) {
	e, tokens := newGateEnv(t)

	userToken, _, err := tokens.Issue(&models.User{ID: 1, Username: "bob", Role: models.RoleUser})
	require.NoError(t, err)
	adminToken, _, err := tokens.Issue(&models.User{ID: 2, Username: "alice", Role: models.RoleAdmin})
	require.NoError(t, err)

	rec := doGet(e, "/admin", userToken)
	require.Equal(t, http.StatusForbidden, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "Forbidden", body["kind"])

	rec = doGet(e, "/admin", adminToken)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestForbidSelf(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodDelete, "/", nil), httptest.NewRecorder())
	SetIdentity(c, &token.Identity{UserID: 5, Username: "alice", Role: models.RoleAdmin})

	require.Error(t, ForbidSelf(c, 5))
	require.NoError(t, ForbidSelf(c, 6))
}
