package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/makedist/asset_registry/internal/hash"
	"github.com/makedist/asset_registry/internal/middleware/auth"
	"github.com/makedist/asset_registry/internal/models"
	"github.com/makedist/asset_registry/internal/service/allocator"
	"github.com/makedist/asset_registry/internal/service/token"
)

type testEnv struct {
	T      *testing.T
	E      *echo.Echo
	DB     *gorm.DB
	Tokens *token.Service
	Gate   *auth.Gate
	A      *AuthHandler
	C      *CategoryHandler
	AS     *AssetHandler
	H      *HistoryHandler
}

func newTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Category{},
		&models.Counter{},
		&models.Asset{},
		&models.HistoryEntry{},
	))
	return db
}

func newTestEnv(t *testing.T) *testEnv {
	db := newTestDB(t)
	tokens := &token.Service{Secret: []byte("test-secret")}

	env := &testEnv{
		T:      t,
		E:      echo.New(),
		DB:     db,
		Tokens: tokens,
		Gate:   &auth.Gate{Tokens: tokens},
	}
	env.A = &AuthHandler{DB: db, Tokens: tokens}
	env.C = &CategoryHandler{DB: db}
	env.AS = &AssetHandler{DB: db, Allocator: &allocator.Allocator{}}
	env.H = &HistoryHandler{DB: db}
	return env
}

func (env *testEnv) doJSONRequest(method, path string, body interface{}) (*httptest.ResponseRecorder, echo.Context) {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(env.T, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := env.E.NewContext(req, rec)
	return rec, c
}

// seedUser inserts a user row and returns the identity a verified token for
// it would carry.
func (env *testEnv) seedUser(username, password, role string) (*models.User, *token.Identity) {
	pwHash, err := hash.HashPassword(password)
	require.NoError(env.T, err)
	user := models.User{Username: username, PasswordHash: pwHash, Role: role}
	require.NoError(env.T, env.DB.Create(&user).Error)
	return &user, &token.Identity{UserID: user.ID, Username: user.Username, Role: user.Role}
}

func (env *testEnv) createCategory(name, prefix string) models.Category {
	rec, c := env.doJSONRequest(http.MethodPost, "/api/v1/categories",
		map[string]string{"name": name, "prefix": prefix})
	require.NoError(env.T, env.C.CreateCategory(c))
	require.Equal(env.T, http.StatusCreated, rec.Code)

	var cat models.Category
	require.NoError(env.T, json.Unmarshal(rec.Body.Bytes(), &cat))
	return cat
}

func (env *testEnv) createAsset(ident *token.Identity, categoryID uint, name string) models.Asset {
	rec, c := env.doJSONRequest(http.MethodPost, "/api/v1/assets", map[string]interface{}{
		"name":             name,
		"model":            "Generic X1",
		"location":         "HQ",
		"status":           models.StatusInOperation,
		"acquisition_date": "2026-01-15",
		"category_id":      categoryID,
	})
	auth.SetIdentity(c, ident)
	require.NoError(env.T, env.AS.CreateAsset(c))
	require.Equal(env.T, http.StatusCreated, rec.Code)

	var asset models.Asset
	require.NoError(env.T, json.Unmarshal(rec.Body.Bytes(), &asset))
	return asset
}

func idString(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func errorKind(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Kind string `json:"kind"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Kind
}
