package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/makedist/asset_registry/internal/middleware/auth"
	"github.com/makedist/asset_registry/internal/models"
)

func TestAppendHistoryTouchesAsset(t *testing.T) {
	env := newTestEnv(t)
	_, ident := env.seedUser("technician", "password", models.RoleUser)
	cat := env.createCategory("Notebooks", "NOTE")
	asset := env.createAsset(ident, cat.ID, "Dell XPS")

	rec, c := env.doJSONRequest(http.MethodPost, "/", map[string]string{
		"event_type":  models.EventCorrectiveMaintenance,
		"description": "replaced keyboard",
	})
	c.SetParamNames("id")
	c.SetParamValues(asset.ID)
	auth.SetIdentity(c, ident)
	require.NoError(t, env.H.AppendHistory(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var entry models.HistoryEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entry))
	require.Equal(t, asset.ID, entry.AssetID)
	require.Equal(t, "technician", entry.ActorName)
	require.Equal(t, ident.UserID, entry.ActorID)
	require.False(t, entry.Timestamp.IsZero())

	// Compare both timestamps as stored, so driver-level rounding cannot
	// skew the ordering check.
	var stored models.Asset
	var storedEntry models.HistoryEntry
	require.NoError(t, env.DB.First(&stored, "id = ?", asset.ID).Error)
	require.NoError(t, env.DB.First(&storedEntry, entry.ID).Error)
	require.Equal(t, "technician", stored.LastModifiedBy)
	require.False(t, stored.LastModifiedAt.Before(storedEntry.Timestamp))
}

func TestAppendHistoryValidation(t *testing.T) {
	env := newTestEnv(t)
	_, ident := env.seedUser("technician", "password", models.RoleUser)
	cat := env.createCategory("Notebooks", "NOTE")
	asset := env.createAsset(ident, cat.ID, "Dell XPS")

	cases := []map[string]string{
		{"event_type": "", "description": "x"},
		{"event_type": models.EventNote, "description": ""},
		{"event_type": "Exploded", "description": "x"},
	}
	for _, payload := range cases {
		rec, c := env.doJSONRequest(http.MethodPost, "/", payload)
		c.SetParamNames("id")
		c.SetParamValues(asset.ID)
		auth.SetIdentity(c, ident)
		require.NoError(t, env.H.AppendHistory(c))
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Equal(t, "InvalidInput", errorKind(t, rec))
	}
}

func TestAppendHistoryMissingAsset(t *testing.T) {
	env := newTestEnv(t)
	_, ident := env.seedUser("technician", "password", models.RoleUser)

	rec, c := env.doJSONRequest(http.MethodPost, "/", map[string]string{
		"event_type":  models.EventNote,
		"description": "ghost entry",
	})
	c.SetParamNames("id")
	c.SetParamValues("ORG-NOTE-00001")
	auth.SetIdentity(c, ident)
	require.NoError(t, env.H.AppendHistory(c))
	require.Equal(t, http.StatusNotFound, rec.Code)

	var entries int64
	require.NoError(t, env.DB.Model(&models.HistoryEntry{}).Count(&entries).Error)
	require.EqualValues(t, 0, entries)
}

func TestListHistoryNewestFirst(t *testing.T) {
	env := newTestEnv(t)
	_, ident := env.seedUser("technician", "password", models.RoleUser)
	cat := env.createCategory("Notebooks", "NOTE")
	asset := env.createAsset(ident, cat.ID, "Dell XPS")

	for _, desc := range []string{"first", "second", "third"} {
		rec, c := env.doJSONRequest(http.MethodPost, "/", map[string]string{
			"event_type":  models.EventNote,
			"description": desc,
		})
		c.SetParamNames("id")
		c.SetParamValues(asset.ID)
		auth.SetIdentity(c, ident)
		require.NoError(t, env.H.AppendHistory(c))
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec, c := env.doJSONRequest(http.MethodGet, "/", nil)
	c.SetParamNames("id")
	c.SetParamValues(asset.ID)
	require.NoError(t, env.H.ListHistory(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var entries []models.HistoryEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 3)
	require.Equal(t, "third", entries[0].Description)
	require.Equal(t, "second", entries[1].Description)
	require.Equal(t, "first", entries[2].Description)
}
