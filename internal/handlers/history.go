package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/makedist/asset_registry/internal/apperr"
	"github.com/makedist/asset_registry/internal/events"
	"github.com/makedist/asset_registry/internal/middleware/auth"
	"github.com/makedist/asset_registry/internal/models"
)

type HistoryHandler struct {
	DB       *gorm.DB
	Producer *events.Producer
}

// AppendHistory writes an immutable audit entry and stamps the parent
// asset's last-modified marker in the same transaction. The timestamp is
// server-assigned; anything the client sends is ignored.
func (h *HistoryHandler) AppendHistory(c echo.Context) error {
	assetID := c.Param("id")

	var req struct {
		EventType   string `json:"event_type"`
		Description string `json:"description"`
	}
	if err := c.Bind(&req); err != nil {
		return respondError(c, apperr.New(apperr.InvalidInput, "malformed request body"))
	}
	if req.EventType == "" || strings.TrimSpace(req.Description) == "" {
		return respondError(c, apperr.New(apperr.InvalidInput, "event_type and description are required"))
	}
	if !models.ValidEventType(req.EventType) {
		return respondError(c, apperr.Newf(apperr.InvalidInput, "unknown event type %q", req.EventType))
	}

	actor := auth.Identity(c)
	now := time.Now()

	entry := models.HistoryEntry{
		AssetID:     assetID,
		EventType:   req.EventType,
		Description: req.Description,
		Timestamp:   now,
	}
	if actor != nil {
		entry.ActorID = actor.UserID
		entry.ActorName = actor.Username
	}

	err := h.DB.Transaction(func(tx *gorm.DB) error {
		var asset models.Asset
		if err := tx.First(&asset, "id = ?", assetID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.New(apperr.NotFound, "asset not found")
			}
			return err
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}
		return tx.Model(&asset).Updates(map[string]interface{}{
			"last_modified_at": now,
			"last_modified_by": entry.ActorName,
		}).Error
	})
	if err != nil {
		return respondError(c, err)
	}

	publish(c, h.Producer, "asset_events", assetID, map[string]interface{}{
		"type":       "history_appended",
		"assetID":    assetID,
		"event_type": entry.EventType,
		"actor":      entry.ActorName,
	})

	return c.JSON(http.StatusCreated, entry)
}

// ListHistory returns entries newest-first by insertion order, independent
// of timestamps.
func (h *HistoryHandler) ListHistory(c echo.Context) error {
	assetID := c.Param("id")

	var asset models.Asset
	if err := h.DB.First(&asset, "id = ?", assetID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return respondError(c, apperr.New(apperr.NotFound, "asset not found"))
		}
		return respondError(c, err)
	}

	var entries []models.HistoryEntry
	if err := h.DB.Where("asset_id = ?", assetID).Order("id DESC").Find(&entries).Error; err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, entries)
}
