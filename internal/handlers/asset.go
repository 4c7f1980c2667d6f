package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/makedist/asset_registry/internal/apperr"
	"github.com/makedist/asset_registry/internal/events"
	"github.com/makedist/asset_registry/internal/middleware/auth"
	"github.com/makedist/asset_registry/internal/models"
	"github.com/makedist/asset_registry/internal/service/allocator"
	"github.com/makedist/asset_registry/internal/service/search"
	"github.com/makedist/asset_registry/internal/util"
)

type AssetHandler struct {
	DB        *gorm.DB
	Producer  *events.Producer
	ES        *elasticsearch.Client
	Index     string
	Allocator *allocator.Allocator
}

type assetRequest struct {
	Name            string `json:"name"`
	Description     string `json:"description"`
	SerialNumber    string `json:"serial_number"`
	Model           string `json:"model"`
	Location        string `json:"location"`
	Status          string `json:"status"`
	AcquisitionDate string `json:"acquisition_date"`
	WarrantyInfo    string `json:"warranty_info"`
	AssignedUser    string `json:"assigned_user"`
	CategoryID      uint   `json:"category_id"`
}

func (h *AssetHandler) ListAssets(c echo.Context) error {
	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	var total int64
	if err := h.DB.Model(&models.Asset{}).Count(&total).Error; err != nil {
		return respondError(c, err)
	}

	var items []models.Asset
	if err := h.DB.Order("id ASC").Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"data": items,
		"meta": map[string]any{
			"page":        page,
			"size":        limit,
			"total":       total,
			"total_pages": (total + int64(limit) - 1) / int64(limit),
			"has_prev":    page > 1,
			"has_next":    int64(offset+limit) < total,
		},
	})
}

func (h *AssetHandler) GetAsset(c echo.Context) error {
	id := c.Param("id")

	var asset models.Asset
	if err := h.DB.First(&asset, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return respondError(c, apperr.New(apperr.NotFound, "asset not found"))
		}
		return respondError(c, err)
	}

	if err := h.DB.Where("asset_id = ?", id).Order("id DESC").Find(&asset.History).Error; err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, asset)
}

// CreateAsset draws the next identifier from the category's counter and
// persists the asset in the same transaction, so a failed insert rolls the
// draw back with it.
func (h *AssetHandler) CreateAsset(c echo.Context) error {
	var req assetRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, apperr.New(apperr.InvalidInput, "malformed request body"))
	}
	if err := validateAsset(&req); err != nil {
		return respondError(c, err)
	}

	actor := auth.Identity(c)
	if actor == nil {
		return respondError(c, apperr.New(apperr.Unauthenticated, "missing token"))
	}
	now := time.Now()

	var asset models.Asset
	err := h.DB.Transaction(func(tx *gorm.DB) error {
		id, err := h.Allocator.Allocate(tx, req.CategoryID)
		if err != nil {
			return err
		}
		asset = models.Asset{
			ID:              id,
			Name:            req.Name,
			Description:     req.Description,
			SerialNumber:    req.SerialNumber,
			Model:           req.Model,
			Location:        req.Location,
			Status:          req.Status,
			AcquisitionDate: req.AcquisitionDate,
			WarrantyInfo:    req.WarrantyInfo,
			AssignedUser:    req.AssignedUser,
			CategoryID:      req.CategoryID,
			LastModifiedAt:  now,
			LastModifiedBy:  actor.Username,
		}
		return tx.Create(&asset).Error
	})
	if err != nil {
		return respondError(c, err)
	}

	h.index(c, &asset)
	publish(c, h.Producer, "asset_events", asset.ID, map[string]interface{}{
		"type":    "asset_created",
		"assetID": asset.ID,
		"name":    asset.Name,
		"actor":   actor.Username,
	})

	return c.JSON(http.StatusCreated, asset)
}

// UpdateAsset mutates everything but the identifier. Re-categorizing keeps
// the id the asset was born with.
func (h *AssetHandler) UpdateAsset(c echo.Context) error {
	id := c.Param("id")

	var req assetRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, apperr.New(apperr.InvalidInput, "malformed request body"))
	}
	if strings.TrimSpace(req.Name) == "" || req.Status == "" {
		return respondError(c, apperr.New(apperr.InvalidInput, "name and status are required"))
	}
	if !models.ValidStatus(req.Status) {
		return respondError(c, apperr.Newf(apperr.InvalidInput, "unknown status %q", req.Status))
	}

	actor := auth.Identity(c)
	if actor == nil {
		return respondError(c, apperr.New(apperr.Unauthenticated, "missing token"))
	}

	var asset models.Asset
	err := h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&asset, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.New(apperr.NotFound, "asset not found")
			}
			return err
		}

		if req.CategoryID != 0 && req.CategoryID != asset.CategoryID {
			var cat models.Category
			if err := tx.First(&cat, req.CategoryID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return apperr.Newf(apperr.InvalidCategory, "category %d does not exist", req.CategoryID)
				}
				return err
			}
			asset.CategoryID = req.CategoryID
		}

		asset.Name = req.Name
		asset.Description = req.Description
		asset.Location = req.Location
		asset.Status = req.Status
		asset.AssignedUser = req.AssignedUser
		if req.SerialNumber != "" {
			asset.SerialNumber = req.SerialNumber
		}
		if req.Model != "" {
			asset.Model = req.Model
		}
		if req.WarrantyInfo != "" {
			asset.WarrantyInfo = req.WarrantyInfo
		}
		asset.LastModifiedAt = time.Now()
		asset.LastModifiedBy = actor.Username

		return tx.Save(&asset).Error
	})
	if err != nil {
		return respondError(c, err)
	}

	h.index(c, &asset)
	publish(c, h.Producer, "asset_events", asset.ID, map[string]interface{}{
		"type":    "asset_updated",
		"assetID": asset.ID,
		"name":    asset.Name,
		"actor":   actor.Username,
	})

	return c.JSON(http.StatusOK, asset)
}

// DeleteAsset removes the asset and its entire history atomically.
func (h *AssetHandler) DeleteAsset(c echo.Context) error {
	id := c.Param("id")

	err := h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("asset_id = ?", id).Delete(&models.HistoryEntry{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Asset{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.New(apperr.NotFound, "asset not found")
		}
		return nil
	})
	if err != nil {
		return respondError(c, err)
	}

	h.deindex(c, id)
	publish(c, h.Producer, "asset_events", id, map[string]interface{}{
		"type":    "asset_deleted",
		"assetID": id,
	})

	return c.NoContent(http.StatusNoContent)
}

func (h *AssetHandler) SearchAssets(c echo.Context) error {
	if h.ES == nil {
		return respondError(c, apperr.New(apperr.Internal, "search backend not configured"))
	}
	q := c.QueryParam("q")
	if q == "" {
		return respondError(c, apperr.New(apperr.InvalidInput, "query parameter q is required"))
	}

	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	from, limit := util.Calculate(page, size)

	total, assets, err := search.Assets(c.Request().Context(), h.ES, h.Index, q, from, limit)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"total": total, "assets": assets})
}

func (h *AssetHandler) index(c echo.Context, asset *models.Asset) {
	if h.ES == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := search.IndexAsset(ctx, h.ES, h.Index, asset); err != nil {
		c.Logger().Errorf("ES index error: %v", err)
	}
}

func (h *AssetHandler) deindex(c echo.Context, id string) {
	if h.ES == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := search.DeleteAsset(ctx, h.ES, h.Index, id); err != nil {
		c.Logger().Errorf("ES delete error: %v", err)
	}
}

func validateAsset(req *assetRequest) error {
	var missing []string
	for field, val := range map[string]string{
		"name":             req.Name,
		"model":            req.Model,
		"location":         req.Location,
		"status":           req.Status,
		"acquisition_date": req.AcquisitionDate,
	} {
		if strings.TrimSpace(val) == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return apperr.Newf(apperr.InvalidInput, "missing required field(s): %s", strings.Join(missing, ", "))
	}
	if !models.ValidStatus(req.Status) {
		return apperr.Newf(apperr.InvalidInput, "unknown status %q", req.Status)
	}
	if req.CategoryID == 0 {
		return apperr.New(apperr.InvalidInput, "category_id is required")
	}
	return nil
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return def
}
