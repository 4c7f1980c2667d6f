package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/makedist/asset_registry/internal/apperr"
	"github.com/makedist/asset_registry/internal/events"
	"github.com/makedist/asset_registry/internal/models"
	"github.com/makedist/asset_registry/internal/service/allocator"
)

var prefixPattern = regexp.MustCompile(`^[A-Za-z0-9]{1,10}$`)

type CategoryHandler struct {
	DB       *gorm.DB
	Producer *events.Producer
}

func (h *CategoryHandler) ListCategories(c echo.Context) error {
	var cats []models.Category
	if err := h.DB.Order("id ASC").Find(&cats).Error; err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, cats)
}

// CreateCategory provisions the category row and its counter as one atomic
// unit. The counter create is idempotent: a counter left behind by an earlier
// failed attempt with the same prefix is reused, never treated as an error.
func (h *CategoryHandler) CreateCategory(c echo.Context) error {
	var req struct {
		Name   string `json:"name"`
		Prefix string `json:"prefix"`
	}
	if err := c.Bind(&req); err != nil {
		return respondError(c, apperr.New(apperr.InvalidInput, "malformed request body"))
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Prefix = strings.TrimSpace(req.Prefix)
	if req.Name == "" || req.Prefix == "" {
		return respondError(c, apperr.New(apperr.InvalidInput, "name and prefix are required"))
	}
	if !prefixPattern.MatchString(req.Prefix) {
		return respondError(c, apperr.New(apperr.InvalidInput, "prefix must be a short alphanumeric code"))
	}

	cat := models.Category{
		Name:        req.Name,
		Prefix:      strings.ToUpper(req.Prefix),
		CounterName: allocator.CounterName(req.Prefix),
	}

	err := h.DB.Transaction(func(tx *gorm.DB) error {
		counter := models.Counter{Name: cat.CounterName}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&counter).Error; err != nil {
			return err
		}
		if err := tx.Create(&cat).Error; err != nil {
			if isDuplicate(err) {
				return apperr.New(apperr.Conflict, "category name or prefix already exists")
			}
			return err
		}
		return nil
	})
	if err != nil {
		return respondError(c, err)
	}

	publish(c, h.Producer, "asset_events", fmt.Sprint(cat.ID), map[string]interface{}{
		"type":       "category_created",
		"categoryID": cat.ID,
		"name":       cat.Name,
		"prefix":     cat.Prefix,
	})

	return c.JSON(http.StatusCreated, cat)
}

// RenameCategory changes the display name only. Prefix and counter binding
// are immutable: changing them would invalidate identifiers already issued.
func (h *CategoryHandler) RenameCategory(c echo.Context) error {
	id, err := categoryIDParam(c)
	if err != nil {
		return respondError(c, err)
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := c.Bind(&req); err != nil {
		return respondError(c, apperr.New(apperr.InvalidInput, "malformed request body"))
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return respondError(c, apperr.New(apperr.InvalidInput, "name is required"))
	}

	var cat models.Category
	if err := h.DB.First(&cat, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return respondError(c, apperr.New(apperr.NotFound, "category not found"))
		}
		return respondError(c, err)
	}

	cat.Name = req.Name
	if err := h.DB.Save(&cat).Error; err != nil {
		if isDuplicate(err) {
			return respondError(c, apperr.New(apperr.Conflict, "category name already exists"))
		}
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, cat)
}

// DeleteCategory refuses deletion while any asset references the category.
// The counter is never reclaimed: a bounded, non-reused resource.
func (h *CategoryHandler) DeleteCategory(c echo.Context) error {
	id, err := categoryIDParam(c)
	if err != nil {
		return respondError(c, err)
	}

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		var inUse int64
		if err := tx.Model(&models.Asset{}).Where("category_id = ?", id).Count(&inUse).Error; err != nil {
			return err
		}
		if inUse > 0 {
			return apperr.Newf(apperr.Conflict, "category is referenced by %d asset(s)", inUse)
		}
		res := tx.Delete(&models.Category{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.New(apperr.NotFound, "category not found")
		}
		return nil
	})
	if err != nil {
		return respondError(c, err)
	}

	publish(c, h.Producer, "asset_events", fmt.Sprint(id), map[string]interface{}{
		"type":       "category_deleted",
		"categoryID": id,
	})

	return c.NoContent(http.StatusNoContent)
}

func categoryIDParam(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return 0, apperr.New(apperr.InvalidInput, "invalid category id")
	}
	return uint(id), nil
}
