package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/makedist/asset_registry/internal/apperr"
	"github.com/makedist/asset_registry/internal/events"
	"github.com/makedist/asset_registry/internal/hash"
	"github.com/makedist/asset_registry/internal/middleware/auth"
	"github.com/makedist/asset_registry/internal/models"
	"github.com/makedist/asset_registry/internal/service/token"
)

type AuthHandler struct {
	DB       *gorm.DB
	Tokens   *token.Service
	Producer *events.Producer
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return respondError(c, apperr.New(apperr.InvalidInput, "malformed request body"))
	}

	var user models.User
	if err := h.DB.Where("username = ?", req.Username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return respondError(c, apperr.New(apperr.Unauthenticated, "invalid username or password"))
		}
		return respondError(c, err)
	}

	if !hash.CheckPassword(user.PasswordHash, req.Password) {
		return respondError(c, apperr.New(apperr.Unauthenticated, "invalid username or password"))
	}

	signed, exp, err := h.Tokens.Issue(&user)
	if err != nil {
		return respondError(c, err)
	}

	publish(c, h.Producer, "user_events", fmt.Sprint(user.ID), map[string]interface{}{
		"type":     "user_logged_in",
		"userID":   user.ID,
		"username": user.Username,
	})

	return c.JSON(http.StatusOK, echo.Map{
		"access_token": signed,
		"expires_at":   exp,
		"user":         user,
	})
}

func (h *AuthHandler) ListUsers(c echo.Context) error {
	var users []models.User
	if err := h.DB.Order("id ASC").Find(&users).Error; err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, users)
}

func (h *AuthHandler) CreateUser(c echo.Context) error {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}
	if err := c.Bind(&req); err != nil {
		return respondError(c, apperr.New(apperr.InvalidInput, "malformed request body"))
	}

	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" || req.Role == "" {
		return respondError(c, apperr.New(apperr.InvalidInput, "username, password and role are required"))
	}
	if !models.ValidRole(req.Role) {
		return respondError(c, apperr.Newf(apperr.InvalidInput, "unknown role %q", req.Role))
	}

	pwHash, err := hash.HashPassword(req.Password)
	if err != nil {
		return respondError(c, err)
	}

	user := models.User{
		Username:     req.Username,
		PasswordHash: pwHash,
		Role:         req.Role,
	}
	if err := h.DB.Create(&user).Error; err != nil {
		if isDuplicate(err) {
			return respondError(c, apperr.New(apperr.Conflict, "username already exists"))
		}
		return respondError(c, err)
	}

	publish(c, h.Producer, "user_events", fmt.Sprint(user.ID), map[string]interface{}{
		"type":     "user_created",
		"userID":   user.ID,
		"username": user.Username,
		"role":     user.Role,
	})

	return c.JSON(http.StatusCreated, user)
}

// UpdateRole changes another user's role. Changing one's own role is refused
// regardless of privileges.
func (h *AuthHandler) UpdateRole(c echo.Context) error {
	id, err := userIDParam(c)
	if err != nil {
		return respondError(c, err)
	}
	if err := auth.ForbidSelf(c, id); err != nil {
		return respondError(c, err)
	}

	var req struct {
		Role string `json:"role"`
	}
	if err := c.Bind(&req); err != nil {
		return respondError(c, apperr.New(apperr.InvalidInput, "malformed request body"))
	}
	if !models.ValidRole(req.Role) {
		return respondError(c, apperr.Newf(apperr.InvalidInput, "unknown role %q", req.Role))
	}

	var user models.User
	if err := h.DB.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return respondError(c, apperr.New(apperr.NotFound, "user not found"))
		}
		return respondError(c, err)
	}

	user.Role = req.Role
	if err := h.DB.Save(&user).Error; err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, user)
}

func (h *AuthHandler) ChangePassword(c echo.Context) error {
	id, err := userIDParam(c)
	if err != nil {
		return respondError(c, err)
	}

	var req struct {
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return respondError(c, apperr.New(apperr.InvalidInput, "malformed request body"))
	}
	if req.Password == "" {
		return respondError(c, apperr.New(apperr.InvalidInput, "password is required"))
	}

	pwHash, err := hash.HashPassword(req.Password)
	if err != nil {
		return respondError(c, err)
	}

	res := h.DB.Model(&models.User{}).Where("id = ?", id).Update("password_hash", pwHash)
	if res.Error != nil {
		return respondError(c, res.Error)
	}
	if res.RowsAffected == 0 {
		return respondError(c, apperr.New(apperr.NotFound, "user not found"))
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "password updated"})
}

// DeleteUser removes another user's account. Deleting one's own account is
// refused regardless of privileges.
func (h *AuthHandler) DeleteUser(c echo.Context) error {
	id, err := userIDParam(c)
	if err != nil {
		return respondError(c, err)
	}
	if err := auth.ForbidSelf(c, id); err != nil {
		return respondError(c, err)
	}

	res := h.DB.Delete(&models.User{}, id)
	if res.Error != nil {
		return respondError(c, res.Error)
	}
	if res.RowsAffected == 0 {
		return respondError(c, apperr.New(apperr.NotFound, "user not found"))
	}

	publish(c, h.Producer, "user_events", fmt.Sprint(id), map[string]interface{}{
		"type":   "user_deleted",
		"userID": id,
	})

	return c.NoContent(http.StatusNoContent)
}

func userIDParam(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return 0, apperr.New(apperr.InvalidInput, "invalid user id")
	}
	return uint(id), nil
}
