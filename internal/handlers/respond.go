package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/makedist/asset_registry/internal/apperr"
	"github.com/makedist/asset_registry/internal/events"
	"github.com/makedist/asset_registry/internal/logging"
)

// respondError renders the {kind, message} error contract. Internal failures
// are logged with full detail and surfaced generically.
func respondError(c echo.Context, err error) error {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		ae = apperr.Wrap(apperr.Internal, "internal server error", err)
	}
	if ae.Kind == apperr.Internal {
		logging.FromContext(c.Request().Context()).Error("internal error", "error", err)
		return c.JSON(http.StatusInternalServerError, apperr.New(apperr.Internal, "internal server error"))
	}
	return c.JSON(ae.Kind.HTTPStatus(), ae)
}

// isDuplicate recognizes uniqueness violations across drivers: postgres in
// production, sqlite in tests.
func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint") || strings.Contains(msg, "duplicate key")
}

// publish fires a domain event after the write committed. Delivery failures
// are logged, never propagated to the caller.
func publish(c echo.Context, p *events.Producer, topic, key string, event map[string]interface{}) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := p.PublishEvent(ctx, topic, key, event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}
