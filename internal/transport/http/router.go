package httpserver

import (
	"github.com/labstack/echo/v4"

	"github.com/makedist/asset_registry/internal/handlers"
	"github.com/makedist/asset_registry/internal/middleware/auth"
	"github.com/makedist/asset_registry/internal/models"
)

type Deps struct {
	Gate            *auth.Gate
	AuthHandler     *handlers.AuthHandler
	CategoryHandler *handlers.CategoryHandler
	AssetHandler    *handlers.AssetHandler
	HistoryHandler  *handlers.HistoryHandler
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(200) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(200) })

	v1 := e.Group("/api/v1")

	v1.POST("/login", d.AuthHandler.Login)

	// Reads are public; mutations never fall back to an anonymous actor.
	v1.GET("/categories", d.CategoryHandler.ListCategories)
	v1.GET("/assets", d.AssetHandler.ListAssets)
	v1.GET("/assets/search", d.AssetHandler.SearchAssets)
	v1.GET("/assets/:id", d.AssetHandler.GetAsset)
	v1.GET("/assets/:id/history", d.HistoryHandler.ListHistory)

	authed := v1.Group("", d.Gate.Require())
	authed.POST("/assets", d.AssetHandler.CreateAsset)
	authed.PUT("/assets/:id", d.AssetHandler.UpdateAsset)
	authed.POST("/assets/:id/history", d.HistoryHandler.AppendHistory)

	admin := v1.Group("", d.Gate.Require(models.RoleAdmin))
	admin.DELETE("/assets/:id", d.AssetHandler.DeleteAsset)

	admin.POST("/categories", d.CategoryHandler.CreateCategory)
	admin.PATCH("/categories/:id", d.CategoryHandler.RenameCategory)
	admin.DELETE("/categories/:id", d.CategoryHandler.DeleteCategory)

	admin.GET("/users", d.AuthHandler.ListUsers)
	admin.POST("/users", d.AuthHandler.CreateUser)
	admin.PATCH("/users/:id/role", d.AuthHandler.UpdateRole)
	admin.PATCH("/users/:id/password", d.AuthHandler.ChangePassword)
	admin.DELETE("/users/:id", d.AuthHandler.DeleteUser)
}
