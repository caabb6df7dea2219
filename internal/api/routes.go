// routes.go - Route registration helpers
// This file provides a clean way to register all API routes
package api

import (
	"github.com/labstack/echo/v4"
	"github.com/medallion-map/backend/internal/render"
	"github.com/medallion-map/backend/internal/storage"
	"github.com/medallion-map/backend/internal/upload"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Store         storage.Store
	Panels        PanelManager
	Intake        *upload.Manager
	Pipeline      *render.Pipeline
	Archive       RecordArchive // optional
	Themes        ThemeSource
	KeepOffscreen bool
	Version       string
}

// Handlers holds all handler instances
type Handlers struct {
	Health HealthHandler
	Panel  PanelHandler
	Render RenderHandler
	File   FileHandler
	Theme  ThemeHandler
	Stream StatusStreamHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	return &Handlers{
		Health: NewHealthHandler(deps.Version, deps.Panels, deps.Intake),
		Panel:  NewPanelHandler(deps.Panels, deps.Intake),
		Render: NewRenderHandler(deps.Pipeline, deps.Intake, deps.KeepOffscreen),
		File:   NewFileHandler(deps.Store, deps.Archive),
		Theme:  NewThemeHandler(deps.Themes),
		Stream: NewStatusStreamHandler(deps.Panels),
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	// Health check
	e.GET("/api/health", handlers.Health.HandleHealth)

	// Panel routes
	panelGroup := e.Group("/api/panels")
	panelGroup.POST("", handlers.Panel.HandleCreatePanel)
	panelGroup.GET("", handlers.Panel.HandleListPanels)
	panelGroup.GET("/:id", handlers.Panel.HandleGetPanel)
	panelGroup.DELETE("/:id", handlers.Panel.HandleDeletePanel)
	panelGroup.POST("/:id/upload", handlers.Panel.HandleUpload)
	panelGroup.POST("/:id/rerender", handlers.Panel.HandleRerender)
	panelGroup.GET("/:id/svg", handlers.Panel.HandleGetSVG)
	panelGroup.GET("/:id/scene", handlers.Panel.HandleGetScene)
	panelGroup.GET("/:id/scene/msgpack", handlers.Panel.HandleGetSceneMsgpack)
	panelGroup.GET("/:id/records", handlers.Panel.HandleGetRecords)

	// Stateless render
	e.POST("/api/render", handlers.Render.HandleRender)

	// File routes
	fileGroup := e.Group("/api/files")
	fileGroup.GET("/recent", handlers.File.HandleGetRecentFiles)
	fileGroup.GET("/:id/records", handlers.File.HandleGetFileRecords)
	fileGroup.DELETE("/:id", handlers.File.HandleDeleteFile)

	// Theme routes
	e.GET("/api/theme", handlers.Theme.HandleGetTheme)
	e.PUT("/api/theme", handlers.Theme.HandleUpdateTheme)
}

// RegisterWebSocketRoutes registers WebSocket routes
func RegisterWebSocketRoutes(e *echo.Echo, handlers *Handlers) {
	e.GET("/api/panels/:id/ws", handlers.Stream.HandlePanelStream)
}

// SetupMiddleware configures common middleware
func SetupMiddleware(e *echo.Echo, showErrorDetails bool) {
	// Use custom error handler
	e.HTTPErrorHandler = ErrorHandler
	ShowErrorDetails = showErrorDetails
}
