// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"context"

	"github.com/labstack/echo/v4"
	"github.com/medallion-map/backend/internal/archive"
	"github.com/medallion-map/backend/internal/models"
	"github.com/medallion-map/backend/internal/scene"
)

// PanelHandler handles results panel operations
type PanelHandler interface {
	HandleCreatePanel(c echo.Context) error
	HandleListPanels(c echo.Context) error
	HandleGetPanel(c echo.Context) error
	HandleDeletePanel(c echo.Context) error
	HandleUpload(c echo.Context) error
	HandleRerender(c echo.Context) error
	HandleGetSVG(c echo.Context) error
	HandleGetScene(c echo.Context) error
	HandleGetSceneMsgpack(c echo.Context) error
	HandleGetRecords(c echo.Context) error
}

// RenderHandler handles stateless one-shot renders
type RenderHandler interface {
	HandleRender(c echo.Context) error
}

// FileHandler handles previously uploaded files
type FileHandler interface {
	HandleGetRecentFiles(c echo.Context) error
	HandleGetFileRecords(c echo.Context) error
	HandleDeleteFile(c echo.Context) error
}

// ThemeHandler handles the rendering theme
type ThemeHandler interface {
	HandleGetTheme(c echo.Context) error
	HandleUpdateTheme(c echo.Context) error
}

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// StatusStreamHandler streams panel status over a websocket
type StatusStreamHandler interface {
	HandlePanelStream(c echo.Context) error
}

// PanelManager defines the interface for panel management
// This allows mocking in tests
type PanelManager interface {
	CreatePanel() (*models.PanelStatus, error)
	List() []models.PanelStatus
	Status(panelID string) (*models.PanelStatus, error)
	Submit(panelID string, file *models.FileInfo, content []byte) (*models.PanelStatus, error)
	Rerender(panelID, fileID string) (*models.PanelStatus, error)
	Scene(panelID string) (*scene.Scene, error)
	SVG(panelID string) ([]byte, error)
	Records(panelID string) (*models.RecordSet, error)
	Subscribe(panelID string) (<-chan models.PanelStatus, func(), error)
	DeletePanel(panelID string) error
}

// RecordArchive is the part of the archive the file handlers read
type RecordArchive interface {
	Records(ctx context.Context, fileID string) (*models.RecordSet, error)
	Recent(ctx context.Context, limit int) ([]archive.Summary, error)
	Delete(ctx context.Context, fileID string) error
}

// ThemeSource reads and replaces the current theme
type ThemeSource interface {
	Theme() *models.Theme
	Update(data []byte) (*models.Theme, error)
}
