// handlers_panel.go - Results panel handlers
package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/medallion-map/backend/internal/models"
	"github.com/medallion-map/backend/internal/upload"
	"github.com/vmihailenco/msgpack/v5"
)

// PanelHandlerImpl implements the PanelHandler interface
type PanelHandlerImpl struct {
	panels PanelManager
	intake *upload.Manager
}

// NewPanelHandler creates a new panel handler instance
func NewPanelHandler(panels PanelManager, intake *upload.Manager) PanelHandler {
	return &PanelHandlerImpl{
		panels: panels,
		intake: intake,
	}
}

// HandleCreatePanel opens a new idle panel
func (h *PanelHandlerImpl) HandleCreatePanel(c echo.Context) error {
	status, err := h.panels.CreatePanel()
	if err != nil {
		return toAPIError(err, "panel", "")
	}
	return c.JSON(http.StatusCreated, status)
}

// HandleListPanels returns the status of every panel
func (h *PanelHandlerImpl) HandleListPanels(c echo.Context) error {
	return c.JSON(http.StatusOK, h.panels.List())
}

// HandleGetPanel returns the status of one panel
func (h *PanelHandlerImpl) HandleGetPanel(c echo.Context) error {
	id := c.Param("id")
	status, err := h.panels.Status(id)
	if err != nil {
		return toAPIError(err, "panel", id)
	}
	return c.JSON(http.StatusOK, status)
}

// HandleDeletePanel closes a panel and cancels its render
func (h *PanelHandlerImpl) HandleDeletePanel(c echo.Context) error {
	id := c.Param("id")
	if err := h.panels.DeletePanel(id); err != nil {
		return toAPIError(err, "panel", id)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleUpload accepts a dropped or selected file and starts rendering it.
// A request without a file changes nothing.
func (h *PanelHandlerImpl) HandleUpload(c echo.Context) error {
	id := c.Param("id")
	if _, err := h.panels.Status(id); err != nil {
		return toAPIError(err, "panel", id)
	}

	fh, err := c.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return c.NoContent(http.StatusNoContent)
		}
		return NewBadRequestError("invalid multipart body", err)
	}

	src, err := fh.Open()
	if err != nil {
		return NewBadRequestError("failed to open uploaded file", err)
	}
	defer src.Close()

	up, err := h.intake.Accept(fh.Filename, src)
	if err != nil {
		if errors.Is(err, upload.ErrEmptyName) {
			return NewValidationError("file")
		}
		return toAPIError(err, "file", fh.Filename)
	}

	status, err := h.panels.Submit(id, up.Info, up.Content)
	if err != nil {
		return toAPIError(err, "panel", id)
	}

	return c.JSON(http.StatusAccepted, uploadResponse{Panel: status, File: up.Info})
}

// HandleRerender renders a previously uploaded file in the panel
func (h *PanelHandlerImpl) HandleRerender(c echo.Context) error {
	id := c.Param("id")

	var req rerenderRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if err := req.validate(); err != nil {
		return err
	}

	if _, err := h.panels.Status(id); err != nil {
		return toAPIError(err, "panel", id)
	}

	status, err := h.panels.Rerender(id, req.FileID)
	if err != nil {
		return toAPIError(err, "file", req.FileID)
	}
	return c.JSON(http.StatusAccepted, status)
}

// HandleGetSVG returns the committed SVG of the latest render
func (h *PanelHandlerImpl) HandleGetSVG(c echo.Context) error {
	id := c.Param("id")
	svg, err := h.panels.SVG(id)
	if err != nil {
		return toAPIError(err, "panel", id)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return c.Blob(http.StatusOK, "image/svg+xml", svg)
}

// HandleGetScene returns the scene graph of the latest render
func (h *PanelHandlerImpl) HandleGetScene(c echo.Context) error {
	id := c.Param("id")
	s, err := h.panels.Scene(id)
	if err != nil {
		return toAPIError(err, "panel", id)
	}
	return c.JSON(http.StatusOK, s)
}

// HandleGetSceneMsgpack returns the scene graph in MessagePack format
func (h *PanelHandlerImpl) HandleGetSceneMsgpack(c echo.Context) error {
	id := c.Param("id")
	s, err := h.panels.Scene(id)
	if err != nil {
		return toAPIError(err, "panel", id)
	}

	data, err := msgpack.Marshal(s)
	if err != nil {
		return NewInternalError("failed to encode msgpack", err)
	}
	return c.Blob(http.StatusOK, "application/msgpack", data)
}

// HandleGetRecords returns the records of the latest render
func (h *PanelHandlerImpl) HandleGetRecords(c echo.Context) error {
	id := c.Param("id")
	set, err := h.panels.Records(id)
	if err != nil {
		return toAPIError(err, "panel", id)
	}
	return respondRecords(c, set)
}

// respondRecords writes a record set as JSON, or MessagePack for ?format=msgpack.
func respondRecords(c echo.Context, set *models.RecordSet) error {
	if c.QueryParam("format") == "msgpack" {
		data, err := msgpack.Marshal(set)
		if err != nil {
			return NewInternalError("failed to encode msgpack", err)
		}
		return c.Blob(http.StatusOK, "application/msgpack", data)
	}
	return c.JSON(http.StatusOK, set)
}

// Request/Response types

type uploadResponse struct {
	Panel *models.PanelStatus `json:"panel"`
	File  *models.FileInfo    `json:"file"`
}

type rerenderRequest struct {
	FileID string `json:"fileId"`
}

func (r *rerenderRequest) validate() error {
	if r.FileID == "" {
		return NewValidationError("fileId")
	}
	return nil
}
