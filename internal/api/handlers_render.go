// handlers_render.go - Stateless render handler
package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/medallion-map/backend/internal/render"
	"github.com/medallion-map/backend/internal/scene"
	"github.com/medallion-map/backend/internal/upload"
	"github.com/vmihailenco/msgpack/v5"
)

// RenderHandlerImpl implements the RenderHandler interface
type RenderHandlerImpl struct {
	pipeline      *render.Pipeline
	intake        *upload.Manager
	keepOffscreen bool
}

// NewRenderHandler creates a new stateless render handler
func NewRenderHandler(pipeline *render.Pipeline, intake *upload.Manager, keepOffscreen bool) RenderHandler {
	return &RenderHandlerImpl{
		pipeline:      pipeline,
		intake:        intake,
		keepOffscreen: keepOffscreen,
	}
}

// HandleRender renders an uploaded CSV file without keeping it. The response is
// SVG unless ?format=json or ?format=msgpack asks for the scene graph.
func (h *RenderHandlerImpl) HandleRender(c echo.Context) error {
	var req renderRequest
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &req); err != nil {
		return NewBadRequestError("invalid query parameters", err)
	}
	if err := req.validate(); err != nil {
		return err
	}

	fh, err := c.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return NewValidationError("file")
		}
		return NewBadRequestError("invalid multipart body", err)
	}
	src, err := fh.Open()
	if err != nil {
		return NewBadRequestError("failed to open uploaded file", err)
	}
	defer src.Close()

	content, _, err := h.intake.Read(src)
	if err != nil {
		return toAPIError(err, "file", fh.Filename)
	}

	opts := scene.Options{ClipPrefix: req.ClipPrefix, KeepOffscreen: h.keepOffscreen || req.KeepOffscreen}
	res, err := h.pipeline.Run(c.Request().Context(), content, opts)
	if err != nil {
		return toAPIError(err, "file", fh.Filename)
	}

	c.Response().Header().Set("X-Record-Count", strconv.Itoa(res.Records.Len()))
	switch req.Format {
	case "json":
		return c.JSON(http.StatusOK, res.Scene)
	case "msgpack":
		data, err := msgpack.Marshal(res.Scene)
		if err != nil {
			return NewInternalError("failed to encode msgpack", err)
		}
		return c.Blob(http.StatusOK, "application/msgpack", data)
	default:
		return c.Blob(http.StatusOK, "image/svg+xml", res.SVG)
	}
}

// Request/Response types

type renderRequest struct {
	Format        string `query:"format"`
	ClipPrefix    string `query:"clipPrefix"`
	KeepOffscreen bool   `query:"keepOffscreen"`
}

func (r *renderRequest) validate() error {
	switch r.Format {
	case "", "svg", "json", "msgpack":
	default:
		return NewValidationError("format")
	}
	for _, ch := range r.ClipPrefix {
		if !(ch == '-' || ch == '_' || ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z' || ch >= '0' && ch <= '9') {
			return NewValidationError("clipPrefix")
		}
	}
	return nil
}
