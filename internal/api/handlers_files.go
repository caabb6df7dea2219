// handlers_files.go - Uploaded file handlers
package api

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/medallion-map/backend/internal/archive"
	"github.com/medallion-map/backend/internal/models"
	"github.com/medallion-map/backend/internal/parser"
	"github.com/medallion-map/backend/internal/storage"
)

const defaultRecentLimit = 20

// FileHandlerImpl implements the FileHandler interface
type FileHandlerImpl struct {
	store   storage.Store
	archive RecordArchive
}

// NewFileHandler creates a new file handler. archive may be nil.
func NewFileHandler(store storage.Store, archive RecordArchive) FileHandler {
	return &FileHandlerImpl{
		store:   store,
		archive: archive,
	}
}

// HandleGetRecentFiles lists recent uploads, newest first
func (h *FileHandlerImpl) HandleGetRecentFiles(c echo.Context) error {
	limit := defaultRecentLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return NewValidationError("limit")
		}
		limit = n
	}

	files, err := h.store.List(limit)
	if err != nil {
		return NewInternalError("failed to list files", err)
	}

	resp := recentFilesResponse{Files: files}
	if h.archive != nil {
		summaries, err := h.archive.Recent(c.Request().Context(), limit)
		if err != nil {
			return NewInternalError("failed to list archived files", err)
		}
		resp.Archived = summaries
	}
	return c.JSON(http.StatusOK, resp)
}

// HandleGetFileRecords returns the parsed records of an upload, from the archive
// when present and by parsing the stored file otherwise
func (h *FileHandlerImpl) HandleGetFileRecords(c echo.Context) error {
	id := c.Param("id")
	ctx := c.Request().Context()

	if h.archive != nil {
		set, err := h.archive.Records(ctx, id)
		if err == nil {
			return respondRecords(c, set)
		}
		if !errors.Is(err, archive.ErrNotArchived) {
			return NewInternalError("failed to read archived records", err)
		}
	}

	content, err := h.store.Read(id)
	if err != nil {
		return toAPIError(err, "file", id)
	}
	set, err := parser.ParseRecords(bytes.NewReader(content))
	if err != nil {
		return toAPIError(err, "file", id)
	}
	return respondRecords(c, set)
}

// HandleDeleteFile removes an upload and its archived records
func (h *FileHandlerImpl) HandleDeleteFile(c echo.Context) error {
	id := c.Param("id")

	if err := h.store.Delete(id); err != nil {
		return toAPIError(err, "file", id)
	}
	if h.archive != nil {
		if err := h.archive.Delete(c.Request().Context(), id); err != nil {
			return NewInternalError("failed to delete archived records", err)
		}
	}
	return c.NoContent(http.StatusNoContent)
}

type recentFilesResponse struct {
	Files    []*models.FileInfo `json:"files"`
	Archived []archive.Summary  `json:"archived,omitempty"`
}
