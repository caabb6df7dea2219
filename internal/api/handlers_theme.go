// handlers_theme.go - Rendering theme handlers
package api

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/medallion-map/backend/internal/parser"
)

const maxThemeBytes = 64 << 10

// ThemeHandlerImpl implements the ThemeHandler interface
type ThemeHandlerImpl struct {
	themes ThemeSource
}

// NewThemeHandler creates a new theme handler
func NewThemeHandler(themes ThemeSource) ThemeHandler {
	return &ThemeHandlerImpl{themes: themes}
}

// HandleGetTheme returns the current theme as JSON, or YAML for ?format=yaml
func (h *ThemeHandlerImpl) HandleGetTheme(c echo.Context) error {
	theme := h.themes.Theme()
	if c.QueryParam("format") == "yaml" {
		data, err := parser.MarshalTheme(theme)
		if err != nil {
			return NewInternalError("failed to encode theme", err)
		}
		return c.Blob(http.StatusOK, "application/yaml", data)
	}
	return c.JSON(http.StatusOK, theme)
}

// HandleUpdateTheme replaces the theme with a YAML document. Omitted keys keep
// their default values. Panels pick the new theme up on their next render.
func (h *ThemeHandlerImpl) HandleUpdateTheme(c echo.Context) error {
	data, err := io.ReadAll(io.LimitReader(c.Request().Body, maxThemeBytes+1))
	if err != nil {
		return NewBadRequestError("failed to read body", err)
	}
	if len(data) == 0 {
		return NewValidationError("body")
	}
	if len(data) > maxThemeBytes {
		return NewBadRequestError("theme is too large", nil)
	}

	theme, err := h.themes.Update(data)
	if err != nil {
		return NewBadRequestError("invalid theme", err)
	}
	return c.JSON(http.StatusOK, theme)
}
