package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/medallion-map/backend/internal/archive"
	"github.com/medallion-map/backend/internal/config"
	"github.com/medallion-map/backend/internal/geodata"
	"github.com/medallion-map/backend/internal/models"
	"github.com/medallion-map/backend/internal/render"
	"github.com/medallion-map/backend/internal/session"
	"github.com/medallion-map/backend/internal/testutil"
	"github.com/medallion-map/backend/internal/upload"
	"github.com/stretchr/testify/require"
)

// fakeArchive is an in-memory RecordArchive that also satisfies session.Archive.
type fakeArchive struct {
	mu      sync.Mutex
	sets    map[string]*models.RecordSet
	names   map[string]string
	deleted []string
}

func newFakeArchive() *fakeArchive {
	return &fakeArchive{sets: map[string]*models.RecordSet{}, names: map[string]string{}}
}

func (a *fakeArchive) Put(_ context.Context, fileID, name string, set *models.RecordSet) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sets[fileID] = set
	a.names[fileID] = name
	return nil
}

func (a *fakeArchive) Records(_ context.Context, fileID string) (*models.RecordSet, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	set, ok := a.sets[fileID]
	if !ok {
		return nil, archive.ErrNotArchived
	}
	return set, nil
}

func (a *fakeArchive) Recent(_ context.Context, limit int) ([]archive.Summary, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []archive.Summary
	for id, set := range a.sets {
		out = append(out, archive.Summary{FileID: id, Name: a.names[id], RecordCount: set.Len()})
	}
	return out, nil
}

func (a *fakeArchive) Delete(_ context.Context, fileID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.sets, fileID)
	a.deleted = append(a.deleted, fileID)
	return nil
}

type testServer struct {
	e       *echo.Echo
	store   *testutil.MockStorage
	panels  *session.Manager
	archive *fakeArchive
}

func newTestServer(t *testing.T, source geodata.Source) *testServer {
	t.Helper()

	store := testutil.NewMockStorage()
	arch := newFakeArchive()
	themes, err := config.NewThemeStore("")
	require.NoError(t, err)

	pipeline := render.NewPipeline(source, themes)
	panels := session.NewManager(pipeline, session.Options{Files: store, Archive: arch})
	t.Cleanup(panels.Close)

	e := echo.New()
	SetupMiddleware(e, true)
	handlers := NewHandlers(&Dependencies{
		Store:    store,
		Panels:   panels,
		Intake:   upload.NewManager(store, 1<<20),
		Pipeline: pipeline,
		Archive:  arch,
		Themes:   themes,
		Version:  "test",
	})
	RegisterRoutes(e, handlers)
	RegisterWebSocketRoutes(e, handlers)

	return &testServer{e: e, store: store, panels: panels, archive: arch}
}

func newEuropeServer(t *testing.T) *testServer {
	return newTestServer(t, geodata.Static{Collection: testutil.Europe()})
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) createPanel(t *testing.T) *models.PanelStatus {
	t.Helper()
	rec := s.do(httptest.NewRequest(http.MethodPost, "/api/panels", nil))
	require.Equal(t, http.StatusCreated, rec.Code)

	var status models.PanelStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	return &status
}

func multipartBody(t *testing.T, field, name string, content []byte) (io.Reader, string) {
	t.Helper()
	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)
	if field != "" {
		part, err := writer.CreateFormFile(field, name)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func uploadRequest(t *testing.T, path, name string, content []byte) *http.Request {
	t.Helper()
	body, contentType := multipartBody(t, "file", name, content)
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set(echo.HeaderContentType, contentType)
	return req
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) APIError {
	t.Helper()
	var apiErr APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr))
	return apiErr
}
