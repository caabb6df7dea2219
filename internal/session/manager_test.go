package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/medallion-map/backend/internal/geo"
	"github.com/medallion-map/backend/internal/geodata"
	"github.com/medallion-map/backend/internal/models"
	"github.com/medallion-map/backend/internal/render"
	"github.com/medallion-map/backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gatedSource blocks World until released or the context ends.
type gatedSource struct {
	release chan struct{}
	calls   chan struct{}
}

func newGatedSource() *gatedSource {
	return &gatedSource{release: make(chan struct{}), calls: make(chan struct{}, 8)}
}

func (g *gatedSource) World(ctx context.Context) (*geo.FeatureCollection, error) {
	g.calls <- struct{}{}
	select {
	case <-g.release:
		return testutil.Europe(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// memArchive is an in-memory Archive.
type memArchive struct {
	mu   sync.Mutex
	sets map[string]*models.RecordSet
}

func (a *memArchive) Put(_ context.Context, fileID, _ string, set *models.RecordSet) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sets[fileID] = set
	return nil
}

func (a *memArchive) Records(_ context.Context, fileID string) (*models.RecordSet, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	set, ok := a.sets[fileID]
	if !ok {
		return nil, errors.New("not archived")
	}
	return set, nil
}

func newTestManager(source geodata.Source, opts Options) *Manager {
	return NewManager(render.NewPipeline(source, nil), opts)
}

func file(id, name string) *models.FileInfo {
	return &models.FileInfo{ID: id, Name: name}
}

func TestCreatePanel(t *testing.T) {
	m := newTestManager(geodata.Static{Collection: testutil.Europe()}, Options{})

	status, err := m.CreatePanel()
	require.NoError(t, err)
	assert.Equal(t, models.PanelStateIdle, status.State)
	assert.Equal(t, models.DefaultPanelTitle, status.Title)

	_, err = m.SVG(status.ID)
	assert.ErrorIs(t, err, ErrNotRendered)

	_, err = m.Status("missing")
	assert.ErrorIs(t, err, ErrPanelNotFound)
}

func TestSubmit_RendersPanel(t *testing.T) {
	m := newTestManager(geodata.Static{Collection: testutil.Europe()}, Options{})
	panel, _ := m.CreatePanel()

	started, err := m.Submit(panel.ID, file("f1", "trip.csv"), []byte(testutil.TripCSV))
	require.NoError(t, err)
	assert.Equal(t, "trip.csv", started.Title)
	assert.Equal(t, uint64(1), started.Generation)

	m.Wait()

	status, err := m.Status(panel.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PanelStateComplete, status.State)
	assert.Equal(t, 2, status.RecordCount)

	svg, err := m.SVG(panel.ID)
	require.NoError(t, err)
	assert.Contains(t, string(svg), "1900 - 1903")
	assert.Contains(t, string(svg), "clip-"+panel.ID[:8]+"-0")

	s, err := m.Scene(panel.ID)
	require.NoError(t, err)
	assert.Len(t, s.Panels, 2)

	records, err := m.Records(panel.ID)
	require.NoError(t, err)
	assert.Equal(t, "Rome", records.Records[1].Location)
}

func TestSubmit_ReplacesPreviousRender(t *testing.T) {
	m := newTestManager(geodata.Static{Collection: testutil.Europe()}, Options{})
	panel, _ := m.CreatePanel()

	_, err := m.Submit(panel.ID, file("f1", "trip.csv"), []byte(testutil.TripCSV))
	require.NoError(t, err)
	m.Wait()

	_, err = m.Submit(panel.ID, file("f2", "one.csv"), []byte("location,longitude,latitude,duration,start_year,end_year\nOslo,10.7,59.9,1,2000,2001\n"))
	require.NoError(t, err)
	m.Wait()

	svg, err := m.SVG(panel.ID)
	require.NoError(t, err)
	assert.NotContains(t, string(svg), "Paris")
	assert.NotContains(t, string(svg), "1900 - 1903")
	assert.Equal(t, 1, strings.Count(string(svg), `class="medallion"`))
}

func TestSubmit_CancelAndRestart(t *testing.T) {
	source := newGatedSource()
	m := newTestManager(source, Options{})
	panel, _ := m.CreatePanel()

	_, err := m.Submit(panel.ID, file("f1", "first.csv"), []byte(testutil.TripCSV))
	require.NoError(t, err)
	<-source.calls

	_, err = m.Submit(panel.ID, file("f2", "second.csv"), []byte("location,longitude,latitude,duration,start_year,end_year\nOslo,10.7,59.9,1,2000,2001\n"))
	require.NoError(t, err)
	<-source.calls

	close(source.release)
	m.Wait()

	status, _ := m.Status(panel.ID)
	assert.Equal(t, models.PanelStateComplete, status.State)
	assert.Equal(t, uint64(2), status.Generation)
	assert.Equal(t, "second.csv", status.Title)

	svg, _ := m.SVG(panel.ID)
	assert.Contains(t, string(svg), "Oslo")
	assert.NotContains(t, string(svg), "Paris")
}

func TestSubmit_ParseError(t *testing.T) {
	store := testutil.NewMockStorage()
	info := store.AddFile("f1", "words.txt", []byte("just words\nmore words\n"))
	m := newTestManager(geodata.Static{Collection: testutil.Europe()}, Options{Files: store})
	panel, _ := m.CreatePanel()

	_, err := m.Submit(panel.ID, info, []byte("just words\nmore words\n"))
	require.NoError(t, err)
	m.Wait()

	status, _ := m.Status(panel.ID)
	assert.Equal(t, models.PanelStateError, status.State)
	assert.Equal(t, CodeParseError, status.ErrorCode)
	assert.Equal(t, "words.txt", status.Title)

	stored, _ := store.Get("f1")
	assert.Equal(t, models.FileStatusError, stored.Status)
}

func TestSubmit_GeographyFailure(t *testing.T) {
	m := newTestManager(geodata.Static{Err: errors.New("connection refused")}, Options{})
	panel, _ := m.CreatePanel()

	_, err := m.Submit(panel.ID, file("f1", "trip.csv"), []byte(testutil.TripCSV))
	require.NoError(t, err)
	m.Wait()

	status, _ := m.Status(panel.ID)
	assert.Equal(t, models.PanelStateError, status.State)
	assert.Equal(t, CodeRenderError, status.ErrorCode)
	assert.NotEmpty(t, status.Message)
	assert.NotContains(t, status.Message, "connection refused")

	_, err = m.SVG(panel.ID)
	assert.ErrorIs(t, err, ErrNotRendered)
}

func TestSubmit_UnknownPanel(t *testing.T) {
	m := newTestManager(geodata.Static{Collection: testutil.Europe()}, Options{})

	_, err := m.Submit("missing", file("f1", "trip.csv"), []byte(testutil.TripCSV))
	assert.ErrorIs(t, err, ErrPanelNotFound)
}

func TestRerender(t *testing.T) {
	store := testutil.NewMockStorage()
	archive := &memArchive{sets: map[string]*models.RecordSet{}}
	info := store.AddFile("f1", "trip.csv", []byte(testutil.TripCSV))
	m := newTestManager(geodata.Static{Collection: testutil.Europe()}, Options{Files: store, Archive: archive})
	panel, _ := m.CreatePanel()

	t.Run("from stored text", func(t *testing.T) {
		_, err := m.Rerender(panel.ID, info.ID)
		require.NoError(t, err)
		m.Wait()

		status, _ := m.Status(panel.ID)
		assert.Equal(t, models.PanelStateComplete, status.State)
		assert.Equal(t, 2, status.RecordCount)
	})

	t.Run("from archive", func(t *testing.T) {
		_, err := m.Submit(panel.ID, info, []byte(testutil.TripCSV))
		require.NoError(t, err)
		m.Wait()
		require.Contains(t, archive.sets, info.ID)

		_, err = m.Rerender(panel.ID, info.ID)
		require.NoError(t, err)
		m.Wait()

		status, _ := m.Status(panel.ID)
		assert.Equal(t, models.PanelStateComplete, status.State)
		assert.Equal(t, uint64(3), status.Generation)
	})

	t.Run("unknown file", func(t *testing.T) {
		_, err := m.Rerender(panel.ID, "missing")
		assert.Error(t, err)
	})
}

func TestSubscribe(t *testing.T) {
	source := newGatedSource()
	m := newTestManager(source, Options{})
	panel, _ := m.CreatePanel()

	updates, unsubscribe, err := m.Subscribe(panel.ID)
	require.NoError(t, err)
	defer unsubscribe()

	first := <-updates
	assert.Equal(t, models.PanelStateIdle, first.State)

	_, err = m.Submit(panel.ID, file("f1", "trip.csv"), []byte(testutil.TripCSV))
	require.NoError(t, err)
	<-source.calls
	close(source.release)
	m.Wait()

	var states []models.PanelState
	timeout := time.After(time.Second)
	for done := false; !done; {
		select {
		case s := <-updates:
			states = append(states, s.State)
			done = s.State == models.PanelStateComplete
		case <-timeout:
			t.Fatalf("no complete status, got %v", states)
		}
	}
	assert.Contains(t, states, models.PanelStateFetching)
	assert.Equal(t, models.PanelStateComplete, states[len(states)-1])
}

func TestDeletePanel(t *testing.T) {
	m := newTestManager(geodata.Static{Collection: testutil.Europe()}, Options{})
	panel, _ := m.CreatePanel()

	updates, unsubscribe, err := m.Subscribe(panel.ID)
	require.NoError(t, err)
	<-updates

	require.NoError(t, m.DeletePanel(panel.ID))
	_, open := <-updates
	assert.False(t, open)
	unsubscribe()

	assert.ErrorIs(t, m.DeletePanel(panel.ID), ErrPanelNotFound)
}

func TestCleanupOldPanels(t *testing.T) {
	m := newTestManager(geodata.Static{Collection: testutil.Europe()}, Options{})
	old, _ := m.CreatePanel()
	time.Sleep(20 * time.Millisecond)
	fresh, _ := m.CreatePanel()

	removed := m.CleanupOldPanels(10 * time.Millisecond)
	assert.Equal(t, 1, removed)

	_, err := m.Status(old.ID)
	assert.ErrorIs(t, err, ErrPanelNotFound)
	_, err = m.Status(fresh.ID)
	assert.NoError(t, err)
}

func TestCleanupOldPanels_KeepsWatchedPanel(t *testing.T) {
	m := newTestManager(geodata.Static{Collection: testutil.Europe()}, Options{})
	watched, _ := m.CreatePanel()
	updates, unsubscribe, err := m.Subscribe(watched.ID)
	require.NoError(t, err)
	<-updates

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, m.CleanupOldPanels(10*time.Millisecond))

	_, err = m.Submit(watched.ID, file("f1", "trip.csv"), []byte(testutil.TripCSV))
	require.NoError(t, err)
	m.Wait()
	status, err := m.Status(watched.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PanelStateComplete, status.State)

	// Once the watcher leaves the panel ages out as usual.
	unsubscribe()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, m.CleanupOldPanels(10*time.Millisecond))
	_, err = m.Status(watched.ID)
	assert.ErrorIs(t, err, ErrPanelNotFound)
}

func TestMaxPanels_KeepsWatchedPanel(t *testing.T) {
	m := newTestManager(geodata.Static{Collection: testutil.Europe()}, Options{MaxPanels: 1})
	watched, _ := m.CreatePanel()
	_, unsubscribe, err := m.Subscribe(watched.ID)
	require.NoError(t, err)
	defer unsubscribe()

	_, err = m.CreatePanel()
	assert.ErrorIs(t, err, ErrTooManyPanels)
	_, err = m.Status(watched.ID)
	assert.NoError(t, err)
}

func TestMaxPanels(t *testing.T) {
	source := newGatedSource()
	m := newTestManager(source, Options{MaxPanels: 2})

	busy, _ := m.CreatePanel()
	_, err := m.Submit(busy.ID, file("f1", "trip.csv"), []byte(testutil.TripCSV))
	require.NoError(t, err)
	<-source.calls

	idle, err := m.CreatePanel()
	require.NoError(t, err)

	// The idle panel is evicted, the busy one is kept.
	third, err := m.CreatePanel()
	require.NoError(t, err)
	_, err = m.Status(idle.ID)
	assert.ErrorIs(t, err, ErrPanelNotFound)

	_, err = m.Submit(third.ID, file("f2", "trip.csv"), []byte(testutil.TripCSV))
	require.NoError(t, err)
	<-source.calls

	_, err = m.CreatePanel()
	assert.ErrorIs(t, err, ErrTooManyPanels)
	assert.Len(t, m.List(), 2)

	m.Close()
}
