// Package session owns the results panels: their status, their latest render and
// the goroutines producing it.
package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/medallion-map/backend/internal/logging"
	"github.com/medallion-map/backend/internal/models"
	"github.com/medallion-map/backend/internal/parser"
	"github.com/medallion-map/backend/internal/render"
	"github.com/medallion-map/backend/internal/scene"
	"github.com/rs/zerolog"
)

// DefaultMaxPanels limits concurrent panels to bound memory.
const DefaultMaxPanels = 64

// DefaultRenderTimeout bounds a single render including the geography fetch.
const DefaultRenderTimeout = 2 * time.Minute

// subscriberBuffer is how many status updates a slow subscriber may lag behind.
const subscriberBuffer = 16

// Error codes carried in PanelStatus.ErrorCode.
const (
	CodeParseError    = "PARSE_ERROR"
	CodeRenderError   = "RENDER_ERROR"
	CodeInternalError = "INTERNAL_ERROR"
)

var (
	ErrPanelNotFound = errors.New("panel not found")
	ErrNotRendered   = errors.New("panel has no render yet")
	ErrTooManyPanels = errors.New("too many panels")
)

// Archive keeps parsed records per file.
type Archive interface {
	Put(ctx context.Context, fileID, name string, set *models.RecordSet) error
	Records(ctx context.Context, fileID string) (*models.RecordSet, error)
}

// FileStore is the part of the file store a panel needs.
type FileStore interface {
	Get(id string) (*models.FileInfo, error)
	Read(id string) ([]byte, error)
	SetStatus(id string, status string, recordCount int) error
}

// Options configures a Manager.
type Options struct {
	MaxPanels     int
	RenderTimeout time.Duration
	KeepOffscreen bool
	Archive       Archive   // optional
	Files         FileStore // optional, needed for Rerender
}

// Manager holds every panel and runs their renders. A new submission to a panel
// cancels the render in flight and bumps the panel generation; only a render whose
// generation is still current may commit.
type Manager struct {
	panels   map[string]*panelState
	mu       sync.RWMutex
	pipeline *render.Pipeline
	opts     Options
	log      zerolog.Logger
	wg       sync.WaitGroup
}

type panelState struct {
	status       models.PanelStatus
	clipPrefix   string
	result       *render.Result
	cancel       context.CancelFunc
	subscribers  map[chan models.PanelStatus]struct{}
	lastAccessed time.Time
}

// reclaimable reports whether the panel may be dropped: it has nothing in flight
// and nobody is watching it.
func (s *panelState) reclaimable() bool {
	return s.status.Finished() && len(s.subscribers) == 0
}

// loader produces the records of a submission.
type loader func(ctx context.Context) (*models.RecordSet, error)

// NewManager creates a panel manager rendering through pipeline.
func NewManager(pipeline *render.Pipeline, opts Options) *Manager {
	if opts.MaxPanels <= 0 {
		opts.MaxPanels = DefaultMaxPanels
	}
	if opts.RenderTimeout <= 0 {
		opts.RenderTimeout = DefaultRenderTimeout
	}
	return &Manager{
		panels:   make(map[string]*panelState),
		pipeline: pipeline,
		opts:     opts,
		log:      logging.For("session"),
	}
}

// CreatePanel adds an idle panel showing the default prompt.
func (m *Manager) CreatePanel() (*models.PanelStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.panels) >= m.opts.MaxPanels {
		m.evictOldestLocked()
	}
	if len(m.panels) >= m.opts.MaxPanels {
		return nil, fmt.Errorf("%w (max %d)", ErrTooManyPanels, m.opts.MaxPanels)
	}

	id := uuid.New().String()
	state := &panelState{
		status:       *models.NewPanelStatus(id),
		clipPrefix:   "clip-" + id[:8],
		subscribers:  make(map[chan models.PanelStatus]struct{}),
		lastAccessed: time.Now(),
	}
	m.panels[id] = state

	m.log.Debug().Str("panel", id).Msg("panel created")
	status := state.status
	return &status, nil
}

// Submit renders freshly uploaded content in a panel. The panel title becomes the
// file name and its previous render is discarded before anything else happens.
func (m *Manager) Submit(panelID string, file *models.FileInfo, content []byte) (*models.PanelStatus, error) {
	load := func(ctx context.Context) (*models.RecordSet, error) {
		set, err := m.pipeline.Parse(content)
		if err != nil {
			m.setFileStatus(file.ID, models.FileStatusError, 0)
			return nil, err
		}
		m.setFileStatus(file.ID, models.FileStatusParsed, set.Len())
		if m.opts.Archive != nil {
			if err := m.opts.Archive.Put(ctx, file.ID, file.Name, set); err != nil {
				m.log.Warn().Err(err).Str("file", file.ID).Msg("failed to archive records")
			}
		}
		return set, nil
	}
	return m.start(panelID, file, models.PanelStateParsing, load)
}

// Rerender renders a previously uploaded file in a panel, reading its archived
// records when available and re-parsing the stored text otherwise.
func (m *Manager) Rerender(panelID, fileID string) (*models.PanelStatus, error) {
	if m.opts.Files == nil {
		return nil, errors.New("no file store configured")
	}
	file, err := m.opts.Files.Get(fileID)
	if err != nil {
		return nil, err
	}

	load := func(ctx context.Context) (*models.RecordSet, error) {
		if m.opts.Archive != nil {
			set, err := m.opts.Archive.Records(ctx, fileID)
			if err == nil {
				return set, nil
			}
			m.log.Debug().Err(err).Str("file", fileID).Msg("archive miss, parsing stored file")
		}
		content, err := m.opts.Files.Read(fileID)
		if err != nil {
			return nil, fmt.Errorf("reading stored file: %w", err)
		}
		return parser.ParseRecords(bytes.NewReader(content))
	}
	return m.start(panelID, file, models.PanelStateReading, load)
}

func (m *Manager) start(panelID string, file *models.FileInfo, initial models.PanelState, load loader) (*models.PanelStatus, error) {
	m.mu.Lock()
	state, ok := m.panels[panelID]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrPanelNotFound, panelID)
	}

	if state.cancel != nil {
		state.cancel()
	}
	ctx, cancel := context.WithTimeout(context.Background(), m.opts.RenderTimeout)
	state.cancel = cancel
	state.result = nil
	state.lastAccessed = time.Now()

	st := &state.status
	st.Generation++
	st.Title = file.Name
	st.FileID = file.ID
	st.State = initial
	st.Message = ""
	st.ErrorCode = ""
	st.RecordCount = 0
	st.IssueCount = 0
	st.UpdatedAt = time.Now()

	gen := st.Generation
	clipPrefix := state.clipPrefix
	snapshot := *st
	m.broadcastLocked(state)
	m.mu.Unlock()

	m.log.Info().
		Str("panel", panelID).
		Str("file", file.Name).
		Uint64("generation", gen).
		Msg("render started")

	m.wg.Add(1)
	go m.run(ctx, cancel, panelID, gen, clipPrefix, load)

	return &snapshot, nil
}

func (m *Manager) run(ctx context.Context, cancel context.CancelFunc, panelID string, gen uint64, clipPrefix string, load loader) {
	defer m.wg.Done()
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			m.log.Error().Interface("panic", r).Str("panel", panelID).Msg("render panicked")
			m.fail(panelID, gen, CodeInternalError, "internal error while rendering")
		}
	}()

	m.setState(panelID, gen, models.PanelStateParsing)
	set, err := load(ctx)
	if err != nil {
		m.handleError(panelID, gen, err)
		return
	}

	m.mu.Lock()
	if state, ok := m.panels[panelID]; ok && state.status.Generation == gen {
		state.status.RecordCount = set.Len()
		state.status.IssueCount = len(set.Issues)
	}
	m.mu.Unlock()

	opts := scene.Options{ClipPrefix: clipPrefix, KeepOffscreen: m.opts.KeepOffscreen}
	res, err := m.pipeline.RenderWithProgress(ctx, set, opts, func(stage models.PanelState) {
		m.setState(panelID, gen, stage)
	})
	if err != nil {
		m.handleError(panelID, gen, err)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.panels[panelID]
	if !ok || state.status.Generation != gen {
		return
	}
	state.result = res
	state.status.State = models.PanelStateComplete
	state.status.UpdatedAt = time.Now()
	m.broadcastLocked(state)

	m.log.Info().
		Str("panel", panelID).
		Int("records", set.Len()).
		Dur("elapsed", res.Elapsed).
		Msg("render complete")
}

func (m *Manager) handleError(panelID string, gen uint64, err error) {
	var pe *parser.ParseError
	var re *render.RenderError
	switch {
	case errors.Is(err, context.Canceled):
		m.log.Debug().Str("panel", panelID).Uint64("generation", gen).Msg("render superseded")
	case errors.As(err, &pe):
		m.fail(panelID, gen, CodeParseError, "The file could not be read as CSV: "+pe.Error())
	case errors.As(err, &re):
		m.log.Warn().Err(err).Str("panel", panelID).Msg("render failed")
		m.fail(panelID, gen, CodeRenderError, re.UserMessage())
	case errors.Is(err, context.DeadlineExceeded):
		m.fail(panelID, gen, CodeRenderError, "rendering took too long, try again later")
	default:
		m.log.Error().Err(err).Str("panel", panelID).Msg("render failed")
		m.fail(panelID, gen, CodeInternalError, err.Error())
	}
}

func (m *Manager) setState(panelID string, gen uint64, s models.PanelState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.panels[panelID]
	if !ok || state.status.Generation != gen {
		return
	}
	state.status.State = s
	state.status.UpdatedAt = time.Now()
	m.broadcastLocked(state)
}

func (m *Manager) fail(panelID string, gen uint64, code, msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.panels[panelID]
	if !ok || state.status.Generation != gen {
		return
	}
	state.status.State = models.PanelStateError
	state.status.ErrorCode = code
	state.status.Message = msg
	state.status.UpdatedAt = time.Now()
	m.broadcastLocked(state)
}

func (m *Manager) setFileStatus(fileID, status string, count int) {
	if m.opts.Files == nil {
		return
	}
	if err := m.opts.Files.SetStatus(fileID, status, count); err != nil {
		m.log.Debug().Err(err).Str("file", fileID).Msg("file status not updated")
	}
}

// broadcastLocked sends the current status to subscribers without blocking.
func (m *Manager) broadcastLocked(state *panelState) {
	for ch := range state.subscribers {
		select {
		case ch <- state.status:
		default:
		}
	}
}

// Status returns a copy of the panel status.
func (m *Manager) Status(panelID string) (*models.PanelStatus, error) {
	state, err := m.touch(panelID)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	status := state.status
	return &status, nil
}

// List returns every panel status, oldest first.
func (m *Manager) List() []models.PanelStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.PanelStatus, 0, len(m.panels))
	for _, state := range m.panels {
		out = append(out, state.status)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Scene returns the scene of the panel's latest completed render.
func (m *Manager) Scene(panelID string) (*scene.Scene, error) {
	res, err := m.result(panelID)
	if err != nil {
		return nil, err
	}
	return res.Scene, nil
}

// SVG returns the committed SVG of the panel's latest completed render.
func (m *Manager) SVG(panelID string) ([]byte, error) {
	res, err := m.result(panelID)
	if err != nil {
		return nil, err
	}
	return res.SVG, nil
}

// Records returns the records of the panel's latest completed render.
func (m *Manager) Records(panelID string) (*models.RecordSet, error) {
	res, err := m.result(panelID)
	if err != nil {
		return nil, err
	}
	return res.Records, nil
}

func (m *Manager) result(panelID string) (*render.Result, error) {
	state, err := m.touch(panelID)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if state.result == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotRendered, panelID)
	}
	return state.result, nil
}

func (m *Manager) touch(panelID string) (*panelState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.panels[panelID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPanelNotFound, panelID)
	}
	state.lastAccessed = time.Now()
	return state, nil
}

// Subscribe streams status updates of a panel, starting with the current one.
// The returned function unsubscribes and closes the channel.
func (m *Manager) Subscribe(panelID string) (<-chan models.PanelStatus, func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.panels[panelID]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrPanelNotFound, panelID)
	}

	ch := make(chan models.PanelStatus, subscriberBuffer)
	ch <- state.status
	state.subscribers[ch] = struct{}{}

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if _, ok := state.subscribers[ch]; ok {
				delete(state.subscribers, ch)
				close(ch)
				state.lastAccessed = time.Now()
			}
		})
	}
	return ch, unsubscribe, nil
}

// DeletePanel cancels any render in flight and removes the panel.
func (m *Manager) DeletePanel(panelID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.panels[panelID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrPanelNotFound, panelID)
	}
	m.removeLocked(panelID, state)
	return nil
}

func (m *Manager) removeLocked(panelID string, state *panelState) {
	if state.cancel != nil {
		state.cancel()
	}
	for ch := range state.subscribers {
		delete(state.subscribers, ch)
		close(ch)
	}
	delete(m.panels, panelID)
}

// CleanupOldPanels removes finished, unwatched panels not accessed within maxAge
// and returns how many were removed.
func (m *Manager) CleanupOldPanels(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for id, state := range m.panels {
		if state.reclaimable() && state.lastAccessed.Before(cutoff) {
			m.removeLocked(id, state)
			removed++
		}
	}
	if removed > 0 {
		m.log.Info().Int("removed", removed).Int("remaining", len(m.panels)).Msg("cleaned up idle panels")
	}
	return removed
}

// evictOldestLocked drops the least recently used finished panel nobody watches.
func (m *Manager) evictOldestLocked() {
	var oldestID string
	var oldest time.Time
	for id, state := range m.panels {
		if !state.reclaimable() {
			continue
		}
		if oldestID == "" || state.lastAccessed.Before(oldest) {
			oldestID = id
			oldest = state.lastAccessed
		}
	}
	if oldestID != "" {
		m.log.Debug().Str("panel", oldestID).Msg("evicting least recently used panel")
		m.removeLocked(oldestID, m.panels[oldestID])
	}
}

// Wait blocks until every render goroutine has returned.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Close cancels every render in flight and waits for them to stop.
func (m *Manager) Close() {
	m.mu.Lock()
	for _, state := range m.panels {
		if state.cancel != nil {
			state.cancel()
		}
	}
	m.mu.Unlock()
	m.wg.Wait()
}
