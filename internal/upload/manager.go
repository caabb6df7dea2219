// Package upload accepts dropped files: it reads the whole body, undoes gzip
// transfer compression and hands the text to the file store.
package upload

import (
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/medallion-map/backend/internal/logging"
	"github.com/medallion-map/backend/internal/models"
	"github.com/rs/zerolog"
)

// DefaultMaxBytes caps a single upload after decompression.
const DefaultMaxBytes = 32 << 20

// ErrTooLarge is returned when an upload exceeds the configured limit.
var ErrTooLarge = errors.New("upload exceeds size limit")

// ErrEmptyName is returned when a file has no name.
var ErrEmptyName = errors.New("file name is required")

// Store defines the interface needed from storage layer.
type Store interface {
	SaveBytes(name string, data []byte) (*models.FileInfo, error)
}

// Upload is an accepted file with its full text.
type Upload struct {
	Info       *models.FileInfo
	Content    []byte
	Compressed bool
	ReadTime   time.Duration
}

// Stats counts intake activity since start.
type Stats struct {
	Accepted      int   `json:"accepted"`
	Rejected      int   `json:"rejected"`
	Decompressed  int   `json:"decompressed"`
	BytesAccepted int64 `json:"bytesAccepted"`
}

// Manager handles file intake.
type Manager struct {
	store    Store
	maxBytes int64
	log      zerolog.Logger

	mu    sync.Mutex
	stats Stats
}

// NewManager creates a new intake manager. maxBytes <= 0 selects DefaultMaxBytes.
func NewManager(store Store, maxBytes int64) *Manager {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Manager{
		store:    store,
		maxBytes: maxBytes,
		log:      logging.For("upload"),
	}
}

// Accept reads r to the end and stores the content under name. No extension or
// content-type check happens before the read.
func (m *Manager) Accept(name string, r io.Reader) (*Upload, error) {
	if name == "" {
		m.reject()
		return nil, ErrEmptyName
	}

	start := time.Now()
	data, compressed, err := m.Read(r)
	if err != nil {
		m.reject()
		return nil, err
	}

	info, err := m.store.SaveBytes(name, data)
	if err != nil {
		m.reject()
		return nil, fmt.Errorf("storing upload: %w", err)
	}

	elapsed := time.Since(start)
	m.mu.Lock()
	m.stats.Accepted++
	m.stats.BytesAccepted += int64(len(data))
	if compressed {
		m.stats.Decompressed++
	}
	m.mu.Unlock()

	m.log.Debug().
		Str("file", name).
		Str("id", info.ID).
		Int("bytes", len(data)).
		Bool("gzip", compressed).
		Dur("elapsed", elapsed).
		Msg("upload accepted")

	return &Upload{Info: info, Content: data, Compressed: compressed, ReadTime: elapsed}, nil
}

// Read reads r to the end under the size limit and undoes gzip compression.
// A payload that only looks like gzip is returned as-is.
func (m *Manager) Read(r io.Reader) ([]byte, bool, error) {
	data, err := readLimited(r, m.maxBytes)
	if err != nil {
		return nil, false, err
	}
	if !isGzip(data) {
		return data, false, nil
	}

	out, err := m.decompress(data)
	if err != nil {
		if errors.Is(err, ErrTooLarge) {
			return nil, false, err
		}
		// Keep the raw bytes; the parser reports what it can't read.
		m.log.Warn().Err(err).Msg("gzip payload could not be decompressed")
		return data, false, nil
	}
	return out, true, nil
}

// Stats returns a snapshot of intake counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

func (m *Manager) reject() {
	m.mu.Lock()
	m.stats.Rejected++
	m.mu.Unlock()
}

func (m *Manager) decompress(data []byte) ([]byte, error) {
	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return data, err
	}
	defer reader.Close()

	out, err := readLimited(reader, m.maxBytes)
	if err != nil {
		return data, err
	}
	return out, nil
}

func readLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("reading upload: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w (%d bytes)", ErrTooLarge, limit)
	}
	return data, nil
}

func isGzip(data []byte) bool {
	return len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b
}
