// Package geodata fetches and caches the world landmass outlines shared by every panel.
package geodata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/medallion-map/backend/internal/geo"
	"github.com/medallion-map/backend/internal/logging"
	"golang.org/x/sync/singleflight"
)

// DefaultURL serves the world landmass outlines drawn inside each medallion.
const DefaultURL = "https://raw.githubusercontent.com/holtzy/D3-graph-gallery/master/DATA/world.geojson"

// maxBodyBytes bounds the GeoJSON download.
const maxBodyBytes = 64 << 20

// Source provides the world geography for a render.
type Source interface {
	World(ctx context.Context) (*geo.FeatureCollection, error)
}

// FetchError describes why the landmass data could not be obtained.
type FetchError struct {
	URL    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("geography source %s returned HTTP %d", e.URL, e.Status)
	}
	return fmt.Sprintf("geography source %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Options configures a Client.
type Options struct {
	URL          string
	FallbackPath string
	Timeout      time.Duration
	CacheTTL     time.Duration
	HTTPClient   *http.Client
}

// Client fetches GeoJSON over HTTP. Results are cached for CacheTTL; a zero TTL
// fetches on every call. Concurrent fetches of the same URL share one request.
type Client struct {
	opts  Options
	http  *http.Client
	group singleflight.Group

	mu        sync.RWMutex
	cached    *geo.FeatureCollection
	fetchedAt time.Time
}

// NewClient creates a geography client.
func NewClient(opts Options) *Client {
	if opts.URL == "" {
		opts.URL = DefaultURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{opts: opts, http: hc}
}

// World returns the landmass features, from cache when still fresh.
func (c *Client) World(ctx context.Context) (*geo.FeatureCollection, error) {
	if fc := c.fresh(); fc != nil {
		return fc, nil
	}

	ch := c.group.DoChan(c.opts.URL, func() (interface{}, error) {
		// Detached from any single caller so one cancelled render does not fail the others.
		fetchCtx, cancel := context.WithTimeout(context.Background(), c.opts.Timeout)
		defer cancel()
		return c.load(fetchCtx)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*geo.FeatureCollection), nil
	}
}

func (c *Client) fresh() *geo.FeatureCollection {
	if c.opts.CacheTTL <= 0 {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.cached != nil && time.Since(c.fetchedAt) < c.opts.CacheTTL {
		return c.cached
	}
	return nil
}

func (c *Client) load(ctx context.Context) (*geo.FeatureCollection, error) {
	log := logging.For("geodata")
	start := time.Now()

	fc, err := c.fetch(ctx)
	if err != nil && c.opts.FallbackPath != "" {
		log.Warn().Err(err).Str("fallback", c.opts.FallbackPath).Msg("remote geography unavailable, using fallback file")
		fc, err = LoadFile(c.opts.FallbackPath)
	}
	if err != nil {
		log.Error().Err(err).Str("url", c.opts.URL).Msg("failed to load geography")
		return nil, err
	}

	c.mu.Lock()
	c.cached = fc
	c.fetchedAt = time.Now()
	c.mu.Unlock()

	log.Info().
		Int("features", len(fc.Features)).
		Dur("elapsed", time.Since(start)).
		Msg("geography loaded")
	return fc, nil
}

func (c *Client) fetch(ctx context.Context) (*geo.FeatureCollection, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.opts.URL, nil)
	if err != nil {
		return nil, &FetchError{URL: c.opts.URL, Err: err}
	}
	req.Header.Set("Accept", "application/geo+json, application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &FetchError{URL: c.opts.URL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &FetchError{URL: c.opts.URL, Status: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &FetchError{URL: c.opts.URL, Err: fmt.Errorf("reading body: %w", err)}
	}

	fc, err := geo.DecodeFeatureCollection(data)
	if err != nil {
		return nil, &FetchError{URL: c.opts.URL, Err: err}
	}
	return fc, nil
}

// LoadFile reads a GeoJSON FeatureCollection from disk.
func LoadFile(path string) (*geo.FeatureCollection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading geography file: %w", err)
	}
	return geo.DecodeFeatureCollection(data)
}

// Static serves a fixed FeatureCollection. Used by the CLI with --geo and in tests.
type Static struct {
	Collection *geo.FeatureCollection
	Err        error
}

// World returns the fixed collection.
func (s Static) World(ctx context.Context) (*geo.FeatureCollection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.Err != nil {
		return nil, s.Err
	}
	if s.Collection == nil {
		return nil, errors.New("no geography loaded")
	}
	return s.Collection, nil
}
