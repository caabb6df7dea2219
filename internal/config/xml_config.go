// Package config provides XML-based configuration management for the medallion server.
package config

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// AppConfig represents the root XML configuration structure
type AppConfig struct {
	XMLName xml.Name `xml:"MedallionMap"`

	// Server configuration
	Server ServerConfig `xml:"Server"`

	// Storage configuration
	Storage StorageConfig `xml:"Storage"`

	// Geography source configuration
	Geography GeographyConfig `xml:"Geography"`

	// Rendering configuration
	Render RenderConfig `xml:"Render"`

	// Advanced options
	Advanced AdvancedConfig `xml:"Advanced"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port         int    `xml:"Port"`
	BindAddress  string `xml:"BindAddress"`
	EnableCORS   bool   `xml:"EnableCORS"`
	AllowOrigins string `xml:"AllowOrigins"`
	ReadTimeout  int    `xml:"ReadTimeoutSeconds"`
	WriteTimeout int    `xml:"WriteTimeoutSeconds"`
	IdleTimeout  int    `xml:"IdleTimeoutSeconds"`
	BodyLimit    string `xml:"BodyLimit"`
}

// StorageConfig contains file storage settings
type StorageConfig struct {
	DataDirectory    string `xml:"DataDirectory"`
	UploadsDirectory string `xml:"UploadsDirectory"`
	ArchivePath      string `xml:"ArchivePath"`
	MaxUploadBytes   int64  `xml:"MaxUploadBytes"`
	EnableArchive    bool   `xml:"EnableArchive"`
}

// GeographyConfig describes where the world landmass outlines come from
type GeographyConfig struct {
	URL             string `xml:"URL"`
	FallbackPath    string `xml:"FallbackPath"`
	TimeoutSeconds  int    `xml:"TimeoutSeconds"`
	CacheTTLMinutes int    `xml:"CacheTTLMinutes"`
}

// RenderConfig contains panel and theme settings
type RenderConfig struct {
	ThemePath              string `xml:"ThemePath"`
	WatchTheme             bool   `xml:"WatchTheme"`
	PanelTimeoutMinutes    int    `xml:"PanelTimeoutMinutes"`
	CleanupIntervalMinutes int    `xml:"CleanupIntervalMinutes"`
	MaxPanels              int    `xml:"MaxPanels"`
	CullOffscreen          bool   `xml:"CullOffscreen"`
}

// AdvancedConfig contains advanced/tuning options
type AdvancedConfig struct {
	LogLevel             string `xml:"LogLevel"`
	LogFormat            string `xml:"LogFormat"`
	EnableRequestLogging bool   `xml:"EnableRequestLogging"`
	EnableCompression    bool   `xml:"EnableCompression"`
	CompressionLevel     int    `xml:"CompressionLevel"`
	DuckDBThreads        int    `xml:"DuckDBThreads"`
	DuckDBMemoryLimit    string `xml:"DuckDBMemoryLimit"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:         8090,
			BindAddress:  "0.0.0.0",
			EnableCORS:   true,
			AllowOrigins: "*",
			ReadTimeout:  30,
			WriteTimeout: 30,
			IdleTimeout:  120,
			BodyLimit:    "32M",
		},
		Storage: StorageConfig{
			DataDirectory:    "./data",
			UploadsDirectory: "./data/uploads",
			ArchivePath:      "./data/archive.duckdb",
			MaxUploadBytes:   16 << 20,
			EnableArchive:    true,
		},
		Geography: GeographyConfig{
			URL:             "https://raw.githubusercontent.com/holtzy/D3-graph-gallery/master/DATA/world.geojson",
			FallbackPath:    "",
			TimeoutSeconds:  20,
			CacheTTLMinutes: 60,
		},
		Render: RenderConfig{
			ThemePath:              "./data/theme.yaml",
			WatchTheme:             true,
			PanelTimeoutMinutes:    30,
			CleanupIntervalMinutes: 5,
			MaxPanels:              100,
			CullOffscreen:          true,
		},
		Advanced: AdvancedConfig{
			LogLevel:             "info",
			LogFormat:            "console",
			EnableRequestLogging: true,
			EnableCompression:    true,
			CompressionLevel:     5,
			DuckDBThreads:        2,
			DuckDBMemoryLimit:    "256MB",
		},
	}
}

// LoadConfig loads configuration from XML file
func LoadConfig(configPath string) (*AppConfig, error) {
	// If file doesn't exist, create default
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		config := DefaultConfig()
		if err := config.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		config.applyEnvironmentOverrides()
		config.resolvePaths(filepath.Dir(configPath))
		return config, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := xml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Apply environment variable overrides
	config.applyEnvironmentOverrides()

	// Resolve relative paths
	config.resolvePaths(filepath.Dir(configPath))

	return config, nil
}

// Save saves the configuration to XML file
func (c *AppConfig) Save(configPath string) error {
	output, err := xml.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(xml.Header + "\n<!-- Medallion Map Configuration -->\n<!-- This file is auto-generated on first run -->\n\n")
	content := append(header, output...)

	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// applyEnvironmentOverrides allows environment variables to override config values
func (c *AppConfig) applyEnvironmentOverrides() {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}

	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		c.Storage.DataDirectory = dataDir
	}

	if url := os.Getenv("GEOGRAPHY_URL"); url != "" {
		c.Geography.URL = url
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Advanced.LogLevel = level
	}
}

// resolvePaths converts relative paths to absolute based on config file location
func (c *AppConfig) resolvePaths(configDir string) {
	resolve := func(p *string) {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(configDir, *p)
		}
	}
	resolve(&c.Storage.DataDirectory)
	resolve(&c.Storage.UploadsDirectory)
	resolve(&c.Storage.ArchivePath)
	resolve(&c.Geography.FallbackPath)
	resolve(&c.Render.ThemePath)
}

// GetDataDir returns the absolute data directory path
func (c *AppConfig) GetDataDir() string {
	return c.Storage.DataDirectory
}

// GetUploadDir returns the absolute uploads directory path
func (c *AppConfig) GetUploadDir() string {
	return c.Storage.UploadsDirectory
}

// GetServerAddr returns the server bind address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// GeographyTimeout returns the per-fetch timeout
func (c *AppConfig) GeographyTimeout() time.Duration {
	return time.Duration(c.Geography.TimeoutSeconds) * time.Second
}

// GeographyCacheTTL returns how long fetched geography stays fresh
func (c *AppConfig) GeographyCacheTTL() time.Duration {
	return time.Duration(c.Geography.CacheTTLMinutes) * time.Minute
}

// PanelTimeout returns how long an untouched panel is kept
func (c *AppConfig) PanelTimeout() time.Duration {
	return time.Duration(c.Render.PanelTimeoutMinutes) * time.Minute
}

// CleanupInterval returns the panel cleanup period
func (c *AppConfig) CleanupInterval() time.Duration {
	minutes := c.Render.CleanupIntervalMinutes
	if minutes <= 0 {
		minutes = 5
	}
	return time.Duration(minutes) * time.Minute
}

// EnsureDirectories creates all necessary directories
func (c *AppConfig) EnsureDirectories() error {
	dirs := []string{
		c.Storage.DataDirectory,
		c.Storage.UploadsDirectory,
	}
	if c.Storage.ArchivePath != "" {
		dirs = append(dirs, filepath.Dir(c.Storage.ArchivePath))
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
