package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/medallion-map/backend/internal/api"
	"github.com/medallion-map/backend/internal/archive"
	"github.com/medallion-map/backend/internal/config"
	"github.com/medallion-map/backend/internal/geodata"
	"github.com/medallion-map/backend/internal/logging"
	"github.com/medallion-map/backend/internal/render"
	"github.com/medallion-map/backend/internal/session"
	"github.com/medallion-map/backend/internal/storage"
	"github.com/medallion-map/backend/internal/upload"
	"github.com/medallion-map/backend/internal/web"
	"github.com/rs/zerolog"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const configFileName = "medallion-map.config.xml"

func main() {
	configPath := os.Getenv("MEDALLION_CONFIG")
	if configPath == "" {
		// Get the executable's directory for config resolution
		exePath, err := os.Executable()
		if err != nil {
			fmt.Printf("Failed to get executable path: %v\n", err)
			os.Exit(1)
		}
		configPath = filepath.Join(filepath.Dir(exePath), configFileName)
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	level := logging.ParseLevel(cfg.Advanced.LogLevel)
	if cfg.Advanced.LogFormat == "json" {
		logging.SetDefault(logging.New(os.Stdout, level))
	} else {
		logging.SetDefault(logging.NewConsole(level))
	}
	log := logging.For("server")

	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatal().Err(err).Msg("failed to create directories")
	}

	embeddedMode := web.HasEmbeddedFiles()

	fileStore, err := storage.NewLocalStore(cfg.GetUploadDir())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize storage")
	}

	themes, err := config.NewThemeStore(cfg.Render.ThemePath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Render.ThemePath).Msg("failed to load theme")
	}
	defer themes.Close()
	if cfg.Render.WatchTheme {
		if err := themes.Watch(); err != nil {
			log.Warn().Err(err).Msg("theme hot reload disabled")
		} else {
			go func() {
				for range themes.Changed() {
					log.Info().Str("path", themes.Path()).Msg("theme reloaded")
				}
			}()
		}
	}

	var recordArchive *archive.RecordArchive
	if cfg.Storage.EnableArchive {
		recordArchive, err = archive.Open(cfg.Storage.ArchivePath, archive.Options{
			Threads:     cfg.Advanced.DuckDBThreads,
			MemoryLimit: cfg.Advanced.DuckDBMemoryLimit,
		})
		if err != nil {
			log.Warn().Err(err).Str("path", cfg.Storage.ArchivePath).Msg("record archive disabled")
			recordArchive = nil
		} else {
			defer recordArchive.Close()
			log.Info().Str("path", recordArchive.Path()).Msg("record archive opened")
		}
	}

	geography := geodata.NewClient(geodata.Options{
		URL:          cfg.Geography.URL,
		FallbackPath: cfg.Geography.FallbackPath,
		Timeout:      cfg.GeographyTimeout(),
		CacheTTL:     cfg.GeographyCacheTTL(),
	})

	pipeline := render.NewPipeline(geography, themes)
	intake := upload.NewManager(fileStore, cfg.Storage.MaxUploadBytes)

	sessionOpts := session.Options{
		MaxPanels:     cfg.Render.MaxPanels,
		KeepOffscreen: !cfg.Render.CullOffscreen,
		Files:         fileStore,
	}
	deps := &api.Dependencies{
		Store:         fileStore,
		Intake:        intake,
		Pipeline:      pipeline,
		Themes:        themes,
		KeepOffscreen: !cfg.Render.CullOffscreen,
		Version:       Version,
	}
	// Typed nils must not reach the interface fields.
	if recordArchive != nil {
		sessionOpts.Archive = recordArchive
		deps.Archive = recordArchive
	}
	panels := session.NewManager(pipeline, sessionOpts)
	deps.Panels = panels

	// Start background panel cleanup
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		ticker := time.NewTicker(cfg.CleanupInterval())
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				panels.CleanupOldPanels(cfg.PanelTimeout())
			case <-ctx.Done():
				return
			}
		}
	}()

	e := echo.New()
	e.HideBanner = true
	api.SetupMiddleware(e, level <= zerolog.DebugLevel || Version == "dev")

	if cfg.Advanced.EnableRequestLogging {
		reqLog := logging.For("http")
		e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
			Skipper: func(c echo.Context) bool {
				path := c.Request().URL.Path
				return path == "/api/health" || strings.HasSuffix(path, "/ws")
			},
			LogMethod:   true,
			LogURI:      true,
			LogStatus:   true,
			LogLatency:  true,
			LogRemoteIP: true,
			LogError:    true,
			LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
				event := reqLog.Info()
				if v.Error != nil || v.Status >= http.StatusInternalServerError {
					event = reqLog.Warn().Err(v.Error)
				}
				event.
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Str("remote", v.RemoteIP).
					Msg("request")
				return nil
			},
		}))
	}

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 1024 * 4,
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			log.Error().Err(err).Bytes("stack", stack).Str("path", c.Path()).Msg("panic recovered")
			return err
		},
	}))

	e.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
		Timeout: time.Duration(cfg.Server.ReadTimeout) * time.Second,
		Skipper: func(c echo.Context) bool {
			path := c.Request().URL.Path
			return strings.HasSuffix(path, "/ws") ||
				strings.HasSuffix(path, "/upload") ||
				path == "/api/render"
		},
		ErrorMessage: "Request timeout - render took too long",
	}))

	// Compression middleware
	if cfg.Advanced.EnableCompression {
		e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
			Level: cfg.Advanced.CompressionLevel,
			Skipper: func(c echo.Context) bool {
				return strings.HasSuffix(c.Request().URL.Path, "/ws")
			},
		}))
	}

	// Body limit middleware
	e.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	if cfg.Server.EnableCORS {
		origins := strings.Split(cfg.Server.AllowOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		if len(origins) == 1 && origins[0] == "" {
			origins = []string{"*"}
		}
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: origins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		}))
	}

	handlers := api.NewHandlers(deps)
	api.RegisterRoutes(e, handlers)
	api.RegisterWebSocketRoutes(e, handlers)

	if embeddedMode {
		if err := web.RegisterStaticRoutes(e); err != nil {
			log.Warn().Err(err).Msg("failed to register static routes")
		}
	}

	// Configure server with settings from XML config
	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	log.Info().
		Str("version", Version).
		Str("build", BuildTime).
		Str("config", configPath).
		Str("listen", "http://"+cfg.GetServerAddr()).
		Str("data", cfg.GetDataDir()).
		Str("geography", cfg.Geography.URL).
		Bool("archive", recordArchive != nil).
		Bool("embedded", embeddedMode).
		Msg("medallion map server starting")

	go func() {
		if err := e.StartServer(s); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server stopped")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown failed")
	}
	panels.Close()
}
