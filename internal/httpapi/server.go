// Package httpapi serves the dashboard read API and the authenticated
// trigger endpoints the scheduler platform calls.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"horse.fit/pulse/internal/cache"
	"horse.fit/pulse/internal/collect"
	"horse.fit/pulse/internal/db"
	"horse.fit/pulse/internal/enrich"
	"horse.fit/pulse/internal/keywords"
)

const (
	defaultPageSize = 25
	maxPageSize     = 200
	statsCacheKey   = "pipeline_stats"
)

// Store is the read-side repository surface.
type Store interface {
	Ping(ctx context.Context) error
	PipelineStats(ctx context.Context) (*db.PipelineStats, error)
	ListPosts(ctx context.Context, filter db.PostFilter) ([]db.PostSummary, int64, error)
	ListRecentRuns(ctx context.Context, limit int) ([]db.RunSummary, error)
}

// Collector runs one collection pass for a platform.
type Collector interface {
	Collect(ctx context.Context, batch *keywords.Batch, triggerSource string) (*collect.Result, error)
}

// Enricher runs enrichment passes and stuck-post maintenance.
type Enricher interface {
	Run(ctx context.Context) (enrich.BatchStats, error)
	ResetStuck(ctx context.Context, staleness time.Duration) (int64, error)
}

type Options struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	TriggerSecret string
	CORSOrigins   []string
	CacheTTL      time.Duration
	StuckTimeout  time.Duration

	// DefaultBatch backs trigger requests that carry no body.
	DefaultBatch *keywords.Batch
}

type Server struct {
	store    Store
	tweets   Collector
	rss      Collector
	enricher Enricher
	cache    *cache.TTL
	logger   zerolog.Logger
	opts     Options
}

func NewServer(store Store, tweets, rss Collector, enricher Enricher, logger zerolog.Logger, opts Options) *Server {
	if strings.TrimSpace(opts.Host) == "" {
		opts.Host = "0.0.0.0"
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 10 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 120 * time.Second
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = time.Minute
	}
	if opts.StuckTimeout <= 0 {
		opts.StuckTimeout = 30 * time.Minute
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}

	return &Server{
		store:    store,
		tweets:   tweets,
		rss:      rss,
		enricher: enricher,
		cache:    cache.New(opts.CacheTTL, 16),
		logger:   logger,
		opts:     opts,
	}
}

func (s *Server) Start(ctx context.Context) error {
	if s == nil || s.store == nil {
		return fmt.Errorf("server is not initialized")
	}

	e := s.buildEcho()

	addr := fmt.Sprintf("%s:%d", s.opts.Host, s.opts.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      e,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		if shutdownErr := e.Shutdown(shutdownCtx); shutdownErr != nil {
			s.logger.Error().Err(shutdownErr).Msg("server shutdown failed")
		}
	}()

	s.logger.Info().Str("addr", addr).Msg("pulse api server started")

	if err := e.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start server: %w", err)
	}
	s.logger.Info().Msg("pulse api server stopped")
	return nil
}

func (s *Server) buildEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.httpErrorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: s.opts.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", triggerSecretHeader},
		MaxAge:       3600,
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				s.logger.Error().
					Err(v.Error).
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Str("remote_ip", v.RemoteIP).
					Str("request_id", v.RequestID).
					Msg("http request failed")
				return nil
			}

			s.logger.Info().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Str("request_id", v.RequestID).
				Msg("http request")
			return nil
		},
	}))

	api := e.Group("/api/v1")
	api.GET("/health", s.handleHealth)
	api.GET("/stats", s.handleStats)
	api.GET("/posts", s.handlePosts)
	api.GET("/runs", s.handleRuns)

	triggers := api.Group("", s.requireTriggerSecret())
	triggers.POST("/collect/tweets", s.handleCollectTweets)
	triggers.POST("/collect/rss", s.handleCollectRSS)
	triggers.POST("/enrich", s.handleEnrich)
	triggers.POST("/maintenance/reset-stuck", s.handleResetStuck)

	return e
}

func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := "Internal server error"
	if he, ok := err.(*echo.HTTPError); ok {
		status = he.Code
		switch v := he.Message.(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				message = v
			}
		default:
			if text := strings.TrimSpace(http.StatusText(status)); text != "" {
				message = text
			}
		}
	} else if err != nil {
		message = err.Error()
	}

	if status >= 500 {
		_ = internalError(c, "Internal server error")
		return
	}
	_ = fail(c, status, message, nil)
}

func parsePositiveInt(raw string, defaultValue, minValue, maxValue int) (int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return defaultValue, nil
	}

	value, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, fmt.Errorf("must be an integer")
	}
	if value < minValue || value > maxValue {
		return 0, fmt.Errorf("must be between %d and %d", minValue, maxValue)
	}
	return value, nil
}
