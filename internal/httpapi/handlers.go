package httpapi

import (
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"horse.fit/pulse/internal/db"
	"horse.fit/pulse/internal/globaltime"
)

// cachedStats is what the stats cache holds: the snapshot plus when it
// was computed, so stale responses can say how old they are.
type cachedStats struct {
	Stats       *db.PipelineStats
	GeneratedAt time.Time
}

func (s *Server) handleHealth(c echo.Context) error {
	if err := s.store.Ping(c.Request().Context()); err != nil {
		s.logger.Error().Err(err).Msg("health check database ping failed")
		return fail(c, 503, "Database unreachable", nil)
	}
	return success(c, map[string]any{
		"service": "pulse",
		"time":    globaltime.UTC(),
	})
}

// handleStats serves the dashboard snapshot through a short TTL cache.
// When the database is down a stale snapshot is served with a flag
// instead of an error.
func (s *Server) handleStats(c echo.Context) error {
	if value, fresh, ok := s.cache.Get(statsCacheKey); ok && fresh {
		cached := value.(cachedStats)
		return success(c, statsPayload(cached, false))
	}

	stats, err := s.store.PipelineStats(c.Request().Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("query pipeline stats failed")
		if value, _, ok := s.cache.Get(statsCacheKey); ok {
			cached := value.(cachedStats)
			return success(c, statsPayload(cached, true))
		}
		return internalError(c, "Failed to load stats")
	}

	cached := cachedStats{Stats: stats, GeneratedAt: globaltime.UTC()}
	s.cache.Set(statsCacheKey, cached)
	return success(c, statsPayload(cached, false))
}

func statsPayload(cached cachedStats, stale bool) map[string]any {
	return map[string]any{
		"stats":        cached.Stats,
		"stale":        stale,
		"generated_at": cached.GeneratedAt,
	}
}

func (s *Server) handlePosts(c echo.Context) error {
	page, err := parsePositiveInt(c.QueryParam("page"), 1, 1, 1_000_000)
	if err != nil {
		return failValidation(c, map[string]string{"page": err.Error()})
	}
	pageSize, err := parsePositiveInt(c.QueryParam("page_size"), defaultPageSize, 1, maxPageSize)
	if err != nil {
		return failValidation(c, map[string]string{"page_size": err.Error()})
	}

	filter := db.PostFilter{
		Platform: strings.TrimSpace(strings.ToLower(c.QueryParam("platform"))),
		Status:   strings.TrimSpace(strings.ToLower(c.QueryParam("status"))),
		Category: strings.TrimSpace(strings.ToLower(c.QueryParam("category"))),
		Page:     page,
		PageSize: pageSize,
	}

	items, total, err := s.store.ListPosts(c.Request().Context(), filter)
	if err != nil {
		s.logger.Error().Err(err).Msg("query posts failed")
		return internalError(c, "Failed to load posts")
	}

	totalPages := 0
	if total > 0 {
		totalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}

	return success(c, map[string]any{
		"items": items,
		"pagination": map[string]any{
			"page":        page,
			"page_size":   pageSize,
			"total_items": total,
			"total_pages": totalPages,
		},
		"filters": map[string]any{
			"platform": filter.Platform,
			"status":   filter.Status,
			"category": filter.Category,
		},
	})
}

func (s *Server) handleRuns(c echo.Context) error {
	limit, err := parsePositiveInt(c.QueryParam("limit"), 20, 1, 100)
	if err != nil {
		return failValidation(c, map[string]string{"limit": err.Error()})
	}

	runs, err := s.store.ListRecentRuns(c.Request().Context(), limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("query recent runs failed")
		return internalError(c, "Failed to load runs")
	}

	return success(c, map[string]any{
		"items": runs,
		"limit": limit,
	})
}
