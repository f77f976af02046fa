package httpapi

import (
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"horse.fit/pulse/internal/collect"
	"horse.fit/pulse/internal/globaltime"
	"horse.fit/pulse/internal/keywords"
)

const maxTriggerBodyBytes = 64 * 1024

// triggerSourceHeader lets callers label the run; absent, runs are
// recorded as API-triggered.
const triggerSourceHeader = "X-Pulse-Trigger"

func (s *Server) handleCollectTweets(c echo.Context) error {
	return s.runCollection(c, s.tweets)
}

func (s *Server) handleCollectRSS(c echo.Context) error {
	return s.runCollection(c, s.rss)
}

func (s *Server) runCollection(c echo.Context, collector Collector) error {
	if collector == nil {
		return fail(c, http.StatusServiceUnavailable, "Collector is not configured", nil)
	}

	batch, err := s.triggerBatch(c)
	if err != nil {
		return failValidation(c, map[string]string{"body": err.Error()})
	}
	if batch == nil {
		return failValidation(c, map[string]string{"body": "keyword batch is required and no default is configured"})
	}

	result, err := collector.Collect(c.Request().Context(), batch, triggerSource(c))
	if err != nil {
		s.logger.Error().Err(err).Msg("collection trigger failed")
		return internalError(c, "Collection run failed")
	}

	s.cache.Invalidate(statsCacheKey)
	payload := map[string]any{
		"result":    result,
		"timestamp": globaltime.UTC(),
	}
	if result.Status == collect.RunFailed {
		return fail(c, http.StatusBadGateway, "Collection run failed", payload)
	}
	return successWithStatus(c, http.StatusAccepted, payload)
}

// triggerBatch resolves the keyword batch for a trigger request: a
// JSON body wins, otherwise the configured default.
func (s *Server) triggerBatch(c echo.Context) (*keywords.Batch, error) {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxTriggerBodyBytes))
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return s.opts.DefaultBatch, nil
	}
	return keywords.ValidateBatchPayload(body)
}

func (s *Server) handleEnrich(c echo.Context) error {
	if s.enricher == nil {
		return fail(c, http.StatusServiceUnavailable, "Enricher is not configured", nil)
	}

	stats, err := s.enricher.Run(c.Request().Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("enrichment trigger failed")
		return internalError(c, "Enrichment pass failed")
	}

	s.cache.Invalidate(statsCacheKey)
	return success(c, map[string]any{
		"stats":     stats,
		"timestamp": globaltime.UTC(),
	})
}

func (s *Server) handleResetStuck(c echo.Context) error {
	if s.enricher == nil {
		return fail(c, http.StatusServiceUnavailable, "Enricher is not configured", nil)
	}

	reset, err := s.enricher.ResetStuck(c.Request().Context(), s.opts.StuckTimeout)
	if err != nil {
		s.logger.Error().Err(err).Msg("stuck reset trigger failed")
		return internalError(c, "Stuck reset failed")
	}

	s.cache.Invalidate(statsCacheKey)
	return success(c, map[string]any{
		"reset":     reset,
		"timestamp": globaltime.UTC(),
	})
}

func triggerSource(c echo.Context) string {
	if source := strings.TrimSpace(c.Request().Header.Get(triggerSourceHeader)); source != "" {
		return source
	}
	return "api"
}
