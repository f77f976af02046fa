package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"horse.fit/pulse/internal/category"
	"horse.fit/pulse/internal/cli"
	"horse.fit/pulse/internal/collect"
	"horse.fit/pulse/internal/crawler"
	"horse.fit/pulse/internal/enrich"
	"horse.fit/pulse/internal/feeds"
	"horse.fit/pulse/internal/httpapi"
	"horse.fit/pulse/internal/keywords"
	"horse.fit/pulse/internal/llm"
)

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	host := fs.String("host", "", "Host interface to bind (defaults to HTTP_HOST)")
	port := fs.Int("port", 0, "HTTP port (defaults to HTTP_PORT)")
	readTimeout := fs.Duration("read-timeout", 10*time.Second, "HTTP read timeout")
	writeTimeout := fs.Duration("write-timeout", 120*time.Second, "HTTP write timeout")
	shutdownTimeout := fs.Duration("shutdown-timeout", 10*time.Second, "Graceful shutdown timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	rt, code := initRuntime(envLoader, true)
	if code != 0 {
		return code
	}
	defer rt.close()

	bindHost := strings.TrimSpace(*host)
	if bindHost == "" {
		bindHost = rt.cfg.HTTPHost
	}
	bindPort := *port
	if bindPort <= 0 {
		bindPort = rt.cfg.HTTPPort
	}

	var tweets httpapi.Collector
	if strings.TrimSpace(rt.cfg.CrawlerEndpoint) != "" {
		client, err := crawler.NewClient(rt.cfg.CrawlerEndpoint, rt.cfg.CrawlerToken, rt.cfg.CrawlerActorID)
		if err != nil {
			rt.logger.Error().Err(err).Msg("crawler client unavailable")
			fmt.Fprintf(os.Stderr, "Crawler client unavailable: %v\n", err)
			return 1
		}
		tweets = collect.NewTweetCollector(rt.pool, client, rt.logger)
	} else {
		rt.logger.Warn().Msg("CRAWLER_ENDPOINT not set; tweet trigger disabled")
	}

	var rss httpapi.Collector
	if strings.TrimSpace(rt.cfg.FeedsEndpoint) != "" {
		client, err := feeds.NewClient(rt.cfg.FeedsEndpoint, rt.cfg.FeedsToken)
		if err != nil {
			rt.logger.Error().Err(err).Msg("feeds client unavailable")
			fmt.Fprintf(os.Stderr, "Feeds client unavailable: %v\n", err)
			return 1
		}
		resolver := category.NewResolver(category.DefaultConfig())
		rss = collect.NewRSSCollector(rt.pool, client, resolver, rt.logger)
	} else {
		rt.logger.Warn().Msg("FEEDS_ENDPOINT not set; feed trigger disabled")
	}

	generator := llm.NewClient(rt.cfg.LLMEndpoint, rt.cfg.LLMModel, rt.cfg.LLMModelVersion, rt.cfg.LLMTimeout())
	enricher := enrich.NewProcessor(rt.pool, generator, rt.logger, enrich.Options{
		BatchSize:   rt.cfg.EnrichBatchSize,
		Workers:     rt.cfg.EnrichWorkers,
		MaxAttempts: rt.cfg.EnrichMaxAttempts,
		BaseDelay:   rt.cfg.EnrichBaseDelay(),
		CallTimeout: rt.cfg.LLMTimeout(),
	})

	var defaultBatch *keywords.Batch
	if path := strings.TrimSpace(rt.cfg.KeywordsFile); path != "" {
		batch, err := keywords.LoadFile(path)
		if err != nil {
			rt.logger.Warn().Err(err).Str("path", path).Msg("default keyword batch unavailable; triggers need a body")
		} else {
			defaultBatch = batch
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		<-sigCh
		cancel()
	}()

	srv := httpapi.NewServer(rt.pool, tweets, rss, enricher, rt.logger, httpapi.Options{
		Host:            bindHost,
		Port:            bindPort,
		ReadTimeout:     *readTimeout,
		WriteTimeout:    *writeTimeout,
		ShutdownTimeout: *shutdownTimeout,
		TriggerSecret:   rt.cfg.TriggerSecret,
		CORSOrigins:     rt.cfg.CORSAllowedOriginsList(),
		CacheTTL:        rt.cfg.DashboardCacheTTL(),
		StuckTimeout:    rt.cfg.StuckTimeout(),
		DefaultBatch:    defaultBatch,
	})

	if err := srv.Start(ctx); err != nil {
		rt.logger.Error().Err(err).Str("host", bindHost).Int("port", bindPort).Msg("server failed")
		fmt.Fprintf(os.Stderr, "Server failed: %v\n", err)
		return 1
	}
	return 0
}
