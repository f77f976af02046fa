package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"horse.fit/pulse/internal/category"
	"horse.fit/pulse/internal/cli"
	"horse.fit/pulse/internal/collect"
	"horse.fit/pulse/internal/config"
	"horse.fit/pulse/internal/crawler"
	"horse.fit/pulse/internal/feeds"
	"horse.fit/pulse/internal/keywords"
)

const defaultCollectTimeout = 10 * time.Minute

func runCollectTweets(args []string) int {
	fs := flag.NewFlagSet("collect-tweets", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	keywordsFile := fs.String("keywords", "", "Keyword batch config file (defaults to KEYWORDS_FILE)")
	source := fs.String("source", "cli", "Trigger source recorded on the run")
	timeout := fs.Duration("timeout", defaultCollectTimeout, "Overall run timeout")

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

	batch, code := loadBatchConfig(rt.cfg, *keywordsFile)
	if code != 0 {
		return code
	}

	client, err := crawler.NewClient(rt.cfg.CrawlerEndpoint, rt.cfg.CrawlerToken, rt.cfg.CrawlerActorID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Crawler client unavailable: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	collector := collect.NewTweetCollector(rt.pool, client, rt.logger)
	result, err := collector.Collect(ctx, batch, *source)
	if err != nil {
		rt.logger.Error().Err(err).Msg("tweet collection failed")
		fmt.Fprintf(os.Stderr, "Collection failed: %v\n", err)
		return 1
	}
	return reportCollectResult(result)
}

func runCollectRSS(args []string) int {
	fs := flag.NewFlagSet("collect-rss", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	keywordsFile := fs.String("keywords", "", "Keyword batch config file (defaults to KEYWORDS_FILE)")
	source := fs.String("source", "cli", "Trigger source recorded on the run")
	timeout := fs.Duration("timeout", defaultCollectTimeout, "Overall run timeout")

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

	batch, code := loadBatchConfig(rt.cfg, *keywordsFile)
	if code != 0 {
		return code
	}

	client, err := feeds.NewClient(rt.cfg.FeedsEndpoint, rt.cfg.FeedsToken)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Feeds client unavailable: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	resolver := category.NewResolver(category.DefaultConfig())
	collector := collect.NewRSSCollector(rt.pool, client, resolver, rt.logger)
	result, err := collector.Collect(ctx, batch, *source)
	if err != nil {
		rt.logger.Error().Err(err).Msg("feed collection failed")
		fmt.Fprintf(os.Stderr, "Collection failed: %v\n", err)
		return 1
	}
	return reportCollectResult(result)
}

func loadBatchConfig(cfg *config.Config, override string) (*keywords.Batch, int) {
	path := strings.TrimSpace(override)
	if path == "" {
		path = strings.TrimSpace(cfg.KeywordsFile)
	}
	if path == "" {
		fmt.Fprintln(os.Stderr, "No keyword batch config: set --keywords or KEYWORDS_FILE")
		return nil, 2
	}

	batch, err := keywords.LoadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid keyword batch config: %v\n", err)
		return nil, 1
	}
	return batch, 0
}

func reportCollectResult(result *collect.Result) int {
	fmt.Printf(
		"run %s (%s): status=%s fetched=%d new=%d duplicates=%d errors=%d\n",
		result.RunUUID,
		result.Platform,
		result.Status,
		result.FetchedCount,
		result.NewCount,
		result.DuplicateCount,
		result.ErrorCount,
	)
	for _, msg := range result.Errors {
		fmt.Fprintf(os.Stderr, "  error: %s\n", msg)
	}
	if result.Status == collect.RunFailed {
		return 1
	}
	return 0
}
