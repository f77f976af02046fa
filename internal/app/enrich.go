package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"horse.fit/pulse/internal/cli"
	"horse.fit/pulse/internal/enrich"
	"horse.fit/pulse/internal/llm"
)

func runEnrich(args []string) int {
	fs := flag.NewFlagSet("enrich", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	batchSize := fs.Int("batch-size", 0, "Claim batch size (defaults to ENRICH_BATCH_SIZE)")
	timeout := fs.Duration("timeout", 15*time.Minute, "Overall pass timeout")

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

	opts := enrich.Options{
		BatchSize:   rt.cfg.EnrichBatchSize,
		Workers:     rt.cfg.EnrichWorkers,
		MaxAttempts: rt.cfg.EnrichMaxAttempts,
		BaseDelay:   rt.cfg.EnrichBaseDelay(),
		CallTimeout: rt.cfg.LLMTimeout(),
	}
	if *batchSize > 0 {
		opts.BatchSize = *batchSize
	}

	generator := llm.NewClient(rt.cfg.LLMEndpoint, rt.cfg.LLMModel, rt.cfg.LLMModelVersion, rt.cfg.LLMTimeout())
	processor := enrich.NewProcessor(rt.pool, generator, rt.logger, opts)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	stats, err := processor.Run(ctx)
	if err != nil {
		rt.logger.Error().Err(err).Msg("enrichment pass failed")
		fmt.Fprintf(os.Stderr, "Enrichment failed: %v\n", err)
		return 1
	}

	fmt.Printf(
		"enrichment: claimed=%d processed=%d degraded=%d failed=%d skipped=%d\n",
		stats.Claimed,
		stats.Processed,
		stats.Degraded,
		stats.Failed,
		stats.Skipped,
	)
	return 0
}

func runResetStuck(args []string) int {
	fs := flag.NewFlagSet("reset-stuck", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	staleness := fs.Duration("staleness", 0, "Processing age before reset (defaults to STUCK_TIMEOUT_MINUTES)")

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

	window := *staleness
	if window <= 0 {
		window = rt.cfg.StuckTimeout()
	}

	generator := llm.NewClient(rt.cfg.LLMEndpoint, rt.cfg.LLMModel, rt.cfg.LLMModelVersion, rt.cfg.LLMTimeout())
	processor := enrich.NewProcessor(rt.pool, generator, rt.logger, enrich.Options{})

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	reset, err := processor.ResetStuck(ctx, window)
	if err != nil {
		rt.logger.Error().Err(err).Msg("stuck reset failed")
		fmt.Fprintf(os.Stderr, "Stuck reset failed: %v\n", err)
		return 1
	}

	fmt.Printf("reset %d stuck post(s) older than %s\n", reset, window)
	return 0
}
