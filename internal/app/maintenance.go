package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"horse.fit/pulse/internal/cli"
	"horse.fit/pulse/internal/globaltime"
)

func runReconcile(args []string) int {
	fs := flag.NewFlagSet("reconcile", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")

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

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	resolved, err := rt.pool.ResolveSettledFailures(ctx, globaltime.UTC())
	if err != nil {
		rt.logger.Error().Err(err).Msg("failure reconciliation failed")
		fmt.Fprintf(os.Stderr, "Reconciliation failed: %v\n", err)
		return 1
	}

	unresolved, err := rt.pool.CountUnresolvedFailures(ctx)
	if err != nil {
		rt.logger.Error().Err(err).Msg("unresolved failure count failed")
		fmt.Fprintf(os.Stderr, "Reconciliation failed: %v\n", err)
		return 1
	}

	rt.logger.Info().Int64("resolved", resolved).Int64("unresolved", unresolved).Msg("failure ledger reconciled")
	fmt.Printf("resolved %d failure(s), %d still unresolved\n", resolved, unresolved)
	return 0
}

func runReplayFailed(args []string) int {
	fs := flag.NewFlagSet("replay-failed", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	force := fs.Bool("force", false, "Also replay posts that already hit the attempt cap")

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

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	replayed, err := rt.pool.ReplayFailed(ctx, rt.cfg.EnrichMaxAttempts, *force, globaltime.UTC())
	if err != nil {
		rt.logger.Error().Err(err).Msg("replay failed posts failed")
		fmt.Fprintf(os.Stderr, "Replay failed: %v\n", err)
		return 1
	}

	rt.logger.Info().Int64("replayed", replayed).Bool("force", *force).Msg("failed posts queued for replay")
	fmt.Printf("queued %d failed post(s) for another enrichment attempt\n", replayed)
	return 0
}

func runPurgeRaw(args []string) int {
	fs := flag.NewFlagSet("purge-raw", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	retentionDays := fs.Int("retention-days", 0, "Retention window in days (defaults to RAW_RETENTION_DAYS)")

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

	days := *retentionDays
	if days <= 0 {
		days = rt.cfg.RawRetentionDays
	}
	if days <= 0 {
		fmt.Fprintln(os.Stderr, "Retention is disabled (RAW_RETENTION_DAYS=0); nothing to purge")
		return 0
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	now := globaltime.UTC()
	cutoff := now.AddDate(0, 0, -days)
	purged, err := rt.pool.PurgeRawItemsOlderThan(ctx, cutoff, now)
	if err != nil {
		rt.logger.Error().Err(err).Msg("raw item purge failed")
		fmt.Fprintf(os.Stderr, "Purge failed: %v\n", err)
		return 1
	}

	rt.logger.Info().Int64("purged", purged).Int("retention_days", days).Msg("raw items purged")
	fmt.Printf("soft-deleted %d raw item(s) collected before %s\n", purged, cutoff.Format(time.RFC3339))
	return 0
}
