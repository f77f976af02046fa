// Package app wires configuration, storage, and the pipeline stages
// into CLI commands.
package app

import (
	"fmt"
	"os"
	"strings"
)

// Run executes the CLI command and returns a process exit code.
func Run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 2
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "help", "--help", "-h":
		printUsage()
		return 0
	case "health":
		return runHealth(args[1:])
	case "validate":
		return runValidate(args[1:])
	case "collect-tweets":
		return runCollectTweets(args[1:])
	case "collect-rss":
		return runCollectRSS(args[1:])
	case "enrich":
		return runEnrich(args[1:])
	case "reset-stuck":
		return runResetStuck(args[1:])
	case "reconcile":
		return runReconcile(args[1:])
	case "replay-failed":
		return runReplayFailed(args[1:])
	case "purge-raw":
		return runPurgeRaw(args[1:])
	case "serve":
		return runServe(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		return 2
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "pulse CLI")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  pulse <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  health         Verify database connectivity")
	fmt.Fprintln(os.Stderr, "  validate       Validate a keyword batch config file")
	fmt.Fprintln(os.Stderr, "  collect-tweets Run one tweet collection pass")
	fmt.Fprintln(os.Stderr, "  collect-rss    Run one feed collection pass")
	fmt.Fprintln(os.Stderr, "  enrich         Run one enrichment pass over pending posts")
	fmt.Fprintln(os.Stderr, "  reset-stuck    Revive posts stranded in processing")
	fmt.Fprintln(os.Stderr, "  reconcile      Resolve failure ledger entries settled by later results")
	fmt.Fprintln(os.Stderr, "  replay-failed  Reset failed posts for another enrichment attempt")
	fmt.Fprintln(os.Stderr, "  purge-raw      Soft-delete raw payloads past the retention window")
	fmt.Fprintln(os.Stderr, "  serve          Start the Echo API server")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Use \"pulse <command> -h\" for command-specific flags.")
}
