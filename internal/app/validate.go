package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"horse.fit/pulse/internal/keywords"
)

func runValidate(args []string) int {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	file := fs.String("file", "keywords.json", "Keyword batch config file to validate")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	path := strings.TrimSpace(*file)
	if path == "" {
		fmt.Fprintln(os.Stderr, "--file is required")
		return 2
	}

	batch, err := keywords.LoadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid: %v\n", err)
		return 1
	}

	fmt.Printf("ok: %s (%d keywords, config %s)\n", path, len(batch.Keywords), batch.ConfigVersion)
	return 0
}
