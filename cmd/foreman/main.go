// Package main provides the entry point for the foreman CLI.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/quarryworks/foreman/internal/cli"
)

// Build information set via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123 -X main.date=2026-01-01"
var (
	version = "dev"     //nolint:gochecknoglobals // set by ldflags
	commit  = "none"    //nolint:gochecknoglobals // set by ldflags
	date    = "unknown" //nolint:gochecknoglobals // set by ldflags
)

func main() {
	ctx := context.Background()
	info := cli.BuildInfo{
		Version: version,
		Commit:  commit,
		Date:    date,
	}

	err := cli.Execute(ctx, info)
	cli.CloseLogFile()
	if err != nil {
		fmt.Fprintf(os.Stderr, "foreman: %v\n", err)
		os.Exit(cli.ExitCodeForError(err))
	}
}
