// Package main is the entry point for the avatars CLI.
package main

import (
	"os"

	"github.com/mrz1836/pharos-avatars/internal/cli"
)

// Set by goreleaser via -ldflags.
//
//nolint:gochecknoglobals // link-time build metadata
var (
	version = ""
	commit  = ""
	date    = ""
)

func main() {
	cli.SetBuildInfo(cli.BuildInfo{Version: version, Commit: commit, Date: date})
	if err := cli.Execute(); err != nil {
		os.Exit(cli.ExitCode(err))
	}
}
