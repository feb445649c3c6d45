// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package main implements the cgraph CLI: build a CFG/DFG/CPG repository
// from a source tree, query it, keep it live against a file watcher, or
// print its summary statistics.
//
// Usage:
//
//	cgraph build <path> [--metrics-addr :9090]
//	cgraph query <path> --from functions --where complexity.cyclomatic:gt:10
//	cgraph watch <path>
//	cgraph stats <path>
package main

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"
)

var (
	version = "dev"
	commit  = "unknown"
)

// GlobalFlags holds flags shared across every subcommand.
type GlobalFlags struct {
	JSON    bool
	YAML    bool
	NoColor bool
	Verbose int
	Quiet   bool
}

func main() {
	var (
		showVersion = flag.BoolP("version", "V", false, "Show version and exit")
		jsonOutput  = flag.Bool("json", false, "Output in JSON format")
		yamlOutput  = flag.Bool("yaml", false, "Output in YAML format")
		noColor     = flag.Bool("no-color", false, "Disable color output")
		verbose     = flag.CountP("verbose", "v", "Increase verbosity (-v info, -vv debug)")
		quiet       = flag.BoolP("quiet", "q", false, "Suppress progress output")
	)
	flag.SetInterspersed(false)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `cgraph - static CFG/DFG/CPG analysis

Usage:
  cgraph <command> [options]

Commands:
  build   Build the repository from a source tree and print a summary
  query   Build the repository, then run one query against it
  watch   Keep a repository live, incrementally synced against file changes
  stats   Build the repository, then print its repository.Stats

Global Options:
  --json          Output in JSON format
  --yaml          Output in YAML format
  --no-color      Disable color output (respects NO_COLOR env var)
  -v, --verbose   Increase verbosity
  -q, --quiet     Suppress progress output
  -V, --version   Show version and exit

For detailed command help: cgraph <command> --help
`)
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("cgraph version %s (%s)\n", version, commit)
		os.Exit(0)
	}
	if os.Getenv("NO_COLOR") != "" {
		*noColor = true
	}
	if *jsonOutput {
		*quiet = true
	}

	globals := GlobalFlags{JSON: *jsonOutput, YAML: *yamlOutput, NoColor: *noColor, Verbose: *verbose, Quiet: *quiet}
	initColors(globals.NoColor)

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	command, cmdArgs := args[0], args[1:]
	var err error
	switch command {
	case "build":
		err = runBuild(cmdArgs, globals)
	case "query":
		err = runQuery(cmdArgs, globals)
	case "watch":
		err = runWatch(cmdArgs, globals)
	case "stats":
		err = runStats(cmdArgs, globals)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", colorError("error:"), err)
		os.Exit(1)
	}
}
