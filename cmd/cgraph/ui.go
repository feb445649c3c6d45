// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

var colorsEnabled = true

// initColors disables color output when --no-color is set, NO_COLOR is
// set, or stdout is not a terminal, matching the teacher's --no-color
// convention.
func initColors(noColor bool) {
	colorsEnabled = !noColor && isatty.IsTerminal(os.Stdout.Fd())
	color.NoColor = !colorsEnabled
}

func colorError(s string) string {
	if !colorsEnabled {
		return s
	}
	return color.New(color.FgRed, color.Bold).Sprint(s)
}

func colorSuccess(s string) string {
	if !colorsEnabled {
		return s
	}
	return color.New(color.FgGreen).Sprint(s)
}

func colorDim(s string) string {
	if !colorsEnabled {
		return s
	}
	return color.New(color.Faint).Sprint(s)
}
