package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/kalambet/musicdoc/internal/jobs"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

func printSuccess(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorGreen, "✓ "+msg))
}

func printError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorRed, "✗ "+msg))
}

func printWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorYellow, "⚠ "+msg))
}

func printStatus(label string, format string, args ...any) {
	val := fmt.Sprintf(format, args...)
	l := colorize(colorBold, label+":")
	fmt.Fprintf(os.Stderr, "  %s %s\n", l, val)
}

func printStep(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorCyan, "→ "+msg))
}

const barWidth = 24

// progressBar renders p (0-100) as a fixed-width bar.
func progressBar(p int) string {
	p = max(0, min(100, p))
	filled := p * barWidth / 100
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", barWidth-filled) + "]"
}

// writeEvent prints one line per job event.
func writeEvent(w io.Writer, ev jobs.Event) {
	line := fmt.Sprintf("%s %3d%% %d/5 %s", progressBar(ev.Progress), ev.Progress, ev.Stage, ev.StageLabel)
	if ev.Detail != "" {
		line += " · " + ev.Detail
	}
	switch ev.Type {
	case jobs.EventComplete:
		line = colorize(colorGreen, line)
	case jobs.EventError:
		line = colorize(colorRed, line+": "+ev.Error)
	}
	fmt.Fprintln(w, line)
}
