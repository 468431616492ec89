package main

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
)

const statusLabelWidth = 18

func renderStatusLine(label, value string, colorize bool, color string) string {
	line := fmt.Sprintf("  %-*s %s", statusLabelWidth, label+":", value)
	if colorize && color != "" {
		return color + line + ansiReset
	}
	return line
}

func phaseColor(canProceed bool) string {
	if canProceed {
		return ansiGreen
	}
	return ansiYellow
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
