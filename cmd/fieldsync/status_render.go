package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// statusKind is the severity shown in brackets on status, doctor, and queue
// summary lines.
type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

var statusStyles = [...]struct {
	label string
	color string
}{
	statusInfo:  {"INFO", ansiBlue},
	statusOK:    {"OK", ansiGreen},
	statusWarn:  {"WARN", ansiYellow},
	statusError: {"ERROR", ansiRed},
}

func (k statusKind) label() string {
	if k < 0 || int(k) >= len(statusStyles) {
		return statusStyles[statusInfo].label
	}
	return statusStyles[k].label
}

func (k statusKind) paint(s string, colorize bool) string {
	if !colorize || k < 0 || int(k) >= len(statusStyles) {
		return s
	}
	return statusStyles[k].color + s + ansiReset
}

// statusKindFromSeverity maps the severity strings of status and preflight
// results. Anything unknown is informational.
func statusKindFromSeverity(severity string) statusKind {
	switch strings.ToLower(strings.TrimSpace(severity)) {
	case "ok":
		return statusOK
	case "warn", "warning":
		return statusWarn
	case "error":
		return statusError
	}
	return statusInfo
}

// renderStatusLine formats "  Label:           [KIND] message".
func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	badge := "[" + kind.label() + "]"
	if message != "" {
		badge += " " + message
	}
	return kind.paint(fmt.Sprintf("  %-16s %s", label+":", badge), colorize)
}

func renderSectionHeader(title string, colorize bool) []string {
	heading := "== " + strings.TrimSpace(title) + " =="
	rule := strings.Repeat("-", len(heading))
	return []string{statusInfo.paint(heading, colorize), statusInfo.paint(rule, colorize)}
}

// shouldColorize is true only for terminals; pipes and test buffers get
// plain text.
func shouldColorize(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
