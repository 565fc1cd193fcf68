package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"vidtranslate/internal/api"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const ansiReset = "\x1b[0m"

// statusStyles holds the bracketed label and ANSI colour per kind.
var statusStyles = [...]struct{ label, color string }{
	statusInfo:  {"INFO", "\x1b[34m"},
	statusOK:    {"OK", "\x1b[32m"},
	statusWarn:  {"WARN", "\x1b[33m"},
	statusError: {"ERROR", "\x1b[31m"},
}

// renderStatusLine formats "  Label:               [OK] message" with the
// label padded so values line up across a block.
func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	style := statusStyles[kind]
	line := fmt.Sprintf("  %-20s [%s]", label+":", style.label)
	if message != "" {
		line += " " + message
	}
	if colorize {
		return style.color + line + ansiReset
	}
	return line
}

func renderSectionHeader(title string, colorize bool) []string {
	line := "== " + strings.TrimSpace(title) + " =="
	rule := strings.Repeat("-", len(line))
	if colorize {
		color := statusStyles[statusInfo].color
		return []string{color + line + ansiReset, color + rule + ansiReset}
	}
	return []string{line, rule}
}

// jobStatusKind maps a job status onto the colour scheme used by status lines.
func jobStatusKind(status string) statusKind {
	switch status {
	case "succeeded":
		return statusOK
	case "failed":
		return statusError
	case "running":
		return statusWarn
	default:
		return statusInfo
	}
}

func dependencyLines(deps []api.DependencyStatus, colorize bool) []string {
	lines := make([]string, 0, len(deps)+1)
	missing := make([]string, 0)
	for _, dep := range deps {
		if dep.Available {
			message := "Ready"
			if dep.Command != "" {
				message = fmt.Sprintf("Ready (command: %s)", dep.Command)
			}
			lines = append(lines, renderStatusLine(dep.Name, statusOK, message, colorize))
			continue
		}
		detail := strings.TrimSpace(dep.Detail)
		if detail == "" {
			detail = "not available"
		}
		kind := statusError
		if dep.Optional {
			kind = statusWarn
		}
		lines = append(lines, renderStatusLine(dep.Name, kind, detail, colorize))
		if !dep.Optional {
			missing = append(missing, dep.Name)
		}
	}
	if len(missing) > 0 {
		lines = append(lines, renderStatusLine("Missing", statusError, strings.Join(missing, ", "), colorize))
	}
	return lines
}

func stageHealthLines(health []api.StageHealth, colorize bool) []string {
	lines := make([]string, 0, len(health))
	for _, h := range health {
		kind := statusOK
		message := "Ready"
		if !h.Ready {
			kind = statusError
			message = "Not ready"
		}
		if detail := strings.TrimSpace(h.Detail); detail != "" {
			message = fmt.Sprintf("%s (%s)", message, detail)
		}
		lines = append(lines, renderStatusLine(h.Name, kind, message, colorize))
	}
	return lines
}

// progressLine renders the single-line job progress shown while waiting.
func progressLine(job api.JobReport) string {
	percent := 0
	if job.Percent != nil {
		percent = *job.Percent
	}
	stage := job.Stage
	if stage == "" {
		stage = job.Status
	}
	line := fmt.Sprintf("%-9s %3d%% %s", job.Status, percent, stage)
	if msg := strings.TrimSpace(job.Message); msg != "" {
		line += " - " + msg
	}
	return line
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
