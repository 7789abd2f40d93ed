// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/bureau-foundation/klog/sendsyslog"
)

// Syslog severities, the low three bits of a priority.
const (
	severityEmergency = iota
	severityAlert
	severityCritical
	severityError
	severityWarning
	severityNotice
	severityInfo
	severityDebug
)

// renderParams select how buffer contents are printed.
type renderParams struct {
	Raw   bool   `flag:"raw" desc:"print lines verbatim, priority prefixes included"`
	Color string `flag:"color" desc:"colour by severity: auto, always, or never" default:"auto"`
}

// lineRenderer prints buffer contents line by line. Bytes after the
// last newline are held until more data or Flush.
type lineRenderer struct {
	out     io.Writer
	raw     bool
	color   bool
	styles  [8]lipgloss.Style
	partial []byte
}

func newLineRenderer(out io.Writer, params renderParams) (*lineRenderer, error) {
	renderer := &lineRenderer{out: out, raw: params.Raw}

	var profile termenv.Profile
	switch params.Color {
	case "never":
		return renderer, nil
	case "always":
		profile = termenv.ANSI256
	case "auto", "":
		file, ok := out.(*os.File)
		if !ok || !term.IsTerminal(int(file.Fd())) {
			return renderer, nil
		}
		profile = termenv.NewOutput(out).EnvColorProfile()
		if profile == termenv.Ascii {
			return renderer, nil
		}
	default:
		return nil, fmt.Errorf("--color must be auto, always, or never, got %q", params.Color)
	}

	lip := lipgloss.NewRenderer(out, termenv.WithProfile(profile))
	lip.SetColorProfile(profile)
	renderer.color = true
	renderer.styles = [8]lipgloss.Style{
		severityEmergency: lip.NewStyle().Bold(true).Reverse(true).Foreground(lipgloss.Color("9")),
		severityAlert:     lip.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
		severityCritical:  lip.NewStyle().Bold(true).Foreground(lipgloss.Color("1")),
		severityError:     lip.NewStyle().Foreground(lipgloss.Color("1")),
		severityWarning:   lip.NewStyle().Foreground(lipgloss.Color("3")),
		severityNotice:    lip.NewStyle().Bold(true),
		severityInfo:      lip.NewStyle(),
		severityDebug:     lip.NewStyle().Faint(true),
	}
	return renderer, nil
}

// Write renders every complete line in p.
func (r *lineRenderer) Write(p []byte) (int, error) {
	r.partial = append(r.partial, p...)
	for {
		index := bytes.IndexByte(r.partial, '\n')
		if index < 0 {
			break
		}
		if err := r.renderLine(r.partial[:index]); err != nil {
			return 0, err
		}
		r.partial = r.partial[index+1:]
	}
	if len(r.partial) == 0 {
		r.partial = nil
	}
	return len(p), nil
}

// Flush renders a held partial line.
func (r *lineRenderer) Flush() error {
	if len(r.partial) == 0 {
		return nil
	}
	line := r.partial
	r.partial = nil
	return r.renderLine(line)
}

func (r *lineRenderer) renderLine(line []byte) error {
	// Log text comes from any local user; its escape sequences never
	// reach the terminal.
	text := ansi.Strip(string(line))
	if r.raw {
		_, err := fmt.Fprintln(r.out, text)
		return err
	}

	priority, rest, ok := sendsyslog.ParsePriority([]byte(text))
	text = string(rest)
	if ok && r.color {
		text = r.styles[priority&7].Render(text)
	}
	_, err := fmt.Fprintln(r.out, text)
	return err
}
