// Package summary renders run summaries for humans and machines.
package summary

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ubuntu/docsync/internal/fileutils"
	"github.com/ubuntu/docsync/internal/ingest"
	"gopkg.in/yaml.v3"
)

// ErrUnknownFormat is returned when a summary format is not supported.
var ErrUnknownFormat = errors.New("unknown summary format")

// Format is a summary output format.
type Format string

const (
	// FormatText is a human readable table.
	FormatText Format = "text"
	// FormatJSON is an indented JSON document.
	FormatJSON Format = "json"
	// FormatYAML is a YAML document.
	FormatYAML Format = "yaml"
	// FormatTOML is a TOML document.
	FormatTOML Format = "toml"
)

// Formats lists the supported formats.
var Formats = []Format{FormatText, FormatJSON, FormatYAML, FormatTOML}

// ParseFormat returns the format named s, ignoring case.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	switch f {
	case FormatText, FormatJSON, FormatYAML, FormatTOML:
		return f, nil
	case "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("%w %q, expected one of %v", ErrUnknownFormat, s, Formats)
}

// Report is the serializable view of a run summary.
type Report struct {
	RunID     string  `json:"run_id" yaml:"run_id" toml:"run_id"`
	Database  string  `json:"database" yaml:"database" toml:"database"`
	Total     int     `json:"total" yaml:"total" toml:"total"`
	Succeeded int     `json:"succeeded" yaml:"succeeded" toml:"succeeded"`
	Failed    int     `json:"failed" yaml:"failed" toml:"failed"`
	Elapsed   string  `json:"elapsed" yaml:"elapsed" toml:"elapsed"`
	Outcomes  []Entry `json:"outcomes" yaml:"outcomes" toml:"outcomes"`
}

// Entry is the outcome of one input unit.
type Entry struct {
	Source  string `json:"source" yaml:"source" toml:"source"`
	Kind    string `json:"kind,omitempty" yaml:"kind,omitempty" toml:"kind,omitempty"`
	Stage   string `json:"stage" yaml:"stage" toml:"stage"`
	Success bool   `json:"success" yaml:"success" toml:"success"`
	// Status is 0 when the store never answered.
	Status   int    `json:"status,omitempty" yaml:"status,omitempty" toml:"status,omitempty"`
	Message  string `json:"message" yaml:"message" toml:"message"`
	Duration string `json:"duration" yaml:"duration" toml:"duration"`
}

// New builds the report of s, a run against database.
func New(s ingest.Summary, database string) Report {
	r := Report{
		RunID:    s.RunID,
		Database: database,
		Total:    len(s.Outcomes),
		Failed:   s.Failed(),
		Elapsed:  s.Elapsed.Round(time.Millisecond).String(),
		Outcomes: make([]Entry, 0, len(s.Outcomes)),
	}
	r.Succeeded = r.Total - r.Failed

	for _, o := range s.Outcomes {
		e := Entry{
			Source:   o.Source,
			Kind:     string(o.Kind),
			Stage:    string(o.Stage),
			Success:  o.Success,
			Message:  o.Message,
			Duration: o.Duration.Round(time.Millisecond).String(),
		}
		if o.StatusCode != nil {
			e.Status = *o.StatusCode
		}
		r.Outcomes = append(r.Outcomes, e)
	}
	return r
}

// Render writes r to w in the given format.
func Render(w io.Writer, r Report, f Format) error {
	switch f {
	case FormatText:
		return renderText(w, r)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(r)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	case FormatTOML:
		return toml.NewEncoder(w).Encode(r)
	default:
		return fmt.Errorf("%w %q", ErrUnknownFormat, f)
	}
}

// Write renders r in the given format and atomically replaces the file at path with it.
func Write(path string, r Report, f Format) error {
	var buf bytes.Buffer
	if err := Render(&buf, r, f); err != nil {
		return fmt.Errorf("could not render summary: %w", err)
	}
	if err := fileutils.AtomicWrite(path, buf.Bytes()); err != nil {
		return fmt.Errorf("could not write summary: %w", err)
	}
	return nil
}
