package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

// Format selects how command results are rendered
type Format string

const (
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
	FormatTable Format = "table"
)

// ParseFormat validates a --output flag value
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatJSON:
		return FormatJSON, nil
	case FormatYAML:
		return FormatYAML, nil
	case FormatTable, "":
		return FormatTable, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s (must be json, yaml, or table)", s)
	}
}

// TableWriter is implemented by result types that can render themselves as a
// human-readable table. Types without it fall back to YAML in table mode.
type TableWriter interface {
	WriteTable(w io.Writer) error
}

// Write renders v to w in the requested format
func Write(w io.Writer, format Format, v any) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(v)
	case FormatTable:
		if tw, ok := v.(TableWriter); ok {
			return tw.WriteTable(w)
		}
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(v)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

// NewTable returns a tabwriter configured the way table renderers here
// expect, with a flush the caller must invoke
func NewTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}
