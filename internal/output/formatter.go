// Package output renders command results as tables, JSON or YAML.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/goccy/go-json"
	"github.com/goccy/go-yaml"
	"github.com/mattn/go-isatty"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Format types for output.
type Format string

const (
	FormatTable Format = "table"
	FormatWide  Format = "wide"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// Formatter writes data in one output format.
type Formatter interface {
	Format(w io.Writer, data any) error
}

// Tabular is implemented by results that know how to lay themselves out as a table.
type Tabular interface {
	Table(wide bool) Data
}

// Data is a rendered table.
type Data struct {
	Headers []string
	Rows    [][]string
	// RightAlign lists the column indexes holding numbers.
	RightAlign []int
}

// NewFormatter creates the formatter for format. Unknown formats render tables.
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: "  "}
	case FormatYAML:
		return &YAMLFormatter{}
	case FormatWide:
		return &TableFormatter{Wide: true}
	default:
		return &TableFormatter{}
	}
}

// JSONFormatter outputs JSON.
type JSONFormatter struct {
	Indent string
}

func (f *JSONFormatter) Format(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	if f.Indent != "" {
		enc.SetIndent("", f.Indent)
	}
	return enc.Encode(data)
}

// YAMLFormatter outputs YAML. Field names follow the json tags.
type YAMLFormatter struct{}

func (f *YAMLFormatter) Format(w io.Writer, data any) error {
	out, err := yaml.MarshalWithOptions(data,
		yaml.Indent(2),
		yaml.IndentSequence(false),
		yaml.UseJSONMarshaler(),
	)
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}

// TableFormatter outputs a table for Tabular data and falls back to JSON otherwise.
type TableFormatter struct {
	Wide bool
}

func (f *TableFormatter) Format(w io.Writer, data any) error {
	switch v := data.(type) {
	case Data:
		return f.render(w, v)
	case Tabular:
		return f.render(w, v.Table(f.Wide))
	}
	return (&JSONFormatter{Indent: "  "}).Format(w, data)
}

var headerCaser = cases.Title(language.English)

func (f *TableFormatter) render(w io.Writer, data Data) error {
	config := tablewriter.Config{}
	if len(data.RightAlign) > 0 && len(data.Headers) > 0 {
		align := make([]tw.Align, len(data.Headers))
		for i := range align {
			align[i] = tw.AlignLeft
		}
		for _, col := range data.RightAlign {
			if col >= 0 && col < len(align) {
				align[col] = tw.AlignRight
			}
		}
		config.Row.Alignment = tw.CellAlignment{PerColumn: align}
	}

	table := tablewriter.NewTable(w, tablewriter.WithConfig(config))
	if len(data.Headers) > 0 {
		headers := make([]any, len(data.Headers))
		for i, h := range data.Headers {
			headers[i] = headerCaser.String(h)
		}
		table.Header(headers...)
	}
	for _, row := range data.Rows {
		cells := make([]any, len(row))
		for i, c := range row {
			cells[i] = c
		}
		if err := table.Append(cells...); err != nil {
			return err
		}
	}
	return table.Render()
}

// DetectFormat returns the explicit format, or a table on a terminal and JSON otherwise.
func DetectFormat(explicit string) Format {
	if explicit != "" {
		return Format(strings.ToLower(explicit))
	}
	if isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return FormatTable
	}
	return FormatJSON
}

// ParseFormat converts s to a Format.
func ParseFormat(s string) (Format, error) {
	format := Format(strings.ToLower(s))
	switch format {
	case FormatTable, FormatWide, FormatJSON, FormatYAML, "":
		return format, nil
	}
	return "", fmt.Errorf("invalid format %q: must be one of: table, wide, json, yaml", s)
}
