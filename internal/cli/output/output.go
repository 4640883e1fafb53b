// Package output renders command results as a table, JSON or YAML.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	pluralize "github.com/gertd/go-pluralize"
	"github.com/iancoleman/strcase"
	"gopkg.in/yaml.v3"

	"github.com/escala-app/escala/errors"
	"google.golang.org/grpc/codes"
)

var pluralizer = pluralize.NewClient()

// Format selects how results are printed.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

var ErrUnknownFormat = errors.NewC("output: unknown format", codes.InvalidArgument).
	WithPublicMessage("Output must be one of table, json or yaml.")

// ParseFormat accepts the --output flag value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatTable:
		return FormatTable, nil
	case FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", errors.Mark(ErrUnknownFormat, 0).Append(s)
	}
}

// Printer writes results in one format.
type Printer struct {
	Format Format
	Out    io.Writer
}

// Print writes data. In table format, table is called to lay data out; the
// structured formats encode data directly.
func (p *Printer) Print(data any, table func() *Table) error {
	switch p.Format {
	case FormatJSON:
		enc := json.NewEncoder(p.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case FormatYAML:
		enc := yaml.NewEncoder(p.Out)
		enc.SetIndent(2)
		if err := enc.Encode(data); err != nil {
			return err
		}
		return enc.Close()
	default:
		return table().Render(p.Out)
	}
}

// Message prints a line of text. Structured formats get {"message": ...} so
// their output stays parseable.
func (p *Printer) Message(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if p.Format == FormatTable {
		_, err := fmt.Fprintln(p.Out, msg)
		return err
	}
	return p.Print(map[string]string{"message": msg}, nil)
}

// Count formats n with the noun, pluralized: "1 user", "3 users".
func Count(n int, noun string) string {
	return pluralizer.Pluralize(noun, n, true)
}

// Table is rendered with aligned columns.
type Table struct {
	Headers []string
	Rows    [][]string
}

// NewTable returns a table whose headers are the given field names in
// SCREAMING_SNAKE_CASE.
func NewTable(fields ...string) *Table {
	headers := make([]string, len(fields))
	for i, f := range fields {
		headers[i] = strcase.ToScreamingSnake(f)
	}
	return &Table{Headers: headers}
}

// AddRow appends a row. Empty cells render as "-".
func (t *Table) AddRow(cells ...string) {
	row := make([]string, len(cells))
	for i, c := range cells {
		if c == "" {
			c = "-"
		}
		row[i] = c
	}
	t.Rows = append(t.Rows, row)
}

// Render writes the table. A table without rows prints only its headers.
func (t *Table) Render(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if len(t.Headers) > 0 {
		fmt.Fprintln(tw, strings.Join(t.Headers, "\t"))
	}
	for _, row := range t.Rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

// Join formats a list cell.
func Join(items []string) string {
	return strings.Join(items, ", ")
}
