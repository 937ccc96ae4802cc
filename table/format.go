// Field-based table formatting.  A report picks a set of named fields from a
// formatter map; output is fixed-width text by default, with csv and json
// selectable in the field spec ("-fmt job,user,csv").

package table

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Print modifiers.  The output format is passed to each field formatter so that a
// field can render differently in fixed mode (eg, truncation) than in csv/json.

type PrintMods = int

const (
	PrintModFixed = 1 << iota
	PrintModCsv
	PrintModJson
)

type FormatOptions struct {
	Fixed  bool
	Csv    bool
	Json   bool
	Header bool
}

func ComputePrintMods(opts *FormatOptions) PrintMods {
	switch {
	case opts.Csv:
		return PrintModCsv
	case opts.Json:
		return PrintModJson
	default:
		return PrintModFixed
	}
}

// A Formatter renders one field of a row.

type Formatter[T any] struct {
	Fmt  func(data T, ctx PrintMods) string
	Help string
}

// ParseFormatSpec parses a comma-separated field spec against the formatter map.
// Aliases expand non-recursively: an alias must map to fundamental field names.
// The control words "fixed", "csv", "json", "header" and "noheader" select the
// output format; anything else that is not a known field is an error.  An empty
// spec means the defaults.
//
// Fixed output has a header unless "noheader" is given; csv has one only if
// "header" is given; json never has one.

func ParseFormatSpec[T any](
	defaults, fmtOpt string,
	formatters map[string]Formatter[T],
	aliases map[string][]string,
) ([]string, *FormatOptions, error) {
	fields := make([]string, 0)
	controls := make(map[string]bool)
	var addFields func(spec string) error
	addFields = func(spec string) error {
		for _, name := range strings.Split(spec, ",") {
			switch name {
			case "fixed", "csv", "json", "header", "noheader":
				controls[name] = true
				continue
			}
			if _, found := formatters[name]; found {
				fields = append(fields, name)
				continue
			}
			if expansion, found := aliases[name]; found {
				for _, alias := range expansion {
					if _, found := formatters[alias]; !found {
						return fmt.Errorf("Alias %s names unknown field %s", name, alias)
					}
					fields = append(fields, alias)
				}
				continue
			}
			return fmt.Errorf("Unknown field or control %q in format spec", name)
		}
		return nil
	}
	if fmtOpt != "" {
		if err := addFields(fmtOpt); err != nil {
			return nil, nil, err
		}
	}
	// A spec that only selects a format ("csv") keeps the default fields.
	if len(fields) == 0 {
		if err := addFields(defaults); err != nil {
			return nil, nil, err
		}
	}
	if len(fields) == 0 {
		return nil, nil, fmt.Errorf("No output fields in format spec %q", fmtOpt)
	}

	opts := &FormatOptions{}
	opts.Csv = controls["csv"]
	opts.Json = controls["json"] && !opts.Csv
	opts.Fixed = !opts.Csv && !opts.Json
	opts.Header = (opts.Fixed && !controls["noheader"]) || (opts.Csv && controls["header"])
	return fields, opts, nil
}

// FormatData renders one row per element of data, in order, one column per named
// field.  Unknown field names have been weeded out by ParseFormatSpec; a lookup
// failure here panics.

func FormatData[T any](
	out io.Writer,
	fields []string,
	formatters map[string]Formatter[T],
	opts *FormatOptions,
	data []T,
) {
	ctx := ComputePrintMods(opts)

	// cols is a column-major representation of the output matrix.
	cols := make([][]string, len(fields))
	fmts := make([]func(T, PrintMods) string, len(fields))
	for c, name := range fields {
		f, found := formatters[name]
		if !found {
			panic(fmt.Sprintf("No formatter for field %s", name))
		}
		cols[c] = make([]string, len(data))
		fmts[c] = f.Fmt
	}
	for r, x := range data {
		for c := range fields {
			cols[c][r] = fmts[c](x, ctx)
		}
	}

	switch {
	case opts.Csv:
		formatCsv(out, fields, opts, cols, len(data))
	case opts.Json:
		formatJson(out, fields, cols, len(data))
	default:
		formatFixed(out, fields, opts, cols, len(data))
	}
}

func formatFixed(unbufOut io.Writer, fields []string, opts *FormatOptions, cols [][]string, rows int) {
	out := Buffered(unbufOut)
	defer out.Flush()

	// The column width is the max across all the entries in the column, header
	// included if present.
	widths := make([]int, len(fields))
	if opts.Header {
		for col, name := range fields {
			widths[col] = utf8.RuneCountInString(name)
		}
	}
	for col := range fields {
		for row := 0; row < rows; row++ {
			widths[col] = max(widths[col], utf8.RuneCountInString(cols[col][row]))
		}
	}

	var s strings.Builder
	if opts.Header {
		s.Reset()
		for col, name := range fields {
			writeStringPadded(&s, widths[col], name)
		}
		fmt.Fprintln(out, strings.TrimRight(s.String(), " "))
	}
	for row := 0; row < rows; row++ {
		s.Reset()
		for col := range fields {
			writeStringPadded(&s, widths[col], cols[col][row])
		}
		fmt.Fprintln(out, strings.TrimRight(s.String(), " "))
	}
}

const initialSpaces = "                                                                                "

func writeStringPadded(s *strings.Builder, width int, str string) {
	spaces := initialSpaces
	needed := width - utf8.RuneCountInString(str) + 2
	for len(spaces) < needed {
		spaces = spaces + spaces
	}
	s.WriteString(str)
	s.WriteString(spaces[:needed])
}

func formatCsv(out io.Writer, fields []string, opts *FormatOptions, cols [][]string, rows int) {
	w := csv.NewWriter(out)
	defer w.Flush()

	outFields := make([]string, len(fields))
	if opts.Header {
		copy(outFields, fields)
		w.Write(outFields)
	}
	for row := 0; row < rows; row++ {
		for col := range fields {
			outFields[col] = cols[col][row]
		}
		w.Write(outFields)
	}
}

// There's no natural fit for the JSON encoder here, so just do it manually: an
// array of objects with all values as strings.
func formatJson(unbufOut io.Writer, fields []string, cols [][]string, rows int) {
	out := Buffered(unbufOut)
	defer out.Flush()

	out.WriteByte('[')
	for row := 0; row < rows; row++ {
		if row > 0 {
			out.WriteByte(',')
		}
		out.WriteByte('{')
		for col, name := range fields {
			if col > 0 {
				out.WriteByte(',')
			}
			out.WriteString(strconv.Quote(name))
			out.WriteByte(':')
			out.WriteString(strconv.Quote(cols[col][row]))
		}
		out.WriteByte('}')
	}
	out.WriteString("]\n")
}

func Buffered(unbufOut io.Writer) *bufio.Writer {
	if b, ok := unbufOut.(*bufio.Writer); ok {
		return b
	}
	return bufio.NewWriter(unbufOut)
}
