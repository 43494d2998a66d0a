package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

// Output formats
const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

// encode writes v as JSON or YAML. Table output is handled by the caller.
func encode(w io.Writer, format string, v any) error {
	switch format {
	case formatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(v)
	case formatYAML:
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		defer encoder.Close()
		return encoder.Encode(v)
	default:
		return fmt.Errorf("unsupported format: %s (use 'table', 'json' or 'yaml')", format)
	}
}

// printTable writes a header, a dashed underline and one row per entry
func printTable(w io.Writer, headers []string, rows [][]string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	line := func(cells []string) {
		for i, c := range cells {
			if i > 0 {
				fmt.Fprint(tw, "\t")
			}
			fmt.Fprint(tw, c)
		}
		fmt.Fprintln(tw)
	}

	line(headers)
	dashes := make([]string, len(headers))
	for i, h := range headers {
		dashes[i] = dashesFor(h)
	}
	line(dashes)
	for _, row := range rows {
		line(row)
	}
	return tw.Flush()
}

func dashesFor(s string) string {
	b := make([]byte, len(s))
	for i := range b {
		b[i] = '-'
	}
	return string(b)
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
