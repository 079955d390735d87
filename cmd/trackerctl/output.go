package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// ANSI
const (
	Reset = "\033[0m"
	Bold  = "\033[1m"
	Green = "\033[32m"
	Red   = "\033[31m"
)

// table is rendered as aligned columns, or as a JSON array of objects.
type table struct {
	header []string
	rows   [][]string
}

func (t *table) add(cols ...any) {
	row := make([]string, len(cols))
	for i, c := range cols {
		row[i] = fmt.Sprint(c)
	}
	t.rows = append(t.rows, row)
}

func writeTable(w io.Writer, t table, format string) error {
	if format == "json" {
		out := make([]map[string]string, 0, len(t.rows))
		for _, row := range t.rows {
			obj := make(map[string]string, len(row))
			for i, h := range t.header {
				obj[strings.ToLower(h)] = row[i]
			}
			out = append(out, obj)
		}
		return writeJSON(w, out)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(t.header, "\t"))
	for _, row := range t.rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
