package main

import (
	"coveriq/internal/figma"
	"coveriq/internal/filter"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Output formats accepted by --format.
const (
	formatJSON     = "json"
	formatTable    = "table"
	formatMarkdown = "markdown"
)

func checkFormat(f string) error {
	switch f {
	case formatJSON, formatTable, formatMarkdown:
		return nil
	}
	return fmt.Errorf("unknown format %q (valid: json, table, markdown)", f)
}

// writeJSON writes v indented, without HTML escaping so names survive as typed.
func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func newTable(format string) table.Writer {
	t := table.NewWriter()
	if format != formatMarkdown {
		t.SetStyle(table.StyleLight)
	}
	return t
}

func render(w io.Writer, t table.Writer, format string) error {
	var out string
	if format == formatMarkdown {
		out = t.RenderMarkdown()
	} else {
		out = t.Render()
	}
	_, err := fmt.Fprintln(w, out)
	return err
}

func writeComponents(w io.Writer, res *filter.Result, format string) error {
	if format == formatJSON {
		return writeJSON(w, res)
	}

	t := newTable(format)
	t.AppendHeader(table.Row{"ID", "Parent", "Name", "Type", "X", "Y", "Interactions", "Overrides"})
	for _, c := range res.FigmaData {
		t.AppendRow(table.Row{
			str(c.ID), str(c.ParentID), str(c.Name), str(c.Type),
			num(c.Position.X), num(c.Position.Y),
			count(c.Interactions), count(c.StyleOverrideTable),
		})
	}
	t.AppendFooter(table.Row{"", "", "", "Total", "", "", len(res.FigmaData), ""})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, WidthMax: 40},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
		{Number: 8, Align: text.AlignRight},
	})
	return render(w, t, format)
}

func writeFrames(w io.Writer, frames []figma.Frame, ref *figma.FileRef, format string) error {
	if format == formatJSON {
		if ref == nil {
			return writeJSON(w, frames)
		}
		type linked struct {
			figma.Frame
			URL string `json:"url"`
		}
		out := make([]linked, len(frames))
		for i, f := range frames {
			out[i] = linked{Frame: f, URL: ref.PrototypeURL(f.ID)}
		}
		return writeJSON(w, out)
	}

	t := newTable(format)
	header := table.Row{"Page", "Frame", "ID"}
	if ref != nil {
		header = append(header, "URL")
	}
	t.AppendHeader(header)
	for _, f := range frames {
		row := table.Row{f.Page, f.Name, f.ID}
		if ref != nil {
			row = append(row, ref.PrototypeURL(f.ID))
		}
		t.AppendRow(row)
	}
	return render(w, t, format)
}

func str(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

func num(f *float64) string {
	if f == nil {
		return "-"
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

// count reports the number of entries in an interactions array or override
// table; anything else renders as a dash.
func count(v interface{}) string {
	switch t := v.(type) {
	case []interface{}:
		return strconv.Itoa(len(t))
	case map[string]interface{}:
		return strconv.Itoa(len(t))
	}
	return "-"
}
