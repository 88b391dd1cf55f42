package main

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"gopkg.in/yaml.v3"

	"github.com/jobrunner/landsatlook/internal/domain"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

// printOutput writes v as JSON or YAML, or the table built by render.
func printOutput(w io.Writer, format string, v any, render func() string) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case "table", "":
		out := render()
		if out == "" {
			return nil
		}
		_, err := fmt.Fprintln(w, out)
		return err
	default:
		return &domain.ValidationError{Field: "output", Value: format, Constraint: "table|json|yaml", Message: "unknown output format"}
	}
}

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

// itemsTable renders search results one scene per row.
func itemsTable(items []domain.Item) string {
	rows := make([][]string, 0, len(items))
	for _, it := range items {
		date := ""
		if t, ok := it.Datetime(); ok {
			date = t.UTC().Format("2006-01-02")
		}
		cloud := ""
		if cc, ok := it.CloudCover(); ok {
			cloud = strconv.FormatFloat(cc, 'f', 1, 64)
		}
		rows = append(rows, []string{it.SceneID(), date, cloud, it.Platform(), it.ID})
	}
	return renderTable(
		[]string{"Scene", "Date", "Cloud %", "Platform", "Item"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
	)
}

// assetsTable renders fetched band assets.
func assetsTable(assets []domain.DownloadedAsset) string {
	rows := make([][]string, 0, len(assets))
	for _, a := range assets {
		rows = append(rows, []string{
			a.SceneID,
			a.Band,
			humanize.IBytes(uint64(max(a.Bytes, 0))),
			a.Path,
			a.Converted,
			a.Published,
			humanize.Time(a.FetchedAt),
		})
	}
	return renderTable(
		[]string{"Scene", "Band", "Size", "Path", "Converted", "Published", "Fetched"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight},
	)
}

// itemTable renders one item with its assets.
func itemTable(it domain.Item) string {
	rows := [][]string{}
	for _, band := range sortedKeys(it.Assets) {
		a := it.Assets[band]
		s3, _ := a.AlternateHref("s3")
		rows = append(rows, []string{band, a.Title, a.Href, s3})
	}
	date := ""
	if t, ok := it.Datetime(); ok {
		date = t.UTC().Format(time.RFC3339)
	}
	header := fmt.Sprintf("%s  %s  %s", it.SceneID(), it.ID, date)
	return header + "\n" + renderTable([]string{"Band", "Title", "Href", "S3"}, rows, nil)
}

func sortedKeys(m map[string]domain.Asset) []string {
	return slices.Sorted(maps.Keys(m))
}
