package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/teaterarkiv/archive-cli/internal/model"
)

// Align is a column alignment.
type Align int

// Column alignments.
const (
	AlignLeft Align = iota
	AlignRight
)

// RenderTable renders rows under headers with rounded borders. Short rows
// are padded.
func RenderTable(headers []string, rows [][]string, aligns []Align) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := range headers {
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

	configs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == AlignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

// WriteSummary prints the summary table to w.
func WriteSummary(w io.Writer, s *Summary) error {
	rows := make([][]string, 0, 12)
	for _, c := range s.Counts() {
		rows = append(rows, []string{c[0], c[1]})
	}
	rows = append(rows, []string{"elapsed", time.Since(s.Started).Round(time.Millisecond).String()})
	_, err := fmt.Fprintf(w, "%s (run %s)\n%s\n", s.Command, s.RunID,
		RenderTable([]string{"Metric", "Count"}, rows, []Align{AlignLeft, AlignRight}))
	return err
}

var reviewHeaders = []string{"ID", "Kind", "Entity", "IDs", "Reason", "Created", "Resolved"}

func reviewRow(it model.ReviewItem) []string {
	resolved := ""
	if it.ResolvedAt != nil {
		resolved = it.ResolvedAt.Format(time.RFC3339)
	}
	return []string{
		it.ID,
		string(it.Kind),
		string(it.Entity),
		strings.Join(it.EntityIDs, ","),
		it.Reason,
		it.CreatedAt.Format(time.RFC3339),
		resolved,
	}
}

// WriteReview prints review items as a table. Long reasons are cut.
func WriteReview(w io.Writer, items []model.ReviewItem) error {
	if len(items) == 0 {
		_, err := fmt.Fprintln(w, "review queue is empty")
		return err
	}
	rows := make([][]string, len(items))
	for i, it := range items {
		row := reviewRow(it)
		row[4] = shorten(row[4], 60)
		rows[i] = row
	}
	_, err := fmt.Fprintln(w, RenderTable(reviewHeaders, rows, nil))
	return err
}

func shorten(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
