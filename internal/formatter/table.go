// Package formatter renders selected records for the console.
package formatter

import (
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"

	"webhookworker/internal/models"
	"webhookworker/pkg/utils"
)

// DefaultTitleWidth is the title column width used when none is given.
const DefaultTitleWidth = 48

var (
	header = []string{"id", "ownerId", "title", "status"}
	text   = utils.NewStringHelper()
)

// RenderTable returns a markdown table of the records with one row per record.
// Titles wider than maxTitle display cells are truncated.
func RenderTable(records []models.NormalizedRecord, maxTitle int) string {
	if maxTitle < 4 {
		maxTitle = DefaultTitleWidth
	}

	table := make([][]string, 0, len(records)+1)
	table = append(table, header)

	for _, rec := range records {
		table = append(table, []string{
			strconv.FormatInt(rec.ID, 10),
			strconv.FormatInt(rec.OwnerID, 10),
			text.TruncateString(text.NormalizeWhitespace(rec.Title), maxTitle),
			string(rec.Status),
		})
	}

	return strings.Join(alignRows(table), "\n") + "\n"
}

// alignRows pads every cell to its column's display width and inserts the
// separator row after the header.
func alignRows(table [][]string) []string {
	widths := make([]int, len(header))

	for _, row := range table {
		for i, cell := range row {
			widths[i] = max(widths[i], runewidth.StringWidth(cell))
		}
	}

	// separator needs at least "---"
	for i := range widths {
		widths[i] = max(widths[i], 3)
	}

	lines := make([]string, 0, len(table)+1)

	for i, row := range table {
		lines = append(lines, joinCells(row, widths))

		if i == 0 {
			sep := make([]string, len(widths))
			for j, w := range widths {
				sep[j] = strings.Repeat("-", w)
			}

			lines = append(lines, joinCells(sep, widths))
		}
	}

	return lines
}

func joinCells(cells []string, widths []int) string {
	var sb strings.Builder

	sb.WriteString("|")

	for i, cell := range cells {
		sb.WriteString(" ")
		sb.WriteString(runewidth.FillRight(cell, widths[i]))
		sb.WriteString(" |")
	}

	return sb.String()
}
