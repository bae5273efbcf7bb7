package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/nicktill/energyview/pkg/archive"
	"github.com/nicktill/energyview/pkg/table"
)

// ErrEmptySheet is returned when a workbook has no header row.
var ErrEmptySheet = errors.New("export: empty sheet")

// ReadJSON decodes a Document written by WriteJSON. The document is itself a
// Frame, so an earlier export can be re-encoded or sent to Postgres.
func ReadJSON(r io.Reader) (*Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode JSON: %w", err)
	}
	for i, row := range doc.Records {
		if len(row) != len(doc.Columns) {
			return nil, fmt.Errorf("%w: row %d has %d cells, header has %d",
				table.ErrSchemaMismatch, i, len(row), len(doc.Columns))
		}
	}
	return &doc, nil
}

// Header implements table.Frame.
func (d *Document) Header() []string { return append([]string{}, d.Columns...) }

// Len implements table.Frame.
func (d *Document) Len() int { return len(d.Records) }

// Row implements table.Frame.
func (d *Document) Row(i int) []string { return append([]string{}, d.Records[i]...) }

// ReadSummaryXLSX reads the first sheet of a summary workbook. The first row
// holds column labels, with levels joined by "/"; every following row is a
// record. Numeric cells become numbers and the rest text.
func ReadSummaryXLSX(r io.Reader) (*table.Wide, error) {
	book, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer book.Close()

	sheets := book.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptySheet
	}
	rows, err := book.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptySheet, sheets[0])
	}

	header := rows[0]
	labels := make([][]string, len(header))
	cells := make([][]archive.Value, len(header))
	for j, h := range header {
		labels[j] = strings.Split(h, table.LabelSeparator)
		cells[j] = make([]archive.Value, 0, len(rows)-1)
	}
	for _, row := range rows[1:] {
		for j := range header {
			var s string
			// GetRows trims trailing empty cells
			if j < len(row) {
				s = row[j]
			}
			cells[j] = append(cells[j], summaryValue(s))
		}
	}
	return table.NewWide(labels, cells)
}

func summaryValue(s string) archive.Value {
	if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
		return archive.NumberValue(v)
	}
	return archive.TextValue(s)
}
