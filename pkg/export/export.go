package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nicktill/energyview/pkg/table"
)

// DefaultDelimiter separates CSV fields unless the caller picks another.
const DefaultDelimiter = ';'

// Format is an export encoding.
type Format string

const (
	CSV  Format = "csv"
	JSON Format = "json"
	XLSX Format = "xlsx"
)

// ParseFormat accepts csv, json and xlsx. An empty string is CSV.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", CSV:
		return CSV, nil
	case JSON:
		return JSON, nil
	case XLSX, "excel":
		return XLSX, nil
	default:
		return "", fmt.Errorf("invalid format %q: must be csv, json or xlsx", s)
	}
}

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	switch f {
	case JSON:
		return "application/json"
	case XLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "text/csv"
	}
}

// ParseDelimiter returns the single delimiter character in s, or
// DefaultDelimiter when s is empty.
func ParseDelimiter(s string) (rune, error) {
	if s == "" {
		return DefaultDelimiter, nil
	}
	if s == `\t` || s == "tab" {
		return '\t', nil
	}
	r := []rune(s)
	if len(r) != 1 || r[0] == '"' || r[0] == '\r' || r[0] == '\n' {
		return 0, fmt.Errorf("invalid delimiter %q", s)
	}
	return r[0], nil
}

// Result contains stats about one export
type Result struct {
	Table      string    `json:"table"`
	Rows       int       `json:"rows"`
	Columns    int       `json:"columns"`
	Format     Format    `json:"format"`
	ExportedAt time.Time `json:"exported_at"`
}

func newResult(name string, f table.Frame, format Format) *Result {
	return &Result{
		Table:      name,
		Rows:       f.Len(),
		Columns:    len(f.Header()),
		Format:     format,
		ExportedAt: time.Now(),
	}
}

// WriteCSV writes the header row and every row of f. Multi-level labels are
// already collapsed by the frame; the row index is not written.
func WriteCSV(w io.Writer, name string, f table.Frame, delimiter rune) (*Result, error) {
	writer := csv.NewWriter(w)
	writer.Comma = delimiter

	if err := writer.Write(f.Header()); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}
	for i := 0; i < f.Len(); i++ {
		if err := writer.Write(f.Row(i)); err != nil {
			return nil, fmt.Errorf("failed to write CSV row %d: %w", i, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush CSV: %w", err)
	}
	return newResult(name, f, CSV), nil
}

// Document is the JSON export layout.
type Document struct {
	Metadata struct {
		Table      string    `json:"table"`
		ExportedAt time.Time `json:"exported_at"`
		Rows       int       `json:"rows"`
		Version    string    `json:"version"`
	} `json:"metadata"`
	Columns []string   `json:"header"`
	Records [][]string `json:"rows"`
}

// WriteJSON writes f as a Document. Cells keep the text form used by CSV.
func WriteJSON(w io.Writer, name string, f table.Frame) (*Result, error) {
	doc := Document{Columns: f.Header(), Records: make([][]string, f.Len())}
	for i := range doc.Records {
		doc.Records[i] = f.Row(i)
	}
	res := newResult(name, f, JSON)
	doc.Metadata.Table = name
	doc.Metadata.ExportedAt = res.ExportedAt
	doc.Metadata.Rows = f.Len()
	doc.Metadata.Version = "1.0"

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(doc); err != nil {
		return nil, fmt.Errorf("failed to encode JSON: %w", err)
	}
	return res, nil
}

// Write dispatches on format. delimiter only applies to CSV.
func Write(w io.Writer, name string, f table.Frame, format Format, delimiter rune) (*Result, error) {
	switch format {
	case CSV:
		return WriteCSV(w, name, f, delimiter)
	case JSON:
		return WriteJSON(w, name, f)
	case XLSX:
		return WriteXLSX(w, name, f)
	default:
		return nil, fmt.Errorf("invalid format %q", format)
	}
}
