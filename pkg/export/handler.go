package export

import (
	"bytes"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/nicktill/energyview/pkg/httpx"
	"github.com/nicktill/energyview/pkg/results"
	"github.com/nicktill/energyview/pkg/table"
	"github.com/nicktill/energyview/pkg/timeindex"
)

// Lookup resolves a session id to its bundle.
type Lookup func(id string) (*results.Bundle, bool)

// Handler serves table exports of loaded sessions.
type Handler struct {
	lookup    Lookup
	delimiter rune
	onExport  func(*Result, time.Duration)
}

// NewHandler creates an export handler. delimiter is the CSV default when the
// request does not name one.
func NewHandler(lookup Lookup, delimiter rune) *Handler {
	if delimiter == 0 {
		delimiter = DefaultDelimiter
	}
	return &Handler{lookup: lookup, delimiter: delimiter}
}

// OnExport registers a hook called after every successful export.
func (h *Handler) OnExport(fn func(*Result, time.Duration)) {
	h.onExport = fn
}

// Frame picks the frame an export request asks for. With a level, time
// tables are aggregated (method defaults to sum); index=true prefixes the
// time columns.
func Frame(b *results.Bundle, name, level, method string, withIndex bool) (table.Frame, error) {
	if level != "" {
		lvl, err := timeindex.ParseLevel(level)
		if err != nil {
			return nil, err
		}
		if method == "" {
			method = "sum"
		}
		return b.Aggregate(name, lvl, method)
	}
	if withIndex {
		return b.Indexed(name)
	}
	return b.Table(name)
}

// HandleExport handles GET /v1/sessions/{id}/export/{table}
// Query params:
//   - format: "csv", "json" or "xlsx" (default: csv)
//   - delimiter: CSV field separator (default: ;)
//   - level: Hour, Day, Week, Month or Year to aggregate time tables
//   - method: sum, mean, min, max or mixed (default: sum)
//   - index: "true" to include the time columns
func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	b, ok := h.lookup(vars["id"])
	if !ok {
		httpx.RespondErrorString(w, http.StatusNotFound, fmt.Sprintf("unknown session %q", vars["id"]))
		return
	}

	query := r.URL.Query()
	format, err := ParseFormat(query.Get("format"))
	if err != nil {
		httpx.RespondError(w, http.StatusBadRequest, err)
		return
	}
	delimiter := h.delimiter
	if d := query.Get("delimiter"); d != "" {
		if delimiter, err = ParseDelimiter(d); err != nil {
			httpx.RespondError(w, http.StatusBadRequest, err)
			return
		}
	}

	name := vars["table"]
	f, err := Frame(b, name, query.Get("level"), query.Get("method"), query.Get("index") == "true")
	if err != nil {
		if httpx.StatusFor(err) == http.StatusInternalServerError {
			httpx.RespondError(w, http.StatusBadRequest, err)
			return
		}
		httpx.RespondErr(w, err)
		return
	}

	// Encode fully before writing so a failure can still be reported as an
	// error response.
	start := time.Now()
	var buf bytes.Buffer
	result, err := Write(&buf, name, f, format, delimiter)
	if err != nil {
		log.Printf("❌ Export of %s failed: %v", name, err)
		httpx.RespondError(w, http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.%s", name, format))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		log.Printf("❌ Failed to send export of %s: %v", name, err)
		return
	}

	if h.onExport != nil {
		h.onExport(result, time.Since(start))
	}
	log.Printf("✅ Exported %s (%d rows, %s)", name, result.Rows, format)
}
