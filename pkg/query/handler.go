package query

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/nicktill/energyview/pkg/httpx"
	"github.com/nicktill/energyview/pkg/results"
)

// DefaultRowLimit caps the rows returned by one HTTP query.
const DefaultRowLimit = 10000

// Lookup resolves a session id to its bundle.
type Lookup func(id string) (*results.Bundle, bool)

// Handler handles query execution requests
type Handler struct {
	lookup   Lookup
	rowLimit int
}

// NewHandler creates a new query handler. rowLimit <= 0 uses DefaultRowLimit.
func NewHandler(lookup Lookup, rowLimit int) *Handler {
	if rowLimit <= 0 {
		rowLimit = DefaultRowLimit
	}
	return &Handler{lookup: lookup, rowLimit: rowLimit}
}

// Request is the payload of POST /v1/sessions/{id}/query
type Request struct {
	Query string `json:"query"`
}

// Response is the query endpoint payload
type Response struct {
	Status string      `json:"status"`
	Data   *ResultData `json:"data,omitempty"`
	Error  string      `json:"error,omitempty"`
	Query  string      `json:"query"` // Echo back the query
}

// ResultData holds one evaluated frame
type ResultData struct {
	Table     string     `json:"table"`
	Level     string     `json:"level,omitempty"`
	Method    string     `json:"method,omitempty"`
	Header    []string   `json:"header"`
	Rows      [][]string `json:"rows"`
	TotalRows int        `json:"total_rows"`
	Truncated bool       `json:"truncated,omitempty"`
}

// NewResultData formats r, keeping at most limit rows.
func NewResultData(r *Result, limit int) *ResultData {
	d := &ResultData{Table: r.Table, Method: r.Method, Header: r.Frame.Header(), TotalRows: r.Frame.Len()}
	if r.Level != nil {
		d.Level = r.Level.String()
	}
	n := r.Frame.Len()
	if limit > 0 && n > limit {
		n = limit
		d.Truncated = true
	}
	d.Rows = make([][]string, n)
	for i := range d.Rows {
		d.Rows[i] = r.Frame.Row(i)
	}
	return d
}

// HandleQuery handles POST /v1/sessions/{id}/query (JSON body) and GET with
// a query parameter.
func (h *Handler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	b, ok := h.lookup(id)
	if !ok {
		httpx.RespondErrorString(w, http.StatusNotFound, fmt.Sprintf("unknown session %q", id))
		return
	}

	var req Request
	switch r.Method {
	case http.MethodGet:
		req.Query = r.URL.Query().Get("query")
	case http.MethodPost:
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpx.RespondError(w, http.StatusBadRequest, fmt.Errorf("invalid JSON: %w", err))
			return
		}
	default:
		httpx.RespondErrorString(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if req.Query == "" {
		httpx.RespondErrorString(w, http.StatusBadRequest, "query parameter is required")
		return
	}

	result, err := NewExecutor(b).Run(r.Context(), req.Query)
	if err != nil {
		status := httpx.StatusFor(err)
		if errors.Is(err, ErrSyntax) || errors.Is(err, ErrInvalid) {
			status = http.StatusBadRequest
		}
		httpx.RespondJSON(w, status, Response{Status: "error", Error: err.Error(), Query: req.Query})
		return
	}

	httpx.RespondJSON(w, http.StatusOK, Response{
		Status: "success",
		Query:  req.Query,
		Data:   NewResultData(result, h.rowLimit),
	})
}
