package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/nicktill/energyview/pkg/archive"
	"github.com/nicktill/energyview/pkg/cluster"
	"github.com/nicktill/energyview/pkg/network"
	"github.com/nicktill/energyview/pkg/results"
	"github.com/nicktill/energyview/pkg/table"
	"github.com/nicktill/energyview/pkg/timeindex"
)

// RespondJSON writes a JSON response with the given status code and data.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Failed to encode JSON response: %v", err)
	}
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// RespondError writes an error response with the given status code and error message.
func RespondError(w http.ResponseWriter, status int, err error) {
	response := ErrorResponse{
		Error:   http.StatusText(status),
		Message: err.Error(),
	}
	RespondJSON(w, status, response)
}

// RespondErrorString writes an error response with the given status code and error message string.
func RespondErrorString(w http.ResponseWriter, status int, message string) {
	response := ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
	}
	RespondJSON(w, status, response)
}

// decodeErrors are archive content problems: the request was fine but the
// archive could not be decoded.
var decodeErrors = []error{
	archive.ErrMalformedTree,
	archive.ErrMissingGroup,
	archive.ErrNotNumeric,
	archive.ErrNotText,
	table.ErrSchemaMismatch,
	cluster.ErrClusterExpansion,
	network.ErrJoinKey,
	timeindex.ErrRowCountOutOfRange,
}

// StatusFor maps a decode or lookup error to an HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, results.ErrUnknownTable):
		return http.StatusNotFound
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	for _, target := range decodeErrors {
		if errors.Is(err, target) {
			return http.StatusUnprocessableEntity
		}
	}
	return http.StatusInternalServerError
}

// RespondErr writes err with the status StatusFor picks.
func RespondErr(w http.ResponseWriter, err error) {
	RespondError(w, StatusFor(err), err)
}
