package httpapi

import (
	"encoding/json"
	"net/http"

	"modelsync/internal/manager"
	"modelsync/pkg/types"
)

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeError(w, types.ErrorResponse{Error: msg, Code: status})
}

func writeError(w http.ResponseWriter, e types.ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.Code)
	_ = json.NewEncoder(w).Encode(e)
}

// statusFor maps manager errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case manager.IsMergeConflict(err):
		return http.StatusConflict
	case manager.IsClosed(err), manager.IsDeliveryUnavailable(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeManagerError renders err, listing the failed IDs of a merge conflict.
func writeManagerError(w http.ResponseWriter, err error) {
	e := types.ErrorResponse{Error: err.Error(), Code: statusFor(err)}
	for _, id := range manager.FailedIDs(err) {
		e.Failed = append(e.Failed, string(id))
	}
	writeError(w, e)
}
