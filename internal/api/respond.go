package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"docmind/internal/util"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

// writeMappedErr translates the domain error taxonomy into HTTP
// statuses. Unauthorized stays a generic denial so callers cannot probe
// for the existence of other users' documents.
func writeMappedErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, util.ErrUnauthorized):
		writeErr(w, http.StatusForbidden, fmt.Errorf("access denied"))
	case errors.Is(err, util.ErrNotFound):
		writeErr(w, http.StatusNotFound, err)
	case errors.Is(err, util.ErrNoExtractableText):
		writeErr(w, http.StatusUnprocessableEntity, err)
	case errors.Is(err, util.ErrGenerationTimeout), errors.Is(err, util.ErrGenerationExhausted):
		writeErr(w, http.StatusBadGateway, err)
	default:
		writeErr(w, http.StatusInternalServerError, err)
	}
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
