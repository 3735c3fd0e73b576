package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Priya8975/marketplace/internal/domain"
)

const defaultLimit = 50

type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		json.NewEncoder(w).Encode(body)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Error: message})
}

// respondDomainError maps the error kind to a status. Internal and
// infrastructure details are logged, never returned.
func respondDomainError(w http.ResponseWriter, logger *slog.Logger, r *http.Request, err error) {
	switch domain.KindOf(err) {
	case domain.KindInvalidInputs:
		respondError(w, http.StatusBadRequest, err.Error())
	case domain.KindNotFound:
		respondError(w, http.StatusNotFound, err.Error())
	case domain.KindInfrastructure:
		logger.Error("infrastructure error", "method", r.Method, "path", r.URL.Path, "error", err)
		respondError(w, http.StatusServiceUnavailable, "temporarily unavailable, try again")
	default:
		logger.Error("internal error", "method", r.Method, "path", r.URL.Path, "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeJSON rejects unknown fields and trailing data.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return domain.InvalidInputs(errors.New("invalid request body"))
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return domain.InvalidInputs(errors.New("invalid request body"))
	}
	return nil
}

func queryLimit(r *http.Request) int {
	limit := defaultLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			limit = n
		}
	}
	return limit
}
