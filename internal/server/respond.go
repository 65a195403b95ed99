package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Tomlord1122/todo-api/internal/domain"
	"github.com/Tomlord1122/todo-api/internal/logging"
)

type errorResponse struct {
	Error            string              `json:"error"`
	ValidationErrors []domain.FieldError `json:"validation_errors,omitempty"`
}

// respondWithServiceError maps the error taxonomy onto status codes:
// validation 400, not found 404, anything else 500 without detail.
func respondWithServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *domain.ValidationError
	var ierr *domain.InternalError
	switch {
	case errors.As(err, &verr):
		respondWithJSON(w, http.StatusBadRequest, errorResponse{
			Error:            verr.Message,
			ValidationErrors: verr.Fields,
		})
	case errors.Is(err, domain.ErrNotFound):
		respondWithError(w, http.StatusNotFound, "Todo not found")
	case errors.As(err, &ierr):
		respondWithError(w, http.StatusInternalServerError, capitalize(ierr.Error()))
	default:
		logging.FromContext(r.Context()).Error("unhandled error", slog.Any("error", err))
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, errorResponse{Error: message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		slog.Error("error marshaling JSON response", slog.Any("error", err))
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Internal server error preparing response"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}

func capitalize(s string) string {
	if s == "" || s[0] < 'a' || s[0] > 'z' {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
