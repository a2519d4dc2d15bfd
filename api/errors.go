package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"folio/extractor"
	"folio/ingest"
	"folio/library"
	"folio/repository"
)

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error ErrorBody `json:"error"`
}

// errBadRequest marks request validation failures raised by handlers.
var errBadRequest = errors.New("bad request")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	writeJSON(w, status, ErrorEnvelope{
		Error: ErrorBody{Code: code, Message: message, Details: details},
	})
}

// classify maps an error to its HTTP status, envelope code and whether the
// error text is safe to show as details.
func classify(err error) (int, string, bool) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, extractor.ErrConversion):
		return http.StatusUnprocessableEntity, "conversion_failed", true
	case errors.Is(err, extractor.ErrFetch):
		return http.StatusBadGateway, "fetch_failed", true
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, "too_large", false
	case errors.Is(err, extractor.ErrUnsupportedFormat):
		return http.StatusBadRequest, "unsupported_format", true
	case errors.Is(err, extractor.ErrInvalidURL),
		errors.Is(err, ingest.ErrEmptyUpload),
		errors.Is(err, library.ErrInvalidID),
		errors.Is(err, library.ErrInvalidPage),
		errors.Is(err, library.ErrInvalidKind),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest, "bad_request", true
	case errors.Is(err, library.ErrNoBackup):
		return http.StatusNotFound, "no_backup", false
	case errors.Is(err, repository.ErrNotFound),
		errors.Is(err, library.ErrPageNotFound):
		return http.StatusNotFound, "not_found", false
	case errors.Is(err, repository.ErrConflict):
		return http.StatusConflict, "conflict", false
	default:
		return http.StatusInternalServerError, "internal", false
	}
}

// fail writes the envelope for err. Server errors are logged with the
// request logger and their text is kept out of the response.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code, expose := classify(err)
	var details any
	if expose {
		details = err.Error()
	}
	msg := http.StatusText(status)
	if status == http.StatusNotFound {
		msg = err.Error()
	}

	logger := GetContextLogger(r.Context(), s.logger)
	if status >= 500 {
		logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	} else {
		logger.Info("request rejected", zap.String("path", r.URL.Path), zap.Int("status", status), zap.Error(err))
	}
	writeError(w, status, code, msg, details)
}
