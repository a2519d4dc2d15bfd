package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"folio/repository"
)

func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	p, err := s.store.GetProgress(r.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		// A book nobody has opened yet starts on page 1.
		if _, err := s.store.GetBook(r.Context(), id); err != nil {
			s.fail(w, r, err)
			return
		}
		p = &repository.Progress{BookID: id, Page: 1}
		err = nil
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleSetProgress(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req struct {
		Page int `json:"page"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	book, err := s.store.GetBook(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if req.Page < 1 || (book.TotalPages > 0 && req.Page > book.TotalPages) {
		s.fail(w, r, fmt.Errorf("%w: page %d outside 1..%d", errBadRequest, req.Page, book.TotalPages))
		return
	}
	p := &repository.Progress{BookID: id, Page: req.Page}
	if err := s.store.SetProgress(r.Context(), p); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// maskKey hides all but the last four characters of an API key.
func maskKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", len(key)-4) + key[len(key)-4:]
}

func (s *Server) handleGetAISettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.store.GetAISettings(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	settings.APIKey = maskKey(settings.APIKey)
	writeJSON(w, http.StatusOK, settings)
}

// handleSaveAISettings stores the settings. An empty or still-masked key
// keeps the stored one.
func (s *Server) handleSaveAISettings(w http.ResponseWriter, r *http.Request) {
	var req repository.AISettings
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	current, err := s.store.GetAISettings(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if req.APIKey == "" || req.APIKey == maskKey(current.APIKey) {
		req.APIKey = current.APIKey
	}
	if err := s.store.SaveAISettings(r.Context(), &req); err != nil {
		s.fail(w, r, err)
		return
	}
	req.APIKey = maskKey(req.APIKey)
	writeJSON(w, http.StatusOK, req)
}
