package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"folio/repository"
)

func (s *Server) handleListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := s.store.ListTags(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tags)
}

func (s *Server) handleCreateTag(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string `json:"name"`
		Color string `json:"color"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		s.fail(w, r, fmt.Errorf("%w: name is required", errBadRequest))
		return
	}
	t := &repository.Tag{ID: uuid.NewString(), Name: name, Color: req.Color}
	if err := s.store.CreateTag(r.Context(), t); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleDeleteTag(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteTag(r.Context(), r.PathValue("id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTagBook(w http.ResponseWriter, r *http.Request) {
	bookID := r.PathValue("id")
	if err := s.store.TagBook(r.Context(), bookID, r.PathValue("tagId")); err != nil {
		s.fail(w, r, err)
		return
	}
	tags, err := s.store.BookTags(r.Context(), bookID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tags)
}

func (s *Server) handleUntagBook(w http.ResponseWriter, r *http.Request) {
	if err := s.store.UntagBook(r.Context(), r.PathValue("id"), r.PathValue("tagId")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
