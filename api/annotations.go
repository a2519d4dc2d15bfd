package api

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"folio/repository"
)

type bookmarkRequest struct {
	Page int    `json:"page"`
	Note string `json:"note"`
}

func (s *Server) handleListBookmarks(w http.ResponseWriter, r *http.Request) {
	bms, err := s.store.ListBookmarks(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bms)
}

func (s *Server) handleCreateBookmark(w http.ResponseWriter, r *http.Request) {
	var req bookmarkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.Page < 1 {
		s.fail(w, r, fmt.Errorf("%w: page must be at least 1", errBadRequest))
		return
	}
	b := &repository.Bookmark{
		ID:     uuid.NewString(),
		BookID: r.PathValue("id"),
		Page:   req.Page,
		Note:   req.Note,
	}
	if err := s.store.CreateBookmark(r.Context(), b); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (s *Server) handleDeleteBookmark(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteBookmark(r.Context(), r.PathValue("id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type clipRequest struct {
	Page  int              `json:"page"`
	Image string           `json:"image"`
	Rect  *repository.Rect `json:"rect"`
	Note  string           `json:"note"`
}

var clipTypes = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
}

// decodeDataURL splits a base64 image data URL into its mime type and bytes.
// Only PNG and JPEG are accepted.
func decodeDataURL(s string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return "", nil, fmt.Errorf("%w: image must be a data URL", errBadRequest)
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, fmt.Errorf("%w: malformed data URL", errBadRequest)
	}
	mimeType, ok := strings.CutSuffix(meta, ";base64")
	if !ok {
		return "", nil, fmt.Errorf("%w: data URL must be base64", errBadRequest)
	}
	if _, ok := clipTypes[mimeType]; !ok {
		return "", nil, fmt.Errorf("%w: unsupported image type %q", errBadRequest, mimeType)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: invalid base64: %v", errBadRequest, err)
	}
	if len(data) == 0 {
		return "", nil, fmt.Errorf("%w: empty image", errBadRequest)
	}
	return mimeType, data, nil
}

func (s *Server) handleListClips(w http.ResponseWriter, r *http.Request) {
	clips, err := s.store.ListClips(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, clips)
}

func (s *Server) handleCreateClip(w http.ResponseWriter, r *http.Request) {
	bookID := r.PathValue("id")
	var req clipRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.Page < 1 {
		s.fail(w, r, fmt.Errorf("%w: page must be at least 1", errBadRequest))
		return
	}
	if req.Rect != nil && !req.Rect.Valid() {
		s.fail(w, r, fmt.Errorf("%w: rect must lie within [0,1]", errBadRequest))
		return
	}
	mimeType, data, err := decodeDataURL(req.Image)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if _, err := s.store.GetBook(r.Context(), bookID); err != nil {
		s.fail(w, r, err)
		return
	}

	c := &repository.Clip{
		ID:       uuid.NewString(),
		BookID:   bookID,
		Page:     req.Page,
		MimeType: mimeType,
		Rect:     req.Rect,
		Note:     req.Note,
	}
	c.ImagePath, err = s.lib.WriteClip(bookID, c.ID, clipTypes[mimeType], data)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.store.CreateClip(r.Context(), c); err != nil {
		if rmErr := s.lib.RemoveClip(bookID, c.ImagePath); rmErr != nil {
			GetContextLogger(r.Context(), s.logger).Error("failed to remove orphaned clip", zap.Error(rmErr))
		}
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleClipImage(w http.ResponseWriter, r *http.Request) {
	c, err := s.store.GetClip(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	path, err := s.lib.ClipPath(c.BookID, c.ImagePath)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.serveFile(w, r, path, c.MimeType)
}

func (s *Server) handleUpdateClip(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Note string `json:"note"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	c, err := s.store.UpdateClipNote(r.Context(), r.PathValue("id"), req.Note)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleDeleteClip(w http.ResponseWriter, r *http.Request) {
	c, err := s.store.GetClip(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.store.DeleteClip(r.Context(), c.ID); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.lib.RemoveClip(c.BookID, c.ImagePath); err != nil {
		GetContextLogger(r.Context(), s.logger).Warn("clip image not removed",
			zap.String("clip_id", c.ID), zap.Error(err))
	}
	w.WriteHeader(http.StatusNoContent)
}

type noteRequest struct {
	Page         int    `json:"page"`
	SelectedText string `json:"selected_text"`
	Body         string `json:"body"`
	Color        string `json:"color"`
}

func (s *Server) handleListNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := s.store.ListNotes(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, notes)
}

func (s *Server) handleCreateNote(w http.ResponseWriter, r *http.Request) {
	var req noteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.Page < 1 {
		s.fail(w, r, fmt.Errorf("%w: page must be at least 1", errBadRequest))
		return
	}
	if strings.TrimSpace(req.Body) == "" && strings.TrimSpace(req.SelectedText) == "" {
		s.fail(w, r, fmt.Errorf("%w: note needs a body or selected text", errBadRequest))
		return
	}
	n := &repository.Note{
		ID:           uuid.NewString(),
		BookID:       r.PathValue("id"),
		Page:         req.Page,
		SelectedText: req.SelectedText,
		Body:         req.Body,
		Color:        req.Color,
	}
	if err := s.store.CreateNote(r.Context(), n); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

func (s *Server) handleUpdateNote(w http.ResponseWriter, r *http.Request) {
	var patch repository.NotePatch
	if err := decodeJSON(w, r, &patch); err != nil {
		s.fail(w, r, err)
		return
	}
	n, err := s.store.UpdateNote(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (s *Server) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteNote(r.Context(), r.PathValue("id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
