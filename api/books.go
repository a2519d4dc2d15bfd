package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"folio/library"
	"folio/repository"
)

const maxJSONBody = 8 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", errBadRequest)
		}
		return fmt.Errorf("%w: invalid JSON: %v", errBadRequest, err)
	}
	return nil
}

// pageParam parses the {n} path value as a 1-based page number.
func pageParam(r *http.Request) (int, error) {
	n, err := strconv.Atoi(r.PathValue("n"))
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: %q", library.ErrInvalidPage, r.PathValue("n"))
	}
	return n, nil
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadMB<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.fail(w, r, err)
			return
		}
		s.fail(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.fail(w, r, fmt.Errorf("%w: missing file field", errBadRequest))
		return
	}
	defer file.Close()

	GetContextLogger(r.Context(), s.logger).Info("upload received",
		zap.String("filename", header.Filename),
		zap.Int64("size", header.Size),
	)
	book, err := s.ingest.Upload(r.Context(), header.Filename, file, r.FormValue("title"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, book)
}

type saveWebsiteRequest struct {
	URL      string `json:"url"`
	Title    string `json:"title"`
	MaxPages int    `json:"max_pages"`
}

func (req saveWebsiteRequest) validate() error {
	if strings.TrimSpace(req.URL) == "" {
		return fmt.Errorf("%w: url is required", errBadRequest)
	}
	if req.MaxPages < 0 {
		return fmt.Errorf("%w: max_pages must not be negative", errBadRequest)
	}
	return nil
}

func (s *Server) handleSaveWebsite(w http.ResponseWriter, r *http.Request) {
	var req saveWebsiteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := req.validate(); err != nil {
		s.fail(w, r, err)
		return
	}
	book, err := s.ingest.SaveWebsite(r.Context(), req.URL, req.Title)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, book)
}

func (s *Server) handleCrawlWebsite(w http.ResponseWriter, r *http.Request) {
	var req saveWebsiteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := req.validate(); err != nil {
		s.fail(w, r, err)
		return
	}
	book, err := s.ingest.CrawlWebsite(r.Context(), req.URL, req.MaxPages, req.Title)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, book)
}

func (s *Server) handleListBooks(w http.ResponseWriter, r *http.Request) {
	books, err := s.store.ListBooks(r.Context(), r.URL.Query().Get("tag"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, books)
}

type bookDetail struct {
	*repository.Book
	Manifest *library.Manifest `json:"manifest"`
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	book, err := s.store.GetBook(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	m, err := s.lib.ReadManifest(id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bookDetail{Book: book, Manifest: m})
}

func (s *Server) handleUpdateBook(w http.ResponseWriter, r *http.Request) {
	var patch repository.BookPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		s.fail(w, r, err)
		return
	}
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			s.fail(w, r, fmt.Errorf("%w: title must not be empty", errBadRequest))
			return
		}
		patch.Title = &title
	}
	book, err := s.store.UpdateBook(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

func (s *Server) handleDeleteBook(w http.ResponseWriter, r *http.Request) {
	if err := s.ingest.DeleteBook(r.Context(), r.PathValue("id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
