package api

import (
	"errors"
	"fmt"
	"html/template"
	"mime"
	"net/http"
	"os"
	"strings"

	"go.uber.org/zap"

	"folio/library"
	"folio/repository"
)

var missingPage = template.Must(template.New("missing").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body data-page="{{.Page}}"><p>{{.Message}}</p></body></html>
`))

func (s *Server) writeMissingPage(w http.ResponseWriter, status, page int, title, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = missingPage.Execute(w, map[string]any{"Title": title, "Page": page, "Message": message})
}

// handleGetPage serves page HTML. A page that cannot be read still gets a
// small placeholder document; only an unknown book is a 404.
func (s *Server) handleGetPage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	n, err := pageParam(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	book, err := s.store.GetBook(r.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		s.writeMissingPage(w, http.StatusNotFound, n, "Not found", "This book does not exist.")
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}

	data, err := s.lib.ReadPage(id, n)
	if errors.Is(err, library.ErrPageNotFound) {
		GetContextLogger(r.Context(), s.logger).Warn("page file missing",
			zap.String("book_id", id), zap.Int("page", n))
		s.writeMissingPage(w, http.StatusOK, n, book.Title, fmt.Sprintf("Page %d is not available.", n))
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(data)
}

type pageContent struct {
	HTML string `json:"html"`
}

func (s *Server) handleSavePage(kind library.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		n, err := pageParam(r)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		var req pageContent
		if err := decodeJSON(w, r, &req); err != nil {
			s.fail(w, r, err)
			return
		}
		if strings.TrimSpace(req.HTML) == "" {
			s.fail(w, r, fmt.Errorf("%w: html is required", errBadRequest))
			return
		}
		if _, err := s.store.GetBook(r.Context(), id); err != nil {
			s.fail(w, r, err)
			return
		}
		if err := s.lib.SavePage(id, n, req.HTML, kind); err != nil {
			s.fail(w, r, err)
			return
		}
		if err := s.store.TouchBook(r.Context(), id); err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"page": n, "kind": kind, "has_backup": true})
	}
}

func (s *Server) handleRestorePage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	n, err := pageParam(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.lib.RestorePage(id, n); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.store.TouchBook(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"page": n, "restored": true})
}

func (s *Server) handleHasBackup(w http.ResponseWriter, r *http.Request) {
	n, err := pageParam(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok, err := s.lib.HasBackup(r.PathValue("id"), n)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"has_backup": ok})
}

func (s *Server) handleRestoreAll(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	restored, err := s.lib.RestoreAll(id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if len(restored) > 0 {
		if err := s.store.TouchBook(r.Context(), id); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string][]int{"restored": restored})
}

func (s *Server) handleAllPages(w http.ResponseWriter, r *http.Request) {
	total, pages, err := s.lib.AllPages(r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"total": total, "pages": pages})
}

func (s *Server) handleTOC(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	entries, err := s.lib.TOC(id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	nav, err := s.lib.TOCHTML(id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries, "html": nav})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		s.fail(w, r, fmt.Errorf("%w: q parameter is required", errBadRequest))
		return
	}
	hits, err := s.lib.Search(r.PathValue("id"), q)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"query": q, "hits": hits})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	book, err := s.store.GetBook(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	md, err := s.lib.ExportMarkdown(id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": book.Title + ".md",
	}))
	w.Write([]byte(md))
}

func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request) {
	path, err := s.lib.MediaPath(r.PathValue("id"), r.PathValue("file"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			err = repository.ErrNotFound
		}
		s.fail(w, r, err)
		return
	}
	s.serveFile(w, r, path, "")
}

func (s *Server) handlePDF(w http.ResponseWriter, r *http.Request) {
	path, err := s.lib.PDFPath(r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.serveFile(w, r, path, "application/pdf")
}

// serveFile streams a regular file, mapping a missing file to the 404
// envelope.
func (s *Server) serveFile(w http.ResponseWriter, r *http.Request, path, contentType string) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			err = repository.ErrNotFound
		}
		s.fail(w, r, err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if info.IsDir() {
		s.fail(w, r, repository.ErrNotFound)
		return
	}
	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

const highlightCSS = `pre code.hljs { display: block; overflow-x: auto; padding: 1em; }
.hljs { color: #24292e; background: #f6f8fa; }
.hljs-comment, .hljs-quote { color: #6a737d; font-style: italic; }
.hljs-keyword, .hljs-selector-tag { color: #d73a49; }
.hljs-string, .hljs-attr { color: #032f62; }
.hljs-number, .hljs-literal { color: #005cc5; }
.hljs-title, .hljs-section { color: #6f42c1; font-weight: bold; }
`

func (s *Server) handleHighlightCSS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.Write([]byte(highlightCSS))
}
