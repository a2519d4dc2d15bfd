package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"folio/config"
	"folio/extractor"
	"folio/ingest"
	"folio/library"
	"folio/pkg/sqlite"
	"folio/repository"
)

type testAPI struct {
	handler http.Handler
	store   *sqlite.Store
	lib     *library.Library
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	logger := zap.NewNop()
	lib, err := library.New(t.TempDir(), logger)
	if err != nil {
		t.Fatalf("library.New: %v", err)
	}
	store, err := sqlite.Open(":memory:")
	if err != nil {
		t.Fatalf("sqlite.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	cfg := extractor.DefaultConfig()
	cfg.PandocPath = filepath.Join(t.TempDir(), "missing-pandoc")
	ext := extractor.New(cfg, nil, logger)
	ing := ingest.New(lib, ext, store, 0, logger)
	srv := NewServer(config.Default().Server, lib, ing, store, logger)
	return &testAPI{handler: srv.Handler(), store: store, lib: lib}
}

func (a *testAPI) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	switch b := body.(type) {
	case nil:
		rd = bytes.NewReader(nil)
	case string:
		rd = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) upload(t *testing.T, filename, content, title string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte(content))
	if title != "" {
		mw.WriteField("title", title)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[ErrorEnvelope](t, rec).Error.Code
}

const sampleMarkdown = "# Field Notes\n\nFirst entry about the marsh and its herons.\n\n# Second Chapter\n\nHerons at dusk over the reeds.\n"

func (a *testAPI) seedBook(t *testing.T) repository.Book {
	t.Helper()
	rec := a.upload(t, "notes.md", sampleMarkdown, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload status = %d: %s", rec.Code, rec.Body.String())
	}
	return decode[repository.Book](t, rec)
}

func TestUploadAndReadPages(t *testing.T) {
	a := newTestAPI(t)
	book := a.seedBook(t)
	if book.TotalPages != 2 || book.Title != "Field Notes" {
		t.Fatalf("book = %+v", book)
	}

	rec := a.do(t, http.MethodGet, "/api/books/"+book.ID+"/pages/2", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("page status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("content type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "Herons at dusk") {
		t.Errorf("page 2 body:\n%s", rec.Body.String())
	}

	detail := decode[map[string]any](t, a.do(t, http.MethodGet, "/api/books/"+book.ID, nil))
	manifest, _ := detail["manifest"].(map[string]any)
	if manifest["total"] != float64(2) || detail["title"] != "Field Notes" {
		t.Errorf("detail = %v", detail)
	}
}

func TestGetPageFallbacks(t *testing.T) {
	a := newTestAPI(t)
	book := a.seedBook(t)

	tests := []struct {
		name   string
		path   string
		status int
		html   bool
	}{
		{"missing page of known book", "/api/books/" + book.ID + "/pages/9", http.StatusOK, true},
		{"unknown book", "/api/books/nope/pages/1", http.StatusNotFound, true},
		{"bad page number", "/api/books/" + book.ID + "/pages/zero", http.StatusBadRequest, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := a.do(t, http.MethodGet, tt.path, nil)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			isHTML := strings.HasPrefix(rec.Header().Get("Content-Type"), "text/html")
			if isHTML != tt.html {
				t.Errorf("content type = %q", rec.Header().Get("Content-Type"))
			}
		})
	}
}

func TestUploadErrors(t *testing.T) {
	a := newTestAPI(t)
	tests := []struct {
		name     string
		filename string
		status   int
		code     string
	}{
		{"unsupported", "slides.pptx", http.StatusBadRequest, "unsupported_format"},
		{"conversion", "book.epub", http.StatusUnprocessableEntity, "conversion_failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := a.upload(t, tt.filename, "PK\x03\x04 payload", "")
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.status, rec.Body.String())
			}
			if code := errorCode(t, rec); code != tt.code {
				t.Errorf("code = %q, want %q", code, tt.code)
			}
		})
	}
}

func TestSaveWebsiteErrors(t *testing.T) {
	a := newTestAPI(t)
	upstream := httptest.NewServer(http.NotFoundHandler())
	defer upstream.Close()

	rec := a.do(t, http.MethodPost, "/api/save-website", map[string]string{"url": upstream.URL})
	if rec.Code != http.StatusBadGateway || errorCode(t, rec) != "fetch_failed" {
		t.Errorf("fetch failure: %d %s", rec.Code, rec.Body.String())
	}
	rec = a.do(t, http.MethodPost, "/api/save-website", map[string]string{"title": "x"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing url: %d", rec.Code)
	}
	rec = a.do(t, http.MethodPost, "/api/crawl-website", "{not json")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad json: %d", rec.Code)
	}
}

func TestTranslationRoundTrip(t *testing.T) {
	a := newTestAPI(t)
	book := a.seedBook(t)
	pagePath := "/api/books/" + book.ID + "/pages/1"
	original := a.do(t, http.MethodGet, pagePath, nil).Body.String()

	rec := a.do(t, http.MethodPut, pagePath+"/translation", map[string]string{"html": "<p>Feldnotizen</p>"})
	if rec.Code != http.StatusOK {
		t.Fatalf("save translation = %d: %s", rec.Code, rec.Body.String())
	}
	rec = a.do(t, http.MethodPut, pagePath, map[string]string{"html": "<p>second edit</p>"})
	if rec.Code != http.StatusOK {
		t.Fatalf("save edit = %d", rec.Code)
	}
	if got := a.do(t, http.MethodGet, pagePath, nil).Body.String(); got != "<p>second edit</p>" {
		t.Errorf("page after edit = %q", got)
	}
	backup := decode[map[string]bool](t, a.do(t, http.MethodGet, pagePath+"/backup", nil))
	if !backup["has_backup"] {
		t.Error("backup not reported")
	}

	if rec := a.do(t, http.MethodPost, pagePath+"/restore", nil); rec.Code != http.StatusOK {
		t.Fatalf("restore = %d", rec.Code)
	}
	if got := a.do(t, http.MethodGet, pagePath, nil).Body.String(); got != original {
		t.Error("restored page differs from original")
	}
	rec = a.do(t, http.MethodPost, pagePath+"/restore", nil)
	if rec.Code != http.StatusNotFound || errorCode(t, rec) != "no_backup" {
		t.Errorf("second restore = %d %s", rec.Code, rec.Body.String())
	}

	a.do(t, http.MethodPut, "/api/books/"+book.ID+"/pages/2/translation", map[string]string{"html": "<p>x</p>"})
	restored := decode[map[string][]int](t, a.do(t, http.MethodPost, "/api/books/"+book.ID+"/restore-all", nil))
	if len(restored["restored"]) != 1 || restored["restored"][0] != 2 {
		t.Errorf("restore-all = %v", restored)
	}
}

func TestAllPagesWithoutManifest(t *testing.T) {
	a := newTestAPI(t)
	rec := a.do(t, http.MethodGet, "/api/books/unknown/all-pages", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body := strings.TrimSpace(rec.Body.String()); body != `{"pages":[],"total":0}` {
		t.Errorf("body = %s", body)
	}
	rec = a.do(t, http.MethodGet, "/api/books/unknown/toc", nil)
	got := decode[map[string]any](t, rec)
	if entries, _ := got["entries"].([]any); rec.Code != http.StatusOK || len(entries) != 0 {
		t.Errorf("toc = %d %v", rec.Code, got)
	}
}

func TestSearchAndExport(t *testing.T) {
	a := newTestAPI(t)
	book := a.seedBook(t)

	res := decode[map[string]any](t, a.do(t, http.MethodGet, "/api/books/"+book.ID+"/search?q=heron", nil))
	hits, _ := res["hits"].([]any)
	if len(hits) != 2 {
		t.Errorf("hits = %v", res)
	}
	if rec := a.do(t, http.MethodGet, "/api/books/"+book.ID+"/search", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("empty query = %d", rec.Code)
	}

	rec := a.do(t, http.MethodGet, "/api/books/"+book.ID+"/export.md", nil)
	if rec.Code != http.StatusOK || !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/markdown") {
		t.Fatalf("export = %d %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	if !strings.Contains(rec.Body.String(), "Second Chapter") {
		t.Errorf("export body:\n%s", rec.Body.String())
	}
}

func TestClips(t *testing.T) {
	a := newTestAPI(t)
	book := a.seedBook(t)
	img := []byte("\x89PNG\r\n\x1a\nfake image bytes")
	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(img)

	bad := []map[string]any{
		{"page": 1, "image": dataURL, "rect": map[string]float64{"x": 0.5, "y": 0, "w": 0.6, "h": 0.1}},
		{"page": 1, "image": "data:image/gif;base64,R0lG"},
		{"page": 0, "image": dataURL},
		{"page": 1, "image": "not a data url"},
	}
	for i, body := range bad {
		if rec := a.do(t, http.MethodPost, "/api/books/"+book.ID+"/clips", body); rec.Code != http.StatusBadRequest {
			t.Errorf("bad clip %d: status %d", i, rec.Code)
		}
	}

	rec := a.do(t, http.MethodPost, "/api/books/"+book.ID+"/clips", map[string]any{
		"page": 2, "image": dataURL, "note": "figure",
		"rect": map[string]float64{"x": 0.1, "y": 0.1, "w": 0.5, "h": 0.5},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create clip = %d: %s", rec.Code, rec.Body.String())
	}
	clip := decode[repository.Clip](t, rec)

	rec = a.do(t, http.MethodGet, "/api/clips/"+clip.ID+"/image", nil)
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("image = %d %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	if !bytes.Equal(rec.Body.Bytes(), img) {
		t.Error("clip image bytes differ")
	}

	rec = a.do(t, http.MethodPatch, "/api/clips/"+clip.ID, map[string]string{"note": "updated"})
	if got := decode[repository.Clip](t, rec); got.Note != "updated" {
		t.Errorf("patched clip = %+v", got)
	}

	if rec := a.do(t, http.MethodDelete, "/api/clips/"+clip.ID, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", rec.Code)
	}
	if rec := a.do(t, http.MethodGet, "/api/clips/"+clip.ID+"/image", nil); rec.Code != http.StatusNotFound {
		t.Errorf("image after delete = %d", rec.Code)
	}
}

func TestBookmarksNotesAndCascade(t *testing.T) {
	a := newTestAPI(t)
	book := a.seedBook(t)
	base := "/api/books/" + book.ID

	if rec := a.do(t, http.MethodPost, base+"/bookmarks", map[string]any{"page": 2, "note": "resume"}); rec.Code != http.StatusCreated {
		t.Fatalf("bookmark = %d", rec.Code)
	}
	rec := a.do(t, http.MethodPost, base+"/notes", map[string]any{"page": 1, "selected_text": "marsh", "body": "where?"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("note = %d", rec.Code)
	}
	note := decode[repository.Note](t, rec)
	rec = a.do(t, http.MethodPut, "/api/notes/"+note.ID, map[string]string{"color": "green"})
	if got := decode[repository.Note](t, rec); got.Color != "green" || got.Body != "where?" {
		t.Errorf("updated note = %+v", got)
	}
	if rec := a.do(t, http.MethodPut, base+"/progress", map[string]int{"page": 2}); rec.Code != http.StatusOK {
		t.Fatalf("progress = %d", rec.Code)
	}
	if rec := a.do(t, http.MethodPut, base+"/progress", map[string]int{"page": 3}); rec.Code != http.StatusBadRequest {
		t.Errorf("progress past end = %d", rec.Code)
	}
	if rec := a.do(t, http.MethodPost, "/api/books/nope/bookmarks", map[string]any{"page": 1}); rec.Code != http.StatusNotFound {
		t.Errorf("bookmark on unknown book = %d", rec.Code)
	}

	if rec := a.do(t, http.MethodDelete, base, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("delete book = %d", rec.Code)
	}
	if rec := a.do(t, http.MethodGet, base, nil); rec.Code != http.StatusNotFound {
		t.Errorf("get deleted book = %d", rec.Code)
	}
	ctx := context.Background()
	if bms, _ := a.store.ListBookmarks(ctx, book.ID); len(bms) != 0 {
		t.Errorf("bookmarks survived: %v", bms)
	}
	if notes, _ := a.store.ListNotes(ctx, book.ID); len(notes) != 0 {
		t.Errorf("notes survived: %v", notes)
	}
	if a.lib.Exists(book.ID) {
		t.Error("book dir survived")
	}
}

func TestTagsAndSettings(t *testing.T) {
	a := newTestAPI(t)
	book := a.seedBook(t)

	rec := a.do(t, http.MethodPost, "/api/tags", map[string]string{"name": "nature"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create tag = %d", rec.Code)
	}
	tag := decode[repository.Tag](t, rec)
	if rec := a.do(t, http.MethodPost, "/api/tags", map[string]string{"name": "nature"}); rec.Code != http.StatusConflict {
		t.Errorf("duplicate tag = %d", rec.Code)
	}
	if rec := a.do(t, http.MethodPut, "/api/books/"+book.ID+"/tags/"+tag.ID, nil); rec.Code != http.StatusOK {
		t.Fatalf("tag book = %d", rec.Code)
	}
	books := decode[[]repository.Book](t, a.do(t, http.MethodGet, "/api/books?tag=nature", nil))
	if len(books) != 1 || books[0].ID != book.ID {
		t.Errorf("tagged books = %+v", books)
	}

	rec = a.do(t, http.MethodPut, "/api/settings/ai", map[string]string{"provider": "openai", "api_key": "sk-abcdefgh1234"})
	if rec.Code != http.StatusOK {
		t.Fatalf("save settings = %d", rec.Code)
	}
	got := decode[repository.AISettings](t, a.do(t, http.MethodGet, "/api/settings/ai", nil))
	if got.APIKey != "***********1234" || got.Provider != "openai" {
		t.Errorf("settings = %+v", got)
	}

	a.do(t, http.MethodPut, "/api/settings/ai", map[string]string{"provider": "openai", "model": "m", "api_key": got.APIKey})
	stored, _ := a.store.GetAISettings(context.Background())
	if stored.APIKey != "sk-abcdefgh1234" || stored.Model != "m" {
		t.Errorf("masked key overwrote stored key: %+v", stored)
	}
}

func TestHealthMetricsAndRequestID(t *testing.T) {
	a := newTestAPI(t)
	rec := a.do(t, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK || rec.Header().Get("X-Request-ID") == "" {
		t.Errorf("health = %d, request id %q", rec.Code, rec.Header().Get("X-Request-ID"))
	}
	rec = a.do(t, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "folio_http_requests_total") {
		t.Errorf("metrics = %d", rec.Code)
	}
}

func TestMaskKey(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"short", "*****"},
		{"sk-abcdefgh1234", "***********1234"},
	}
	for _, tt := range tests {
		if got := maskKey(tt.in); got != tt.want {
			t.Errorf("maskKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPanicRecovery(t *testing.T) {
	srv := NewServer(config.Default().Server, nil, nil, nil, zap.NewNop())

	tests := []struct {
		name     string
		handler  http.HandlerFunc
		wantCode int
		wantBody string
	}{
		{
			name:     "before write",
			handler:  func(w http.ResponseWriter, r *http.Request) { panic("boom") },
			wantCode: http.StatusInternalServerError,
			wantBody: `{"error":{"code":"internal","message":"internal server error"}}`,
		},
		{
			name: "after partial write",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("<p>partial"))
				panic("boom")
			},
			wantCode: http.StatusOK,
			wantBody: "<p>partial",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			srv.withRequestContext(tt.handler).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/boom", nil))
			if rr.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantCode)
			}
			if got := strings.TrimSpace(rr.Body.String()); got != tt.wantBody {
				t.Errorf("body = %q, want %q", got, tt.wantBody)
			}
		})
	}
}
