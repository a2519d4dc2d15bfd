package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"folio/extractor"
	"folio/library"
	"folio/pkg/sqlite"
)

type fixture struct {
	svc   *Service
	lib   *library.Library
	store *sqlite.Store
	cfg   *extractor.Config
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	lib, err := library.New(t.TempDir(), zap.NewNop())
	if err != nil {
		t.Fatalf("library.New: %v", err)
	}
	store, err := sqlite.Open(":memory:")
	if err != nil {
		t.Fatalf("sqlite.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	cfg := extractor.DefaultConfig()
	cfg.PandocPath = filepath.Join(t.TempDir(), "no-such-pandoc")
	ext := extractor.New(cfg, nil, zap.NewNop())
	return &fixture{
		svc:   New(lib, ext, store, 0, zap.NewNop()),
		lib:   lib,
		store: store,
		cfg:   cfg,
	}
}

func (f *fixture) bookDirs(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(f.lib.Root())
	if err != nil {
		t.Fatalf("read library root: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestUploadPDFStoredUnmodified(t *testing.T) {
	f := newFixture(t)
	data := []byte("%PDF-1.4\nnot really a pdf body\n%%EOF\n")

	book, err := f.svc.Upload(context.Background(), "paper.pdf", bytes.NewReader(data), "")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if book.SourceType != "pdf" || book.TotalPages != 1 || book.Title != "paper" {
		t.Errorf("book = %+v", book)
	}

	path, _ := f.lib.PDFPath(book.ID)
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read pdf: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Error("stored pdf differs from upload")
	}
	m, _ := f.lib.ReadManifest(book.ID)
	if m.Total != 1 || len(m.Pages) != 1 || m.Pages[0] != library.PDFFile {
		t.Errorf("manifest = %+v", m)
	}
	md, err := f.lib.ReadMetadata(book.ID)
	if err != nil || md.SourceType != "pdf" {
		t.Errorf("metadata = %+v, %v", md, err)
	}
}

// minimalPDF builds a PDF with blank pages, an Info title and a correct xref table.
func minimalPDF(title string, pages int) []byte {
	var buf bytes.Buffer
	var offsets []int
	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n")
	kids := make([]string, pages)
	for i := range kids {
		kids[i] = fmt.Sprintf("%d 0 R", i+4)
	}
	obj("<< /Type /Catalog /Pages 2 0 R >>")
	obj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), pages))
	obj(fmt.Sprintf("<< /Title (%s) >>", title))
	for range pages {
		obj("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>")
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(offsets)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R /Info 3 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes()
}

func TestUploadPDFRecordsSourceMetadata(t *testing.T) {
	f := newFixture(t)
	data := minimalPDF("Tide Tables", 3)

	book, err := f.svc.Upload(context.Background(), "tides.pdf", bytes.NewReader(data), "")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if book.Title != "Tide Tables" || book.TotalPages != 1 {
		t.Errorf("book = %+v", book)
	}
	md, err := f.lib.ReadMetadata(book.ID)
	if err != nil {
		t.Fatalf("ReadMetadata: %v", err)
	}
	if md.SourcePages != 3 || md.Title != "Tide Tables" {
		t.Errorf("metadata = %+v, want 3 source pages titled Tide Tables", md)
	}
}

func TestUploadSplitsDocuments(t *testing.T) {
	tests := []struct {
		name      string
		filename  string
		content   string
		title     string
		wantTitle string
		wantType  string
		wantPages int
		wantLang  string
	}{
		{
			name:      "markdown",
			filename:  "notes.md",
			content:   "# Field Notes\n\nFirst entry about the marsh.\n\n# Second Chapter\n\nHerons at dusk.\n",
			wantTitle: "Field Notes",
			wantType:  "markdown",
			wantPages: 2,
		},
		{
			name:      "html",
			filename:  "guide.html",
			content:   `<html lang="de"><head><title>Guide</title></head><body><h2>Eins</h2><p>erster Teil</p><h2>Zwei</h2><p>zweiter Teil</p></body></html>`,
			wantTitle: "Guide",
			wantType:  "html",
			wantPages: 2,
			wantLang:  "de",
		},
		{
			name:      "title override",
			filename:  "plain.markdown",
			content:   "Just a paragraph without headings.\n",
			title:     "  My Title ",
			wantTitle: "My Title",
			wantType:  "markdown",
			wantPages: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			book, err := f.svc.Upload(context.Background(), tt.filename, strings.NewReader(tt.content), tt.title)
			if err != nil {
				t.Fatalf("Upload: %v", err)
			}
			if book.Title != tt.wantTitle {
				t.Errorf("title = %q, want %q", book.Title, tt.wantTitle)
			}
			if book.SourceType != tt.wantType {
				t.Errorf("source type = %q, want %q", book.SourceType, tt.wantType)
			}
			if book.TotalPages != tt.wantPages {
				t.Errorf("pages = %d, want %d", book.TotalPages, tt.wantPages)
			}
			if book.Language != tt.wantLang {
				t.Errorf("language = %q, want %q", book.Language, tt.wantLang)
			}

			stored, err := f.store.GetBook(context.Background(), book.ID)
			if err != nil {
				t.Fatalf("GetBook: %v", err)
			}
			if stored.TotalPages != tt.wantPages {
				t.Errorf("stored pages = %d", stored.TotalPages)
			}
			for n := 1; n <= tt.wantPages; n++ {
				if _, err := f.lib.ReadPage(book.ID, n); err != nil {
					t.Errorf("page %d: %v", n, err)
				}
			}
		})
	}
}

func TestUploadRejects(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		content  string
		want     error
	}{
		{"unsupported extension", "report.docx", "PK...", extractor.ErrUnsupportedFormat},
		{"no extension", "README", "text", extractor.ErrUnsupportedFormat},
		{"empty", "empty.md", "  \n", ErrEmptyUpload},
		{"pandoc missing", "book.epub", "PK\x03\x04", extractor.ErrConversion},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.svc.Upload(context.Background(), tt.filename, strings.NewReader(tt.content), "")
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if dirs := f.bookDirs(t); len(dirs) != 0 {
				t.Errorf("book dirs left behind: %v", dirs)
			}
			if books, _ := f.store.ListBooks(context.Background(), ""); len(books) != 0 {
				t.Errorf("book rows left behind: %v", books)
			}
		})
	}
}

func TestSaveWebsite(t *testing.T) {
	body := strings.Repeat("Tide tables and notes on the estuary are collected here for reference. ", 5)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<html lang="en"><head><title>Estuary Log</title></head><body>
			<nav>menu</nav>
			<article><h1>Estuary Log</h1><p>` + body + `</p><h2>Spring</h2><p>` + body + `</p></article>
			</body></html>`))
	}))
	defer srv.Close()

	f := newFixture(t)
	book, err := f.svc.SaveWebsite(context.Background(), srv.URL+"/log", "")
	if err != nil {
		t.Fatalf("SaveWebsite: %v", err)
	}
	if book.SourceType != "website" || book.SourceURL != srv.URL+"/log" {
		t.Errorf("book = %+v", book)
	}
	if book.TotalPages != 2 {
		t.Errorf("pages = %d, want 2", book.TotalPages)
	}
	page, err := f.lib.ReadPage(book.ID, 2)
	if err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	if !strings.Contains(string(page), "## Spring") {
		t.Errorf("web heading not prefixed:\n%s", page)
	}
}

func TestSaveWebsiteFetchFailureCleansUp(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	f := newFixture(t)
	_, err := f.svc.SaveWebsite(context.Background(), srv.URL, "")
	if !errors.Is(err, extractor.ErrFetch) {
		t.Fatalf("err = %v, want ErrFetch", err)
	}
	if dirs := f.bookDirs(t); len(dirs) != 0 {
		t.Errorf("book dirs left behind: %v", dirs)
	}
}

func TestDeleteBook(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	book, err := f.svc.Upload(ctx, "a.md", strings.NewReader("# A\n\ntext\n"), "")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if err := f.svc.DeleteBook(ctx, book.ID); err != nil {
		t.Fatalf("DeleteBook: %v", err)
	}
	if f.lib.Exists(book.ID) {
		t.Error("book dir still exists")
	}
	if _, err := f.store.GetBook(ctx, book.ID); err == nil {
		t.Error("book row still exists")
	}
	if err := f.svc.DeleteBook(ctx, book.ID); err == nil {
		t.Error("deleting twice should fail")
	}
}
