package library

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"go.uber.org/zap"

	"folio/splitter"
)

const bookID = "0b7f3c1e-5d2a-4a8e-9f11-2c3d4e5f6a7b"

func newLibrary(t *testing.T) *Library {
	t.Helper()
	lib, err := New(t.TempDir(), zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return lib
}

func writeBook(t *testing.T, lib *Library, body string) *Manifest {
	t.Helper()
	doc, err := splitter.Split(`<html><head><title>T</title></head><body>` + body + `</body></html>`)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	m, err := lib.WriteSplit(bookID, doc)
	if err != nil {
		t.Fatalf("WriteSplit: %v", err)
	}
	return m
}

const threeChapters = `<nav id="TOC"><ul><li><a href="#c2">Two</a></li></ul></nav>` +
	`<h1 id="c1">Chapter One</h1><p>The whale swims in the open ocean.</p>` +
	`<h1 id="c2">Chapter Two</h1><h2 id="s">Harbor</h2><p>Ships were sailing to the harbor.</p>` +
	`<h1 id="c3">Chapter Three</h1><p>Nothing else happens.</p>`

func TestWriteSplitLayout(t *testing.T) {
	lib := newLibrary(t)
	m := writeBook(t, lib, threeChapters)

	want := &Manifest{Total: 3, Pages: []string{"page-1.html", "page-2.html", "page-3.html"}}
	if !reflect.DeepEqual(m, want) {
		t.Fatalf("manifest = %+v", m)
	}
	got, err := lib.ReadManifest(bookID)
	if err != nil || !reflect.DeepEqual(got, want) {
		t.Fatalf("ReadManifest = %+v, %v", got, err)
	}
	toc, err := lib.TOCHTML(bookID)
	if err != nil {
		t.Fatalf("TOCHTML: %v", err)
	}
	if !strings.Contains(toc, "pages/page-2.html#c2") {
		t.Errorf("toc.html = %s", toc)
	}
}

func TestMissingManifestDegrades(t *testing.T) {
	lib := newLibrary(t)
	total, pages, err := lib.AllPages("nothing-here")
	if err != nil {
		t.Fatalf("AllPages: %v", err)
	}
	if total != 0 || len(pages) != 0 {
		t.Errorf("got total=%d pages=%d", total, len(pages))
	}
	entries, err := lib.TOC("nothing-here")
	if err != nil || len(entries) != 0 {
		t.Errorf("TOC = %v, %v", entries, err)
	}
}

func TestSaveAndRestoreIsByteExact(t *testing.T) {
	lib := newLibrary(t)
	writeBook(t, lib, threeChapters)

	original, err := lib.ReadPage(bookID, 2)
	if err != nil {
		t.Fatalf("ReadPage: %v", err)
	}

	if err := lib.SavePage(bookID, 2, "<p>Deuxième chapitre</p>", KindTranslation); err != nil {
		t.Fatalf("SavePage: %v", err)
	}
	if err := lib.SavePage(bookID, 2, "<p>second translation</p>", KindTranslation); err != nil {
		t.Fatalf("SavePage again: %v", err)
	}
	has, err := lib.HasBackup(bookID, 2)
	if err != nil || !has {
		t.Fatalf("HasBackup = %v, %v", has, err)
	}

	if err := lib.RestorePage(bookID, 2); err != nil {
		t.Fatalf("RestorePage: %v", err)
	}
	restored, err := lib.ReadPage(bookID, 2)
	if err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	if !bytes.Equal(original, restored) {
		t.Fatalf("restored page differs from original")
	}
	if has, _ := lib.HasBackup(bookID, 2); has {
		t.Error("backup should be removed after restore")
	}
	if err := lib.RestorePage(bookID, 2); !errors.Is(err, ErrNoBackup) {
		t.Errorf("second restore err = %v, want ErrNoBackup", err)
	}
}

func TestSavePageRejects(t *testing.T) {
	lib := newLibrary(t)
	writeBook(t, lib, threeChapters)

	if err := lib.SavePage(bookID, 9, "x", KindEdit); !errors.Is(err, ErrPageNotFound) {
		t.Errorf("missing page err = %v", err)
	}
	if err := lib.SavePage(bookID, 0, "x", KindEdit); !errors.Is(err, ErrInvalidPage) {
		t.Errorf("page 0 err = %v", err)
	}
	if err := lib.SavePage(bookID, 1, "x", Kind("rewrite")); !errors.Is(err, ErrInvalidKind) {
		t.Errorf("bad kind err = %v", err)
	}
	if err := lib.SavePage("../escape", 1, "x", KindEdit); !errors.Is(err, ErrInvalidID) {
		t.Errorf("bad id err = %v", err)
	}
}

func TestRestoreAll(t *testing.T) {
	lib := newLibrary(t)
	writeBook(t, lib, threeChapters)

	for _, n := range []int{3, 1} {
		if err := lib.SavePage(bookID, n, "<p>edited</p>", KindEdit); err != nil {
			t.Fatalf("SavePage %d: %v", n, err)
		}
	}
	got, err := lib.RestoreAll(bookID)
	if err != nil {
		t.Fatalf("RestoreAll: %v", err)
	}
	if !reflect.DeepEqual(got, []int{1, 3}) {
		t.Errorf("restored = %v", got)
	}
	page, _ := lib.ReadPage(bookID, 3)
	if strings.Contains(string(page), "edited") {
		t.Error("page 3 still edited")
	}
}

func TestTOCScan(t *testing.T) {
	lib := newLibrary(t)
	writeBook(t, lib, threeChapters)

	entries, err := lib.TOC(bookID)
	if err != nil {
		t.Fatalf("TOC: %v", err)
	}
	want := []TOCEntry{
		{Page: 1, Level: 1, Title: "Chapter One", Anchor: "c1"},
		{Page: 2, Level: 1, Title: "Chapter Two", Anchor: "c2"},
		{Page: 2, Level: 2, Title: "Harbor", Anchor: "s"},
		{Page: 3, Level: 1, Title: "Chapter Three", Anchor: "c3"},
	}
	if !reflect.DeepEqual(entries, want) {
		t.Errorf("entries = %+v", entries)
	}
}

func TestSearchStems(t *testing.T) {
	lib := newLibrary(t)
	writeBook(t, lib, threeChapters)

	tests := []struct {
		query string
		pages []int
	}{
		{"whales", []int{1}},
		{"sail ship", []int{2}},
		{"whale harbor", nil},
		{"ships", []int{2}},
		{"harbor", []int{2}},
		{"chapter", []int{1, 2, 3}},
		{"", nil},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			hits, err := lib.Search(bookID, tt.query)
			if err != nil {
				t.Fatalf("Search: %v", err)
			}
			var pages []int
			for _, h := range hits {
				pages = append(pages, h.Page)
				if h.Snippet == "" {
					t.Errorf("page %d: empty snippet", h.Page)
				}
			}
			if !reflect.DeepEqual(pages, tt.pages) {
				t.Errorf("pages = %v, want %v", pages, tt.pages)
			}
		})
	}
}

func TestSearchSnippetKeepsWordBoundaries(t *testing.T) {
	lib := newLibrary(t)
	writeBook(t, lib, threeChapters)

	hits, err := lib.Search(bookID, "ship")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].Page != 2 {
		t.Fatalf("hits = %+v, want page 2", hits)
	}
	if !strings.Contains(hits[0].Snippet, "Harbor Ships were sailing") {
		t.Errorf("snippet = %q", hits[0].Snippet)
	}
}

func TestExportMarkdown(t *testing.T) {
	lib := newLibrary(t)
	writeBook(t, lib, threeChapters)

	md, err := lib.ExportMarkdown(bookID)
	if err != nil {
		t.Fatalf("ExportMarkdown: %v", err)
	}
	for _, want := range []string{"# Chapter One", "## Harbor", "---"} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}
	if strings.Contains(md, "max-width") {
		t.Error("page css leaked into markdown")
	}
}

func TestWritePDF(t *testing.T) {
	lib := newLibrary(t)
	data := []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\nbinary")
	m, err := lib.WritePDF(bookID, data)
	if err != nil {
		t.Fatalf("WritePDF: %v", err)
	}
	if m.Total != 1 || m.Pages[0] != PDFFile {
		t.Errorf("manifest = %+v", m)
	}
	path, _ := lib.PDFPath(bookID)
	got, err := os.ReadFile(path)
	if err != nil || !bytes.Equal(got, data) {
		t.Errorf("pdf not stored unmodified: %v", err)
	}
}

func TestRemoveBook(t *testing.T) {
	lib := newLibrary(t)
	writeBook(t, lib, threeChapters)
	rel, err := lib.WriteClip(bookID, "c1", "png", []byte{0x89, 'P', 'N', 'G'})
	if err != nil {
		t.Fatalf("WriteClip: %v", err)
	}
	if rel != filepath.Join("clips", "clip-c1.png") {
		t.Errorf("clip path = %q", rel)
	}
	if err := lib.RemoveBook(bookID); err != nil {
		t.Fatalf("RemoveBook: %v", err)
	}
	if lib.Exists(bookID) {
		t.Error("book dir still exists")
	}
}

func TestMediaPathStaysInside(t *testing.T) {
	lib := newLibrary(t)
	p, err := lib.MediaPath(bookID, "../../etc/passwd")
	if err != nil {
		t.Fatalf("MediaPath: %v", err)
	}
	if !strings.HasPrefix(p, filepath.Join(lib.Root(), bookID, MediaDir)) {
		t.Errorf("path escaped: %s", p)
	}
}
