// Package library owns the on-disk layout of converted books.
package library

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"folio/splitter"
)

var (
	ErrInvalidID    = errors.New("invalid book id")
	ErrInvalidPage  = errors.New("invalid page number")
	ErrPageNotFound = errors.New("page not found")
	ErrNoBackup     = errors.New("page has no backup")
	ErrInvalidKind  = errors.New("invalid overwrite kind")
)

const (
	ManifestFile = "pages.json"
	MetadataFile = "metadata.json"
	TOCFile      = "toc.html"
	PDFFile      = "document.pdf"
	PagesDir     = "pages"
	MediaDir     = "media"
	ClipsDir     = "clips"

	backupSuffix = ".orig"
)

// Manifest is the ordered list of page files of a book.
type Manifest struct {
	Total int      `json:"total"`
	Pages []string `json:"pages"`
}

// Metadata is persisted next to the pages for tooling that has no database.
type Metadata struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	SourceType  string    `json:"source_type"`
	Language    string    `json:"language,omitempty"`
	Author      string    `json:"author,omitempty"`
	SourceURL   string    `json:"source_url,omitempty"`
	TotalPages  int       `json:"total_pages"`
	SourcePages int       `json:"source_pages,omitempty"`
	Strategy    string    `json:"split_strategy,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type Library struct {
	root   string
	logger *zap.Logger
}

func New(root string, logger *zap.Logger) (*Library, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("create library root: %w", err)
	}
	return &Library{root: root, logger: logger}, nil
}

func (l *Library) Root() string { return l.root }

func validID(id string) bool {
	return id != "" && id != "." && id != ".." && !strings.ContainsAny(id, `/\`)
}

// BookDir returns the directory of a book.
func (l *Library) BookDir(id string) (string, error) {
	if !validID(id) {
		return "", ErrInvalidID
	}
	return filepath.Join(l.root, id), nil
}

// CreateBook makes an empty book directory with its pages/ subdirectory.
func (l *Library) CreateBook(id string) (string, error) {
	dir, err := l.BookDir(id)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Join(dir, PagesDir), 0755); err != nil {
		return "", fmt.Errorf("create book dir: %w", err)
	}
	return dir, nil
}

// RemoveBook deletes the book directory tree. A missing directory is not an
// error.
func (l *Library) RemoveBook(id string) error {
	dir, err := l.BookDir(id)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove book dir: %w", err)
	}
	return nil
}

func (l *Library) Exists(id string) bool {
	dir, err := l.BookDir(id)
	if err != nil {
		return false
	}
	info, err := os.Stat(dir)
	return err == nil && info.IsDir()
}

// WriteSplit persists a split document: one file per page, the manifest and
// toc.html when the source carried a navigation block.
func (l *Library) WriteSplit(id string, doc *splitter.Document) (*Manifest, error) {
	dir, err := l.CreateBook(id)
	if err != nil {
		return nil, err
	}
	pages, err := doc.Pages()
	if err != nil {
		return nil, err
	}

	m := &Manifest{Total: len(pages), Pages: make([]string, 0, len(pages))}
	for i, page := range pages {
		name := splitter.PageFile(i + 1)
		if err := os.WriteFile(filepath.Join(dir, PagesDir, name), []byte(page), 0644); err != nil {
			return nil, fmt.Errorf("write %s: %w", name, err)
		}
		m.Pages = append(m.Pages, name)
	}
	if doc.TOC != "" {
		if err := os.WriteFile(filepath.Join(dir, TOCFile), []byte(doc.TOC), 0644); err != nil {
			return nil, fmt.Errorf("write toc: %w", err)
		}
	}
	if err := l.WriteManifest(id, m); err != nil {
		return nil, err
	}

	l.logger.Info("book pages written",
		zap.String("book_id", id),
		zap.Int("pages", m.Total),
		zap.String("strategy", doc.Strategy),
	)
	return m, nil
}

// WritePDF stores the document unmodified as the single nominal page.
func (l *Library) WritePDF(id string, data []byte) (*Manifest, error) {
	dir, err := l.CreateBook(id)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(dir, PDFFile), data, 0644); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	m := &Manifest{Total: 1, Pages: []string{PDFFile}}
	if err := l.WriteManifest(id, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (l *Library) PDFPath(id string) (string, error) {
	dir, err := l.BookDir(id)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, PDFFile), nil
}

func (l *Library) WriteManifest(id string, m *Manifest) error {
	return l.writeJSON(id, ManifestFile, m)
}

// ReadManifest returns the book manifest. A missing manifest yields an empty
// one, not an error.
func (l *Library) ReadManifest(id string) (*Manifest, error) {
	m := &Manifest{Pages: []string{}}
	err := l.readJSON(id, ManifestFile, m)
	if errors.Is(err, os.ErrNotExist) {
		return &Manifest{Pages: []string{}}, nil
	}
	if err != nil {
		return nil, err
	}
	if m.Pages == nil {
		m.Pages = []string{}
	}
	return m, nil
}

func (l *Library) WriteMetadata(id string, md *Metadata) error {
	return l.writeJSON(id, MetadataFile, md)
}

func (l *Library) ReadMetadata(id string) (*Metadata, error) {
	md := &Metadata{}
	if err := l.readJSON(id, MetadataFile, md); err != nil {
		return nil, err
	}
	return md, nil
}

// TOCHTML returns the stored navigation block, or "" when the book has none.
func (l *Library) TOCHTML(id string) (string, error) {
	dir, err := l.BookDir(id)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(filepath.Join(dir, TOCFile))
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read toc: %w", err)
	}
	return string(data), nil
}

func (l *Library) writeJSON(id, name string, v any) error {
	dir, err := l.BookDir(id)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

func (l *Library) readJSON(id, name string, v any) error {
	dir, err := l.BookDir(id)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

// MediaPath resolves a file under the book's media directory. Names that
// would escape the directory are rejected.
func (l *Library) MediaPath(id, name string) (string, error) {
	dir, err := l.BookDir(id)
	if err != nil {
		return "", err
	}
	clean := filepath.Clean("/" + name)
	if clean == "/" {
		return "", os.ErrNotExist
	}
	return filepath.Join(dir, MediaDir, clean), nil
}
