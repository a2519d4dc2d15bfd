// Package ingest turns uploads and web captures into stored books.
package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"folio/extractor"
	"folio/library"
	"folio/pkg/metrics"
	"folio/repository"
	"folio/splitter"
)

var ErrEmptyUpload = errors.New("empty upload")

const sourceFile = ".source.epub"

type Service struct {
	lib              *library.Library
	ext              *extractor.Extractor
	books            repository.BookRepo
	minSectionLength int
	logger           *zap.Logger
}

func New(lib *library.Library, ext *extractor.Extractor, books repository.BookRepo, minSectionLength int, logger *zap.Logger) *Service {
	if minSectionLength <= 0 {
		minSectionLength = splitter.DefaultMinSectionLength
	}
	return &Service{
		lib:              lib,
		ext:              ext,
		books:            books,
		minSectionLength: minSectionLength,
		logger:           logger,
	}
}

// extracted is what one intake path hands back for persisting. pdf is set
// only for PDF books, split for everything else.
type extracted struct {
	doc   *extractor.Document
	split *splitter.Document
	pdf   []byte
}

// Upload imports a file. The format is picked from the file extension;
// title overrides whatever title the content carries.
func (s *Service) Upload(ctx context.Context, filename string, r io.Reader, title string) (*repository.Book, error) {
	format, err := extractor.DetectFormat(filename)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", err, filepath.Ext(filename))
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyUpload
	}
	fallback := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))

	return s.create(ctx, string(format), title, fallback, func(ctx context.Context, dir string) (*extracted, error) {
		switch format {
		case extractor.FormatPDF:
			return &extracted{doc: s.ext.InspectPDF(data), pdf: data}, nil
		case extractor.FormatEPUB:
			path := filepath.Join(dir, sourceFile)
			if err := os.WriteFile(path, data, 0644); err != nil {
				return nil, fmt.Errorf("stage epub: %w", err)
			}
			defer os.Remove(path)
			doc, err := s.ext.ConvertEPUB(ctx, path, dir)
			if err != nil {
				return nil, err
			}
			return splitDocument(doc)
		case extractor.FormatMarkdown:
			doc, err := s.ext.ConvertMarkdown(data, fallback)
			if err != nil {
				return nil, err
			}
			return splitDocument(doc)
		default:
			doc, err := s.ext.ExtractHTML(data)
			if err != nil {
				return nil, err
			}
			return splitDocument(doc)
		}
	})
}

// SaveWebsite captures a single web page as a book.
func (s *Service) SaveWebsite(ctx context.Context, rawURL, title string) (*repository.Book, error) {
	return s.create(ctx, string(extractor.FormatWebsite), title, rawURL, func(ctx context.Context, dir string) (*extracted, error) {
		doc, err := s.ext.SaveWebsite(ctx, rawURL, dir)
		if err != nil {
			return nil, err
		}
		return s.splitWeb(doc)
	})
}

// CrawlWebsite captures up to maxPages pages of a site as one book. A
// non-positive maxPages uses the configured limit.
func (s *Service) CrawlWebsite(ctx context.Context, rawURL string, maxPages int, title string) (*repository.Book, error) {
	return s.create(ctx, string(extractor.FormatWebsite), title, rawURL, func(ctx context.Context, dir string) (*extracted, error) {
		doc, err := s.ext.CrawlWebsite(ctx, rawURL, maxPages, dir)
		if err != nil {
			return nil, err
		}
		return s.splitWeb(doc)
	})
}

func splitDocument(doc *extractor.Document) (*extracted, error) {
	sd, err := splitter.Split(doc.HTML)
	if err != nil {
		return nil, fmt.Errorf("%w: split: %v", extractor.ErrConversion, err)
	}
	return &extracted{doc: doc, split: sd}, nil
}

func (s *Service) splitWeb(doc *extractor.Document) (*extracted, error) {
	sd, err := splitter.SplitWeb(doc.HTML, s.minSectionLength)
	if err != nil {
		return nil, fmt.Errorf("%w: split: %v", extractor.ErrConversion, err)
	}
	return &extracted{doc: doc, split: sd}, nil
}

// create allocates a book, runs produce inside its directory and persists
// the result. Any failure removes the directory again.
func (s *Service) create(ctx context.Context, sourceType, title, fallback string,
	produce func(ctx context.Context, dir string) (*extracted, error)) (book *repository.Book, err error) {

	id := uuid.NewString()
	logger := s.logger.With(zap.String("book_id", id), zap.String("source_type", sourceType))

	dir, err := s.lib.CreateBook(id)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err == nil {
			metrics.IngestTotal.WithLabelValues(sourceType, "ok").Inc()
			return
		}
		metrics.IngestTotal.WithLabelValues(sourceType, "error").Inc()
		logger.Warn("import failed", zap.Error(err))
		if rmErr := s.lib.RemoveBook(id); rmErr != nil {
			logger.Error("failed to clean up book dir", zap.Error(rmErr))
		}
	}()

	logger.Info("import start")
	ex, err := produce(ctx, dir)
	if err != nil {
		return nil, err
	}

	var manifest *library.Manifest
	strategy := ""
	if ex.pdf != nil {
		manifest, err = s.lib.WritePDF(id, ex.pdf)
	} else {
		if ex.split.Title == "" {
			ex.split.Title = ex.doc.Title
		}
		if ex.split.Lang == "" {
			ex.split.Lang = ex.doc.Language
		}
		strategy = ex.split.Strategy
		manifest, err = s.lib.WriteSplit(id, ex.split)
		if err == nil {
			metrics.PagesWritten.Add(float64(manifest.Total))
		}
	}
	if err != nil {
		return nil, err
	}

	book = &repository.Book{
		ID:         id,
		Title:      resolveTitle(title, ex, fallback),
		SourceType: sourceType,
		TotalPages: manifest.Total,
		Language:   ex.doc.Language,
		SourceURL:  ex.doc.SourceURL,
		Author:     ex.doc.Author,
	}
	if ex.split != nil && book.Language == "" {
		book.Language = ex.split.Lang
	}
	if err = s.books.CreateBook(ctx, book); err != nil {
		return nil, err
	}

	err = s.lib.WriteMetadata(id, &library.Metadata{
		ID:          id,
		Title:       book.Title,
		SourceType:  sourceType,
		Language:    book.Language,
		Author:      book.Author,
		SourceURL:   book.SourceURL,
		TotalPages:  book.TotalPages,
		SourcePages: ex.doc.PageCount,
		Strategy:    strategy,
		CreatedAt:   book.CreatedAt,
	})
	if err != nil {
		if delErr := s.books.DeleteBook(ctx, id); delErr != nil {
			logger.Error("failed to roll back book row", zap.Error(delErr))
		}
		return nil, err
	}

	logger.Info("import done",
		zap.String("title", book.Title),
		zap.Int("pages", book.TotalPages),
		zap.Int("images", len(ex.doc.Images)),
	)
	return book, nil
}

func resolveTitle(title string, ex *extracted, fallback string) string {
	if t := strings.TrimSpace(title); t != "" {
		return t
	}
	if t := strings.TrimSpace(ex.doc.Title); t != "" {
		return t
	}
	if ex.split != nil {
		if t := strings.TrimSpace(ex.split.Title); t != "" {
			return t
		}
	}
	if fallback == "" {
		return "Untitled"
	}
	return fallback
}

// DeleteBook removes the book row with everything attached to it, then its
// directory tree.
func (s *Service) DeleteBook(ctx context.Context, id string) error {
	if err := s.books.DeleteBook(ctx, id); err != nil {
		return err
	}
	if err := s.lib.RemoveBook(id); err != nil {
		return err
	}
	s.logger.Info("book deleted", zap.String("book_id", id))
	return nil
}
