package extractor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/taylorskalyo/goreader/epub"
	"go.uber.org/zap"
)

const pandocOutput = ".pandoc.html"

// ConvertEPUB runs pandoc on the EPUB at path and returns one standalone
// HTML document. Media is extracted into bookDir/media and referenced with
// book-relative paths.
func (e *Extractor) ConvertEPUB(ctx context.Context, path, bookDir string) (*Document, error) {
	doc := &Document{}
	if err := readOPF(path, doc); err != nil {
		e.logger.Warn("epub metadata unavailable", zap.String("path", path), zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.PandocTimeout)
	defer cancel()

	out := filepath.Join(bookDir, pandocOutput)
	defer os.Remove(out)

	cmd := exec.CommandContext(ctx, e.cfg.PandocPath, path,
		"-f", "epub",
		"-t", "html5",
		"--standalone",
		"--toc",
		"--section-divs",
		"--extract-media="+filepath.Join(bookDir, "media"),
		"-o", out,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	e.logger.Info("pandoc start", zap.String("path", path), zap.String("pandoc", e.cfg.PandocPath))
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			msg = "timed out after " + e.cfg.PandocTimeout.String()
		}
		e.logger.Error("pandoc failed", zap.Error(err), zap.String("stderr", msg))
		return nil, fmt.Errorf("%w: pandoc: %v: %s", ErrConversion, err, msg)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("%w: read pandoc output: %v", ErrConversion, err)
	}
	doc.HTML = relativizeMedia(string(data), bookDir)

	if doc.Title == "" {
		doc.Title = headTitle(doc.HTML)
	}
	return doc, nil
}

// readOPF fills title, author and language from the package document.
func readOPF(path string, doc *Document) error {
	rc, err := epub.OpenReader(path)
	if err != nil {
		return fmt.Errorf("open epub: %w", err)
	}
	defer rc.Close()

	if len(rc.Rootfiles) == 0 {
		return errors.New("no rootfiles found in epub")
	}
	book := rc.Rootfiles[0]
	doc.Title = strings.TrimSpace(book.Title)
	doc.Author = strings.TrimSpace(book.Creator)
	doc.Language = strings.TrimSpace(book.Language)
	return nil
}

// relativizeMedia turns the media paths pandoc writes (prefixed with the
// directory passed to --extract-media) into paths relative to the book.
func relativizeMedia(s, bookDir string) string {
	var prefixes []string
	if abs, err := filepath.Abs(bookDir); err == nil && abs != bookDir {
		prefixes = append(prefixes, filepath.ToSlash(abs)+"/")
	}
	prefixes = append(prefixes, filepath.ToSlash(filepath.Clean(bookDir))+"/")
	for _, p := range prefixes {
		s = strings.ReplaceAll(s, p, "")
	}
	return s
}
