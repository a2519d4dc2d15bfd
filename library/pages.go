package library

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"folio/splitter"
)

// Kind tells an edit overwrite from a translation overwrite.
type Kind string

const (
	KindEdit        Kind = "edit"
	KindTranslation Kind = "translation"
)

func (l *Library) pagePath(id string, n int) (string, error) {
	dir, err := l.BookDir(id)
	if err != nil {
		return "", err
	}
	if n < 1 {
		return "", ErrInvalidPage
	}
	return filepath.Join(dir, PagesDir, splitter.PageFile(n)), nil
}

// ReadPage returns the stored HTML of page n.
func (l *Library) ReadPage(id string, n int) ([]byte, error) {
	path, err := l.pagePath(id, n)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrPageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read page %d: %w", n, err)
	}
	return data, nil
}

// PageHTML is one entry of AllPages.
type PageHTML struct {
	Page int    `json:"page"`
	HTML string `json:"html"`
}

// AllPages reads every page listed in the manifest. Pages whose file has
// gone missing are skipped.
func (l *Library) AllPages(id string) (int, []PageHTML, error) {
	m, err := l.ReadManifest(id)
	if err != nil {
		return 0, nil, err
	}
	out := make([]PageHTML, 0, m.Total)
	for i := 1; i <= m.Total; i++ {
		data, err := l.ReadPage(id, i)
		if errors.Is(err, ErrPageNotFound) {
			continue
		}
		if err != nil {
			return 0, nil, err
		}
		out = append(out, PageHTML{Page: i, HTML: string(data)})
	}
	return m.Total, out, nil
}

// SavePage overwrites page n. The first overwrite keeps a copy of the
// original next to it; later overwrites leave that copy alone.
func (l *Library) SavePage(id string, n int, content string, kind Kind) error {
	if kind != KindEdit && kind != KindTranslation {
		return ErrInvalidKind
	}
	path, err := l.pagePath(id, n)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return ErrPageNotFound
	}

	backup := path + backupSuffix
	if _, err := os.Stat(backup); errors.Is(err, os.ErrNotExist) {
		if err := copyFile(path, backup); err != nil {
			return fmt.Errorf("backup page %d: %w", n, err)
		}
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("write page %d: %w", n, err)
	}

	l.logger.Info("page overwritten",
		zap.String("book_id", id),
		zap.Int("page", n),
		zap.String("kind", string(kind)),
	)
	return nil
}

// RestorePage puts the backup of page n back and removes the backup.
func (l *Library) RestorePage(id string, n int) error {
	path, err := l.pagePath(id, n)
	if err != nil {
		return err
	}
	backup := path + backupSuffix
	if _, err := os.Stat(backup); errors.Is(err, os.ErrNotExist) {
		return ErrNoBackup
	}
	if err := copyFile(backup, path); err != nil {
		return fmt.Errorf("restore page %d: %w", n, err)
	}
	if err := os.Remove(backup); err != nil {
		return fmt.Errorf("remove backup %d: %w", n, err)
	}
	return nil
}

// HasBackup reports whether page n has been overwritten since the split.
func (l *Library) HasBackup(id string, n int) (bool, error) {
	path, err := l.pagePath(id, n)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path + backupSuffix)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

// RestoreAll restores every page that has a backup and returns their
// numbers in ascending order.
func (l *Library) RestoreAll(id string) ([]int, error) {
	dir, err := l.BookDir(id)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(filepath.Join(dir, PagesDir))
	if errors.Is(err, os.ErrNotExist) {
		return []int{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}

	restored := []int{}
	for _, e := range entries {
		n, ok := backupPageNumber(e.Name())
		if !ok {
			continue
		}
		if err := l.RestorePage(id, n); err != nil {
			return restored, err
		}
		restored = append(restored, n)
	}
	sort.Ints(restored)
	return restored, nil
}

func backupPageNumber(name string) (int, bool) {
	if !strings.HasSuffix(name, ".html"+backupSuffix) {
		return 0, false
	}
	s := strings.TrimSuffix(strings.TrimPrefix(name, "page-"), ".html"+backupSuffix)
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
