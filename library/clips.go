package library

import (
	"fmt"
	"os"
	"path/filepath"
)

// WriteClip stores clip image bytes under clips/ and returns the path
// relative to the book directory.
func (l *Library) WriteClip(bookID, clipID, ext string, data []byte) (string, error) {
	dir, err := l.BookDir(bookID)
	if err != nil {
		return "", err
	}
	if !validID(clipID) {
		return "", ErrInvalidID
	}
	if err := os.MkdirAll(filepath.Join(dir, ClipsDir), 0755); err != nil {
		return "", fmt.Errorf("create clips dir: %w", err)
	}
	rel := filepath.Join(ClipsDir, "clip-"+clipID+"."+ext)
	if err := os.WriteFile(filepath.Join(dir, rel), data, 0644); err != nil {
		return "", fmt.Errorf("write clip: %w", err)
	}
	return rel, nil
}

func (l *Library) ClipPath(bookID, rel string) (string, error) {
	dir, err := l.BookDir(bookID)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, filepath.Clean("/"+rel)), nil
}

// RemoveClip deletes a clip image. A missing file is ignored.
func (l *Library) RemoveClip(bookID, rel string) error {
	path, err := l.ClipPath(bookID, rel)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove clip: %w", err)
	}
	return nil
}
