package repository

import "errors"

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")
)

// Store is everything the server keeps in the library database.
type Store interface {
	BookRepo
	BookmarkRepo
	ClipRepo
	NoteRepo
	TagRepo
	ProgressRepo
	SettingsRepo
	Close() error
}
