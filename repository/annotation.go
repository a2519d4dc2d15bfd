package repository

import (
	"context"
	"time"
)

type BookmarkRepo interface {
	CreateBookmark(ctx context.Context, b *Bookmark) error
	ListBookmarks(ctx context.Context, bookID string) ([]Bookmark, error)
	DeleteBookmark(ctx context.Context, id string) error
}

type Bookmark struct {
	ID        string    `json:"id"`
	BookID    string    `json:"book_id"`
	Page      int       `json:"page"`
	Note      string    `json:"note"`
	CreatedAt time.Time `json:"created_at"`
}

type ClipRepo interface {
	CreateClip(ctx context.Context, c *Clip) error
	GetClip(ctx context.Context, id string) (*Clip, error)
	ListClips(ctx context.Context, bookID string) ([]Clip, error)
	UpdateClipNote(ctx context.Context, id, note string) (*Clip, error)
	DeleteClip(ctx context.Context, id string) error
}

// Rect is a clip region in page coordinates normalized to [0,1].
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

func (r Rect) Valid() bool {
	in := func(v float64) bool { return v >= 0 && v <= 1 }
	return in(r.X) && in(r.Y) && in(r.W) && in(r.H) && r.X+r.W <= 1 && r.Y+r.H <= 1
}

type Clip struct {
	ID        string    `json:"id"`
	BookID    string    `json:"book_id"`
	Page      int       `json:"page"`
	ImagePath string    `json:"-"`
	MimeType  string    `json:"mime_type"`
	Rect      *Rect     `json:"rect,omitempty"`
	Note      string    `json:"note"`
	CreatedAt time.Time `json:"created_at"`
}

type NoteRepo interface {
	CreateNote(ctx context.Context, n *Note) error
	ListNotes(ctx context.Context, bookID string) ([]Note, error)
	UpdateNote(ctx context.Context, id string, patch NotePatch) (*Note, error)
	DeleteNote(ctx context.Context, id string) error
}

type Note struct {
	ID           string    `json:"id"`
	BookID       string    `json:"book_id"`
	Page         int       `json:"page"`
	SelectedText string    `json:"selected_text"`
	Body         string    `json:"body"`
	Color        string    `json:"color"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type NotePatch struct {
	Body  *string `json:"body"`
	Color *string `json:"color"`
}
