package repository

import (
	"context"
	"time"
)

type BookRepo interface {
	CreateBook(ctx context.Context, book *Book) error
	GetBook(ctx context.Context, id string) (*Book, error)
	ListBooks(ctx context.Context, tag string) ([]Book, error)
	UpdateBook(ctx context.Context, id string, patch BookPatch) (*Book, error)
	TouchBook(ctx context.Context, id string) error
	DeleteBook(ctx context.Context, id string) error
}

type Book struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	SourceType string    `json:"source_type"`
	TotalPages int       `json:"total_pages"`
	Language   string    `json:"language"`
	SourceURL  string    `json:"source_url,omitempty"`
	Author     string    `json:"author,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	Tags       []Tag     `json:"tags"`
}

// BookPatch holds the user-editable fields; nil leaves a field unchanged.
type BookPatch struct {
	Title    *string `json:"title"`
	Language *string `json:"language"`
}
