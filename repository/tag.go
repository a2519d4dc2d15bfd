package repository

import (
	"context"
)

type TagRepo interface {
	CreateTag(ctx context.Context, t *Tag) error
	ListTags(ctx context.Context) ([]Tag, error)
	DeleteTag(ctx context.Context, id string) error
	TagBook(ctx context.Context, bookID, tagID string) error
	UntagBook(ctx context.Context, bookID, tagID string) error
	BookTags(ctx context.Context, bookID string) ([]Tag, error)
}

type Tag struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}
