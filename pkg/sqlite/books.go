package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"folio/repository"
)

const bookColumns = `id, title, source_type, total_pages, language, source_url, author, created_at, updated_at`

func (s *Store) CreateBook(ctx context.Context, b *repository.Book) error {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now()
	}
	b.UpdatedAt = b.CreatedAt

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO books (`+bookColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, b.ID, b.Title, b.SourceType, b.TotalPages, b.Language, b.SourceURL, b.Author,
		toMillis(b.CreatedAt), toMillis(b.UpdatedAt))
	if isUniqueViolation(err) {
		return repository.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert book: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBook(row scanner) (*repository.Book, error) {
	var b repository.Book
	var created, updated int64
	if err := row.Scan(&b.ID, &b.Title, &b.SourceType, &b.TotalPages, &b.Language,
		&b.SourceURL, &b.Author, &created, &updated); err != nil {
		return nil, err
	}
	b.CreatedAt = fromMillis(created)
	b.UpdatedAt = fromMillis(updated)
	b.Tags = []repository.Tag{}
	return &b, nil
}

func (s *Store) GetBook(ctx context.Context, id string) (*repository.Book, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+bookColumns+` FROM books WHERE id = ?`, id)
	b, err := scanBook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan book: %w", err)
	}
	if b.Tags, err = s.BookTags(ctx, id); err != nil {
		return nil, err
	}
	return b, nil
}

// ListBooks returns books newest first, optionally only those carrying the
// tag with the given name.
func (s *Store) ListBooks(ctx context.Context, tag string) ([]repository.Book, error) {
	query := `SELECT ` + bookColumns + ` FROM books ORDER BY updated_at DESC, created_at DESC`
	args := []any{}
	if tag != "" {
		query = `
			SELECT b.id, b.title, b.source_type, b.total_pages, b.language, b.source_url, b.author, b.created_at, b.updated_at
			FROM books b
			JOIN book_tags bt ON bt.book_id = b.id
			JOIN tags t ON t.id = bt.tag_id
			WHERE t.name = ?
			ORDER BY b.updated_at DESC, b.created_at DESC`
		args = append(args, tag)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query books: %w", err)
	}
	books := []repository.Book{}
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan book: %w", err)
		}
		books = append(books, *b)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	tags, err := s.allBookTags(ctx)
	if err != nil {
		return nil, err
	}
	for i := range books {
		if t, ok := tags[books[i].ID]; ok {
			books[i].Tags = t
		}
	}
	return books, nil
}

func (s *Store) UpdateBook(ctx context.Context, id string, patch repository.BookPatch) (*repository.Book, error) {
	b, err := s.GetBook(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.Title != nil {
		b.Title = *patch.Title
	}
	if patch.Language != nil {
		b.Language = *patch.Language
	}
	b.UpdatedAt = now()

	_, err = s.db.ExecContext(ctx,
		`UPDATE books SET title = ?, language = ?, updated_at = ? WHERE id = ?`,
		b.Title, b.Language, toMillis(b.UpdatedAt), id)
	if err != nil {
		return nil, fmt.Errorf("update book: %w", err)
	}
	return b, nil
}

// TouchBook bumps updated_at after page content changed.
func (s *Store) TouchBook(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE books SET updated_at = ? WHERE id = ?`, toMillis(now()), id)
	if err != nil {
		return fmt.Errorf("touch book: %w", err)
	}
	return affected(res, "touch book")
}

// DeleteBook removes the book and everything attached to it in one
// transaction.
func (s *Store) DeleteBook(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"bookmarks", "clips", "notes", "book_tags", "reading_progress"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE book_id = ?`, id); err != nil {
			return fmt.Errorf("delete %s: %w", table, err)
		}
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM books WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	if err := affected(res, "delete book"); err != nil {
		return err
	}
	return tx.Commit()
}
