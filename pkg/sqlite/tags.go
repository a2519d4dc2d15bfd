package sqlite

import (
	"context"
	"fmt"

	"folio/repository"
)

func (s *Store) CreateTag(ctx context.Context, t *repository.Tag) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO tags (id, name, color) VALUES (?, ?, ?)`, t.ID, t.Name, t.Color)
	if isUniqueViolation(err) {
		return repository.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert tag: %w", err)
	}
	return nil
}

func (s *Store) ListTags(ctx context.Context) ([]repository.Tag, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, color FROM tags ORDER BY name COLLATE NOCASE`)
	if err != nil {
		return nil, fmt.Errorf("query tags: %w", err)
	}
	defer rows.Close()

	out := []repository.Tag{}
	for rows.Next() {
		var t repository.Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.Color); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) DeleteTag(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM book_tags WHERE tag_id = ?`, id); err != nil {
		return fmt.Errorf("delete tag links: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM tags WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete tag: %w", err)
	}
	if err := affected(res, "delete tag"); err != nil {
		return err
	}
	return tx.Commit()
}

// TagBook links a tag to a book. Linking twice is not an error.
func (s *Store) TagBook(ctx context.Context, bookID, tagID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO book_tags (book_id, tag_id) VALUES (?, ?)`, bookID, tagID)
	if isForeignKeyViolation(err) {
		return repository.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("tag book: %w", err)
	}
	return nil
}

func (s *Store) UntagBook(ctx context.Context, bookID, tagID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM book_tags WHERE book_id = ? AND tag_id = ?`, bookID, tagID)
	if err != nil {
		return fmt.Errorf("untag book: %w", err)
	}
	return affected(res, "untag book")
}

func (s *Store) BookTags(ctx context.Context, bookID string) ([]repository.Tag, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.name, t.color
		FROM tags t
		JOIN book_tags bt ON bt.tag_id = t.id
		WHERE bt.book_id = ?
		ORDER BY t.name COLLATE NOCASE
	`, bookID)
	if err != nil {
		return nil, fmt.Errorf("query book tags: %w", err)
	}
	defer rows.Close()

	out := []repository.Tag{}
	for rows.Next() {
		var t repository.Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.Color); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) allBookTags(ctx context.Context) (map[string][]repository.Tag, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT bt.book_id, t.id, t.name, t.color
		FROM book_tags bt
		JOIN tags t ON t.id = bt.tag_id
		ORDER BY t.name COLLATE NOCASE
	`)
	if err != nil {
		return nil, fmt.Errorf("query book tags: %w", err)
	}
	defer rows.Close()

	out := map[string][]repository.Tag{}
	for rows.Next() {
		var bookID string
		var t repository.Tag
		if err := rows.Scan(&bookID, &t.ID, &t.Name, &t.Color); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		out[bookID] = append(out[bookID], t)
	}
	return out, rows.Err()
}
