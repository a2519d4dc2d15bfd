package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"folio/repository"
)

func (s *Store) CreateBookmark(ctx context.Context, b *repository.Bookmark) error {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bookmarks (id, book_id, page, note, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, b.ID, b.BookID, b.Page, b.Note, toMillis(b.CreatedAt))
	if isForeignKeyViolation(err) {
		return repository.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("insert bookmark: %w", err)
	}
	return nil
}

func (s *Store) ListBookmarks(ctx context.Context, bookID string) ([]repository.Bookmark, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, book_id, page, note, created_at
		FROM bookmarks
		WHERE book_id = ?
		ORDER BY page ASC, created_at ASC
	`, bookID)
	if err != nil {
		return nil, fmt.Errorf("query bookmarks: %w", err)
	}
	defer rows.Close()

	out := []repository.Bookmark{}
	for rows.Next() {
		var b repository.Bookmark
		var created int64
		if err := rows.Scan(&b.ID, &b.BookID, &b.Page, &b.Note, &created); err != nil {
			return nil, fmt.Errorf("scan bookmark: %w", err)
		}
		b.CreatedAt = fromMillis(created)
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Store) DeleteBookmark(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM bookmarks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete bookmark: %w", err)
	}
	return affected(res, "delete bookmark")
}

func (s *Store) CreateClip(ctx context.Context, c *repository.Clip) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now()
	}
	var x, y, w, h sql.NullFloat64
	if c.Rect != nil {
		x = sql.NullFloat64{Float64: c.Rect.X, Valid: true}
		y = sql.NullFloat64{Float64: c.Rect.Y, Valid: true}
		w = sql.NullFloat64{Float64: c.Rect.W, Valid: true}
		h = sql.NullFloat64{Float64: c.Rect.H, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO clips (id, book_id, page, image_path, mime_type, rect_x, rect_y, rect_w, rect_h, note, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.BookID, c.Page, c.ImagePath, c.MimeType, x, y, w, h, c.Note, toMillis(c.CreatedAt))
	if isForeignKeyViolation(err) {
		return repository.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("insert clip: %w", err)
	}
	return nil
}

const clipColumns = `id, book_id, page, image_path, mime_type, rect_x, rect_y, rect_w, rect_h, note, created_at`

func scanClip(row scanner) (*repository.Clip, error) {
	var c repository.Clip
	var x, y, w, h sql.NullFloat64
	var created int64
	if err := row.Scan(&c.ID, &c.BookID, &c.Page, &c.ImagePath, &c.MimeType,
		&x, &y, &w, &h, &c.Note, &created); err != nil {
		return nil, err
	}
	if x.Valid && y.Valid && w.Valid && h.Valid {
		c.Rect = &repository.Rect{X: x.Float64, Y: y.Float64, W: w.Float64, H: h.Float64}
	}
	c.CreatedAt = fromMillis(created)
	return &c, nil
}

func (s *Store) GetClip(ctx context.Context, id string) (*repository.Clip, error) {
	c, err := scanClip(s.db.QueryRowContext(ctx, `SELECT `+clipColumns+` FROM clips WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan clip: %w", err)
	}
	return c, nil
}

func (s *Store) ListClips(ctx context.Context, bookID string) ([]repository.Clip, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+clipColumns+` FROM clips WHERE book_id = ? ORDER BY page ASC, created_at ASC`, bookID)
	if err != nil {
		return nil, fmt.Errorf("query clips: %w", err)
	}
	defer rows.Close()

	out := []repository.Clip{}
	for rows.Next() {
		c, err := scanClip(rows)
		if err != nil {
			return nil, fmt.Errorf("scan clip: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (s *Store) UpdateClipNote(ctx context.Context, id, note string) (*repository.Clip, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE clips SET note = ? WHERE id = ?`, note, id)
	if err != nil {
		return nil, fmt.Errorf("update clip: %w", err)
	}
	if err := affected(res, "update clip"); err != nil {
		return nil, err
	}
	return s.GetClip(ctx, id)
}

func (s *Store) DeleteClip(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM clips WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete clip: %w", err)
	}
	return affected(res, "delete clip")
}

func (s *Store) CreateNote(ctx context.Context, n *repository.Note) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now()
	}
	n.UpdatedAt = n.CreatedAt
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notes (id, book_id, page, selected_text, body, color, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, n.ID, n.BookID, n.Page, n.SelectedText, n.Body, n.Color, toMillis(n.CreatedAt), toMillis(n.UpdatedAt))
	if isForeignKeyViolation(err) {
		return repository.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("insert note: %w", err)
	}
	return nil
}

const noteColumns = `id, book_id, page, selected_text, body, color, created_at, updated_at`

func scanNote(row scanner) (*repository.Note, error) {
	var n repository.Note
	var created, updated int64
	if err := row.Scan(&n.ID, &n.BookID, &n.Page, &n.SelectedText, &n.Body, &n.Color, &created, &updated); err != nil {
		return nil, err
	}
	n.CreatedAt = fromMillis(created)
	n.UpdatedAt = fromMillis(updated)
	return &n, nil
}

func (s *Store) ListNotes(ctx context.Context, bookID string) ([]repository.Note, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+noteColumns+` FROM notes WHERE book_id = ? ORDER BY page ASC, created_at ASC`, bookID)
	if err != nil {
		return nil, fmt.Errorf("query notes: %w", err)
	}
	defer rows.Close()

	out := []repository.Note{}
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

func (s *Store) UpdateNote(ctx context.Context, id string, patch repository.NotePatch) (*repository.Note, error) {
	n, err := scanNote(s.db.QueryRowContext(ctx, `SELECT `+noteColumns+` FROM notes WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan note: %w", err)
	}
	if patch.Body != nil {
		n.Body = *patch.Body
	}
	if patch.Color != nil {
		n.Color = *patch.Color
	}
	n.UpdatedAt = now()

	_, err = s.db.ExecContext(ctx, `UPDATE notes SET body = ?, color = ?, updated_at = ? WHERE id = ?`,
		n.Body, n.Color, toMillis(n.UpdatedAt), id)
	if err != nil {
		return nil, fmt.Errorf("update note: %w", err)
	}
	return n, nil
}

func (s *Store) DeleteNote(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	return affected(res, "delete note")
}
