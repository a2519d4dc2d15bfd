package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"folio/repository"
)

func (s *Store) GetProgress(ctx context.Context, bookID string) (*repository.Progress, error) {
	var p repository.Progress
	var updated int64
	err := s.db.QueryRowContext(ctx,
		`SELECT book_id, page, updated_at FROM reading_progress WHERE book_id = ?`, bookID).
		Scan(&p.BookID, &p.Page, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan progress: %w", err)
	}
	p.UpdatedAt = fromMillis(updated)
	return &p, nil
}

func (s *Store) SetProgress(ctx context.Context, p *repository.Progress) error {
	p.UpdatedAt = now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reading_progress (book_id, page, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(book_id) DO UPDATE SET page = excluded.page, updated_at = excluded.updated_at
	`, p.BookID, p.Page, toMillis(p.UpdatedAt))
	if isForeignKeyViolation(err) {
		return repository.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	return nil
}

// GetAISettings returns the stored settings, or zero values when none were
// saved yet.
func (s *Store) GetAISettings(ctx context.Context) (*repository.AISettings, error) {
	var a repository.AISettings
	var updated int64
	err := s.db.QueryRowContext(ctx,
		`SELECT provider, base_url, model, api_key, system_prompt, updated_at FROM ai_settings WHERE id = 1`).
		Scan(&a.Provider, &a.BaseURL, &a.Model, &a.APIKey, &a.SystemPrompt, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return &repository.AISettings{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan ai settings: %w", err)
	}
	a.UpdatedAt = fromMillis(updated)
	return &a, nil
}

func (s *Store) SaveAISettings(ctx context.Context, a *repository.AISettings) error {
	a.UpdatedAt = now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ai_settings (id, provider, base_url, model, api_key, system_prompt, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			provider = excluded.provider,
			base_url = excluded.base_url,
			model = excluded.model,
			api_key = excluded.api_key,
			system_prompt = excluded.system_prompt,
			updated_at = excluded.updated_at
	`, a.Provider, a.BaseURL, a.Model, a.APIKey, a.SystemPrompt, toMillis(a.UpdatedAt))
	if err != nil {
		return fmt.Errorf("save ai settings: %w", err)
	}
	return nil
}
