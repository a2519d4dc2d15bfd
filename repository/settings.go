package repository

import (
	"context"
	"time"
)

type ProgressRepo interface {
	GetProgress(ctx context.Context, bookID string) (*Progress, error)
	SetProgress(ctx context.Context, p *Progress) error
}

type Progress struct {
	BookID    string    `json:"book_id"`
	Page      int       `json:"page"`
	UpdatedAt time.Time `json:"updated_at"`
}

type SettingsRepo interface {
	GetAISettings(ctx context.Context) (*AISettings, error)
	SaveAISettings(ctx context.Context, s *AISettings) error
}

// AISettings is stored and served only; nothing in the server calls the
// provider.
type AISettings struct {
	Provider     string    `json:"provider"`
	BaseURL      string    `json:"base_url"`
	Model        string    `json:"model"`
	APIKey       string    `json:"api_key"`
	SystemPrompt string    `json:"system_prompt"`
	UpdatedAt    time.Time `json:"updated_at"`
}
