// Package history records completed synthesis requests so the UI can show
// recent generations. Postgres-backed when DATABASE_URL is configured,
// in-memory otherwise.
package history

import (
	"context"
	"time"
)

// Record is one completed generation.
type Record struct {
	ID                string    `json:"id"`
	Voice             string    `json:"voice"`
	TextChars         int       `json:"text_chars"`
	Chunks            int       `json:"chunks"`
	AudioSeconds      float64   `json:"audio_seconds"`
	GenerationSeconds float64   `json:"generation_seconds"`
	CreatedAt         time.Time `json:"created_at"`
}

// Store persists generation records.
type Store interface {
	Save(ctx context.Context, rec Record) error
	Recent(ctx context.Context, limit int) ([]Record, error)
	Close() error
}
