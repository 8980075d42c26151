package entity

import (
	"strings"
	"time"
)

// Word is a globally shared vocabulary row, unique by its normalized text.
type Word struct {
	ID         string
	Text       string
	Normalized string
	Language   Language
	Phonetic   string
	Definition string
	CreatedAt  time.Time
}

// Normalize fills the normalized token and defaults before persistence.
func (w *Word) Normalize(now time.Time) error {
	w.Text = strings.TrimSpace(w.Text)
	w.Normalized = NormalizeWordToken(w.Text)
	if w.Normalized == "" {
		return ErrInvalidWordText
	}
	w.Language = NormalizeLanguage(w.Language)
	if w.CreatedAt.IsZero() {
		w.CreatedAt = now
	}
	return nil
}
