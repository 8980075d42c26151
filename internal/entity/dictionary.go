package entity

import "time"

// Dictionary is a user-curated word list.
type Dictionary struct {
	ID          string
	UserID      string
	Name        string
	Description string
	CreatedAt   time.Time
}

// DictionaryEntry is the membership of a word in a dictionary.
type DictionaryEntry struct {
	ID           string
	DictionaryID string
	WordID       string
	UserID       string
	Position     int
	AddedAt      time.Time
}
