package entity

import "time"

// Folder groups materials; folders nest through ParentID.
type Folder struct {
	ID        string
	UserID    string
	ParentID  *string
	Name      string
	Position  int
	CreatedAt time.Time
}

// Material is an uploaded listening material with its transcript sentences.
type Material struct {
	ID              string
	UserID          string
	FolderID        *string
	Title           string
	Description     string
	MediaKey        string
	MediaFilename   string
	MediaType       string
	DurationSeconds float64
	CreatedAt       time.Time
}

// HasMedia reports whether the material references a media blob.
func (m *Material) HasMedia() bool {
	return m.MediaKey != ""
}

// Sentence is one ordered transcript line of a material.
type Sentence struct {
	ID           string
	MaterialID   string
	UserID       string
	Position     int
	Text         string
	Translation  string
	StartSeconds float64
	EndSeconds   float64
}
