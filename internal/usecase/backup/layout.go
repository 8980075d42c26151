package backup

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/eslsoft/deeplisten/internal/entity"
)

// ArchiveVersion is the layout version written to metadata.json.
const ArchiveVersion = 1

// Archive-relative paths, always slash separated.
const (
	metadataFile     = "metadata.json"
	userFile         = "user/user.json"
	avatarBase       = "user/avatar"
	wordsFile        = "vocabulary/words.json"
	statusesFile     = "vocabulary/statuses.json"
	reviewsFile      = "study/reviews.json"
	practicesFile    = "study/practices.json"
	dailyStatsFile   = "study/daily_stats.json"
	dictionariesFile = "dictionaries/dictionaries.json"
	foldersFile      = "materials/folders.json"
	materialsFile    = "materials/materials.json"
	mediaDir         = "materials/media"
)

// Report kinds.
const (
	kindUser         = "user"
	kindWords        = "words"
	kindStatuses     = "statuses"
	kindReviews      = "reviews"
	kindPractices    = "practices"
	kindDailyStats   = "daily_stats"
	kindDictionaries = "dictionaries"
	kindDictWords    = "dictionary_words"
	kindFolders      = "folders"
	kindMaterials    = "materials"
	kindSentences    = "sentences"
)

// Metadata describes an archive; an archive without it is invalid.
type Metadata struct {
	Version    int                  `json:"version"`
	ExportedAt time.Time            `json:"exportedAt"`
	UserID     string               `json:"userId"`
	Options    entity.ExportOptions `json:"options"`
}

type userDoc struct {
	ID          string          `json:"id"`
	Username    string          `json:"username"`
	Email       string          `json:"email,omitempty"`
	DisplayName string          `json:"displayName,omitempty"`
	Avatar      string          `json:"avatar,omitempty"`
	Settings    json.RawMessage `json:"settings,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}

type wordDoc struct {
	ID         string    `json:"id"`
	Text       string    `json:"text"`
	Normalized string    `json:"normalized"`
	Language   string    `json:"language"`
	Phonetic   string    `json:"phonetic,omitempty"`
	Definition string    `json:"definition,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

type statusDoc struct {
	ID        string          `json:"id"`
	WordID    string          `json:"wordId"`
	State     string          `json:"state"`
	Scheduler json.RawMessage `json:"scheduler,omitempty"`
	Notes     string          `json:"notes,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

type reviewDoc struct {
	ID         string    `json:"id"`
	StatusID   string    `json:"statusId"`
	Rating     int       `json:"rating"`
	DurationMs int       `json:"durationMs,omitempty"`
	ReviewedAt time.Time `json:"reviewedAt"`
}

type practiceDoc struct {
	ID              string     `json:"id"`
	SentenceID      string     `json:"sentenceId"`
	Attempts        int        `json:"attempts"`
	BestScore       float64    `json:"bestScore"`
	LastInput       string     `json:"lastInput,omitempty"`
	LastPracticedAt *time.Time `json:"lastPracticedAt,omitempty"`
}

type dailyStatsDoc struct {
	ID                 string `json:"id"`
	Date               string `json:"date"`
	NewWords           int    `json:"newWords"`
	Reviews            int    `json:"reviews"`
	PracticeSeconds    int    `json:"practiceSeconds"`
	SentencesPracticed int    `json:"sentencesPracticed"`
}

type dictionaryDoc struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Description string              `json:"description,omitempty"`
	CreatedAt   time.Time           `json:"createdAt"`
	Words       []dictionaryWordDoc `json:"words"`
}

type dictionaryWordDoc struct {
	WordID   string    `json:"wordId"`
	Position int       `json:"position"`
	AddedAt  time.Time `json:"addedAt"`
}

type folderDoc struct {
	ID        string    `json:"id"`
	ParentID  *string   `json:"parentId,omitempty"`
	Name      string    `json:"name"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"createdAt"`
}

type materialDoc struct {
	ID              string        `json:"id"`
	FolderID        *string       `json:"folderId,omitempty"`
	Title           string        `json:"title"`
	Description     string        `json:"description,omitempty"`
	Media           string        `json:"media,omitempty"`
	MediaFilename   string        `json:"mediaFilename,omitempty"`
	MediaType       string        `json:"mediaType,omitempty"`
	DurationSeconds float64       `json:"durationSeconds,omitempty"`
	CreatedAt       time.Time     `json:"createdAt"`
	Sentences       []sentenceDoc `json:"sentences"`
}

type sentenceDoc struct {
	ID           string  `json:"id"`
	Position     int     `json:"position"`
	Text         string  `json:"text"`
	Translation  string  `json:"translation,omitempty"`
	StartSeconds float64 `json:"startSeconds,omitempty"`
	EndSeconds   float64 `json:"endSeconds,omitempty"`
}

// localPath maps an archive-relative path under root.
func localPath(root, rel string) string {
	return filepath.Join(root, filepath.FromSlash(rel))
}

func writeJSON(root, rel string, v any) error {
	path := localPath(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", rel, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", rel, err)
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode %s: %w", rel, err)
	}
	return f.Close()
}

// readJSON decodes rel into v and reports false when the file is absent.
func readJSON(root, rel string, v any) (bool, error) {
	data, err := os.ReadFile(localPath(root, rel))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", rel, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("%w: decode %s: %v", entity.ErrInvalidArchive, rel, err)
	}
	return true, nil
}

func writeFile(root, rel string, data []byte) error {
	path := localPath(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", rel, err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadMetadata loads and checks metadata.json of an extracted archive.
func ReadMetadata(root string) (*Metadata, error) {
	var meta Metadata
	ok, err := readJSON(root, metadataFile, &meta)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: missing %s", entity.ErrInvalidArchive, metadataFile)
	}
	if meta.Version != ArchiveVersion {
		return nil, fmt.Errorf("%w: %w: version %d", entity.ErrInvalidArchive, entity.ErrUnsupportedArchive, meta.Version)
	}
	return &meta, nil
}
