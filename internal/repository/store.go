package repository

import "context"

// Collection names a user-scoped table the eraser can purge.
type Collection string

const (
	CollectionReviews      Collection = "word_reviews"
	CollectionPractices    Collection = "practice_progress"
	CollectionDailyStats   Collection = "daily_study_stats"
	CollectionStatuses     Collection = "user_word_statuses"
	CollectionSentences    Collection = "sentences"
	CollectionMaterials    Collection = "materials"
	CollectionFolders      Collection = "folders"
	CollectionDictEntries  Collection = "dictionary_words"
	CollectionDictionaries Collection = "dictionaries"
)

// PurgeScope selects rows of a user, or rows written by one import run.
// Exactly one field must be set.
type PurgeScope struct {
	UserID    string
	ImportRun string
}

// Purger deletes user-scoped rows in bounded batches.
type Purger interface {
	// PurgeBatch deletes up to limit rows of c matching scope and returns the count deleted.
	PurgeBatch(ctx context.Context, c Collection, scope PurgeScope, limit int) (int, error)
	// DetachFolders clears parent links of folders matching scope.
	DetachFolders(ctx context.Context, scope PurgeScope) error
	Count(ctx context.Context, c Collection, scope PurgeScope) (int, error)
	// CommitRun clears the import run tag from every row carrying it.
	CommitRun(ctx context.Context, runID string) error
}

// Store groups the live-store repositories used by export and import.
type Store interface {
	Users() UserRepository
	Words() WordRepository
	Statuses() UserWordStatusRepository
	Folders() FolderRepository
	Materials() MaterialRepository
	Dictionaries() DictionaryRepository
	Study() StudyRepository
	Purger() Purger
	// WithImportRun returns a Store whose user-scoped inserts are tagged with runID.
	WithImportRun(runID string) Store
}
