package repository

import (
	"github.com/eslsoft/deeplisten/internal/repository"
)

// Store bundles the SQL repositories sharing one connection.
type Store struct {
	conn *Conn
}

// NewStore constructs the live-store facade used by export and import.
func NewStore(conn *Conn) repository.Store {
	return &Store{conn: conn}
}

func (s *Store) Users() repository.UserRepository { return NewUserRepository(s.conn) }

func (s *Store) Words() repository.WordRepository { return NewWordRepository(s.conn) }

func (s *Store) Statuses() repository.UserWordStatusRepository {
	return NewUserWordStatusRepository(s.conn)
}

func (s *Store) Folders() repository.FolderRepository { return NewFolderRepository(s.conn) }

func (s *Store) Materials() repository.MaterialRepository { return NewMaterialRepository(s.conn) }

func (s *Store) Dictionaries() repository.DictionaryRepository {
	return NewDictionaryRepository(s.conn)
}

func (s *Store) Study() repository.StudyRepository { return NewStudyRepository(s.conn) }

func (s *Store) Purger() repository.Purger { return NewPurger(s.conn) }

func (s *Store) WithImportRun(runID string) repository.Store {
	return &Store{conn: s.conn.withRun(runID)}
}
