package repository

import (
	"context"
	stdsql "database/sql"
	"fmt"
	"time"

	"entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/eslsoft/deeplisten/internal/entity"
	"github.com/eslsoft/deeplisten/internal/repository"
)

const (
	dictionariesTable    = "dictionaries"
	dictionaryWordsTable = "dictionary_words"
)

var (
	dictionaryColumns      = []string{"id", "user_id", "name", "description", "created_at"}
	dictionaryEntryColumns = []string{"id", "dictionary_id", "word_id", "user_id", "position", "added_at"}
)

type DictionaryRepository struct {
	conn *Conn
}

// NewDictionaryRepository constructs a SQL-backed dictionary repository.
func NewDictionaryRepository(conn *Conn) repository.DictionaryRepository {
	return &DictionaryRepository{conn: conn}
}

func (r *DictionaryRepository) Create(ctx context.Context, d *entity.Dictionary) (*entity.Dictionary, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	rec := (&record{}).
		set("id", d.ID).
		set("user_id", d.UserID).
		set("name", d.Name).
		set("description", nullableString(d.Description)).
		set("created_at", d.CreatedAt.UTC())
	if err := r.conn.insert(ctx, dictionariesTable, rec, true); err != nil {
		return nil, fmt.Errorf("create dictionary: %w", err)
	}
	return d, nil
}

func (r *DictionaryRepository) FindByName(ctx context.Context, userID, name string) (*entity.Dictionary, error) {
	q := r.conn.selectFrom(dictionariesTable, dictionaryColumns...).
		Where(sql.And(sql.EQ("user_id", userID), sql.EQ("name", name))).
		OrderBy(sql.Asc("created_at"), sql.Asc("id")).
		Limit(1)
	dicts, err := r.scanAll(ctx, q)
	if err != nil || len(dicts) == 0 {
		return nil, err
	}
	return &dicts[0], nil
}

func (r *DictionaryRepository) List(ctx context.Context, userID string, page repository.Pagination) ([]entity.Dictionary, error) {
	q := r.conn.selectFrom(dictionariesTable, dictionaryColumns...).
		Where(sql.EQ("user_id", userID)).
		OrderBy(sql.Asc("created_at"), sql.Asc("id"))
	return r.scanAll(ctx, limitOffset(q, page.PageSize, page.Offset()))
}

func (r *DictionaryRepository) AddEntry(ctx context.Context, e *entity.DictionaryEntry) (bool, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.AddedAt.IsZero() {
		e.AddedAt = time.Now()
	}
	rec := (&record{}).
		set("id", e.ID).
		set("dictionary_id", e.DictionaryID).
		set("word_id", e.WordID).
		set("user_id", e.UserID).
		set("position", e.Position).
		set("added_at", e.AddedAt.UTC())
	err := r.conn.insert(ctx, dictionaryWordsTable, rec, true)
	if isUniqueViolation(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("add dictionary entry: %w", err)
	}
	return true, nil
}

func (r *DictionaryRepository) ListEntries(ctx context.Context, dictionaryID string) ([]entity.DictionaryEntry, error) {
	q := r.conn.selectFrom(dictionaryWordsTable, dictionaryEntryColumns...).
		Where(sql.EQ("dictionary_id", dictionaryID)).
		OrderBy(sql.Asc("position"), sql.Asc("added_at"), sql.Asc("id"))
	var entries []entity.DictionaryEntry
	err := r.conn.query(ctx, q, func(rows *stdsql.Rows) error {
		var e entity.DictionaryEntry
		if err := rows.Scan(&e.ID, &e.DictionaryID, &e.WordID, &e.UserID, &e.Position, &e.AddedAt); err != nil {
			return err
		}
		entries = append(entries, e)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list dictionary entries: %w", err)
	}
	return entries, nil
}

func (r *DictionaryRepository) scanAll(ctx context.Context, q *sql.Selector) ([]entity.Dictionary, error) {
	var dicts []entity.Dictionary
	err := r.conn.query(ctx, q, func(rows *stdsql.Rows) error {
		var (
			d    entity.Dictionary
			desc stdsql.NullString
		)
		if err := rows.Scan(&d.ID, &d.UserID, &d.Name, &desc, &d.CreatedAt); err != nil {
			return err
		}
		d.Description = desc.String
		dicts = append(dicts, d)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list dictionaries: %w", err)
	}
	return dicts, nil
}
