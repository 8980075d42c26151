package repository

import (
	"context"
	stdsql "database/sql"
	"fmt"
	"time"

	"entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/eslsoft/deeplisten/internal/entity"
	"github.com/eslsoft/deeplisten/internal/repository"
)

const wordsTable = "words"

var wordColumns = []string{"id", "text", "normalized", "language", "phonetic", "definition", "created_at"}

type WordRepository struct {
	conn *Conn
}

// NewWordRepository constructs a SQL-backed word repository.
func NewWordRepository(conn *Conn) repository.WordRepository {
	return &WordRepository{conn: conn}
}

// Create inserts word. When another writer already inserted the same
// normalized text the existing row is returned instead.
func (r *WordRepository) Create(ctx context.Context, word *entity.Word) (*entity.Word, error) {
	if err := word.Normalize(time.Now().UTC()); err != nil {
		return nil, err
	}
	if word.ID == "" {
		word.ID = uuid.NewString()
	}
	rec := (&record{}).
		set("id", word.ID).
		set("text", word.Text).
		set("normalized", word.Normalized).
		set("language", word.Language.CodeOrDefault()).
		set("phonetic", nullableString(word.Phonetic)).
		set("definition", nullableString(word.Definition)).
		set("created_at", word.CreatedAt.UTC())
	err := r.conn.insert(ctx, wordsTable, rec, false)
	if isUniqueViolation(err) {
		existing, findErr := r.FindByNormalized(ctx, word.Normalized)
		if findErr != nil {
			return nil, findErr
		}
		if existing != nil {
			return existing, nil
		}
	}
	if err != nil {
		return nil, fmt.Errorf("create word: %w", err)
	}
	return word, nil
}

func (r *WordRepository) GetByIDs(ctx context.Context, ids []string) ([]entity.Word, error) {
	ids = lo.Uniq(ids)
	words := make([]entity.Word, 0, len(ids))
	for _, chunk := range lo.Chunk(ids, 256) {
		q := r.conn.selectFrom(wordsTable, wordColumns...).
			Where(sql.In("id", lo.ToAnySlice(chunk)...)).
			OrderBy(sql.Asc("normalized"))
		err := r.conn.query(ctx, q, func(rows *stdsql.Rows) error {
			w, err := scanWord(rows)
			if err != nil {
				return err
			}
			words = append(words, w)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("get words: %w", err)
		}
	}
	return words, nil
}

func (r *WordRepository) FindByNormalized(ctx context.Context, normalized string) (*entity.Word, error) {
	if normalized == "" {
		return nil, nil
	}
	var found *entity.Word
	q := r.conn.selectFrom(wordsTable, wordColumns...).Where(sql.EQ("normalized", normalized)).Limit(1)
	err := r.conn.query(ctx, q, func(rows *stdsql.Rows) error {
		w, err := scanWord(rows)
		if err != nil {
			return err
		}
		found = &w
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("find word: %w", err)
	}
	return found, nil
}

func (r *WordRepository) CountByNormalized(ctx context.Context, normalized string) (int, error) {
	return r.conn.count(ctx, wordsTable, sql.EQ("normalized", normalized))
}

func scanWord(rows *stdsql.Rows) (entity.Word, error) {
	var (
		w          entity.Word
		lang       string
		phonetic   stdsql.NullString
		definition stdsql.NullString
	)
	if err := rows.Scan(&w.ID, &w.Text, &w.Normalized, &lang, &phonetic, &definition, &w.CreatedAt); err != nil {
		return entity.Word{}, err
	}
	w.Language = entity.ParseLanguage(lang)
	w.Phonetic = phonetic.String
	w.Definition = definition.String
	return w, nil
}
