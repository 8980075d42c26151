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
	materialsTable = "materials"
	sentencesTable = "sentences"
)

var (
	materialColumns = []string{"id", "user_id", "folder_id", "title", "description", "media_key", "media_filename", "media_type", "duration_seconds", "created_at"}
	sentenceColumns = []string{"id", "material_id", "user_id", "position", "text", "translation", "start_seconds", "end_seconds"}
)

type MaterialRepository struct {
	conn *Conn
}

// NewMaterialRepository constructs a SQL-backed material repository.
func NewMaterialRepository(conn *Conn) repository.MaterialRepository {
	return &MaterialRepository{conn: conn}
}

func (r *MaterialRepository) Create(ctx context.Context, m *entity.Material) (*entity.Material, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	rec := (&record{}).
		set("id", m.ID).
		set("user_id", m.UserID).
		set("folder_id", nullableRef(m.FolderID)).
		set("title", m.Title).
		set("description", nullableString(m.Description)).
		set("media_key", nullableString(m.MediaKey)).
		set("media_filename", nullableString(m.MediaFilename)).
		set("media_type", nullableString(m.MediaType)).
		set("duration_seconds", m.DurationSeconds).
		set("created_at", m.CreatedAt.UTC())
	if err := r.conn.insert(ctx, materialsTable, rec, true); err != nil {
		return nil, fmt.Errorf("create material: %w", err)
	}
	return m, nil
}

func (r *MaterialRepository) FindByTitle(ctx context.Context, userID, title string) (*entity.Material, error) {
	q := r.conn.selectFrom(materialsTable, materialColumns...).
		Where(sql.And(sql.EQ("user_id", userID), sql.EQ("title", title))).
		OrderBy(sql.Asc("created_at"), sql.Asc("id")).
		Limit(1)
	var found *entity.Material
	err := r.conn.query(ctx, q, func(rows *stdsql.Rows) error {
		m, err := scanMaterial(rows)
		if err != nil {
			return err
		}
		found = &m
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("find material: %w", err)
	}
	return found, nil
}

func (r *MaterialRepository) List(ctx context.Context, userID string, page repository.Pagination) ([]entity.Material, error) {
	q := r.conn.selectFrom(materialsTable, materialColumns...).
		Where(sql.EQ("user_id", userID)).
		OrderBy(sql.Asc("created_at"), sql.Asc("id"))
	var materials []entity.Material
	err := r.conn.query(ctx, limitOffset(q, page.PageSize, page.Offset()), func(rows *stdsql.Rows) error {
		m, err := scanMaterial(rows)
		if err != nil {
			return err
		}
		materials = append(materials, m)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list materials: %w", err)
	}
	return materials, nil
}

func (r *MaterialRepository) SetMedia(ctx context.Context, userID, id, key string) error {
	update := r.conn.builder().Update(materialsTable).
		Set("media_key", key).
		Where(sql.And(sql.EQ("user_id", userID), sql.EQ("id", id)))
	if _, err := r.conn.exec(ctx, update); err != nil {
		return fmt.Errorf("set material media: %w", err)
	}
	return nil
}

func (r *MaterialRepository) CreateSentence(ctx context.Context, s *entity.Sentence) (*entity.Sentence, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	rec := (&record{}).
		set("id", s.ID).
		set("material_id", s.MaterialID).
		set("user_id", s.UserID).
		set("position", s.Position).
		set("text", s.Text).
		set("translation", nullableString(s.Translation)).
		set("start_seconds", s.StartSeconds).
		set("end_seconds", s.EndSeconds)
	if err := r.conn.insert(ctx, sentencesTable, rec, true); err != nil {
		return nil, fmt.Errorf("create sentence: %w", err)
	}
	return s, nil
}

func (r *MaterialRepository) ListSentences(ctx context.Context, materialID string) ([]entity.Sentence, error) {
	q := r.conn.selectFrom(sentencesTable, sentenceColumns...).
		Where(sql.EQ("material_id", materialID)).
		OrderBy(sql.Asc("position"), sql.Asc("id"))
	var sentences []entity.Sentence
	err := r.conn.query(ctx, q, func(rows *stdsql.Rows) error {
		var (
			s           entity.Sentence
			translation stdsql.NullString
		)
		if err := rows.Scan(&s.ID, &s.MaterialID, &s.UserID, &s.Position, &s.Text, &translation, &s.StartSeconds, &s.EndSeconds); err != nil {
			return err
		}
		s.Translation = translation.String
		sentences = append(sentences, s)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list sentences: %w", err)
	}
	return sentences, nil
}

func scanMaterial(rows *stdsql.Rows) (entity.Material, error) {
	var (
		m           entity.Material
		folder      stdsql.NullString
		description stdsql.NullString
		mediaKey    stdsql.NullString
		filename    stdsql.NullString
		mediaType   stdsql.NullString
	)
	if err := rows.Scan(&m.ID, &m.UserID, &folder, &m.Title, &description, &mediaKey, &filename, &mediaType, &m.DurationSeconds, &m.CreatedAt); err != nil {
		return entity.Material{}, err
	}
	m.FolderID = stringPtr(folder)
	m.Description = description.String
	m.MediaKey = mediaKey.String
	m.MediaFilename = filename.String
	m.MediaType = mediaType.String
	return m, nil
}
