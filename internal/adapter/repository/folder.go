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

const foldersTable = "folders"

var folderColumns = []string{"id", "user_id", "parent_id", "name", "position", "created_at"}

type FolderRepository struct {
	conn *Conn
}

// NewFolderRepository constructs a SQL-backed folder repository.
func NewFolderRepository(conn *Conn) repository.FolderRepository {
	return &FolderRepository{conn: conn}
}

func (r *FolderRepository) Create(ctx context.Context, folder *entity.Folder) (*entity.Folder, error) {
	if folder.ID == "" {
		folder.ID = uuid.NewString()
	}
	if folder.CreatedAt.IsZero() {
		folder.CreatedAt = time.Now()
	}
	rec := (&record{}).
		set("id", folder.ID).
		set("user_id", folder.UserID).
		set("parent_id", nullableRef(folder.ParentID)).
		set("name", folder.Name).
		set("position", folder.Position).
		set("created_at", folder.CreatedAt.UTC())
	if err := r.conn.insert(ctx, foldersTable, rec, true); err != nil {
		return nil, fmt.Errorf("create folder: %w", err)
	}
	return folder, nil
}

func (r *FolderRepository) GetByID(ctx context.Context, userID, id string) (*entity.Folder, error) {
	q := r.conn.selectFrom(foldersTable, folderColumns...).
		Where(sql.And(sql.EQ("user_id", userID), sql.EQ("id", id)))
	return r.one(ctx, q)
}

func (r *FolderRepository) FindByName(ctx context.Context, userID, name string, parentID *string) (*entity.Folder, error) {
	parent := sql.IsNull("parent_id")
	if parentID != nil {
		parent = sql.EQ("parent_id", *parentID)
	}
	q := r.conn.selectFrom(foldersTable, folderColumns...).
		Where(sql.And(sql.EQ("user_id", userID), sql.EQ("name", name), parent)).
		OrderBy(sql.Asc("created_at"), sql.Asc("id")).
		Limit(1)
	return r.one(ctx, q)
}

func (r *FolderRepository) SetParent(ctx context.Context, userID, id string, parentID *string) error {
	update := r.conn.builder().Update(foldersTable).
		Where(sql.And(sql.EQ("user_id", userID), sql.EQ("id", id)))
	if parentID == nil {
		update.SetNull("parent_id")
	} else {
		update.Set("parent_id", *parentID)
	}
	if _, err := r.conn.exec(ctx, update); err != nil {
		return fmt.Errorf("set folder parent: %w", err)
	}
	return nil
}

func (r *FolderRepository) List(ctx context.Context, userID string, page repository.Pagination) ([]entity.Folder, error) {
	q := r.conn.selectFrom(foldersTable, folderColumns...).
		Where(sql.EQ("user_id", userID)).
		OrderBy(sql.Asc("position"), sql.Asc("created_at"), sql.Asc("id"))
	var folders []entity.Folder
	err := r.conn.query(ctx, limitOffset(q, page.PageSize, page.Offset()), func(rows *stdsql.Rows) error {
		f, err := scanFolder(rows)
		if err != nil {
			return err
		}
		folders = append(folders, f)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}
	return folders, nil
}

func (r *FolderRepository) one(ctx context.Context, q *sql.Selector) (*entity.Folder, error) {
	var found *entity.Folder
	err := r.conn.query(ctx, q, func(rows *stdsql.Rows) error {
		f, err := scanFolder(rows)
		if err != nil {
			return err
		}
		found = &f
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("find folder: %w", err)
	}
	return found, nil
}

func scanFolder(rows *stdsql.Rows) (entity.Folder, error) {
	var (
		f      entity.Folder
		parent stdsql.NullString
	)
	if err := rows.Scan(&f.ID, &f.UserID, &parent, &f.Name, &f.Position, &f.CreatedAt); err != nil {
		return entity.Folder{}, err
	}
	f.ParentID = stringPtr(parent)
	return f, nil
}
