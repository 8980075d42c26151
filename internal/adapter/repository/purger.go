package repository

import (
	"context"
	stdsql "database/sql"
	"errors"
	"fmt"

	"entgo.io/ent/dialect/sql"
	"github.com/samber/lo"

	"github.com/eslsoft/deeplisten/internal/repository"
)

var purgeTables = map[repository.Collection]string{
	repository.CollectionReviews:      reviewsTable,
	repository.CollectionPractices:    practicesTable,
	repository.CollectionDailyStats:   dailyStatsTable,
	repository.CollectionStatuses:     statusesTable,
	repository.CollectionSentences:    sentencesTable,
	repository.CollectionMaterials:    materialsTable,
	repository.CollectionFolders:      foldersTable,
	repository.CollectionDictEntries:  dictionaryWordsTable,
	repository.CollectionDictionaries: dictionariesTable,
}

type Purger struct {
	conn *Conn
}

// NewPurger constructs a batched deleter over the user-scoped tables.
func NewPurger(conn *Conn) repository.Purger {
	return &Purger{conn: conn}
}

func scopePredicate(scope repository.PurgeScope) (*sql.Predicate, error) {
	switch {
	case scope.UserID != "" && scope.ImportRun == "":
		return sql.EQ("user_id", scope.UserID), nil
	case scope.ImportRun != "" && scope.UserID == "":
		return sql.EQ(columnImportRun, scope.ImportRun), nil
	default:
		return nil, errors.New("purge scope needs exactly one of user or import run")
	}
}

func (p *Purger) PurgeBatch(ctx context.Context, c repository.Collection, scope repository.PurgeScope, limit int) (int, error) {
	table, ok := purgeTables[c]
	if !ok {
		return 0, fmt.Errorf("unknown collection %q", c)
	}
	where, err := scopePredicate(scope)
	if err != nil {
		return 0, err
	}

	var ids []string
	q := p.conn.selectFrom(table, "id").Where(where).OrderBy(sql.Asc("id")).Limit(limit)
	err = p.conn.query(ctx, q, func(rows *stdsql.Rows) error {
		var id string
		if err := rows.Scan(&id); err != nil {
			return err
		}
		ids = append(ids, id)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("select %s batch: %w", table, err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	affected, err := p.conn.exec(ctx, p.conn.builder().Delete(table).Where(sql.In("id", lo.ToAnySlice(ids)...)))
	if err != nil {
		return 0, fmt.Errorf("delete %s batch: %w", table, err)
	}
	return int(affected), nil
}

func (p *Purger) DetachFolders(ctx context.Context, scope repository.PurgeScope) error {
	where, err := scopePredicate(scope)
	if err != nil {
		return err
	}
	update := p.conn.builder().Update(foldersTable).SetNull("parent_id").Where(where)
	if _, err := p.conn.exec(ctx, update); err != nil {
		return fmt.Errorf("detach folders: %w", err)
	}
	return nil
}

func (p *Purger) Count(ctx context.Context, c repository.Collection, scope repository.PurgeScope) (int, error) {
	table, ok := purgeTables[c]
	if !ok {
		return 0, fmt.Errorf("unknown collection %q", c)
	}
	where, err := scopePredicate(scope)
	if err != nil {
		return 0, err
	}
	return p.conn.count(ctx, table, where)
}

func (p *Purger) CommitRun(ctx context.Context, runID string) error {
	if runID == "" {
		return errors.New("commit needs an import run")
	}
	for _, table := range []string{foldersTable, materialsTable, sentencesTable, statusesTable, reviewsTable, dictionariesTable, dictionaryWordsTable, practicesTable, dailyStatsTable} {
		update := p.conn.builder().Update(table).SetNull(columnImportRun).Where(sql.EQ(columnImportRun, runID))
		if _, err := p.conn.exec(ctx, update); err != nil {
			return fmt.Errorf("commit %s: %w", table, err)
		}
	}
	return nil
}
