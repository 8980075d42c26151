package backup

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/eslsoft/deeplisten/internal/repository"
)

// eraseOrder lists collections children first so no delete trips a foreign key.
var eraseOrder = []repository.Collection{
	repository.CollectionReviews,
	repository.CollectionPractices,
	repository.CollectionDailyStats,
	repository.CollectionStatuses,
	repository.CollectionSentences,
	repository.CollectionMaterials,
	repository.CollectionFolders,
	repository.CollectionDictEntries,
	repository.CollectionDictionaries,
}

// Eraser deletes user-scoped rows in dependency order and bounded batches.
// A failure mid-cascade leaves the rows deleted so far gone.
type Eraser struct {
	purger    repository.Purger
	batchSize int
	logger    logrus.FieldLogger
}

// NewEraser constructs an eraser deleting batchSize rows per statement.
func NewEraser(purger repository.Purger, batchSize int, logger logrus.FieldLogger) *Eraser {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Eraser{purger: purger, batchSize: batchSize, logger: logger}
}

// EraseUser removes every user-scoped row of userID.
func (e *Eraser) EraseUser(ctx context.Context, userID string) (map[repository.Collection]int, error) {
	return e.erase(ctx, repository.PurgeScope{UserID: userID})
}

// Sweep removes every row written by the import run runID.
func (e *Eraser) Sweep(ctx context.Context, runID string) (map[repository.Collection]int, error) {
	return e.erase(ctx, repository.PurgeScope{ImportRun: runID})
}

func (e *Eraser) erase(ctx context.Context, scope repository.PurgeScope) (map[repository.Collection]int, error) {
	deleted := make(map[repository.Collection]int, len(eraseOrder))
	for _, c := range eraseOrder {
		if c == repository.CollectionFolders {
			if err := e.purger.DetachFolders(ctx, scope); err != nil {
				return deleted, err
			}
		}
		for {
			n, err := e.purger.PurgeBatch(ctx, c, scope, e.batchSize)
			if err != nil {
				return deleted, fmt.Errorf("erase %s: %w", c, err)
			}
			deleted[c] += n
			if n == 0 {
				break
			}
		}
		if deleted[c] > 0 {
			e.logger.WithFields(logrus.Fields{
				"collection": c,
				"user_id":    scope.UserID,
				"import_run": scope.ImportRun,
				"deleted":    deleted[c],
			}).Debug("erased rows")
		}
	}
	return deleted, nil
}
