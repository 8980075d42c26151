package migrate

import (
	"context"
	stdsql "database/sql"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
	"entgo.io/ent/dialect/sql/schema"
)

// Create runs the auto migration for all tables against db.
func Create(ctx context.Context, db *stdsql.DB, dialect string) error {
	m, err := schema.NewMigrate(entsql.OpenDB(dialect, db), schema.WithForeignKeys(true))
	if err != nil {
		return fmt.Errorf("ent/migrate: %w", err)
	}
	if err := m.Create(ctx, Tables...); err != nil {
		return fmt.Errorf("ent/migrate: create schema: %w", err)
	}
	return nil
}
