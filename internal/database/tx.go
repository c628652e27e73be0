package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// WithTx runs fn inside a single transaction. The transaction is rolled back
// when fn returns an error or panics.
func WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	if DB == nil {
		return fmt.Errorf("database connection is not established")
	}

	tx, err := DB.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// lockForUpdate appends a row lock on drivers that support it.
// SQLite runs with a single connection, so transactions are already serialized there.
func lockForUpdate(q sqlx.ExtContext, query string) string {
	if q.DriverName() == driverPostgres {
		return query + " FOR UPDATE"
	}
	return query
}

// inQuery expands an IN (?) clause and rebinds placeholders for the driver
func inQuery(q sqlx.ExtContext, query string, args ...interface{}) (string, []interface{}, error) {
	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return "", nil, err
	}
	return q.Rebind(query), args, nil
}
