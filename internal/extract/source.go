package extract

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// Source is a foreign, read-only history format. Validate must succeed
// before Extract is called. Extract appends URLs, visits and warnings to
// the batch and returns an error only when the whole file is unreadable;
// row-level problems go into b.Warnings.
type Source interface {
	Name() string
	Validate(ctx context.Context, db *sqlx.DB) error
	Extract(ctx context.Context, db *sqlx.DB, b *Batch, newID func() string) error
}

// tableExists reports whether the foreign database has a table with the
// given name.
func tableExists(ctx context.Context, db *sqlx.DB, table string) (bool, error) {
	var n int
	err := db.GetContext(ctx, &n,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", table,
	)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
