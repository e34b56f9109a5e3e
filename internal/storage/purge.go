package storage

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// PurgeAll deletes every visit, metadata and url row in one transaction.
// The schema and its version are kept.
func (s *SQLiteStore) PurgeAll(ctx context.Context) error {
	var removed int64
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		for _, table := range []string{"visit", "metadata", "url"} {
			res, err := tx.ExecContext(ctx, "DELETE FROM "+table)
			if err != nil {
				return fmt.Errorf("purge %s: %w", table, err)
			}
			n, _ := res.RowsAffected()
			removed += n
		}
		return nil
	})
	if err != nil {
		return err
	}
	zap.L().Info("store purged", zap.Int64("rows", removed))
	return nil
}
