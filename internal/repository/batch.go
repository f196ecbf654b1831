package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// execBatch sends the queued statements in one round trip. Postgres runs an
// unsynchronised batch in a single implicit transaction, so a chunk either
// lands completely or not at all.
func execBatch(ctx context.Context, db DBTX, b *pgx.Batch) error {
	if b.Len() == 0 {
		return nil
	}
	if b.Len() > BatchSize {
		return fmt.Errorf("batch of %d exceeds limit %d", b.Len(), BatchSize)
	}

	br := db.SendBatch(ctx, b)
	for i := 0; i < b.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("batch statement %d: %w", i, err)
		}
	}
	return br.Close()
}
