package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/desertthunder/plexlist/internal/models"
)

var _ models.Repository[*models.SyncRun] = (*SyncRunRepository)(nil)

// List criteria keys understood by [SyncRunRepository.List].
const (
	CriteriaPlaylist = "playlist_name"
	CriteriaStatus   = "status"
	CriteriaJobID    = "job_id"
	CriteriaLimit    = "limit"
)

// sequenced lists the tables that have a companion {table}_sequence counter.
var sequenced = map[string]bool{
	"sync_runs": true,
}

// NextSequence increments and returns the sequence counter of table inside tx.
//
// Running in the caller's transaction means a rolled-back insert also gives its number back.
func NextSequence(ctx context.Context, tx *sql.Tx, table string) (int, error) {
	if !sequenced[table] {
		return 0, fmt.Errorf("table %q has no sequence", table)
	}

	var sequence int
	query := fmt.Sprintf("UPDATE %s_sequence SET value = value + 1 WHERE id = 1 RETURNING value", table)
	if err := tx.QueryRowContext(ctx, query).Scan(&sequence); err != nil {
		return 0, fmt.Errorf("failed to increment sequence: %w", err)
	}
	return sequence, nil
}
