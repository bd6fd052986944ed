package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/plexlist/internal/models"
	"github.com/desertthunder/plexlist/internal/shared"
)

// SyncRunRepository implements models.Repository[*models.SyncRun] for import history.
//
// Handles run CRUD operations with soft delete support. The per-row report of a run is stored in
// run_entries and loaded by Get.
type SyncRunRepository struct {
	db *sql.DB
}

// NewSyncRunRepository creates a new SyncRunRepository with the given database connection
func NewSyncRunRepository(db *sql.DB) *SyncRunRepository {
	return &SyncRunRepository{db: db}
}

const syncRunColumns = `
	id, sequence, job_id, playlist_name, playlist_id, library, mode, threshold,
	status, tracks_total, tracks_matched, tracks_unmatched, tracks_added,
	error_message, started_at, completed_at, created_at, updated_at, deleted_at
`

// Record persists a finished run. It satisfies tasks.RunRecorder.
func (r *SyncRunRepository) Record(ctx context.Context, run *models.SyncRun) error {
	return r.CreateContext(ctx, run)
}

// Create inserts a new run and its report entries with generated ID and sequence
func (r *SyncRunRepository) Create(run *models.SyncRun) error {
	return r.CreateContext(context.Background(), run)
}

// CreateContext is Create bound to ctx.
func (r *SyncRunRepository) CreateContext(ctx context.Context, run *models.SyncRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	sequence, err := NextSequence(ctx, tx, "sync_runs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}
	id := shared.GenerateID()

	query := `
		INSERT INTO sync_runs (
			id, sequence, job_id, playlist_name, playlist_id, library, mode, threshold,
			status, tracks_total, tracks_matched, tracks_unmatched, tracks_added,
			error_message, started_at, completed_at, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = tx.ExecContext(ctx, query,
		id,
		sequence,
		run.JobID(),
		run.PlaylistName(),
		nullable(run.PlaylistID()),
		nullable(run.Library()),
		run.Mode(),
		run.Threshold(),
		run.Status(),
		run.Total(),
		run.Matched(),
		run.Unmatched(),
		run.Added(),
		nullable(run.ErrorMessage()),
		run.StartedAt(),
		run.CompletedAt(),
		run.CreatedAt(),
		run.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert sync run: %w", err)
	}

	if err := insertEntries(ctx, tx, id, run.Entries()); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit sync run: %w", err)
	}

	run.SetID(id)
	run.SetSequence(sequence)
	return nil
}

func insertEntries(ctx context.Context, tx *sql.Tx, runID string, entries []models.ReportEntry) error {
	if len(entries) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO run_entries (run_id, position, line, artist, album, title, status, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare entry insert: %w", err)
	}
	defer stmt.Close()

	for i, e := range entries {
		if _, err := stmt.ExecContext(ctx, runID, i, e.Line, e.Artist, e.Album, e.Title, e.Status, e.Reason); err != nil {
			return fmt.Errorf("failed to insert run entry %d: %w", i, err)
		}
	}
	return nil
}

// Get retrieves a run and its entries by ID, excluding soft-deleted runs
func (r *SyncRunRepository) Get(id string) (*models.SyncRun, error) {
	query := `SELECT ` + syncRunColumns + ` FROM sync_runs WHERE id = ? AND deleted_at IS NULL`
	run, err := scanSyncRun(r.db.QueryRow(query, id))
	if err != nil {
		return nil, err
	}

	entries, err := r.Entries(id)
	if err != nil {
		return nil, err
	}
	run.SetEntries(entries)
	return run, nil
}

// GetByJobID retrieves the run recorded for an import job.
func (r *SyncRunRepository) GetByJobID(jobID string) (*models.SyncRun, error) {
	var id string
	err := r.db.QueryRow(`SELECT id FROM sync_runs WHERE job_id = ? AND deleted_at IS NULL`, jobID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sync run not found for job: %s", jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up sync run: %w", err)
	}
	return r.Get(id)
}

// Entries returns the report entries of a run in input order.
func (r *SyncRunRepository) Entries(runID string) ([]models.ReportEntry, error) {
	rows, err := r.db.Query(`
		SELECT line, artist, album, title, status, reason
		FROM run_entries
		WHERE run_id = ?
		ORDER BY position
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query run entries: %w", err)
	}
	defer rows.Close()

	entries := []models.ReportEntry{}
	for rows.Next() {
		var (
			e      models.ReportEntry
			status string
		)
		if err := rows.Scan(&e.Line, &e.Artist, &e.Album, &e.Title, &status, &e.Reason); err != nil {
			return nil, fmt.Errorf("failed to scan run entry: %w", err)
		}
		e.Status = models.MatchStatus(status)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return entries, nil
}

// Update modifies the mutable fields of an existing run. Entries are not rewritten.
func (r *SyncRunRepository) Update(run *models.SyncRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	run.SetUpdatedAt(now)

	query := `
		UPDATE sync_runs
		SET playlist_id = ?, library = ?, status = ?, tracks_total = ?,
			tracks_matched = ?, tracks_unmatched = ?, tracks_added = ?,
			error_message = ?, started_at = ?, completed_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		nullable(run.PlaylistID()),
		nullable(run.Library()),
		run.Status(),
		run.Total(),
		run.Matched(),
		run.Unmatched(),
		run.Added(),
		nullable(run.ErrorMessage()),
		run.StartedAt(),
		run.CompletedAt(),
		now,
		run.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update sync run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("sync run not found or already deleted: %s", run.ID())
	}
	return nil
}

// Delete soft-deletes a run by ID
func (r *SyncRunRepository) Delete(id string) error {
	result, err := r.db.Exec(`
		UPDATE sync_runs
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete sync run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("sync run not found or already deleted: %s", id)
	}
	return nil
}

// List retrieves runs matching the given criteria, newest first, excluding soft-deleted runs.
//
// Supported criteria: "playlist_name", "status", "job_id" (strings) and "limit" (int).
// Entries are not loaded; use Get or Entries.
func (r *SyncRunRepository) List(criteria map[string]any) ([]*models.SyncRun, error) {
	query := `SELECT ` + syncRunColumns + ` FROM sync_runs WHERE deleted_at IS NULL`
	args := []any{}

	for _, col := range []string{CriteriaPlaylist, CriteriaStatus, CriteriaJobID} {
		if v, ok := criteria[col].(string); ok && v != "" {
			query += " AND " + col + " = ?"
			args = append(args, v)
		}
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria[CriteriaLimit].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.SyncRun
	for rows.Next() {
		run, err := scanSyncRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return runs, nil
}

// scanner is satisfied by [sql.Row] and [sql.Rows].
type scanner interface {
	Scan(dest ...any) error
}

// scanSyncRun scans one sync_runs row into a [models.SyncRun]
func scanSyncRun(row scanner) (*models.SyncRun, error) {
	var (
		id           string
		sequence     int
		jobID        string
		playlistName string
		playlistID   sql.NullString
		library      sql.NullString
		mode         string
		threshold    int
		status       string
		total        int
		matched      int
		unmatched    int
		added        int
		errorMessage sql.NullString
		startedAt    sql.NullTime
		completedAt  sql.NullTime
		createdAt    time.Time
		updatedAt    time.Time
		deletedAt    sql.NullTime
	)

	err := row.Scan(
		&id, &sequence, &jobID, &playlistName, &playlistID, &library, &mode, &threshold,
		&status, &total, &matched, &unmatched, &added,
		&errorMessage, &startedAt, &completedAt, &createdAt, &updatedAt, &deletedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sync run not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan sync run: %w", err)
	}

	run := models.NewSyncRun(sequence, jobID, playlistName, models.SyncMode(mode), threshold)
	run.SetID(id)
	run.SetCreatedAt(createdAt)
	run.SetUpdatedAt(updatedAt)
	run.SetPlaylistID(playlistID.String)
	run.SetLibrary(library.String)
	run.SetStatus(models.JobState(status))
	run.SetTotal(total)
	run.SetMatched(matched)
	run.SetUnmatched(unmatched)
	run.SetAdded(added)
	run.SetErrorMessage(errorMessage.String)
	if startedAt.Valid {
		run.SetStartedAt(&startedAt.Time)
	}
	if completedAt.Valid {
		run.SetCompletedAt(&completedAt.Time)
	}
	if deletedAt.Valid {
		run.SetDeletedAt(&deletedAt.Time)
	}
	return run, nil
}

// nullable maps an empty string to SQL NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
