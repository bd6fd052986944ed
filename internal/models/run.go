package models

import (
	"fmt"
	"time"
)

// SyncRun is the persisted record of one import job.
type SyncRun struct {
	id           string
	sequence     int
	jobID        string
	playlistName string
	playlistID   string
	library      string
	mode         SyncMode
	threshold    int
	status       JobState
	total        int
	matched      int
	unmatched    int
	added        int
	errorMessage string
	startedAt    *time.Time
	completedAt  *time.Time
	createdAt    time.Time
	updatedAt    time.Time
	deletedAt    *time.Time
	entries      []ReportEntry
}

// NewSyncRun creates a pending run for the given job.
func NewSyncRun(sequence int, jobID, playlistName string, mode SyncMode, threshold int) *SyncRun {
	now := time.Now()
	return &SyncRun{
		sequence:     sequence,
		jobID:        jobID,
		playlistName: playlistName,
		mode:         mode,
		threshold:    threshold,
		status:       JobPending,
		createdAt:    now,
		updatedAt:    now,
	}
}

// NewSyncRunFromJob builds a run from a finished job snapshot and its outcome.
func NewSyncRunFromJob(job SyncJob, mode SyncMode, threshold int, library string, outcome *WriteOutcome, entries []ReportEntry) *SyncRun {
	run := NewSyncRun(0, job.ID, job.Playlist, mode, threshold)
	run.library = library
	run.status = job.State
	run.total = job.Total
	run.matched = job.Matched
	run.unmatched = job.Unmatched
	run.errorMessage = job.Error
	run.startedAt = job.StartedAt
	run.completedAt = job.CompletedAt
	run.createdAt = job.CreatedAt
	if outcome != nil {
		run.playlistID = outcome.PlaylistID
		run.added = outcome.Added
	}
	run.entries = append([]ReportEntry(nil), entries...)
	return run
}

func (r *SyncRun) ID() string              { return r.id }
func (r *SyncRun) Sequence() int           { return r.sequence }
func (r *SyncRun) JobID() string           { return r.jobID }
func (r *SyncRun) PlaylistName() string    { return r.playlistName }
func (r *SyncRun) PlaylistID() string      { return r.playlistID }
func (r *SyncRun) Library() string         { return r.library }
func (r *SyncRun) Mode() SyncMode          { return r.mode }
func (r *SyncRun) Threshold() int          { return r.threshold }
func (r *SyncRun) Status() JobState        { return r.status }
func (r *SyncRun) Total() int              { return r.total }
func (r *SyncRun) Matched() int            { return r.matched }
func (r *SyncRun) Unmatched() int          { return r.unmatched }
func (r *SyncRun) Added() int              { return r.added }
func (r *SyncRun) ErrorMessage() string    { return r.errorMessage }
func (r *SyncRun) StartedAt() *time.Time   { return r.startedAt }
func (r *SyncRun) CompletedAt() *time.Time { return r.completedAt }
func (r *SyncRun) CreatedAt() time.Time    { return r.createdAt }
func (r *SyncRun) UpdatedAt() time.Time    { return r.updatedAt }
func (r *SyncRun) DeletedAt() *time.Time   { return r.deletedAt }

// Entries returns the run's report lines in input order.
func (r *SyncRun) Entries() []ReportEntry { return r.entries }

func (r *SyncRun) SetID(id string)                  { r.id = id }
func (r *SyncRun) SetSequence(seq int)              { r.sequence = seq }
func (r *SyncRun) SetPlaylistID(id string)          { r.playlistID = id }
func (r *SyncRun) SetLibrary(library string)        { r.library = library }
func (r *SyncRun) SetStatus(status JobState)        { r.status = status }
func (r *SyncRun) SetTotal(n int)                   { r.total = n }
func (r *SyncRun) SetMatched(n int)                 { r.matched = n }
func (r *SyncRun) SetUnmatched(n int)               { r.unmatched = n }
func (r *SyncRun) SetAdded(n int)                   { r.added = n }
func (r *SyncRun) SetErrorMessage(msg string)       { r.errorMessage = msg }
func (r *SyncRun) SetStartedAt(t *time.Time)        { r.startedAt = t }
func (r *SyncRun) SetCompletedAt(t *time.Time)      { r.completedAt = t }
func (r *SyncRun) SetCreatedAt(t time.Time)         { r.createdAt = t }
func (r *SyncRun) SetUpdatedAt(t time.Time)         { r.updatedAt = t }
func (r *SyncRun) SetDeletedAt(t *time.Time)        { r.deletedAt = t }
func (r *SyncRun) SetEntries(entries []ReportEntry) { r.entries = entries }

// Validate checks the run's required fields and counters.
func (r *SyncRun) Validate() error {
	if r.jobID == "" {
		return fmt.Errorf("job id is required")
	}
	if r.playlistName == "" {
		return fmt.Errorf("playlist name is required")
	}
	switch r.mode {
	case ModeReplace, ModeAppend:
	default:
		return fmt.Errorf("invalid mode: %q", r.mode)
	}
	switch r.status {
	case JobPending, JobRunning, JobCompleted, JobFailed:
	default:
		return fmt.Errorf("invalid status: %q", r.status)
	}
	if r.threshold < 0 || r.threshold > 100 {
		return fmt.Errorf("threshold out of range: %d", r.threshold)
	}
	if r.matched+r.unmatched > r.total {
		return fmt.Errorf("matched (%d) + unmatched (%d) exceeds total (%d)", r.matched, r.unmatched, r.total)
	}
	return nil
}
