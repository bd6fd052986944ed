package models

import (
	"fmt"
	"strings"
	"time"
)

// SyncMode selects how matched tracks are applied to the playlist.
type SyncMode string

const (
	// ModeReplace makes the playlist contain exactly the matched tracks.
	ModeReplace SyncMode = "replace"
	// ModeAppend adds matched tracks not already present, keeping existing items.
	ModeAppend SyncMode = "append"
)

// ParseSyncMode accepts "replace" or "append" in any case.
func ParseSyncMode(s string) (SyncMode, error) {
	switch SyncMode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeReplace:
		return ModeReplace, nil
	case ModeAppend:
		return ModeAppend, nil
	default:
		return "", fmt.Errorf("unknown sync mode %q (want replace or append)", s)
	}
}

// JobState is the lifecycle state of an import job.
type JobState string

const (
	JobPending   JobState = "pending"
	JobRunning   JobState = "running"
	JobCompleted JobState = "completed"
	JobFailed    JobState = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s JobState) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// SyncJob is a point-in-time view of an import job.
//
// Values handed out by the progress tracker are copies; mutating one has no effect on the job.
type SyncJob struct {
	ID          string     `json:"id"`
	State       JobState   `json:"state"`
	Playlist    string     `json:"playlist"`
	Total       int        `json:"total"`
	Processed   int        `json:"processed"`
	Matched     int        `json:"matched"`
	Unmatched   int        `json:"unmatched"`
	Error       string     `json:"error,omitempty"`
	ReportToken string     `json:"reportToken,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// Percent returns processed/total as a whole percentage. An empty job is 100% once finished.
func (j SyncJob) Percent() int {
	if j.Total == 0 {
		if j.State.Terminal() {
			return 100
		}
		return 0
	}
	return j.Processed * 100 / j.Total
}

// WriteOutcome describes what a sync changed on the server.
type WriteOutcome struct {
	PlaylistID     string   `json:"playlistId,omitempty"`
	PlaylistName   string   `json:"playlistName"`
	Mode           SyncMode `json:"mode"`
	Created        bool     `json:"created"`
	Written        bool     `json:"written"`
	Added          int      `json:"added"`
	AlreadyPresent int      `json:"alreadyPresent"`
	Duplicates     int      `json:"duplicates"`
}
