package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/plexlist/internal/models"
	"github.com/desertthunder/plexlist/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgImportStarted MsgKind = iota
	MsgProgressUpdate
	MsgImportFinished
)

// finished is the payload of [MsgImportFinished].
type finished struct {
	job    models.SyncJob
	result *tasks.SyncResult
	err    error
}

// importStartedMsg is the constructor for [MsgImportStarted]
func importStartedMsg(jobID string, err error) Msg {
	return Msg{
		kind: MsgImportStarted,
		data: struct {
			jobID string
			err   error
		}{jobID, err},
	}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// importFinishedMsg is the constructor for [MsgImportFinished]
func importFinishedMsg(job models.SyncJob, result *tasks.SyncResult) Msg {
	f := finished{job: job, result: result}
	if job.State == models.JobFailed {
		f.err = jobError(job)
	}
	return Msg{kind: MsgImportFinished, data: f}
}
