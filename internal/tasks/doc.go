// Package tasks imports CSV track listings into media server playlists with real-time progress reporting.
//
// # Core Operations
//
// The [SyncEngine] interface defines one operation:
//
//  1. [SyncEngine.Run] : CSV records → playlist
//     - Resolves the music library by id or name
//     - Searches each record in the catalog and lets the matcher pick a candidate
//     - Collapses matched rating keys, keeping first occurrences in input order
//     - Replaces the playlist contents, or appends the keys not already present
//     - Returns one match result per record plus the write outcome
//
// Search failures are recorded as unmatched rows with a reason. Playlist failures fail the run
// with [shared.ErrPlaylistWrite]; a playlist is never reported as written unless the write succeeded.
//
// # Background Jobs
//
// [Importer] wraps an engine with a job registry (progress.Tracker) and a report store (reports.Store).
// [Importer.Submit] normalizes input synchronously, rejects a second import into a playlist that is
// still being written, and runs the job on its own goroutine as a cancellable [Task]. Pollers read
// snapshots with [Importer.Poll]; a finished job carries a report token for [Importer.FetchReport].
//
// [Importer.BulkImport] runs a worker pool over a directory of CSV files, one playlist per file,
// and writes a manifest summarizing the results.
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking. Per-record counters go to a [ProgressSink].
//
// # Run History
//
// The optional [RunRecorder] interface persists each finished job (repositories.SyncRunRepository).
// Recording failures are logged and never change the job outcome.
package tasks
