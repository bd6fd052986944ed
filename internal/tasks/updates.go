package tasks

import (
	"fmt"

	"github.com/desertthunder/plexlist/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	ResolveLibrary Phase = iota
	MatchTracks
	WritePlaylist
	ImportFiles
)

func (p Phase) String() string {
	switch p {
	case ResolveLibrary:
		return "resolve_library"
	case MatchTracks:
		return "match_tracks"
	case WritePlaylist:
		return "write_playlist"
	case ImportFiles:
		return "import_files"
	default:
		return ""
	}
}

func resolveLibraryUpdate(ref string) ProgressUpdate {
	msg := "Resolving music library..."
	if ref != "" {
		msg = fmt.Sprintf("Resolving music library (%s)...", ref)
	}
	return ProgressUpdate{Phase: ResolveLibrary, Step: 0, Total: 1, Message: msg}
}

func matchTrackUpdate(step, total int, rec models.TrackRecord, res models.MatchResult) ProgressUpdate {
	mark := "✓"
	if res.Status != models.StatusMatched {
		mark = "✗"
	}
	return ProgressUpdate{
		Phase:   MatchTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s %s", step, total, mark, rec.String()),
		Data:    res,
	}
}

func skipWriteUpdate(name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   WritePlaylist,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("No tracks matched; playlist %q left unchanged", name),
	}
}

func writePlaylistUpdate(name string, mode models.SyncMode, count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   WritePlaylist,
		Step:    0,
		Total:   1,
		Message: fmt.Sprintf("Writing %d tracks to %q (%s)...", count, name, mode),
	}
}

func playlistWrittenUpdate(outcome models.WriteOutcome) ProgressUpdate {
	verb := "Updated"
	if outcome.Created {
		verb = "Created"
	}
	return ProgressUpdate{
		Phase:   WritePlaylist,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("%s playlist: %s (ID: %s, %d added)", verb, outcome.PlaylistName, outcome.PlaylistID, outcome.Added),
		Data:    outcome,
	}
}

func importingFileUpdate(step, total int, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ImportFiles,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Importing: %s...", step, total, name),
	}
}

func importCompletedUpdate(step, total int, name string, matched, records int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ImportFiles,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%d/%d matched)", step, total, name, matched, records),
	}
}

func importFailedUpdate(step, total int, name string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ImportFiles,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, name, err),
	}
}
