package main

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/plexlist/internal/models"
	"github.com/desertthunder/plexlist/internal/services"
	"github.com/desertthunder/plexlist/internal/shared"
	"github.com/desertthunder/plexlist/internal/tasks"
	"github.com/desertthunder/plexlist/internal/ui"
)

const tuiLogPath = "./tmp/plexlist-tui.log"

// importTUI previews, confirms and monitors an import in the terminal UI.
func (r *Runner) importTUI(ctx context.Context, catalog services.Catalog, src csvSource, req tasks.SubmitRequest) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, f, err := shared.NewFileLogger(tuiLogPath)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	defer f.Close()
	r.SetLogger(fileLogger)

	importer := r.newImporter(catalog)
	defer importer.Shutdown()
	defer r.withHistory(importer)()

	preview, err := previewSource(importer, src)
	if err != nil {
		return err
	}

	// The confirm view shows what will be submitted, so resolve defaults up front.
	if req.PlaylistName == "" {
		req.PlaylistName = r.config.Sync.DefaultPlaylist
	}
	if req.PlaylistName == "" {
		req.PlaylistName = tasks.DefaultPlaylistName
	}
	if req.Mode == "" {
		if req.Mode, err = r.defaultMode(); err != nil {
			req.Mode = models.ModeReplace
		}
	}
	if req.Threshold <= 0 {
		req.Threshold = r.config.Matching.Threshold
	}
	if req.Threshold <= 0 {
		req.Threshold = tasks.DefaultThreshold
	}

	model := ui.NewModel(ctx, importer, preview, req)
	p := tea.NewProgram(model, tea.WithContext(ctx), tea.WithAltScreen())

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("error running TUI: %w", err)
	}

	if job := model.Job(); job.ID != "" {
		r.writePlain("%s: %d/%d matched (%s)\n", job.Playlist, job.Matched, job.Total, job.State)
	}
	return model.Err()
}
