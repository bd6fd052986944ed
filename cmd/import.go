package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/plexlist/internal/formatter"
	"github.com/desertthunder/plexlist/internal/models"
	"github.com/desertthunder/plexlist/internal/shared"
	"github.com/desertthunder/plexlist/internal/tasks"
)

// withHistory attaches the run history database to importer when it is enabled.
// The returned func closes the database.
func (r *Runner) withHistory(importer *tasks.Importer) func() {
	db, repo, err := r.openHistory()
	if err != nil {
		r.logger.Warn("run history disabled", "error", err)
		return func() {}
	}
	if repo == nil {
		return func() {}
	}
	importer.SetRecorder(repo)
	return func() { db.Close() }
}

func parseMode(s string) (models.SyncMode, error) {
	if s == "" {
		return "", nil
	}
	mode, err := models.ParseSyncMode(s)
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}
	return mode, nil
}

// Import imports one CSV into a playlist and prints the outcome.
func (r *Runner) Import(ctx context.Context, cmd *cli.Command) error {
	src, err := readSource(cmd)
	if err != nil {
		return err
	}
	mode, err := parseMode(cmd.String("mode"))
	if err != nil {
		return err
	}
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	catalog, err := r.Catalog()
	if err != nil {
		return err
	}

	req := tasks.SubmitRequest{
		Data:         src.data,
		Text:         src.text,
		Encoding:     src.encoding,
		PlaylistName: cmd.String("playlist"),
		Mode:         mode,
		Threshold:    int(cmd.Int("threshold")),
		Library:      cmd.String("library"),
	}

	if cmd.Bool("tui") {
		return r.importTUI(ctx, catalog, src, req)
	}

	importer := r.newImporter(catalog)
	defer importer.Shutdown()
	defer r.withHistory(importer)()

	r.logger.Info("starting import", "source", src.name, "playlist", req.PlaylistName)

	progressCh := make(chan tasks.ProgressUpdate, 50)
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		for update := range progressCh {
			switch update.Phase {
			case tasks.ResolveLibrary:
				r.writePlain("📚 %s\n", update.Message)
			case tasks.MatchTracks:
				r.writePlain("   %s\n", update.Message)
			case tasks.WritePlaylist:
				r.writePlain("\n📝 %s\n", update.Message)
			}
		}
	}()

	var result *tasks.SyncResult
	req.Progress = progressCh
	req.OnFinish = func(_ models.SyncJob, res *tasks.SyncResult) {
		result = res
	}

	id, err := importer.Submit(ctx, req)
	if err != nil {
		close(progressCh)
		<-printed
		return err
	}

	job, err := importer.Wait(ctx, id)
	importer.Shutdown()
	close(progressCh)
	<-printed
	if err != nil {
		return err
	}

	var entries []models.ReportEntry
	outcome := models.WriteOutcome{}
	if result != nil {
		entries = formatter.BuildReport(result.Results)
		outcome = result.Outcome
	}
	if outcome.Mode == "" {
		outcome.Mode = req.Mode
	}
	summary := formatter.Summarize(job.Playlist, outcome.Mode, entries, outcome.Added)

	r.writePlain("\n")
	if job.State == models.JobFailed {
		r.writePlainHeader("Import Failed")
	} else {
		r.writePlainHeader("Import Complete!")
	}
	r.writePlain("Playlist: %s (%s)\n", job.Playlist, summary.Mode)
	r.writePlain("Matched: %d/%d\n", job.Matched, job.Total)
	r.writePlain("Added: %d", outcome.Added)
	if outcome.AlreadyPresent > 0 {
		r.writePlain(" (%d already present)", outcome.AlreadyPresent)
	}
	r.writePlain("\n")

	if job.Unmatched > 0 {
		r.writePlain("\nFailed to match %d tracks:\n", job.Unmatched)
		for _, e := range entries {
			if e.Status == models.StatusUnmatched {
				r.writePlain("  - line %d: %s - %s (%s)\n", e.Line, e.Artist, e.Title, e.Reason)
			}
		}
	}

	if path := cmd.String("report"); path != "" && len(entries) > 0 {
		written, err := formatter.WriteReportExport(format, summary, entries, path)
		if err != nil {
			return err
		}
		r.writePlainln("Report written to %s", written)
	}

	if job.State == models.JobFailed {
		return errors.New(job.Error)
	}
	return nil
}

// Bulk imports every CSV in a directory through the bulk worker pool.
func (r *Runner) Bulk(ctx context.Context, cmd *cli.Command) error {
	mode, err := parseMode(cmd.String("mode"))
	if err != nil {
		return err
	}
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	catalog, err := r.Catalog()
	if err != nil {
		return err
	}

	importer := r.newImporter(catalog)
	defer importer.Shutdown()
	defer r.withHistory(importer)()

	workers := int(cmd.Int("workers"))
	if workers <= 0 {
		workers = r.config.Sync.Workers
	}

	progressCh := make(chan tasks.ProgressUpdate, 50)
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		for update := range progressCh {
			r.writePlain("[%d/%d] %s\n", update.Step, update.Total, update.Message)
		}
	}()

	result, err := importer.BulkImport(ctx, progressCh, tasks.BulkImportOpts{
		Dir:          cmd.String("dir"),
		Mode:         mode,
		Threshold:    int(cmd.Int("threshold")),
		Library:      cmd.String("library"),
		Encoding:     cmd.String("encoding"),
		ReportFormat: format,
		OutputDir:    cmd.String("output"),
		NumWorkers:   workers,
	})
	close(progressCh)
	<-printed
	if err != nil {
		return err
	}

	r.writePlain("\n")
	r.writePlainHeader("Bulk Import Complete")
	r.writePlain("Files: %d (%d succeeded, %d failed)\n\n", result.TotalFiles, result.Successful, result.Failed)
	for _, res := range result.Results {
		if res.Success {
			r.writePlain("✓ %-30s %d/%d matched, %d added\n", res.Playlist, res.Matched, res.Total, res.Added)
		} else {
			r.writePlain("✗ %-30s %s\n", res.Playlist, res.ErrorText)
		}
	}
	r.writePlainln("Reports and manifest written to %s", filepath.Clean(result.OutputDirectory))

	if result.Failed > 0 {
		return fmt.Errorf("%d of %d imports failed", result.Failed, result.TotalFiles)
	}
	return nil
}
