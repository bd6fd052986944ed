package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/plexlist/internal/formatter"
	"github.com/desertthunder/plexlist/internal/repositories"
	"github.com/desertthunder/plexlist/internal/shared"
)

// runSummary is the JSON form of a recorded run.
type runSummary struct {
	ID        string `json:"id"`
	Sequence  int    `json:"sequence"`
	JobID     string `json:"jobId"`
	Playlist  string `json:"playlist"`
	Mode      string `json:"mode"`
	Status    string `json:"status"`
	Total     int    `json:"total"`
	Matched   int    `json:"matched"`
	Unmatched int    `json:"unmatched"`
	Added     int    `json:"added"`
	Error     string `json:"error,omitempty"`
	CreatedAt string `json:"createdAt"`
}

func (r *Runner) historyRepo() (func(), *repositories.SyncRunRepository, error) {
	db, repo, err := r.openHistory()
	if err != nil {
		return nil, nil, err
	}
	if repo == nil {
		return nil, nil, fmt.Errorf("%w: run history is disabled (database.enabled = false)", shared.ErrMissingConfig)
	}
	return func() { db.Close() }, repo, nil
}

// HistoryList prints recorded imports, newest first.
func (r *Runner) HistoryList(ctx context.Context, cmd *cli.Command) error {
	closeDB, repo, err := r.historyRepo()
	if err != nil {
		return err
	}
	defer closeDB()

	runs, err := repo.List(map[string]any{
		repositories.CriteriaPlaylist: cmd.String("playlist"),
		repositories.CriteriaStatus:   cmd.String("status"),
		repositories.CriteriaLimit:    int(cmd.Int("limit")),
	})
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		out := make([]runSummary, len(runs))
		for i, run := range runs {
			out[i] = runSummary{
				ID:        run.ID(),
				Sequence:  run.Sequence(),
				JobID:     run.JobID(),
				Playlist:  run.PlaylistName(),
				Mode:      string(run.Mode()),
				Status:    string(run.Status()),
				Total:     run.Total(),
				Matched:   run.Matched(),
				Unmatched: run.Unmatched(),
				Added:     run.Added(),
				Error:     run.ErrorMessage(),
				CreatedAt: run.CreatedAt().Format("2006-01-02T15:04:05Z07:00"),
			}
		}
		return r.writeJSON(out, true)
	}

	if len(runs) == 0 {
		r.writePlain("No imports recorded\n")
		return nil
	}

	r.writePlainHeader("Import History")
	for _, run := range runs {
		r.writePlain("#%-4d %s  %-24s %-9s %3d/%-3d matched  %3d added  %s\n",
			run.Sequence(),
			run.CreatedAt().Format("2006-01-02 15:04"),
			run.PlaylistName(),
			run.Status(),
			run.Matched(),
			run.Total(),
			run.Added(),
			run.ID(),
		)
	}
	return nil
}

// HistoryReport prints the stored report of one run.
func (r *Runner) HistoryReport(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: run id is required", shared.ErrMissingArgument)
	}
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	closeDB, repo, err := r.historyRepo()
	if err != nil {
		return err
	}
	defer closeDB()

	run, err := repo.Get(id)
	if err != nil {
		if run, err = repo.GetByJobID(id); err != nil {
			return fmt.Errorf("%w: %s", shared.ErrReportNotFound, id)
		}
	}

	entries := run.Entries()
	summary := formatter.Summarize(run.PlaylistName(), run.Mode(), entries, run.Added())
	data, err := formatter.Render(format, summary, entries)
	if err != nil {
		return err
	}
	_, err = r.output.Write(data)
	return err
}
