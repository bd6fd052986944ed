package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/plexlist/internal/models"
	"github.com/desertthunder/plexlist/internal/services"
	"github.com/desertthunder/plexlist/internal/shared"
)

// remote returns the API client for --server, or the injected one.
func (r *Runner) remote(cmd *cli.Command) *services.APIService {
	if r.api != nil {
		return r.api
	}
	return services.NewAPIService(cmd.String("server"), r.httpClient)
}

// RemoteGet makes a direct GET request to a plexlist server
func (r *Runner) RemoteGet(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("path")
	if path == "" {
		return fmt.Errorf("%w: path is required", shared.ErrMissingArgument)
	}

	r.logger.Info("GET request", "path", path)

	resp, err := r.remote(cmd).Get(ctx, path)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	if !resp.OK() {
		return fmt.Errorf("%w: status %d, body: %s", shared.ErrAPIRequest, resp.StatusCode, string(resp.Body))
	}

	if resp.IsJSON {
		return r.writeJSON(resp.JSONData, cmd.Bool("pretty"))
	}

	r.output.Write(resp.Body)
	r.output.Write([]byte("\n"))
	return nil
}

// RemoteImport uploads a CSV to a plexlist server and polls the job until it finishes.
func (r *Runner) RemoteImport(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("file")
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: failed to open %s: %v", shared.ErrInvalidInput, path, err)
	}
	defer file.Close()

	fields := map[string]string{}
	for _, name := range []string{"playlist", "mode", "library"} {
		if v := cmd.String(name); v != "" {
			fields[formField(name)] = v
		}
	}
	if threshold := cmd.Int("threshold"); threshold > 0 {
		fields["threshold"] = strconv.Itoa(int(threshold))
	}

	api := r.remote(cmd)
	resp, err := api.PostForm(ctx, "/api/imports", fields, filepath.Base(path), file)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	if !resp.OK() {
		return fmt.Errorf("%w: status %d, body: %s", shared.ErrAPIRequest, resp.StatusCode, string(resp.Body))
	}

	var submitted struct {
		JobID string `json:"jobId"`
	}
	if err := resp.Decode(&submitted); err != nil {
		return err
	}
	r.logger.Info("import submitted", "job", submitted.JobID)
	r.writePlain("Submitted job %s\n", submitted.JobID)

	job, err := r.pollJob(ctx, api, submitted.JobID, cmd.Duration("poll"))
	if err != nil {
		return err
	}

	r.writePlain("\n")
	r.writePlainHeader(fmt.Sprintf("Job %s", job.State))
	r.writePlain("Playlist: %s\nMatched: %d/%d\n", job.Playlist, job.Matched, job.Total)

	if job.ReportToken != "" {
		r.writePlain("Report: /api/reports/%s\n", job.ReportToken)
	}
	if job.State == models.JobFailed {
		return fmt.Errorf("%w: %s", shared.ErrAPIRequest, job.Error)
	}
	return nil
}

func formField(flag string) string {
	if flag == "playlist" {
		return "playlist_name"
	}
	return flag
}

// pollJob fetches the job every interval until it reaches a terminal state.
func (r *Runner) pollJob(ctx context.Context, api *services.APIService, id string, interval time.Duration) (models.SyncJob, error) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := -1
	for {
		resp, err := api.Get(ctx, "/api/jobs/"+id)
		if err != nil {
			return models.SyncJob{}, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
		}
		if !resp.OK() {
			return models.SyncJob{}, fmt.Errorf("%w: job %s", shared.ErrJobNotFound, id)
		}

		var job models.SyncJob
		if err := resp.Decode(&job); err != nil {
			return models.SyncJob{}, err
		}
		if job.Processed != last {
			r.writePlain("   %d/%d processed (%d matched)\n", job.Processed, job.Total, job.Matched)
			last = job.Processed
		}
		if job.State.Terminal() {
			return job, nil
		}

		select {
		case <-ctx.Done():
			return job, ctx.Err()
		case <-ticker.C:
		}
	}
}
