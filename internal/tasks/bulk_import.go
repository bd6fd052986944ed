package tasks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/desertthunder/plexlist/internal/formatter"
	"github.com/desertthunder/plexlist/internal/models"
	"github.com/desertthunder/plexlist/internal/shared"
	"golang.org/x/time/rate"
)

// BulkImportOpts contains configuration for bulk playlist imports.
type BulkImportOpts struct {
	Dir          string           // Directory scanned for *.csv files
	Files        []string         // Explicit files; takes precedence over Dir
	Mode         models.SyncMode  // Applied to every playlist
	Threshold    int              // 0 uses the importer default
	Library      string           // Library id or name
	Encoding     string           // Declared encoding of every file
	ReportFormat formatter.Format // Report format written per playlist (default: csv)
	OutputDir    string           // Report and manifest directory (default: plexlist_import_{epoch})
	NumWorkers   int              // Concurrent imports (default: 3)
	RateLimit    float64          // Imports started per second (default: 2)
}

// BulkImportJob is one file queued for import.
type BulkImportJob struct {
	Path     string
	Playlist string
}

// PlaylistImportResult is the outcome of importing one file.
type PlaylistImportResult struct {
	File       string `json:"file"`
	Playlist   string `json:"playlist"`
	JobID      string `json:"jobId,omitempty"`
	Success    bool   `json:"success"`
	Total      int    `json:"total"`
	Matched    int    `json:"matched"`
	Unmatched  int    `json:"unmatched"`
	Added      int    `json:"added"`
	ReportFile string `json:"reportFile,omitempty"`
	Error      error  `json:"-"`
	ErrorText  string `json:"error,omitempty"`
}

// BulkImportResult summarizes a bulk import.
type BulkImportResult struct {
	TotalFiles      int                    `json:"totalFiles"`
	Successful      int                    `json:"successful"`
	Failed          int                    `json:"failed"`
	OutputDirectory string                 `json:"outputDirectory"`
	ManifestPath    string                 `json:"-"`
	Results         []PlaylistImportResult `json:"results"`
	CompletedAt     time.Time              `json:"completedAt"`
}

// BulkImport imports many CSV files concurrently, one playlist per file named after the file stem.
//
// This method implements a worker pool over [Importer.Submit]. Imports are started no faster than the rate
// limit, failures of individual files are recorded and do not stop the others, and a manifest file
// summarizing the results is written to the output directory.
func (i *Importer) BulkImport(ctx context.Context, prog chan<- ProgressUpdate, opts BulkImportOpts) (*BulkImportResult, error) {
	files, err := collectCSVFiles(opts)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no CSV files found", shared.ErrMissingArgument)
	}

	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("plexlist_import_%d", time.Now().Unix())
	}
	if opts.Mode == "" {
		opts.Mode = i.opts.DefaultMode
	}
	if opts.ReportFormat == "" {
		opts.ReportFormat = formatter.FormatCSV
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 3
	}
	if opts.NumWorkers > 10 {
		opts.NumWorkers = 10
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 2.0
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	result := &BulkImportResult{
		TotalFiles:      len(files),
		OutputDirectory: opts.OutputDir,
		Results:         make([]PlaylistImportResult, 0, len(files)),
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)

	jobs := make(chan BulkImportJob, len(files))
	results := make(chan PlaylistImportResult, len(files))

	var wg sync.WaitGroup
	for w := 0; w < opts.NumWorkers; w++ {
		wg.Add(1)
		go i.importWorker(ctx, &wg, limiter, jobs, results, opts)
	}

	for n, path := range files {
		job := BulkImportJob{Path: path, Playlist: playlistNameFromFile(path)}
		jobs <- job
		i.sendProgress(prog, importingFileUpdate(n+1, len(files), job.Playlist))
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		if res.Success {
			result.Successful++
			i.sendProgress(prog, importCompletedUpdate(completed, len(files), res.Playlist, res.Matched, res.Total))
		} else {
			result.Failed++
			res.ErrorText = res.Error.Error()
			i.sendProgress(prog, importFailedUpdate(completed, len(files), res.Playlist, res.Error))
		}
		result.Results = append(result.Results, res)
	}

	sort.Slice(result.Results, func(a, b int) bool { return result.Results[a].File < result.Results[b].File })
	result.CompletedAt = time.Now()

	manifestPath := filepath.Join(opts.OutputDir, "import_manifest.json")
	data, err := shared.MarshalJSON(result, true)
	if err != nil {
		return result, fmt.Errorf("import completed but failed to encode manifest: %w", err)
	}
	if err := os.WriteFile(manifestPath, data, 0644); err != nil {
		return result, fmt.Errorf("import completed but failed to write manifest: %w", err)
	}
	result.ManifestPath = manifestPath
	return result, nil
}

// importWorker imports files from the jobs channel until it is drained or ctx is done.
func (i *Importer) importWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	limiter *rate.Limiter,
	jobs <-chan BulkImportJob,
	results chan<- PlaylistImportResult,
	opts BulkImportOpts,
) {
	defer wg.Done()

	for job := range jobs {
		if err := limiter.Wait(ctx); err != nil {
			results <- PlaylistImportResult{File: job.Path, Playlist: job.Playlist, Error: fmt.Errorf("import cancelled: %w", err)}
			continue
		}
		results <- i.importSingleFile(ctx, job, opts)
	}
}

// importSingleFile submits one file, waits for its job and writes its report.
func (i *Importer) importSingleFile(ctx context.Context, j BulkImportJob, opts BulkImportOpts) PlaylistImportResult {
	result := PlaylistImportResult{File: j.Path, Playlist: j.Playlist}

	data, err := os.ReadFile(j.Path)
	if err != nil {
		result.Error = fmt.Errorf("failed to read file: %w", err)
		return result
	}

	var added int
	id, err := i.Submit(ctx, SubmitRequest{
		Data:         data,
		Encoding:     opts.Encoding,
		PlaylistName: j.Playlist,
		Mode:         opts.Mode,
		Threshold:    opts.Threshold,
		Library:      opts.Library,
		OnFinish: func(_ models.SyncJob, res *SyncResult) {
			if res != nil {
				added = res.Outcome.Added
			}
		},
	})
	if err != nil {
		result.Error = err
		return result
	}
	result.JobID = id

	job, err := i.Wait(ctx, id)
	if err != nil {
		result.Error = err
		return result
	}
	result.Total, result.Matched, result.Unmatched, result.Added = job.Total, job.Matched, job.Unmatched, added

	if job.ReportToken != "" {
		entries, err := i.FetchReport(job.ReportToken)
		if err == nil {
			summary := formatter.Summarize(j.Playlist, opts.Mode, entries, added)
			path := filepath.Join(opts.OutputDir, fmt.Sprintf("%s_report.%s", formatter.SafeFilename(j.Playlist), opts.ReportFormat))
			if written, werr := formatter.WriteReportExport(opts.ReportFormat, summary, entries, path); werr == nil {
				result.ReportFile = written
			} else {
				i.logger.Warn("failed to write report", "playlist", j.Playlist, "error", werr)
			}
		}
	}

	if job.State == models.JobFailed {
		result.Error = errors.New(job.Error)
		return result
	}
	result.Success = true
	return result
}

// sendProgress sends a progress update through the channel without blocking.
func (i *Importer) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func collectCSVFiles(opts BulkImportOpts) ([]string, error) {
	if len(opts.Files) > 0 {
		return opts.Files, nil
	}
	if opts.Dir == "" {
		return nil, fmt.Errorf("%w: directory or files required", shared.ErrMissingArgument)
	}

	entries, err := os.ReadDir(opts.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			continue
		}
		files = append(files, filepath.Join(opts.Dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

func playlistNameFromFile(path string) string {
	base := filepath.Base(path)
	return strings.TrimSpace(strings.TrimSuffix(base, filepath.Ext(base)))
}
