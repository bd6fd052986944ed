package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/plexlist/internal/csvload"
	"github.com/desertthunder/plexlist/internal/formatter"
	"github.com/desertthunder/plexlist/internal/models"
	"github.com/desertthunder/plexlist/internal/progress"
	"github.com/desertthunder/plexlist/internal/reports"
	"github.com/desertthunder/plexlist/internal/shared"
)

const DefaultPlaylistName = "Imported Playlist"

// RunRecorder persists a finished import, e.g. repositories.SyncRunRepository.
type RunRecorder interface {
	Record(ctx context.Context, run *models.SyncRun) error
}

// ImporterOptions holds the defaults applied to submitted imports.
type ImporterOptions struct {
	DefaultPlaylist string
	DefaultMode     models.SyncMode
	Threshold       int
	Library         string
	Logger          *log.Logger
}

// Preview is the normalized form of an input table.
type Preview struct {
	CSV       string               `json:"csv"`
	Count     int                  `json:"entryCount"`
	Dropped   int                  `json:"dropped"`
	Delimiter string               `json:"delimiter"`
	Encoding  string               `json:"encoding"`
	Records   []models.TrackRecord `json:"-"`
}

// SubmitRequest describes an import. Either Data (raw file bytes) or Text (pasted CSV) is set.
type SubmitRequest struct {
	Data         []byte
	Text         string
	Encoding     string
	PlaylistName string
	Mode         models.SyncMode
	Threshold    int
	Library      string
	Progress     chan<- ProgressUpdate // optional

	// OnFinish, when set, is called once the job has reached its terminal state.
	OnFinish func(job models.SyncJob, result *SyncResult)
}

// Task is one running import.
type Task struct {
	ID       string
	Playlist string
	cancel   context.CancelFunc
	done     chan struct{}
}

// Importer runs imports in the background and exposes their progress and reports.
//
// Jobs share only the tracker and the report store; both synchronize internally.
type Importer struct {
	engine   SyncEngine
	tracker  *progress.Tracker
	reports  *reports.Store
	recorder RunRecorder
	opts     ImporterOptions
	logger   *log.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	tasks map[string]*Task
	busy  map[string]string // playlist name -> job id
}

// NewImporter creates an Importer over engine, tracker and store.
func NewImporter(engine SyncEngine, tracker *progress.Tracker, store *reports.Store, opts ImporterOptions) *Importer {
	if opts.DefaultPlaylist == "" {
		opts.DefaultPlaylist = DefaultPlaylistName
	}
	if opts.DefaultMode == "" {
		opts.DefaultMode = models.ModeReplace
	}
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(io.Discard)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Importer{
		engine:  engine,
		tracker: tracker,
		reports: store,
		opts:    opts,
		logger:  opts.Logger,
		ctx:     ctx,
		cancel:  cancel,
		tasks:   make(map[string]*Task),
		busy:    make(map[string]string),
	}
}

// SetRecorder sets where finished runs are persisted. Nil disables recording.
func (i *Importer) SetRecorder(r RunRecorder) {
	i.recorder = r
}

// Tracker returns the job registry, for subscribers.
func (i *Importer) Tracker() *progress.Tracker {
	return i.tracker
}

// Preview normalizes data without starting a job.
func (i *Importer) Preview(data []byte, encoding string) (*Preview, error) {
	payload, err := csvload.Parse(data, csvload.Options{Encoding: encoding})
	if err != nil {
		return nil, err
	}
	return newPreview(payload)
}

// PreviewText normalizes pasted CSV text without starting a job.
func (i *Importer) PreviewText(text string) (*Preview, error) {
	payload, err := csvload.ParseText(text)
	if err != nil {
		return nil, err
	}
	return newPreview(payload)
}

func newPreview(p *csvload.Payload) (*Preview, error) {
	out, err := formatter.NormalizedCSV(p.Records)
	if err != nil {
		return nil, err
	}
	return &Preview{
		CSV:       string(out),
		Count:     len(p.Records),
		Dropped:   p.Dropped,
		Delimiter: string(p.Delimiter),
		Encoding:  p.Encoding,
		Records:   p.Records,
	}, nil
}

// Submit validates and normalizes the request, registers a job and starts it in the background.
//
// Input errors return before any job exists. A playlist with an import still running is rejected
// with [shared.ErrPlaylistBusy].
func (i *Importer) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	req.PlaylistName = strings.TrimSpace(req.PlaylistName)
	if req.PlaylistName == "" {
		req.PlaylistName = i.opts.DefaultPlaylist
	}
	if req.Mode == "" {
		req.Mode = i.opts.DefaultMode
	}
	if _, err := models.ParseSyncMode(string(req.Mode)); err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}
	if req.Threshold > 100 {
		return "", fmt.Errorf("%w: threshold %d out of range 0-100", shared.ErrInvalidArgument, req.Threshold)
	}
	if req.Threshold <= 0 {
		req.Threshold = i.opts.Threshold
	}
	if req.Library == "" {
		req.Library = i.opts.Library
	}

	var (
		payload *csvload.Payload
		err     error
	)
	if len(req.Data) > 0 {
		payload, err = csvload.Parse(req.Data, csvload.Options{Encoding: req.Encoding})
	} else {
		payload, err = csvload.ParseText(req.Text)
	}
	if err != nil {
		return "", err
	}

	i.mu.Lock()
	if id, ok := i.busy[req.PlaylistName]; ok {
		i.mu.Unlock()
		return "", fmt.Errorf("%w: %q (job %s)", shared.ErrPlaylistBusy, req.PlaylistName, id)
	}
	id := i.tracker.CreateJob(len(payload.Records), req.PlaylistName)
	taskCtx, cancel := context.WithCancel(i.ctx)
	task := &Task{ID: id, Playlist: req.PlaylistName, cancel: cancel, done: make(chan struct{})}
	i.tasks[id] = task
	i.busy[req.PlaylistName] = id
	i.mu.Unlock()

	i.logger.Info("import submitted", "job", id, "playlist", req.PlaylistName, "records", len(payload.Records), "dropped", payload.Dropped)

	syncReq := SyncRequest{
		Records:      payload.Records,
		PlaylistName: req.PlaylistName,
		Mode:         req.Mode,
		Threshold:    req.Threshold,
		Library:      req.Library,
	}
	go i.run(taskCtx, task, syncReq, req.Progress, req.OnFinish)
	return id, nil
}

// run executes one task to completion. The report is attached before the job completes so that
// a poller observing the terminal state also sees the token.
func (i *Importer) run(ctx context.Context, task *Task, req SyncRequest, prog chan<- ProgressUpdate, onFinish func(models.SyncJob, *SyncResult)) {
	defer i.finish(task)
	logger := i.logger.With("job", task.ID, "playlist", task.Playlist)

	if err := i.tracker.Start(task.ID); err != nil {
		logger.Error("failed to start job", "error", err)
	}

	result, runErr := i.engine.Run(ctx, req, i.tracker.Sink(task.ID), prog)

	var (
		entries []models.ReportEntry
		outcome *models.WriteOutcome
		library string
	)
	if result != nil {
		entries = formatter.BuildReport(result.Results)
		outcome = &result.Outcome
		library = result.Library.Name
		if len(entries) > 0 {
			token := i.reports.Put(entries)
			if err := i.tracker.AttachReport(task.ID, token); err != nil {
				logger.Warn("failed to attach report", "error", err)
			}
		}
	}

	errMsg := ""
	if runErr != nil {
		errMsg = runErr.Error()
		if errors.Is(runErr, context.Canceled) {
			errMsg = "cancelled"
		}
		logger.Error("import failed", "error", runErr)
	}
	if err := i.tracker.Complete(task.ID, errMsg); err != nil {
		logger.Warn("failed to complete job", "error", err)
	}

	job, err := i.tracker.Snapshot(task.ID)
	if err != nil {
		logger.Warn("job evicted before it finished", "error", err)
		return
	}
	if onFinish != nil {
		onFinish(job, result)
	}
	if i.recorder == nil {
		return
	}
	run := models.NewSyncRunFromJob(job, req.Mode, req.Threshold, library, outcome, entries)
	if err := i.recorder.Record(context.WithoutCancel(ctx), run); err != nil {
		logger.Warn("failed to record run", "error", err)
	}
}

func (i *Importer) finish(task *Task) {
	i.mu.Lock()
	defer i.mu.Unlock()

	task.cancel()
	if i.busy[task.Playlist] == task.ID {
		delete(i.busy, task.Playlist)
	}
	delete(i.tasks, task.ID)
	close(task.done)
}

// StartCleanup expires finished jobs and reports in the background until ctx is cancelled.
func (i *Importer) StartCleanup(ctx context.Context, interval time.Duration) {
	i.tracker.StartCleanup(ctx)
	i.reports.StartCleanup(ctx, interval)
}

// Poll returns a snapshot of the job, or [shared.ErrJobNotFound].
func (i *Importer) Poll(id string) (models.SyncJob, error) {
	return i.tracker.Snapshot(id)
}

// FetchReport returns the entries for token. Reports stay readable until they expire.
func (i *Importer) FetchReport(token string) ([]models.ReportEntry, error) {
	return i.reports.Peek(token)
}

// DownloadReport returns the entries for token and removes the report.
func (i *Importer) DownloadReport(token string) ([]models.ReportEntry, error) {
	return i.reports.Take(token)
}

// Wait blocks until the job's task finishes or ctx is done, then returns the job snapshot.
func (i *Importer) Wait(ctx context.Context, id string) (models.SyncJob, error) {
	i.mu.Lock()
	task, ok := i.tasks[id]
	i.mu.Unlock()

	if ok {
		select {
		case <-task.done:
		case <-ctx.Done():
			return models.SyncJob{}, ctx.Err()
		}
	}
	return i.tracker.Snapshot(id)
}

// Shutdown cancels every running task and waits for them to finish.
func (i *Importer) Shutdown() {
	i.cancel()

	i.mu.Lock()
	pending := make([]*Task, 0, len(i.tasks))
	for _, t := range i.tasks {
		pending = append(pending, t)
	}
	i.mu.Unlock()

	for _, t := range pending {
		<-t.done
	}
}
