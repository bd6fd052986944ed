package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/plexlist/internal/canon"
	"github.com/desertthunder/plexlist/internal/matcher"
	"github.com/desertthunder/plexlist/internal/models"
	"github.com/desertthunder/plexlist/internal/services"
	"github.com/desertthunder/plexlist/internal/shared"
)

const (
	DefaultThreshold     = 70
	DefaultSearchTimeout = 15 * time.Second
	ReasonSearchTimeout  = "search timed out"
)

// ProgressSink receives per-record counter deltas while a sync runs.
type ProgressSink interface {
	Update(processed, matched, unmatched int)
}

// SyncRequest describes one import: the records and where they go.
type SyncRequest struct {
	Records      []models.TrackRecord
	PlaylistName string
	Mode         models.SyncMode
	Threshold    int
	Library      string // id or name; empty selects the only music library
}

// SyncResult contains all data from a sync operation.
type SyncResult struct {
	Results   []models.MatchResult // One per record, in input order
	Outcome   models.WriteOutcome  // What changed on the server
	Library   models.Library       // Library the records were matched in
	Matched   int                  // Records with status Matched (duplicates included)
	Unmatched int                  // Records with status Unmatched
}

// SyncEngine matches records and applies them to a playlist.
type SyncEngine interface {
	// Run matches every record in order, deduplicates the matches and writes them to the playlist.
	//
	// A non-nil result may accompany an error when matching finished but the playlist write failed.
	Run(ctx context.Context, req SyncRequest, sink ProgressSink, progress chan<- ProgressUpdate) (*SyncResult, error)
}

// EngineOptions configures a [PlaylistEngine]. Zero values select the defaults.
type EngineOptions struct {
	Matcher       *matcher.Matcher
	SearchTimeout time.Duration
	Logger        *log.Logger
}

// PlaylistEngine implements SyncEngine over a [services.Catalog].
type PlaylistEngine struct {
	catalog       services.Catalog
	matcher       *matcher.Matcher
	searchTimeout time.Duration
	logger        *log.Logger
}

// NewPlaylistEngine creates a new PlaylistEngine for the catalog.
func NewPlaylistEngine(catalog services.Catalog, opts EngineOptions) *PlaylistEngine {
	if opts.Matcher == nil {
		opts.Matcher = matcher.Default()
	}
	if opts.SearchTimeout <= 0 {
		opts.SearchTimeout = DefaultSearchTimeout
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(io.Discard)
	}
	return &PlaylistEngine{
		catalog:       catalog,
		matcher:       opts.Matcher,
		searchTimeout: opts.SearchTimeout,
		logger:        opts.Logger,
	}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *PlaylistEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Run performs a full import of req.Records into the named playlist.
func (e *PlaylistEngine) Run(ctx context.Context, req SyncRequest, sink ProgressSink, progress chan<- ProgressUpdate) (*SyncResult, error) {
	if e.catalog == nil {
		return nil, fmt.Errorf("%w: catalog not initialized", shared.ErrServiceUnavailable)
	}
	if req.Mode == "" {
		req.Mode = models.ModeReplace
	}
	if req.Threshold <= 0 {
		req.Threshold = DefaultThreshold
	}

	e.sendProgress(progress, resolveLibraryUpdate(req.Library))
	lib, err := e.resolveLibrary(ctx, req.Library)
	if err != nil {
		return nil, err
	}

	total := len(req.Records)
	result := &SyncResult{
		Library: lib,
		Results: make([]models.MatchResult, 0, total),
		Outcome: models.WriteOutcome{PlaylistName: req.PlaylistName, Mode: req.Mode},
	}
	logger := e.logger.With("playlist", req.PlaylistName, "library", lib.Name)
	logger.Info("matching tracks", "records", total, "threshold", req.Threshold, "mode", req.Mode)

	for i, rec := range req.Records {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("import cancelled after %d of %d records: %w", i, total, err)
		}

		res := e.matchRecord(ctx, lib.ID, rec, req.Threshold)
		result.Results = append(result.Results, res)

		matched, unmatched := 0, 1
		if res.Status == models.StatusMatched {
			matched, unmatched = 1, 0
			result.Matched++
		} else {
			result.Unmatched++
			logger.Debug("unmatched", "line", rec.Line, "track", rec.String(), "reason", res.Reason)
		}
		if sink != nil {
			sink.Update(1, matched, unmatched)
		}
		e.sendProgress(progress, matchTrackUpdate(i+1, total, rec, res))
	}

	keys, duplicates := DedupKeys(result.Results)
	result.Outcome.Duplicates = duplicates

	if len(keys) == 0 {
		logger.Info("no tracks matched; skipping playlist update")
		e.sendProgress(progress, skipWriteUpdate(req.PlaylistName))
		return result, nil
	}

	e.sendProgress(progress, writePlaylistUpdate(req.PlaylistName, req.Mode, len(keys)))
	if err := e.apply(ctx, req, keys, &result.Outcome); err != nil {
		return result, fmt.Errorf("%w: %q: %v", shared.ErrPlaylistWrite, req.PlaylistName, err)
	}

	logger.Info("playlist updated",
		"id", result.Outcome.PlaylistID,
		"created", result.Outcome.Created,
		"added", result.Outcome.Added,
		"already_present", result.Outcome.AlreadyPresent,
		"duplicates", duplicates,
	)
	e.sendProgress(progress, playlistWrittenUpdate(result.Outcome))
	return result, nil
}

func (e *PlaylistEngine) resolveLibrary(ctx context.Context, ref string) (models.Library, error) {
	libraries, err := e.catalog.ListLibraries(ctx)
	if err != nil {
		return models.Library{}, fmt.Errorf("failed to list libraries: %w", err)
	}
	return services.FindLibrary(libraries, ref)
}

// matchRecord searches for one record and lets the matcher decide. Search failures become
// Unmatched rows; they never fail the job.
func (e *PlaylistEngine) matchRecord(ctx context.Context, libraryID string, rec models.TrackRecord, threshold int) models.MatchResult {
	candidates, err := e.search(ctx, libraryID, rec)
	if err != nil {
		reason := fmt.Sprintf("search failed: %v", err)
		if isTimeout(err) {
			reason = ReasonSearchTimeout
		}
		e.logger.Warn("search failed", "line", rec.Line, "track", rec.String(), "error", err)
		return models.MatchResult{Record: rec, Status: models.StatusUnmatched, Reason: reason}
	}
	return e.matcher.Match(rec, candidates, threshold)
}

// search queries the catalog with the canonical artist, title and album. A field whose
// canonical form is empty is sent trimmed as written. When the canonical query finds nothing
// and the written title differs, that title is tried once more.
func (e *PlaylistEngine) search(ctx context.Context, libraryID string, rec models.TrackRecord) ([]models.Candidate, error) {
	query := canonicalQuery(rec)
	queries := []models.SearchQuery{query}
	if raw := strings.TrimSpace(rec.Title); raw != "" && !strings.EqualFold(raw, query.Title) {
		fallback := query
		fallback.Title = raw
		queries = append(queries, fallback)
	}

	for _, q := range queries {
		callCtx, cancel := context.WithTimeout(ctx, e.searchTimeout)
		candidates, err := e.catalog.Search(callCtx, libraryID, q)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", shared.ErrCandidateLookup, err)
		}
		if len(candidates) > 0 {
			return candidates, nil
		}
	}
	return nil, nil
}

func canonicalQuery(rec models.TrackRecord) models.SearchQuery {
	return models.SearchQuery{
		Artist: canonicalOr(rec.Artist),
		Title:  canonicalOr(rec.Title),
		Album:  canonicalOr(rec.Album),
	}
}

func canonicalOr(s string) string {
	if c := canon.Canonicalize(s); c != "" {
		return c
	}
	return strings.TrimSpace(s)
}

// apply writes keys to the playlist according to the request mode and fills in outcome.
func (e *PlaylistEngine) apply(ctx context.Context, req SyncRequest, keys []string, outcome *models.WriteOutcome) error {
	handle, err := e.catalog.GetOrCreatePlaylist(ctx, req.PlaylistName)
	if err != nil {
		return fmt.Errorf("failed to fetch playlist: %w", err)
	}
	existed := handle.Exists()
	outcome.PlaylistID = handle.ID

	write := keys
	if req.Mode == models.ModeAppend && existed {
		present, err := e.catalog.ReadPlaylistItems(ctx, handle)
		if err != nil {
			return fmt.Errorf("failed to read playlist items: %w", err)
		}
		write, outcome.AlreadyPresent = FilterPresent(keys, present)
		if len(write) == 0 {
			return nil
		}
	}

	if err := e.catalog.WritePlaylist(ctx, handle, req.Mode, write); err != nil {
		return err
	}

	outcome.PlaylistID = handle.ID
	outcome.Created = !existed
	outcome.Written = true
	outcome.Added = len(write)
	return nil
}

// DedupKeys returns the rating keys of matched results in input order, each once,
// and how many matched results repeated an earlier key.
func DedupKeys(results []models.MatchResult) ([]string, int) {
	seen := make(map[string]bool, len(results))
	keys := make([]string, 0, len(results))
	duplicates := 0
	for _, r := range results {
		if !r.Matched() {
			continue
		}
		if seen[r.RatingKey] {
			duplicates++
			continue
		}
		seen[r.RatingKey] = true
		keys = append(keys, r.RatingKey)
	}
	return keys, duplicates
}

// FilterPresent drops keys already in present, preserving order, and returns how many were dropped.
func FilterPresent(keys, present []string) ([]string, int) {
	existing := make(map[string]bool, len(present))
	for _, k := range present {
		existing[k] = true
	}

	remaining := make([]string, 0, len(keys))
	for _, k := range keys {
		if !existing[k] {
			remaining = append(remaining, k)
		}
	}
	return remaining, len(keys) - len(remaining)
}

func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, shared.ErrTimeout)
}
