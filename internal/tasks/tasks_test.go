package tasks

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/plexlist/internal/canon"
	"github.com/desertthunder/plexlist/internal/models"
	"github.com/desertthunder/plexlist/internal/shared"
	tu "github.com/desertthunder/plexlist/internal/testing"
)

// exactTitles returns a search func that finds tracks whose canonical title equals the query's.
func exactTitles(tracks ...models.Candidate) func(models.SearchQuery) ([]models.Candidate, error) {
	return func(q models.SearchQuery) ([]models.Candidate, error) {
		var out []models.Candidate
		for _, c := range tracks {
			if canon.Canonicalize(c.Title) == canon.Canonicalize(q.Title) {
				out = append(out, c)
			}
		}
		return out, nil
	}
}

func newCatalog(tracks ...models.Candidate) *tu.MockCatalog {
	cat := tu.NewMockCatalog(tracks...)
	cat.SearchFunc = exactTitles(tracks...)
	return cat
}

func records(pairs ...string) []models.TrackRecord {
	var out []models.TrackRecord
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, models.TrackRecord{Artist: pairs[i], Title: pairs[i+1], Line: i/2 + 2})
	}
	return out
}

// songs returns n tracks "Song 1".."Song n" by "Artist" keyed prefix1..prefixn.
func songs(prefix string, n int) []models.Candidate {
	out := make([]models.Candidate, n)
	for i := range n {
		out[i] = tu.Track(fmt.Sprintf("%s%d", prefix, i+1), "Artist", fmt.Sprintf("Song %s%d", prefix, i+1), "")
	}
	return out
}

func recordsFor(tracks []models.Candidate) []models.TrackRecord {
	out := make([]models.TrackRecord, len(tracks))
	for i, c := range tracks {
		out[i] = models.TrackRecord{Artist: c.Artist, Title: c.Title, Line: i + 2}
	}
	return out
}

type recordingSink struct {
	mu      sync.Mutex
	updates [][3]int
}

func (s *recordingSink) Update(processed, matched, unmatched int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, [3]int{processed, matched, unmatched})
}

func (s *recordingSink) totals() (p, m, u int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.updates {
		p, m, u = p+d[0], m+d[1], u+d[2]
	}
	return
}

func TestPlaylistEngine_Run(t *testing.T) {
	tracks := songs("a", 5)

	tests := []struct {
		name        string
		seed        []string
		mode        models.SyncMode
		records     []models.TrackRecord
		wantKeys    []string
		wantOutcome models.WriteOutcome
		wantWrites  int
	}{
		{
			name:        "replace creates playlist",
			mode:        models.ModeReplace,
			records:     recordsFor(tracks[:3]),
			wantKeys:    []string{"a1", "a2", "a3"},
			wantOutcome: models.WriteOutcome{Created: true, Written: true, Added: 3},
			wantWrites:  1,
		},
		{
			name:        "replace drops existing items",
			seed:        []string{"x1", "x2", "x3", "x4", "x5", "x6", "x7", "x8", "x9", "x10"},
			mode:        models.ModeReplace,
			records:     recordsFor(tracks),
			wantKeys:    []string{"a1", "a2", "a3", "a4", "a5"},
			wantOutcome: models.WriteOutcome{Written: true, Added: 5},
			wantWrites:  1,
		},
		{
			name:        "append keeps existing items and skips present keys",
			seed:        []string{"a1", "x9"},
			mode:        models.ModeAppend,
			records:     recordsFor(tracks[:3]),
			wantKeys:    []string{"a1", "x9", "a2", "a3"},
			wantOutcome: models.WriteOutcome{Written: true, Added: 2, AlreadyPresent: 1},
			wantWrites:  1,
		},
		{
			name:        "append with everything present writes nothing",
			seed:        []string{"a1", "a2"},
			mode:        models.ModeAppend,
			records:     recordsFor(tracks[:2]),
			wantKeys:    []string{"a1", "a2"},
			wantOutcome: models.WriteOutcome{AlreadyPresent: 2},
			wantWrites:  0,
		},
		{
			name:        "duplicate rows are written once",
			mode:        models.ModeReplace,
			records:     recordsFor([]models.Candidate{tracks[0], tracks[1], tracks[0]}),
			wantKeys:    []string{"a1", "a2"},
			wantOutcome: models.WriteOutcome{Created: true, Written: true, Added: 2, Duplicates: 1},
			wantWrites:  1,
		},
		{
			name:        "no matches leaves playlist untouched",
			seed:        []string{"x1"},
			mode:        models.ModeReplace,
			records:     records("Nobody", "Unknown Song"),
			wantKeys:    []string{"x1"},
			wantOutcome: models.WriteOutcome{},
			wantWrites:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cat := newCatalog(tracks...)
			if tt.seed != nil {
				cat.SeedPlaylist("Mix", tt.seed...)
			}
			engine := NewPlaylistEngine(cat, EngineOptions{})
			sink := &recordingSink{}

			result, err := engine.Run(context.Background(), SyncRequest{
				Records:      tt.records,
				PlaylistName: "Mix",
				Mode:         tt.mode,
				Threshold:    70,
			}, sink, nil)
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}

			if len(result.Results) != len(tt.records) {
				t.Fatalf("got %d results, want %d", len(result.Results), len(tt.records))
			}
			for i, r := range result.Results {
				if r.Record != tt.records[i] {
					t.Errorf("result %d record = %+v, want %+v", i, r.Record, tt.records[i])
				}
			}

			pl, _ := cat.Playlist("Mix")
			if !slices.Equal(pl.Keys, tt.wantKeys) {
				t.Errorf("playlist keys = %v, want %v", pl.Keys, tt.wantKeys)
			}
			if cat.Writes() != tt.wantWrites {
				t.Errorf("writes = %d, want %d", cat.Writes(), tt.wantWrites)
			}

			got := result.Outcome
			if got.Created != tt.wantOutcome.Created || got.Written != tt.wantOutcome.Written ||
				got.Added != tt.wantOutcome.Added || got.AlreadyPresent != tt.wantOutcome.AlreadyPresent ||
				got.Duplicates != tt.wantOutcome.Duplicates {
				t.Errorf("outcome = %+v, want %+v", got, tt.wantOutcome)
			}
			if got.Written && got.PlaylistID == "" {
				t.Error("written outcome should carry the playlist id")
			}

			p, m, u := sink.totals()
			if p != len(tt.records) || m+u != p || m != result.Matched || u != result.Unmatched {
				t.Errorf("sink totals = (%d, %d, %d), result matched=%d unmatched=%d", p, m, u, result.Matched, result.Unmatched)
			}
		})
	}
}

func TestPlaylistEngine_Run_Errors(t *testing.T) {
	tracks := songs("a", 2)

	t.Run("catalog not initialized", func(t *testing.T) {
		engine := NewPlaylistEngine(nil, EngineOptions{})
		_, err := engine.Run(context.Background(), SyncRequest{PlaylistName: "Mix"}, nil, nil)
		if !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("error = %v, want ErrServiceUnavailable", err)
		}
	})

	t.Run("unknown library", func(t *testing.T) {
		cat := newCatalog(tracks...)
		cat.Libraries = append(cat.Libraries, models.Library{ID: "2", Name: "Audiobooks"})
		engine := NewPlaylistEngine(cat, EngineOptions{})

		_, err := engine.Run(context.Background(), SyncRequest{Records: recordsFor(tracks), PlaylistName: "Mix", Library: "Nope"}, nil, nil)
		if !errors.Is(err, shared.ErrLibraryNotFound) {
			t.Errorf("error = %v, want ErrLibraryNotFound", err)
		}
		if cat.Searches() != 0 {
			t.Errorf("searches = %d, want 0", cat.Searches())
		}
	})

	t.Run("write failure fails the run", func(t *testing.T) {
		cat := newCatalog(tracks...)
		cat.WriteErr = fmt.Errorf("%w: 500", shared.ErrAPIRequest)
		engine := NewPlaylistEngine(cat, EngineOptions{})

		result, err := engine.Run(context.Background(), SyncRequest{Records: recordsFor(tracks), PlaylistName: "Mix"}, nil, nil)
		if !errors.Is(err, shared.ErrPlaylistWrite) {
			t.Fatalf("error = %v, want ErrPlaylistWrite", err)
		}
		if result == nil || len(result.Results) != 2 {
			t.Fatalf("result should carry the match results, got %+v", result)
		}
		if result.Outcome.Written {
			t.Error("outcome should not claim a write")
		}
	})

	t.Run("playlist lookup failure fails the run", func(t *testing.T) {
		cat := newCatalog(tracks...)
		cat.GetErr = errors.New("boom")
		engine := NewPlaylistEngine(cat, EngineOptions{})

		_, err := engine.Run(context.Background(), SyncRequest{Records: recordsFor(tracks), PlaylistName: "Mix"}, nil, nil)
		if !errors.Is(err, shared.ErrPlaylistWrite) {
			t.Errorf("error = %v, want ErrPlaylistWrite", err)
		}
	})

	t.Run("cancelled context stops before matching", func(t *testing.T) {
		cat := newCatalog(tracks...)
		engine := NewPlaylistEngine(cat, EngineOptions{})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := engine.Run(ctx, SyncRequest{Records: recordsFor(tracks), PlaylistName: "Mix"}, nil, nil)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("error = %v, want context.Canceled", err)
		}
		if cat.Writes() != 0 {
			t.Error("cancelled run should not write")
		}
	})
}

func TestPlaylistEngine_SearchFailures(t *testing.T) {
	tests := []struct {
		name       string
		configure  func(*tu.MockCatalog)
		opts       EngineOptions
		wantReason string
	}{
		{
			name:       "timeout",
			configure:  func(c *tu.MockCatalog) { c.SearchDelay = time.Second },
			opts:       EngineOptions{SearchTimeout: 10 * time.Millisecond},
			wantReason: ReasonSearchTimeout,
		},
		{
			name:       "server error",
			configure:  func(c *tu.MockCatalog) { c.SearchErr = fmt.Errorf("%w: 500", shared.ErrAPIRequest) },
			wantReason: "search failed:",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cat := newCatalog(songs("a", 1)...)
			tt.configure(cat)
			engine := NewPlaylistEngine(cat, tt.opts)

			result, err := engine.Run(context.Background(), SyncRequest{Records: records("Artist", "Song a1"), PlaylistName: "Mix"}, nil, nil)
			if err != nil {
				t.Fatalf("search failures must not fail the run: %v", err)
			}
			r := result.Results[0]
			if r.Status != models.StatusUnmatched || !strings.HasPrefix(r.Reason, tt.wantReason) {
				t.Errorf("result = %+v, want unmatched with reason %q", r, tt.wantReason)
			}
			if result.Outcome.Written {
				t.Error("nothing matched; playlist should not be written")
			}
		})
	}
}

func TestPlaylistEngine_SearchesCanonicalTitle(t *testing.T) {
	target := tu.Track("k1", "The Beatles", "Hey Jude", "")
	var queries []string
	cat := tu.NewMockCatalog(target)
	cat.SearchFunc = func(q models.SearchQuery) ([]models.Candidate, error) {
		queries = append(queries, q.Title)
		if q.Title == "hey jude" {
			return []models.Candidate{target}, nil
		}
		return nil, nil
	}
	engine := NewPlaylistEngine(cat, EngineOptions{})

	result, err := engine.Run(context.Background(), SyncRequest{
		Records:      records("The Beatles", "Hey Jude (Remastered 2015)"),
		PlaylistName: "Mix",
	}, nil, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !slices.Equal(queries, []string{"hey jude"}) {
		t.Errorf("queries = %q, want a single canonical query", queries)
	}
	if !result.Results[0].Matched() || result.Results[0].RatingKey != "k1" {
		t.Errorf("result = %+v, want match on k1", result.Results[0])
	}
}

func TestPlaylistEngine_SearchQuery(t *testing.T) {
	tests := []struct {
		name string
		rec  models.TrackRecord
		want models.SearchQuery
	}{
		{
			name: "canonical fields",
			rec:  models.TrackRecord{Line: 2, Artist: "  Beyoncé feat. X ", Title: "Halo (Live)", Album: "I Am... Sasha Fierce (Deluxe)"},
			want: models.SearchQuery{Artist: "beyonce feat. x", Title: "halo", Album: "i am... sasha fierce"},
		},
		{
			name: "title with no canonical form",
			rec:  models.TrackRecord{Line: 2, Artist: "Daft Punk", Title: " (Live) "},
			want: models.SearchQuery{Artist: "daft punk", Title: "(Live)"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []models.SearchQuery
			cat := tu.NewMockCatalog()
			cat.SearchFunc = func(q models.SearchQuery) ([]models.Candidate, error) {
				got = append(got, q)
				return nil, nil
			}
			engine := NewPlaylistEngine(cat, EngineOptions{})

			if _, err := engine.Run(context.Background(), SyncRequest{Records: []models.TrackRecord{tt.rec}, PlaylistName: "Mix"}, nil, nil); err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if len(got) == 0 {
				t.Fatal("catalog was not searched")
			}
			if got[0] != tt.want {
				t.Errorf("first query = %+v, want %+v", got[0], tt.want)
			}
		})
	}
}

func TestPlaylistEngine_Run_ThresholdMonotonic(t *testing.T) {
	tracks := []models.Candidate{
		tu.Track("k1", "Artist", "Song One", ""),
		tu.Track("k2", "Artist", "Song Two Live Version", ""),
	}
	cat := tu.NewMockCatalog(tracks...)
	engine := NewPlaylistEngine(cat, EngineOptions{})
	recs := records("Artist", "Song One", "Artist", "Song Two")

	matchedAt := func(threshold int) int {
		result, err := engine.Run(context.Background(), SyncRequest{Records: recs, PlaylistName: fmt.Sprintf("t%d", threshold), Threshold: threshold}, nil, nil)
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		return result.Matched
	}

	prev := len(recs)
	for _, threshold := range []int{1, 40, 70, 90, 100} {
		got := matchedAt(threshold)
		if got > prev {
			t.Errorf("threshold %d matched %d, more than %d at a lower threshold", threshold, got, prev)
		}
		prev = got
	}
}

func TestProgressUpdate_NonBlocking(t *testing.T) {
	tracks := songs("a", 3)
	engine := NewPlaylistEngine(newCatalog(tracks...), EngineOptions{})

	// Unbuffered and never read
	progressCh := make(chan ProgressUpdate)

	done := make(chan error, 1)
	go func() {
		_, err := engine.Run(context.Background(), SyncRequest{Records: recordsFor(tracks), PlaylistName: "Mix"}, nil, progressCh)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() should not block on progress sends")
	}
}

func TestProgressUpdate_Phases(t *testing.T) {
	tracks := songs("a", 2)
	engine := NewPlaylistEngine(newCatalog(tracks...), EngineOptions{})
	progressCh := make(chan ProgressUpdate, 20)

	if _, err := engine.Run(context.Background(), SyncRequest{Records: recordsFor(tracks), PlaylistName: "Mix"}, nil, progressCh); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	close(progressCh)

	var phases []Phase
	lastStep := 0
	for u := range progressCh {
		phases = append(phases, u.Phase)
		if u.Phase == MatchTracks {
			if u.Step <= lastStep {
				t.Errorf("match steps not increasing: %d after %d", u.Step, lastStep)
			}
			lastStep = u.Step
		}
	}
	want := []Phase{ResolveLibrary, MatchTracks, MatchTracks, WritePlaylist, WritePlaylist}
	if !slices.Equal(phases, want) {
		t.Errorf("phases = %v, want %v", phases, want)
	}
}

func TestPhase_String(t *testing.T) {
	tests := []struct {
		phase Phase
		want  string
	}{
		{ResolveLibrary, "resolve_library"},
		{MatchTracks, "match_tracks"},
		{WritePlaylist, "write_playlist"},
		{ImportFiles, "import_files"},
		{Phase(99), ""},
	}
	for _, tt := range tests {
		if got := tt.phase.String(); got != tt.want {
			t.Errorf("Phase(%d).String() = %q, want %q", tt.phase, got, tt.want)
		}
	}
}

func TestDedupKeys(t *testing.T) {
	matched := func(key string) models.MatchResult {
		return models.MatchResult{Status: models.StatusMatched, RatingKey: key}
	}
	unmatched := models.MatchResult{Status: models.StatusUnmatched}

	tests := []struct {
		name     string
		results  []models.MatchResult
		wantKeys []string
		wantDups int
	}{
		{"empty", nil, []string{}, 0},
		{"keeps first occurrence order", []models.MatchResult{matched("b"), matched("a"), matched("b")}, []string{"b", "a"}, 1},
		{"skips unmatched", []models.MatchResult{unmatched, matched("a"), unmatched}, []string{"a"}, 0},
		{"all duplicates", []models.MatchResult{matched("a"), matched("a"), matched("a")}, []string{"a"}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keys, dups := DedupKeys(tt.results)
			if !slices.Equal(keys, tt.wantKeys) || dups != tt.wantDups {
				t.Errorf("DedupKeys() = %v, %d; want %v, %d", keys, dups, tt.wantKeys, tt.wantDups)
			}
		})
	}
}

func TestFilterPresent(t *testing.T) {
	tests := []struct {
		name        string
		keys        []string
		present     []string
		want        []string
		wantDropped int
	}{
		{"nothing present", []string{"a", "b"}, nil, []string{"a", "b"}, 0},
		{"some present", []string{"a", "b", "c"}, []string{"b", "z"}, []string{"a", "c"}, 1},
		{"all present", []string{"a"}, []string{"a"}, []string{}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, dropped := FilterPresent(tt.keys, tt.present)
			if !slices.Equal(got, tt.want) || dropped != tt.wantDropped {
				t.Errorf("FilterPresent() = %v, %d; want %v, %d", got, dropped, tt.want, tt.wantDropped)
			}
		})
	}
}
