// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/plexlist/internal/canon"
	"github.com/desertthunder/plexlist/internal/models"
)

// MockCatalog is an in-memory [services.Catalog] for tests.
//
// Tracks are searched by title token overlap unless SearchFunc is set. Playlists live in memory
// keyed by name. The Err fields inject failures; SearchDelay simulates a slow server.
type MockCatalog struct {
	Libraries   []models.Library
	Tracks      []models.Candidate
	SearchFunc  func(q models.SearchQuery) ([]models.Candidate, error)
	SearchDelay time.Duration

	SearchErr error
	GetErr    error
	ReadErr   error
	WriteErr  error

	mu        sync.Mutex
	playlists map[string]*MockPlaylist
	nextID    int
	searches  int
	writes    int
}

// MockPlaylist is a playlist held by [MockCatalog].
type MockPlaylist struct {
	ID   string
	Name string
	Keys []string
}

// NewMockCatalog creates a catalog with one "Music" library holding tracks.
func NewMockCatalog(tracks ...models.Candidate) *MockCatalog {
	return &MockCatalog{
		Libraries: []models.Library{{ID: "1", Name: "Music", Type: "artist"}},
		Tracks:    tracks,
		playlists: make(map[string]*MockPlaylist),
	}
}

// Track builds a playable candidate.
func Track(key, artist, title, album string) models.Candidate {
	return models.Candidate{RatingKey: key, Artist: artist, Title: title, Album: album, HasPlayableMedia: true}
}

func (m *MockCatalog) Name() string { return "mock" }

func (m *MockCatalog) ListLibraries(ctx context.Context) ([]models.Library, error) {
	return append([]models.Library(nil), m.Libraries...), nil
}

func (m *MockCatalog) Search(ctx context.Context, libraryID string, q models.SearchQuery) ([]models.Candidate, error) {
	m.mu.Lock()
	m.searches++
	m.mu.Unlock()

	if m.SearchDelay > 0 {
		select {
		case <-time.After(m.SearchDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.SearchErr != nil {
		return nil, m.SearchErr
	}
	if m.SearchFunc != nil {
		return m.SearchFunc(q)
	}

	want := make(map[string]bool)
	for _, tok := range canon.Tokens(canon.Canonicalize(q.Title)) {
		want[tok] = true
	}

	found := []models.Candidate{}
	for _, c := range m.Tracks {
		for _, tok := range canon.Tokens(canon.Canonicalize(c.Title)) {
			if want[tok] {
				found = append(found, c)
				break
			}
		}
	}
	return found, nil
}

func (m *MockCatalog) GetOrCreatePlaylist(ctx context.Context, name string) (*models.PlaylistHandle, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if pl, ok := m.playlists[name]; ok {
		return &models.PlaylistHandle{ID: pl.ID, Name: pl.Name, Count: len(pl.Keys)}, nil
	}
	return &models.PlaylistHandle{Name: name}, nil
}

func (m *MockCatalog) ReadPlaylistItems(ctx context.Context, h *models.PlaylistHandle) ([]string, error) {
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if pl, ok := m.playlists[h.Name]; ok && h.Exists() {
		return append([]string{}, pl.Keys...), nil
	}
	return []string{}, nil
}

func (m *MockCatalog) WritePlaylist(ctx context.Context, h *models.PlaylistHandle, mode models.SyncMode, keys []string) error {
	if m.WriteErr != nil {
		return m.WriteErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++

	pl, ok := m.playlists[h.Name]
	if !ok {
		m.nextID++
		pl = &MockPlaylist{ID: fmt.Sprintf("pl-%d", m.nextID), Name: h.Name}
		m.playlists[h.Name] = pl
	}
	if mode == models.ModeReplace {
		pl.Keys = nil
	}
	pl.Keys = append(pl.Keys, keys...)
	h.ID = pl.ID
	h.Count = len(pl.Keys)
	return nil
}

// SeedPlaylist stores a playlist with keys, as if it already existed on the server.
func (m *MockCatalog) SeedPlaylist(name string, keys ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.playlists[name] = &MockPlaylist{ID: fmt.Sprintf("pl-%d", m.nextID), Name: name, Keys: append([]string{}, keys...)}
}

// Playlist returns a copy of the named playlist and whether it exists.
func (m *MockCatalog) Playlist(name string) (MockPlaylist, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pl, ok := m.playlists[name]
	if !ok {
		return MockPlaylist{}, false
	}
	return MockPlaylist{ID: pl.ID, Name: pl.Name, Keys: append([]string{}, pl.Keys...)}, true
}

// Searches returns how many Search calls were made.
func (m *MockCatalog) Searches() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.searches
}

// Writes returns how many WritePlaylist calls succeeded.
func (m *MockCatalog) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
