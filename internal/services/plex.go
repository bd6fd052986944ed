// Plex Media Server [Catalog] implementation
//
// Talks to the Plex HTTP API directly; responses are decoded from XML.
package services

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/desertthunder/plexlist/internal/models"
	"github.com/desertthunder/plexlist/internal/shared"
)

const (
	defaultPlexURL     = "http://localhost:32400"
	defaultPlexTimeout = 30 * time.Second

	// plexTrackType is the metadata type number Plex uses for music tracks.
	plexTrackType = "10"
)

type plexPart struct {
	Key  string `xml:"key,attr"`
	File string `xml:"file,attr"`
}

type plexMedia struct {
	Parts []plexPart `xml:"Part"`
}

type plexTrack struct {
	RatingKey        string      `xml:"ratingKey,attr"`
	Type             string      `xml:"type,attr"`
	Title            string      `xml:"title,attr"`
	GrandparentTitle string      `xml:"grandparentTitle,attr"`
	OriginalTitle    string      `xml:"originalTitle,attr"`
	ParentTitle      string      `xml:"parentTitle,attr"`
	Media            []plexMedia `xml:"Media"`
}

type plexDirectory struct {
	Key   string `xml:"key,attr"`
	Title string `xml:"title,attr"`
	Type  string `xml:"type,attr"`
	Agent string `xml:"agent,attr"`
}

type plexPlaylist struct {
	RatingKey    string `xml:"ratingKey,attr"`
	Title        string `xml:"title,attr"`
	PlaylistType string `xml:"playlistType,attr"`
	Smart        string `xml:"smart,attr"`
	LeafCount    int    `xml:"leafCount,attr"`
}

// plexContainer is the MediaContainer envelope every Plex XML response uses.
type plexContainer struct {
	XMLName           xml.Name        `xml:"MediaContainer"`
	Size              int             `xml:"size,attr"`
	MachineIdentifier string          `xml:"machineIdentifier,attr"`
	FriendlyName      string          `xml:"friendlyName,attr"`
	Version           string          `xml:"version,attr"`
	Directories       []plexDirectory `xml:"Directory"`
	Tracks            []plexTrack     `xml:"Track"`
	Playlists         []plexPlaylist  `xml:"Playlist"`
}

// ServerInfo identifies a Plex server.
type ServerInfo struct {
	MachineIdentifier string
	FriendlyName      string
	Version           string
}

// PlexOptions configures a [PlexService].
type PlexOptions struct {
	Timeout           time.Duration
	RequestsPerSecond float64
	Client            *http.Client
	Logger            *log.Logger
}

// PlexService implements [Catalog] for a Plex Media Server.
type PlexService struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *log.Logger

	mu        sync.Mutex
	machineID string
}

// NewPlexService creates a new Plex catalog for the server at baseURL.
//
// A non-positive RequestsPerSecond disables pacing.
func NewPlexService(baseURL, token string, opts PlexOptions) *PlexService {
	if baseURL == "" {
		baseURL = defaultPlexURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultPlexTimeout
	}

	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}

	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(io.Discard)
	}

	return &PlexService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: client,
		limiter:    rate.NewLimiter(limit, 1),
		logger:     logger,
	}
}

// NewPlexServiceFromConfig builds a [PlexService] from the [plex] config section.
func NewPlexServiceFromConfig(cfg *shared.Config, logger *log.Logger) (*PlexService, error) {
	if strings.TrimSpace(cfg.Plex.Token) == "" {
		return nil, fmt.Errorf("%w: plex token is not set", shared.ErrMissingCredentials)
	}
	return NewPlexService(cfg.Plex.URL, cfg.Plex.Token, PlexOptions{
		Timeout:           cfg.PlexTimeout(),
		RequestsPerSecond: cfg.Plex.RequestsPerSecond,
		Logger:            logger,
	}), nil
}

// Name returns the service name.
func (p *PlexService) Name() string {
	return "Plex"
}

// BaseURL returns the server address requests are sent to.
func (p *PlexService) BaseURL() string {
	return p.baseURL
}

func (p *PlexService) doRequest(ctx context.Context, method, endpoint string, params url.Values, result any) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	apiURL := p.baseURL + endpoint
	if len(params) > 0 {
		apiURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/xml")
	req.Header.Set("X-Plex-Token", p.token)
	req.Header.Set("X-Plex-Product", "plexlist")
	req.Header.Set("X-Plex-Client-Identifier", "plexlist")

	start := time.Now()
	resp, err := p.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return fmt.Errorf("%w: %s %s", shared.ErrTimeout, method, endpoint)
		}
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	p.logger.Debug("plex request", "method", method, "endpoint", endpoint, "status", resp.StatusCode, "elapsed", time.Since(start))

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: plex rejected the token (status %d)", shared.ErrMissingCredentials, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: plex API error (status %d): %s", shared.ErrAPIRequest, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if result != nil {
		if err := xml.NewDecoder(resp.Body).Decode(result); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// ServerInfo retrieves the server identity.
//
// Calls GET /identity.
func (p *PlexService) ServerInfo(ctx context.Context) (*ServerInfo, error) {
	var container plexContainer
	if err := p.doRequest(ctx, http.MethodGet, "/identity", nil, &container); err != nil {
		return nil, err
	}
	if container.MachineIdentifier == "" {
		return nil, fmt.Errorf("%w: identity response has no machine identifier", shared.ErrAPIRequest)
	}
	return &ServerInfo{
		MachineIdentifier: container.MachineIdentifier,
		FriendlyName:      container.FriendlyName,
		Version:           container.Version,
	}, nil
}

// Probe checks that the server is reachable and the token is accepted.
func (p *PlexService) Probe(ctx context.Context) error {
	if _, err := p.machineIdentifier(ctx); err != nil {
		return err
	}
	_, err := p.ListLibraries(ctx)
	return err
}

func (p *PlexService) machineIdentifier(ctx context.Context) (string, error) {
	p.mu.Lock()
	id := p.machineID
	p.mu.Unlock()
	if id != "" {
		return id, nil
	}

	info, err := p.ServerInfo(ctx)
	if err != nil {
		return "", err
	}

	p.mu.Lock()
	p.machineID = info.MachineIdentifier
	p.mu.Unlock()
	return info.MachineIdentifier, nil
}

// ListLibraries returns the music (artist) library sections.
//
// Calls GET /library/sections.
func (p *PlexService) ListLibraries(ctx context.Context) ([]models.Library, error) {
	var container plexContainer
	if err := p.doRequest(ctx, http.MethodGet, "/library/sections", nil, &container); err != nil {
		return nil, err
	}

	libraries := make([]models.Library, 0, len(container.Directories))
	for _, d := range container.Directories {
		if d.Type != "artist" {
			continue
		}
		libraries = append(libraries, models.Library{ID: d.Key, Name: d.Title, Type: d.Type, Agent: d.Agent})
	}
	return libraries, nil
}

// Search looks up tracks by title, then falls back to a combined "artist title album" query
// when the title search yields nothing.
//
// Calls GET /library/sections/{id}/search?type=10.
func (p *PlexService) Search(ctx context.Context, libraryID string, q models.SearchQuery) ([]models.Candidate, error) {
	if strings.TrimSpace(q.Title) == "" {
		return []models.Candidate{}, nil
	}

	candidates, err := p.searchSection(ctx, libraryID, q.Title)
	if err != nil {
		return nil, err
	}
	if len(candidates) > 0 {
		return candidates, nil
	}

	fallback := joinNonEmpty(q.Artist, q.Title, q.Album)
	if fallback == q.Title {
		return candidates, nil
	}
	p.logger.Debug("plex fallback search", "query", fallback)
	return p.searchSection(ctx, libraryID, fallback)
}

func (p *PlexService) searchSection(ctx context.Context, libraryID, query string) ([]models.Candidate, error) {
	params := url.Values{}
	params.Set("type", plexTrackType)
	params.Set("query", query)

	var container plexContainer
	endpoint := "/library/sections/" + url.PathEscape(libraryID) + "/search"
	if err := p.doRequest(ctx, http.MethodGet, endpoint, params, &container); err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(container.Tracks))
	candidates := make([]models.Candidate, 0, len(container.Tracks))
	for _, t := range container.Tracks {
		if t.RatingKey == "" || t.Title == "" || seen[t.RatingKey] {
			continue
		}
		if t.Type != "" && t.Type != "track" {
			continue
		}
		seen[t.RatingKey] = true
		candidates = append(candidates, toCandidate(t))
	}
	return candidates, nil
}

// toCandidate prefers the track artist (originalTitle) over the album artist, which is
// "Various Artists" on compilations.
func toCandidate(t plexTrack) models.Candidate {
	artist := t.GrandparentTitle
	if t.OriginalTitle != "" {
		artist = t.OriginalTitle
	}
	return models.Candidate{
		RatingKey:        t.RatingKey,
		Artist:           artist,
		Album:            t.ParentTitle,
		Title:            t.Title,
		HasPlayableMedia: hasPlayableMedia(t),
	}
}

func hasPlayableMedia(t plexTrack) bool {
	for _, m := range t.Media {
		for _, part := range m.Parts {
			if part.File != "" {
				return true
			}
		}
	}
	return false
}

func joinNonEmpty(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, s := range parts {
		if s = strings.TrimSpace(s); s != "" {
			kept = append(kept, s)
		}
	}
	return strings.Join(kept, " ")
}

// GetOrCreatePlaylist finds an audio playlist by exact title.
//
// Calls GET /playlists?playlistType=audio. Smart playlists are skipped because they cannot be written.
func (p *PlexService) GetOrCreatePlaylist(ctx context.Context, name string) (*models.PlaylistHandle, error) {
	params := url.Values{}
	params.Set("playlistType", "audio")

	var container plexContainer
	if err := p.doRequest(ctx, http.MethodGet, "/playlists", params, &container); err != nil {
		return nil, err
	}

	for _, pl := range container.Playlists {
		if pl.Title == name && pl.Smart != "1" {
			return &models.PlaylistHandle{ID: pl.RatingKey, Name: pl.Title, Count: pl.LeafCount}, nil
		}
	}
	return &models.PlaylistHandle{Name: name}, nil
}

// ReadPlaylistItems returns the rating keys in the playlist.
//
// Calls GET /playlists/{id}/items.
func (p *PlexService) ReadPlaylistItems(ctx context.Context, h *models.PlaylistHandle) ([]string, error) {
	if h == nil || !h.Exists() {
		return []string{}, nil
	}

	var container plexContainer
	if err := p.doRequest(ctx, http.MethodGet, "/playlists/"+url.PathEscape(h.ID)+"/items", nil, &container); err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(container.Tracks))
	for _, t := range container.Tracks {
		keys = append(keys, t.RatingKey)
	}
	return keys, nil
}

// WritePlaylist creates, replaces or appends to the playlist.
//
// A missing playlist is created with keys via POST /playlists. Replace clears an existing
// playlist with DELETE /playlists/{id}/items before adding; both modes add with
// PUT /playlists/{id}/items.
func (p *PlexService) WritePlaylist(ctx context.Context, h *models.PlaylistHandle, mode models.SyncMode, keys []string) error {
	if h == nil {
		return fmt.Errorf("%w: nil playlist handle", shared.ErrInvalidArgument)
	}

	if !h.Exists() {
		if len(keys) == 0 {
			return nil
		}
		return p.createPlaylist(ctx, h, keys)
	}

	if mode == models.ModeReplace {
		if err := p.doRequest(ctx, http.MethodDelete, "/playlists/"+url.PathEscape(h.ID)+"/items", nil, nil); err != nil {
			return fmt.Errorf("failed to clear playlist: %w", err)
		}
		h.Count = 0
	}

	if len(keys) == 0 {
		return nil
	}

	uri, err := p.itemsURI(ctx, keys)
	if err != nil {
		return err
	}

	params := url.Values{}
	params.Set("uri", uri)
	if err := p.doRequest(ctx, http.MethodPut, "/playlists/"+url.PathEscape(h.ID)+"/items", params, nil); err != nil {
		return fmt.Errorf("failed to add playlist items: %w", err)
	}
	h.Count += len(keys)
	return nil
}

func (p *PlexService) createPlaylist(ctx context.Context, h *models.PlaylistHandle, keys []string) error {
	uri, err := p.itemsURI(ctx, keys)
	if err != nil {
		return err
	}

	params := url.Values{}
	params.Set("type", "audio")
	params.Set("title", h.Name)
	params.Set("smart", "0")
	params.Set("uri", uri)

	var container plexContainer
	if err := p.doRequest(ctx, http.MethodPost, "/playlists", params, &container); err != nil {
		return fmt.Errorf("failed to create playlist: %w", err)
	}
	if len(container.Playlists) == 0 || container.Playlists[0].RatingKey == "" {
		return fmt.Errorf("%w: no playlist returned from creation request", shared.ErrAPIRequest)
	}

	created := container.Playlists[0]
	h.ID = created.RatingKey
	h.Count = len(keys)
	p.logger.Info("created plex playlist", "name", h.Name, "id", h.ID, "items", len(keys))
	return nil
}

// itemsURI builds the library URI Plex expects for a list of rating keys.
func (p *PlexService) itemsURI(ctx context.Context, keys []string) (string, error) {
	machineID, err := p.machineIdentifier(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to resolve server identity: %w", err)
	}
	return fmt.Sprintf("server://%s/com.plexapp.plugins.library/library/metadata/%s", machineID, strings.Join(keys, ",")), nil
}

// FindLibrary selects a library by id or case-insensitive name.
//
// An empty ref selects the only library when exactly one exists.
func FindLibrary(libraries []models.Library, ref string) (models.Library, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		if len(libraries) == 1 {
			return libraries[0], nil
		}
		return models.Library{}, fmt.Errorf("%w: no library named and %d music libraries available", shared.ErrLibraryNotFound, len(libraries))
	}

	for _, lib := range libraries {
		if lib.ID == ref {
			return lib, nil
		}
	}
	for _, lib := range libraries {
		if strings.EqualFold(lib.Name, ref) {
			return lib, nil
		}
	}

	names := make([]string, len(libraries))
	for i, lib := range libraries {
		names[i] = lib.Name
	}
	return models.Library{}, fmt.Errorf("%w: %q (available: %s)", shared.ErrLibraryNotFound, ref, strings.Join(names, ", "))
}
