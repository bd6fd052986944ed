// package services defines the [Catalog] capability for media servers
//
// Plex (HTTP/XML)
package services

import (
	"context"

	"github.com/desertthunder/plexlist/internal/models"
)

// Catalog is the media-server capability the sync engine depends on.
//
// Implementations must be safe for concurrent use: several import jobs may share one catalog.
type Catalog interface {
	// ListLibraries returns the music library sections on the server.
	ListLibraries(ctx context.Context) ([]models.Library, error)

	// Search returns candidate tracks in the library for the query. An empty slice means no results.
	Search(ctx context.Context, libraryID string, q models.SearchQuery) ([]models.Candidate, error)

	// GetOrCreatePlaylist finds the playlist by name. When none exists the returned handle has an
	// empty ID and the playlist is created by the first [Catalog.WritePlaylist] call.
	GetOrCreatePlaylist(ctx context.Context, name string) (*models.PlaylistHandle, error)

	// ReadPlaylistItems returns the rating keys currently in the playlist, in playlist order.
	ReadPlaylistItems(ctx context.Context, h *models.PlaylistHandle) ([]string, error)

	// WritePlaylist replaces the playlist contents with keys or appends keys to it.
	// On success h.ID is set if the write created the playlist.
	WritePlaylist(ctx context.Context, h *models.PlaylistHandle, mode models.SyncMode, keys []string) error

	// Name returns the name of the catalog (e.g., "Plex")
	Name() string
}
