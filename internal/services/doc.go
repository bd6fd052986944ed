// Package services defines the [Catalog] interface for media servers and implements it for Plex.
//
// # Catalog Interface
//
// The sync engine only sees [Catalog]: library listing, track search, and playlist reads and writes.
// Tests substitute an in-memory catalog from internal/testing.
//
// # Plex Implementation
//
// [PlexService] talks to the Plex Media Server HTTP API and decodes its XML responses.
// The token is sent in the X-Plex-Token header on every request and requests are paced
// by a [rate.Limiter].
//
// Plex cannot create an empty playlist, so [PlexService.GetOrCreatePlaylist] returns an
// unsaved handle and the first write creates the playlist with its items.
//
// # Connection Resolution
//
// [ResolveURL] probes the configured server address and, when it is unreachable, a list of
// local fallbacks (127.0.0.1, localhost, host.docker.internal) on the same port.
//
// # Error Handling
//
// Services use typed errors from shared package:
//   - [shared.ErrMissingCredentials] : no token configured, or the server rejected it
//   - [shared.ErrAPIRequest] : HTTP request failed or returned a non-2xx status
//   - [shared.ErrLibraryNotFound] : no music library matches the requested name
//   - [shared.ErrServiceUnavailable] : no reachable server address
//
// # Server API Client
//
// [APIService] makes raw requests against a running plexlist server (see internal/server).
package services
