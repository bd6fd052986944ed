package main

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/plexlist/internal/server"
	"github.com/desertthunder/plexlist/internal/services"
	"github.com/desertthunder/plexlist/internal/shared"
	"github.com/desertthunder/plexlist/internal/web"
)

const cleanupInterval = time.Minute

// Serve runs the HTTP API and upload page until interrupted.
//
// An unreachable Plex host is swapped for the first reachable fallback host before the server starts.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	if r.catalog == nil && r.config.Plex.URL != "" {
		resolved, err := services.ResolveURL(ctx, r.config.Plex.URL, 2*time.Second)
		if err != nil {
			r.logger.Warn("plex server not reachable yet", "url", r.config.Plex.URL, "error", err)
		} else if resolved != r.config.Plex.URL {
			r.logger.Info("using fallback plex address", "configured", r.config.Plex.URL, "resolved", resolved)
			r.config.Plex.URL = resolved
		}
	}

	catalog, err := r.Catalog()
	if err != nil {
		r.logger.Warn("starting without a media server; imports will fail", "error", err)
		catalog = nil
	}

	importer := r.newImporter(catalog)
	defer importer.Shutdown()
	defer r.withHistory(importer)()
	importer.StartCleanup(ctx, cleanupInterval)

	host := cmd.String("host")
	if host == "" {
		host = r.config.Server.Host
	}
	port := int(cmd.Int("port"))
	if port == 0 {
		port = r.config.Server.Port
	}
	if port <= 0 || port > 65535 {
		return fmt.Errorf("%w: invalid port %d", shared.ErrInvalidArgument, port)
	}

	mode, err := r.defaultMode()
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidConfig, err)
	}
	page := web.NewPage(web.Defaults{
		Library:   r.config.Plex.Library,
		Playlist:  r.config.Sync.DefaultPlaylist,
		Mode:      mode,
		Threshold: r.config.Matching.Threshold,
	}, r.config.Plex.URL, r.logger)

	ln, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	if cmd.Bool("open") {
		url, err := shared.LocalURL(ln.Addr().String())
		if err == nil {
			err = shared.OpenBrowser(url)
		}
		if err != nil {
			r.logger.Warn("could not open browser", "error", err)
		}
	}

	return server.Serve(ctx, ln, server.NewHandler(importer, catalog, r.logger, page), r.logger)
}
