package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/plexlist/internal/matcher"
	"github.com/desertthunder/plexlist/internal/models"
	"github.com/desertthunder/plexlist/internal/progress"
	"github.com/desertthunder/plexlist/internal/reports"
	"github.com/desertthunder/plexlist/internal/repositories"
	"github.com/desertthunder/plexlist/internal/services"
	"github.com/desertthunder/plexlist/internal/shared"
	"github.com/desertthunder/plexlist/internal/tasks"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	catalog    services.Catalog
	api        *services.APIService
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Catalog    services.Catalog // Built from the [plex] section on first use when nil
	API        *services.APIService
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		catalog:    opts.Catalog,
		api:        opts.API,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, librariesCommand, previewCommand, importCommand, bulkCommand,
		serveCommand, historyCommand, remoteCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// SetLogger replaces the logger, e.g. with a file logger while the TUI owns the terminal.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

// Catalog returns the media server client, connecting to Plex on first use.
func (r *Runner) Catalog() (services.Catalog, error) {
	if r.catalog != nil {
		return r.catalog, nil
	}

	plex, err := services.NewPlexServiceFromConfig(r.config, r.logger)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("using plex server", "url", plex.BaseURL())
	r.catalog = plex
	return r.catalog, nil
}

// newImporter wires an importer over catalog from the configured matching and retention settings.
func (r *Runner) newImporter(catalog services.Catalog) *tasks.Importer {
	engine := tasks.NewPlaylistEngine(catalog, tasks.EngineOptions{
		Matcher:       matcher.New(r.config.Matching.ArtistFloor, r.config.Matching.TieEpsilon),
		SearchTimeout: r.config.SearchTimeout(),
		Logger:        r.logger,
	})
	tracker := progress.NewTracker(progress.Options{
		Retention:   r.config.JobRetention(),
		MaxRetained: r.config.Jobs.MaxRetained,
	})
	store := reports.NewStore(r.config.ReportTTL(), r.config.Reports.MaxReports)

	mode, err := r.defaultMode()
	if err != nil {
		r.logger.Warn("ignoring configured default mode", "error", err)
	}

	return tasks.NewImporter(engine, tracker, store, tasks.ImporterOptions{
		DefaultPlaylist: r.config.Sync.DefaultPlaylist,
		DefaultMode:     mode,
		Threshold:       r.config.Matching.Threshold,
		Library:         r.config.Plex.Library,
		Logger:          r.logger,
	})
}

func (r *Runner) defaultMode() (models.SyncMode, error) {
	if r.config.Sync.DefaultMode == "" {
		return models.ModeReplace, nil
	}
	return models.ParseSyncMode(r.config.Sync.DefaultMode)
}

// openHistory opens the run history database, or returns nil when history is disabled.
func (r *Runner) openHistory() (*sql.DB, *repositories.SyncRunRepository, error) {
	if !r.config.Database.Enabled {
		return nil, nil, nil
	}
	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return nil, nil, err
	}
	return db, repositories.NewSyncRunRepository(db), nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
