// submodule cmd contains command definitions
package main

import (
	"time"

	"github.com/urfave/cli/v3"
)

// setupCommand handles setup operations for configuration, database and credentials.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write a config.toml from the built-in defaults",
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Initialize the history database and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:  "token",
				Usage: "Store the Plex server URL and token from a browser request",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "curl",
						Usage: "cURL command from browser DevTools (Copy as cURL) of any Plex Web request",
					},
					&cli.StringFlag{
						Name:  "curl-file",
						Usage: "Path to .sh file containing the cURL command",
					},
				},
				Action: r.SetupToken,
			},
		},
	}
}

// librariesCommand lists the music libraries on the server.
func librariesCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "libraries",
		Aliases: []string{"libs"},
		Usage:   "List music libraries on the Plex server",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Libraries,
	}
}

func inputFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "file",
			Aliases: []string{"f"},
			Usage:   "CSV file to read",
		},
		&cli.StringFlag{
			Name:  "text",
			Usage: "CSV text to read instead of a file",
		},
		&cli.StringFlag{
			Name:  "encoding",
			Usage: "Encoding of the file: utf-8, utf-16, latin-1 (default: detect)",
		},
	}
}

// previewCommand normalizes a CSV without importing it.
func previewCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "preview",
		Usage: "Show the normalized rows a CSV would import",
		Flags: append(inputFlags(),
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output the preview as JSON",
			},
		),
		Action: r.Preview,
	}
}

// importCommand imports a single CSV into a playlist.
func importCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Import a CSV into a Plex playlist",
		Flags: append(inputFlags(),
			&cli.StringFlag{
				Name:    "playlist",
				Aliases: []string{"p"},
				Usage:   "Target playlist name (default: sync.default_playlist)",
			},
			&cli.StringFlag{
				Name:  "mode",
				Usage: "replace or append (default: sync.default_mode)",
			},
			&cli.IntFlag{
				Name:  "threshold",
				Usage: "Minimum confidence (1-100) to accept a match (default: matching.threshold)",
			},
			&cli.StringFlag{
				Name:  "library",
				Usage: "Library id or name (default: plex.library)",
			},
			&cli.StringFlag{
				Name:  "report",
				Usage: "Write the import report to this path",
			},
			&cli.StringFlag{
				Name:  "format",
				Usage: "Report format: csv, md, txt or json",
				Value: "csv",
			},
			&cli.BoolFlag{
				Name:  "tui",
				Usage: "Preview, confirm and monitor the import interactively",
			},
		),
		Action: r.Import,
	}
}

// bulkCommand imports every CSV in a directory, one playlist per file.
func bulkCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "bulk",
		Usage: "Import every CSV in a directory, one playlist per file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "dir",
				Aliases:  []string{"d"},
				Usage:    "Directory containing CSV files",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "mode",
				Usage: "replace or append (default: sync.default_mode)",
			},
			&cli.IntFlag{
				Name:  "threshold",
				Usage: "Minimum confidence (1-100) to accept a match",
			},
			&cli.StringFlag{
				Name:  "library",
				Usage: "Library id or name",
			},
			&cli.StringFlag{
				Name:  "encoding",
				Usage: "Encoding of every file (default: detect)",
			},
			&cli.StringFlag{
				Name:  "format",
				Usage: "Report format: csv, md, txt or json",
				Value: "csv",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Directory for reports and the manifest",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Concurrent imports (default: sync.workers)",
			},
		},
		Action: r.Bulk,
	}
}

// serveCommand runs the HTTP API.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the import web service",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Listen host (default: server.host)",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "Listen port (default: server.port)",
			},
			&cli.BoolFlag{
				Name:  "open",
				Usage: "Open the upload page in the default browser",
			},
		},
		Action: r.Serve,
	}
}

// historyCommand reads recorded imports from the database.
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show recorded imports",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List recent imports, newest first",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "playlist",
						Usage: "Only imports into this playlist",
					},
					&cli.StringFlag{
						Name:  "status",
						Usage: "Only imports with this status (completed, failed)",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of imports to show",
						Value: 20,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.HistoryList,
			},
			{
				Name:  "report",
				Usage: "Print the report of a recorded import",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "id",
					},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "format",
						Usage: "Report format: csv, md, txt or json",
						Value: "txt",
					},
				},
				Action: r.HistoryReport,
			},
		},
	}
}

// remoteCommand talks to a running plexlist server.
func remoteCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "remote",
		Usage: "Direct API calls to a running plexlist server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "server",
				Usage: "Server base URL",
				Value: "http://localhost:8080",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "get",
				Usage: "GET a server path, prints raw JSON",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "path",
					},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
						Value: true,
					},
				},
				Action: r.RemoteGet,
			},
			{
				Name:  "import",
				Usage: "Upload a CSV to the server and wait for the job",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "file",
						Aliases:  []string{"f"},
						Usage:    "CSV file to upload",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "playlist",
						Aliases: []string{"p"},
						Usage:   "Target playlist name",
					},
					&cli.StringFlag{
						Name:  "mode",
						Usage: "replace or append",
					},
					&cli.IntFlag{
						Name:  "threshold",
						Usage: "Minimum confidence (1-100)",
					},
					&cli.StringFlag{
						Name:  "library",
						Usage: "Library id or name",
					},
					&cli.DurationFlag{
						Name:  "poll",
						Usage: "Interval between job polls",
						Value: time.Second,
					},
				},
				Action: r.RemoteImport,
			},
		},
	}
}
