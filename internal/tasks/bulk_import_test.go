package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/desertthunder/plexlist/internal/formatter"
	"github.com/desertthunder/plexlist/internal/shared"
	tu "github.com/desertthunder/plexlist/internal/testing"
)

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}
}

func TestBulkImport(t *testing.T) {
	tests := []struct {
		name        string
		files       map[string]string
		format      formatter.Format
		wantSuccess int
		wantFailed  int
		wantReports []string
	}{
		{
			name: "imports every csv in the directory",
			files: map[string]string{
				"Road Trip.csv": sampleCSV,
				"Chill.CSV":     "artist,title\nArtist,Song a2\n",
				"notes.txt":     "not a playlist",
			},
			wantSuccess: 2,
			wantReports: []string{"Road Trip_report.csv", "Chill_report.csv"},
		},
		{
			name: "malformed file fails alone",
			files: map[string]string{
				"Good.csv": sampleCSV,
				"Bad.csv":  "foo,bar\n1,2\n",
			},
			format:      formatter.FormatMarkdown,
			wantSuccess: 1,
			wantFailed:  1,
			wantReports: []string{"Good_report.md"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srcDir := t.TempDir()
			outDir := filepath.Join(t.TempDir(), "out")
			writeFiles(t, srcDir, tt.files)

			cat := newCatalog(songs("a", 2)...)
			imp := newTestImporter(cat)
			prog := make(chan ProgressUpdate, 50)

			result, err := imp.BulkImport(context.Background(), prog, BulkImportOpts{
				Dir:          srcDir,
				ReportFormat: tt.format,
				OutputDir:    outDir,
				NumWorkers:   2,
				RateLimit:    100,
			})
			if err != nil {
				t.Fatalf("BulkImport() error = %v", err)
			}

			if result.Successful != tt.wantSuccess || result.Failed != tt.wantFailed {
				t.Errorf("successful=%d failed=%d, want %d/%d", result.Successful, result.Failed, tt.wantSuccess, tt.wantFailed)
			}
			if result.TotalFiles != tt.wantSuccess+tt.wantFailed {
				t.Errorf("total files = %d", result.TotalFiles)
			}

			for _, name := range tt.wantReports {
				tu.AssertFileExists(t, filepath.Join(outDir, name))
			}

			tu.AssertFileExists(t, result.ManifestPath)
			var manifest BulkImportResult
			if err := json.Unmarshal([]byte(tu.MustReadFile(t, result.ManifestPath)), &manifest); err != nil {
				t.Fatalf("manifest is not valid JSON: %v", err)
			}
			if len(manifest.Results) != result.TotalFiles {
				t.Errorf("manifest lists %d results, want %d", len(manifest.Results), result.TotalFiles)
			}
			for _, r := range manifest.Results {
				if !r.Success && r.ErrorText == "" {
					t.Errorf("failed result %s should carry an error message", r.File)
				}
			}
		})
	}
}

func TestBulkImport_PlaylistPerFile(t *testing.T) {
	srcDir := t.TempDir()
	writeFiles(t, srcDir, map[string]string{"Road Trip.csv": sampleCSV})

	cat := newCatalog(songs("a", 2)...)
	imp := newTestImporter(cat)

	result, err := imp.BulkImport(context.Background(), nil, BulkImportOpts{Dir: srcDir, OutputDir: t.TempDir(), RateLimit: 100})
	if err != nil {
		t.Fatalf("BulkImport() error = %v", err)
	}

	r := result.Results[0]
	if r.Playlist != "Road Trip" || r.Matched != 2 || r.Unmatched != 1 || r.Added != 2 {
		t.Errorf("result = %+v", r)
	}
	if pl, ok := cat.Playlist("Road Trip"); !ok || len(pl.Keys) != 2 {
		t.Errorf("playlist = %+v, %v", pl, ok)
	}
}

func TestBulkImport_Errors(t *testing.T) {
	imp := newTestImporter(newCatalog())

	t.Run("no directory", func(t *testing.T) {
		_, err := imp.BulkImport(context.Background(), nil, BulkImportOpts{})
		if !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("error = %v, want ErrMissingArgument", err)
		}
	})

	t.Run("no csv files", func(t *testing.T) {
		dir := t.TempDir()
		writeFiles(t, dir, map[string]string{"readme.md": "#"})
		_, err := imp.BulkImport(context.Background(), nil, BulkImportOpts{Dir: dir, OutputDir: t.TempDir()})
		if !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("error = %v, want ErrMissingArgument", err)
		}
	})

	t.Run("missing directory", func(t *testing.T) {
		_, err := imp.BulkImport(context.Background(), nil, BulkImportOpts{Dir: filepath.Join(t.TempDir(), "nope")})
		if err == nil {
			t.Error("expected error for missing directory")
		}
	})
}

func TestPlaylistNameFromFile(t *testing.T) {
	tests := []struct{ path, want string }{
		{"/tmp/Road Trip.csv", "Road Trip"},
		{"mix.final.csv", "mix.final"},
		{"dir/ Chill .CSV", "Chill"},
	}
	for _, tt := range tests {
		if got := playlistNameFromFile(tt.path); got != tt.want {
			t.Errorf("playlistNameFromFile(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
