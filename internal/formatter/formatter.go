// package formatter builds import reports and renders them as CSV, Markdown, plain text or JSON
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/desertthunder/plexlist/internal/models"
	"github.com/desertthunder/plexlist/internal/shared"
)

// ReasonNoConfidentMatch labels unmatched rows whose result carried no reason.
const ReasonNoConfidentMatch = "No confident match found."

// ReportHeader is the column order of report CSV exports.
var ReportHeader = []string{"artist", "album", "title", "status", "reason"}

// NormalizedHeader is the column order of the normalized preview CSV.
var NormalizedHeader = []string{"artist", "album", "title"}

// Summary describes the run a report belongs to.
type Summary struct {
	Playlist  string          `json:"playlist"`
	Mode      models.SyncMode `json:"mode"`
	Total     int             `json:"total"`
	Matched   int             `json:"matched"`
	Unmatched int             `json:"unmatched"`
	Added     int             `json:"added"`
}

// BuildReport maps match results to report entries, one per result, in the same order.
func BuildReport(results []models.MatchResult) []models.ReportEntry {
	entries := make([]models.ReportEntry, len(results))
	for i, r := range results {
		e := models.ReportEntry{
			Artist: r.Record.Artist,
			Album:  r.Record.Album,
			Title:  r.Record.Title,
			Status: r.Status,
			Line:   r.Record.Line,
		}
		if r.Status != models.StatusMatched {
			e.Status = models.StatusUnmatched
			e.Reason = r.Reason
			if e.Reason == "" {
				e.Reason = ReasonNoConfidentMatch
			}
		}
		entries[i] = e
	}
	return entries
}

// Summarize counts the entries of a report.
func Summarize(playlist string, mode models.SyncMode, entries []models.ReportEntry, added int) Summary {
	s := Summary{Playlist: playlist, Mode: mode, Total: len(entries), Added: added}
	for _, e := range entries {
		if e.Status == models.StatusMatched {
			s.Matched++
		} else {
			s.Unmatched++
		}
	}
	return s
}

// ReportToCSV renders entries with the columns artist, album, title, status, reason.
func ReportToCSV(entries []models.ReportEntry) ([]byte, error) {
	rows := make([][]string, len(entries))
	for i, e := range entries {
		reason := e.Reason
		if e.Status == models.StatusMatched {
			reason = ""
		}
		rows[i] = []string{e.Artist, e.Album, e.Title, string(e.Status), reason}
	}
	return writeCSV(ReportHeader, rows)
}

// NormalizedCSV renders records as artist, album, title rows: the exact rows an import will use.
func NormalizedCSV(records []models.TrackRecord) ([]byte, error) {
	rows := make([][]string, len(records))
	for i, r := range records {
		rows[i] = []string{r.Artist, r.Album, r.Title}
	}
	return writeCSV(NormalizedHeader, rows)
}

func writeCSV(header []string, rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}
	if err := writer.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("failed to write CSV record: %w", err)
	}
	return buf.Bytes(), nil
}

// ReportToMarkdown renders a report as a Markdown document with the unmatched rows listed first.
func ReportToMarkdown(summary Summary, entries []models.ReportEntry) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", summary.Playlist)
	fmt.Fprintf(&buf, "**Mode**: %s\n", summary.Mode)
	fmt.Fprintf(&buf, "**Tracks**: %d\n", summary.Total)
	fmt.Fprintf(&buf, "**Matched**: %d\n", summary.Matched)
	fmt.Fprintf(&buf, "**Unmatched**: %d\n", summary.Unmatched)
	fmt.Fprintf(&buf, "**Added**: %d\n\n", summary.Added)

	if summary.Unmatched > 0 {
		buf.WriteString("## Unmatched\n\n")
		buf.WriteString("| Line | Artist | Title | Reason |\n")
		buf.WriteString("|---:|---|---|---|\n")
		for _, e := range entries {
			if e.Status == models.StatusMatched {
				continue
			}
			fmt.Fprintf(&buf, "| %d | %s | %s | %s |\n", e.Line, mdCell(e.Artist), mdCell(e.Title), mdCell(e.Reason))
		}
		buf.WriteString("\n")
	}

	buf.WriteString("## Tracks\n\n")
	for i, e := range entries {
		mark := "x"
		if e.Status != models.StatusMatched {
			mark = " "
		}
		albumPart := ""
		if e.Album != "" {
			albumPart = fmt.Sprintf(" (%s)", e.Album)
		}
		fmt.Fprintf(&buf, "%d. [%s] %s - %s%s\n", i+1, mark, e.Artist, e.Title, albumPart)
	}

	return buf.Bytes()
}

func mdCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// ReportToText renders a report as plain text.
func ReportToText(summary Summary, entries []models.ReportEntry) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Playlist: %s (%s)\n", summary.Playlist, summary.Mode)
	fmt.Fprintf(&buf, "Matched: %d/%d, added: %d\n\n", summary.Matched, summary.Total, summary.Added)

	for i, e := range entries {
		line := fmt.Sprintf("%d. %s - %s", i+1, e.Artist, e.Title)
		if e.Status != models.StatusMatched {
			line += fmt.Sprintf("  [unmatched: %s]", e.Reason)
		}
		buf.WriteString(line + "\n")
	}

	return buf.Bytes()
}

type jsonReport struct {
	Summary Summary              `json:"summary"`
	Entries []models.ReportEntry `json:"entries"`
}

// ReportToJSON renders the summary and entries as indented JSON.
func ReportToJSON(summary Summary, entries []models.ReportEntry) ([]byte, error) {
	if entries == nil {
		entries = []models.ReportEntry{}
	}
	return shared.MarshalJSON(jsonReport{Summary: summary, Entries: entries}, true)
}

// Format is a report export format.
type Format string

const (
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "md"
	FormatText     Format = "txt"
	FormatJSON     Format = "json"
)

// ParseFormat accepts csv, md/markdown, txt/text and json.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "csv":
		return FormatCSV, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	case "txt", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unknown report format %q", shared.ErrInvalidArgument, s)
	}
}

// Render produces the report bytes in the requested format.
func Render(format Format, summary Summary, entries []models.ReportEntry) ([]byte, error) {
	switch format {
	case FormatCSV:
		return ReportToCSV(entries)
	case FormatMarkdown:
		return ReportToMarkdown(summary, entries), nil
	case FormatText:
		return ReportToText(summary, entries), nil
	case FormatJSON:
		return ReportToJSON(summary, entries)
	default:
		return nil, fmt.Errorf("%w: unknown report format %q", shared.ErrInvalidArgument, format)
	}
}

// WriteReportExport writes the report to path, creating parent directories.
//
// An empty path defaults to "{playlist}_report.{format}" in the working directory.
func WriteReportExport(format Format, summary Summary, entries []models.ReportEntry, path string) (string, error) {
	if path == "" {
		path = fmt.Sprintf("%s_report.%s", SafeFilename(summary.Playlist), format)
	}

	data, err := Render(format, summary, entries)
	if err != nil {
		return "", fmt.Errorf("failed to render report: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report file: %w", err)
	}
	return path, nil
}

// SafeFilename replaces characters that are unsafe in file names.
func SafeFilename(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "playlist"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		if r < 0x20 {
			return '_'
		}
		return r
	}, name)
}
