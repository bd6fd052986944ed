package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"

	"github.com/desertthunder/plexlist/internal/models"
)

var (
	_ list.Item = recordItem{}
	_ list.Item = entryItem{}
)

// recordItem wraps [models.TrackRecord] to implement [list.Item].
type recordItem struct {
	record models.TrackRecord
}

func (i recordItem) FilterValue() string { return i.record.Artist + " " + i.record.Title }
func (i recordItem) Title() string       { return i.record.Title }
func (i recordItem) Description() string {
	desc := i.record.Artist
	if i.record.Album != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.record.Album)
	}
	return fmt.Sprintf("%s • line %d", desc, i.record.Line)
}

// entryItem wraps an unmatched [models.ReportEntry] to implement [list.Item].
type entryItem struct {
	entry models.ReportEntry
}

func (i entryItem) FilterValue() string { return i.entry.Artist + " " + i.entry.Title }
func (i entryItem) Title() string       { return fmt.Sprintf("%s - %s", i.entry.Artist, i.entry.Title) }
func (i entryItem) Description() string { return i.entry.Reason }
