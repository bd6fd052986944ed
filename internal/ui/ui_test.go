package ui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/plexlist/internal/models"
	"github.com/desertthunder/plexlist/internal/progress"
	"github.com/desertthunder/plexlist/internal/reports"
	"github.com/desertthunder/plexlist/internal/tasks"
	tu "github.com/desertthunder/plexlist/internal/testing"
)

const sampleCSV = "Artist,Album,Title\nThe Beatles,Let It Be,Let It Be\nNobody,,Unknown Song\n"

func newTestModel(t *testing.T, catalog *tu.MockCatalog) *Model {
	t.Helper()

	engine := tasks.NewPlaylistEngine(catalog, tasks.EngineOptions{})
	importer := tasks.NewImporter(engine, progress.NewTracker(progress.Options{}), reports.NewStore(time.Hour, 10), tasks.ImporterOptions{})
	t.Cleanup(importer.Shutdown)

	preview, err := importer.PreviewText(sampleCSV)
	if err != nil {
		t.Fatalf("PreviewText() error = %v", err)
	}
	req := tasks.SubmitRequest{Text: sampleCSV, PlaylistName: "Road Trip", Mode: models.ModeReplace, Threshold: 70}
	return NewModel(context.Background(), importer, preview, req)
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// drive runs cmd and feeds its messages back into the model until no command is left.
func drive(t *testing.T, m *Model, cmd tea.Cmd) {
	t.Helper()

	deadline := time.After(5 * time.Second)
	for cmd != nil {
		msgCh := make(chan tea.Msg, 1)
		go func(c tea.Cmd) { msgCh <- c() }(cmd)

		select {
		case msg := <-msgCh:
			_, cmd = m.Update(msg)
		case <-deadline:
			t.Fatal("import did not finish")
		}
	}
}

func TestModel_ImportFlow(t *testing.T) {
	catalog := tu.NewMockCatalog(tu.Track("101", "The Beatles", "Let It Be", "Let It Be"))
	m := newTestModel(t, catalog)
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})

	if m.view != PreviewView {
		t.Fatalf("expected preview view, got %d", m.view)
	}
	if !strings.Contains(m.View(), "2 rows to import") {
		t.Errorf("preview should list the row count:\n%s", m.View())
	}

	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if m.view != ConfirmView {
		t.Fatalf("expected confirm view, got %d", m.view)
	}
	if !strings.Contains(m.View(), "Road Trip") {
		t.Errorf("confirm view should name the playlist:\n%s", m.View())
	}

	_, cmd := m.Update(keyRunes("y"))
	if m.view != ImportView {
		t.Fatalf("expected import view, got %d", m.view)
	}
	drive(t, m, cmd)

	if m.view != ResultView {
		t.Fatalf("expected result view, got %d", m.view)
	}
	if m.Err() != nil {
		t.Fatalf("unexpected error: %v", m.Err())
	}
	if job := m.Job(); job.State != models.JobCompleted || job.Matched != 1 || job.Unmatched != 1 {
		t.Errorf("unexpected job: %+v", job)
	}

	view := m.View()
	for _, want := range []string{"Import Complete", "Matched: 1/2", "Added: 1"} {
		if !strings.Contains(view, want) {
			t.Errorf("result view missing %q:\n%s", want, view)
		}
	}

	m.Update(keyRunes("r"))
	if m.view != PreviewView || m.Job().ID != "" {
		t.Errorf("restart should return to a clean preview")
	}
}

func TestModel_ConfirmDecline(t *testing.T) {
	m := newTestModel(t, tu.NewMockCatalog())

	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	_, cmd := m.Update(keyRunes("n"))
	if m.view != PreviewView {
		t.Errorf("declining should return to the preview, got %d", m.view)
	}
	if cmd != nil {
		t.Error("declining should not start an import")
	}
}

func TestModel_ImportFailure(t *testing.T) {
	catalog := tu.NewMockCatalog(tu.Track("101", "The Beatles", "Let It Be", "Let It Be"))
	catalog.WriteErr = errors.New("server said no")
	m := newTestModel(t, catalog)

	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	_, cmd := m.Update(keyRunes("y"))
	drive(t, m, cmd)

	if m.Err() == nil {
		t.Fatal("expected an error after a failed write")
	}
	if !strings.Contains(m.View(), "Import failed") {
		t.Errorf("result view should report the failure:\n%s", m.View())
	}
}

func TestModel_Percent(t *testing.T) {
	m := newTestModel(t, tu.NewMockCatalog())

	tests := []struct {
		update tasks.ProgressUpdate
		want   float64
	}{
		{tasks.ProgressUpdate{}, 0},
		{tasks.ProgressUpdate{Phase: tasks.ResolveLibrary}, 0},
		{tasks.ProgressUpdate{Phase: tasks.MatchTracks, Step: 1, Total: 4}, 0.25},
		{tasks.ProgressUpdate{Phase: tasks.WritePlaylist}, 1},
	}
	for _, tt := range tests {
		m.progress = tt.update
		if got := m.percent(); got != tt.want {
			t.Errorf("percent(%+v) = %v, want %v", tt.update, got, tt.want)
		}
	}
}
