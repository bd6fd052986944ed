package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/plexlist/internal/formatter"
	"github.com/desertthunder/plexlist/internal/models"
	"github.com/desertthunder/plexlist/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	PreviewView ViewState = iota
	ConfirmView
	ImportView
	ResultView
)

// Model represents the TUI application state.
type Model struct {
	ctx       context.Context
	view      ViewState
	importer  *tasks.Importer
	preview   *tasks.Preview
	request   tasks.SubmitRequest
	width     int
	height    int
	records   list.Model
	unmatched list.Model
	bar       progress.Model
	jobID     string
	updates   chan tasks.ProgressUpdate
	done      chan finished
	progress  tasks.ProgressUpdate
	job       models.SyncJob
	result    *tasks.SyncResult
	entries   []models.ReportEntry
	err       error
	help      help.Model
	keys      keyMap
}

// NewModel creates a TUI for importing preview with the settings in req.
//
// req carries the raw input and options; the model sets its own Progress channel and OnFinish callback.
func NewModel(ctx context.Context, importer *tasks.Importer, preview *tasks.Preview, req tasks.SubmitRequest) *Model {
	items := make([]list.Item, len(preview.Records))
	for i, rec := range preview.Records {
		items[i] = recordItem{record: rec}
	}

	records := list.New(items, list.NewDefaultDelegate(), 0, 0)
	records.Title = fmt.Sprintf("%d rows to import", len(preview.Records))

	return &Model{
		ctx:      ctx,
		view:     PreviewView,
		importer: importer,
		preview:  preview,
		request:  req,
		records:  records,
		bar:      progress.New(progress.WithDefaultGradient()),
		help:     help.New(),
		keys:     newKeyMap(),
	}
}

// Init starts in the preview; nothing is fetched.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.records.SetSize(msg.Width-4, msg.Height-8)
		if m.unmatched.Width() > 0 {
			m.unmatched.SetSize(msg.Width-4, msg.Height-12)
		}
		m.bar.Width = min(max(msg.Width-8, 10), 80)
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case PreviewView:
			return m.handlePreviewKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case ImportView:
			if key.Matches(msg, m.keys.quit) {
				return m, tea.Quit
			}
			return m, nil
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateLists(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgImportStarted:
		data := msg.data.(struct {
			jobID string
			err   error
		})
		if data.err != nil {
			m.err = data.err
			m.view = ResultView
			return m, nil
		}
		m.jobID = data.jobID
		return m, m.waitForProgress()

	case MsgProgressUpdate:
		m.progress = msg.data.(tasks.ProgressUpdate)
		return m, m.waitForProgress()

	case MsgImportFinished:
		f := msg.data.(finished)
		m.job = f.job
		m.result = f.result
		m.err = f.err
		m.entries = nil
		if f.result != nil {
			m.entries = formatter.BuildReport(f.result.Results)
		}
		m.unmatched = m.unmatchedList()
		m.updates, m.done = nil, nil
		m.view = ResultView
		return m, nil
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case PreviewView:
		return m.renderPreview()
	case ConfirmView:
		return m.renderConfirm()
	case ImportView:
		return m.renderImport()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

// Job returns the final job snapshot, once the import has finished.
func (m *Model) Job() models.SyncJob {
	return m.job
}

// Err returns the error that ended the import, if any.
func (m *Model) Err() error {
	return m.err
}

func (m *Model) handlePreviewKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.records.FilterState() != list.Filtering {
		switch {
		case key.Matches(msg, m.keys.quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.review):
			m.view = ConfirmView
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.records, cmd = m.records.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit), key.Matches(msg, m.keys.cancel):
		m.view = PreviewView
		return m, nil
	case key.Matches(msg, m.keys.confirm):
		m.view = ImportView
		m.progress = tasks.ProgressUpdate{}
		return m, m.startImport()
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.again):
		m.view = PreviewView
		m.jobID = ""
		m.job = models.SyncJob{}
		m.result = nil
		m.entries = nil
		m.err = nil
		return m, nil
	}

	var cmd tea.Cmd
	m.unmatched, cmd = m.unmatched.Update(msg)
	return m, cmd
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case PreviewView:
		m.records, cmd = m.records.Update(msg)
	case ResultView:
		m.unmatched, cmd = m.unmatched.Update(msg)
	}
	return m, cmd
}

// startImport submits the import. Updates and the terminal snapshot arrive through channels owned by this run.
func (m *Model) startImport() tea.Cmd {
	updates := make(chan tasks.ProgressUpdate, 50)
	done := make(chan finished, 1)
	m.updates, m.done = updates, done

	req := m.request
	req.Progress = updates
	req.OnFinish = func(job models.SyncJob, result *tasks.SyncResult) {
		done <- finished{job: job, result: result}
	}

	return func() tea.Msg {
		id, err := m.importer.Submit(m.ctx, req)
		return importStartedMsg(id, err)
	}
}

func (m *Model) waitForProgress() tea.Cmd {
	updates, done := m.updates, m.done
	return func() tea.Msg {
		select {
		case update := <-updates:
			return progressUpdateMsg(update)
		case f := <-done:
			return importFinishedMsg(f.job, f.result)
		}
	}
}

func (m *Model) unmatchedList() list.Model {
	var items []list.Item
	for _, e := range m.entries {
		if e.Status == models.StatusUnmatched {
			items = append(items, entryItem{entry: e})
		}
	}

	l := list.New(items, list.NewDefaultDelegate(), max(m.width-4, 0), max(m.height-12, 0))
	l.Title = "Unmatched rows"
	l.SetShowStatusBar(false)
	return l
}

// percent is the share of the import done, from the latest update.
func (m *Model) percent() float64 {
	switch m.progress.Phase {
	case tasks.MatchTracks:
		if m.progress.Total > 0 {
			return float64(m.progress.Step) / float64(m.progress.Total)
		}
	case tasks.WritePlaylist:
		return 1
	}
	return 0
}

func (m *Model) renderPreview() string {
	info := ""
	if m.preview.Dropped > 0 {
		info = styles.warn.Render(fmt.Sprintf("%d rows without artist or title were dropped", m.preview.Dropped)) + "\n"
	}
	helpView := m.help.ShortHelpView(m.keys.forView(PreviewView))
	return fmt.Sprintf("%s\n%s\n%s", m.records.View(), info, helpView)
}

func (m *Model) renderConfirm() string {
	title := styles.title.Render(fmt.Sprintf("Import %d rows into '%s'?", len(m.preview.Records), m.request.PlaylistName))

	var b strings.Builder
	fmt.Fprintf(&b, "%s%s\n", styles.label.Render("Playlist"), m.request.PlaylistName)
	fmt.Fprintf(&b, "%s%s\n", styles.label.Render("Mode"), m.request.Mode)
	fmt.Fprintf(&b, "%s%d\n", styles.label.Render("Threshold"), m.request.Threshold)
	if m.request.Library != "" {
		fmt.Fprintf(&b, "%s%s\n", styles.label.Render("Library"), m.request.Library)
	}

	helpView := m.help.ShortHelpView(m.keys.forView(ConfirmView))
	return fmt.Sprintf("%s\n%s\n%s", title, b.String(), helpView)
}

func (m *Model) renderImport() string {
	title := styles.title.Render(fmt.Sprintf("Importing '%s'", m.request.PlaylistName))

	var phase string
	switch m.progress.Phase {
	case tasks.ResolveLibrary:
		phase = "Resolving music library..."
	case tasks.MatchTracks:
		phase = fmt.Sprintf("Matching tracks (%d/%d)", m.progress.Step, m.progress.Total)
	case tasks.WritePlaylist:
		phase = "Writing playlist..."
	default:
		phase = "Starting..."
	}

	helpView := m.help.ShortHelpView(m.keys.forView(ImportView))
	return fmt.Sprintf("%s\n\n%s\n\n%s\n%s\n\n%s", title, m.bar.ViewAs(m.percent()), phase, styles.help.Render(m.progress.Message), helpView)
}

func (m *Model) renderResult() string {
	helpView := m.help.ShortHelpView(m.keys.forView(ResultView))

	if m.result == nil {
		msg := "Import failed"
		if m.err != nil {
			msg = fmt.Sprintf("Import failed: %v", m.err)
		}
		return fmt.Sprintf("%s\n\n%s", styles.err.Render(msg), helpView)
	}

	var title string
	if m.err != nil {
		title = styles.err.Render(fmt.Sprintf("✗ Import failed: %v", m.err))
	} else {
		title = styles.ok.Render("✓ Import Complete!")
	}

	summary := formatter.Summarize(m.request.PlaylistName, m.request.Mode, m.entries, m.result.Outcome.Added)
	pct := rate(summary.Matched, summary.Total)
	info := fmt.Sprintf(
		"\nPlaylist: %s (%s)\nMatched: %d/%d %s\nAdded: %d",
		summary.Playlist,
		summary.Mode,
		summary.Matched,
		summary.Total,
		styles.matchRate(pct).Render(fmt.Sprintf("(%.1f%%)", pct)),
		summary.Added,
	)
	if m.result.Outcome.AlreadyPresent > 0 {
		info += fmt.Sprintf("\nAlready in playlist: %d", m.result.Outcome.AlreadyPresent)
	}
	if m.job.ReportToken != "" {
		info += fmt.Sprintf("\nReport: %s", m.job.ReportToken)
	}

	unmatched := ""
	if summary.Unmatched > 0 {
		unmatched = "\n\n" + m.unmatched.View()
	}

	return fmt.Sprintf("%s\n%s%s\n\n%s", title, info, unmatched, helpView)
}

func rate(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}

func jobError(job models.SyncJob) error {
	if job.Error == "" {
		return errors.New("import failed")
	}
	return errors.New(job.Error)
}
