package ui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/spotiseek/internal/models"
	"github.com/desertthunder/spotiseek/internal/shared"
	"github.com/desertthunder/spotiseek/internal/tasks"
)

// logTail is the number of recent pipeline log lines kept on screen.
const logTail = 8

// Monitor is the bubbletea model for a live download job. It renders the
// events a [tasks.JobRunner] emits and drives the run's [tasks.Control] from
// key presses; the run itself happens in a goroutine owned by the caller.
type Monitor struct {
	control *tasks.Control
	updates <-chan tasks.ProgressUpdate
	results <-chan RunResult
	start   func()

	width  int
	height int
	bar    progress.Model
	help   help.Model
	keys   keyMap

	trackIndex int
	total      int
	current    string
	state      string
	percent    float64
	ok         int
	fail       int
	logLines   []string
	failures   []models.DownloadOutcome

	cancelling bool
	finished   bool
	result     *RunResult
	failList   list.Model
}

// MonitorOpts wires a [Monitor] to a prepared but unstarted run. Start must
// not block: it launches the job and eventually delivers exactly one
// [RunResult] on Results. Updates is consumed until closed.
type MonitorOpts struct {
	Control *tasks.Control
	Updates <-chan tasks.ProgressUpdate
	Results <-chan RunResult
	Start   func()
}

// NewMonitor creates a run monitor with the provided dependencies.
func NewMonitor(opts MonitorOpts) *Monitor {
	if opts.Control == nil {
		opts.Control = tasks.NewControl()
	}
	return &Monitor{
		control: opts.Control,
		updates: opts.Updates,
		results: opts.Results,
		start:   opts.Start,
		bar:     progress.New(progress.WithDefaultGradient()),
		help:    help.New(),
		keys:    newKeyMap(),
	}
}

// Init starts the run and begins consuming its events.
func (m *Monitor) Init() tea.Cmd {
	if m.start != nil {
		m.start()
	}
	return tea.Batch(m.waitForUpdate(), m.waitForResult())
}

// Update handles incoming messages and updates the model state.
func (m *Monitor) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if width := min(msg.Width-8, 64); width > 0 {
			m.bar.Width = width
		}
		if m.finished && len(m.failures) > 0 {
			m.failList.SetSize(m.listWidth(), m.listHeight())
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)

	case updateMsg:
		m.apply(tasks.ProgressUpdate(msg))
		return m, m.waitForUpdate()

	case runDoneMsg:
		result := RunResult(msg)
		m.result = &result
		m.finished = true
		m.cancelling = false
		if len(m.failures) > 0 {
			m.failList = newFailureList(m.failures, m.listWidth(), m.listHeight())
		}
		return m, nil
	}

	return m, nil
}

// View renders the running screen until the result arrives, then the summary.
func (m *Monitor) View() string {
	if m.finished {
		return m.renderResult()
	}
	return m.renderRunning()
}

func (m *Monitor) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.forceQuit):
		m.control.Cancel()
		return m, tea.Quit

	case key.Matches(msg, m.keys.quit):
		if m.finished {
			return m, tea.Quit
		}
		m.control.Cancel()
		m.cancelling = true
		return m, nil

	case key.Matches(msg, m.keys.cancel):
		if !m.finished {
			m.control.Cancel()
			m.cancelling = true
		}
		return m, nil

	case key.Matches(msg, m.keys.pause):
		if !m.finished {
			m.control.Pause()
		}
		return m, nil

	case key.Matches(msg, m.keys.resume):
		if !m.finished {
			m.control.Resume()
		}
		return m, nil
	}

	if m.finished && len(m.failures) > 0 {
		var cmd tea.Cmd
		m.failList, cmd = m.failList.Update(msg)
		return m, cmd
	}
	return m, nil
}

// apply folds one progress event into the display state.
func (m *Monitor) apply(update tasks.ProgressUpdate) {
	switch update.Kind {
	case tasks.LogLine:
		m.appendLog(update.Message)

	case tasks.TrackStarted:
		m.trackIndex = update.Current
		m.total = update.Total
		m.current = update.Track.Display()
		m.state = ""
		m.percent = 0
		m.appendLog(update.Message)

	case tasks.TrackDone:
		m.ok = update.Ok
		m.fail = update.Fail
		if update.Total > 0 {
			m.total = update.Total
		}
		if update.Outcome != nil && !update.Outcome.Success {
			m.failures = append(m.failures, *update.Outcome)
		}

	case tasks.TransferState:
		m.state = update.State
		m.percent = update.Percent

	case tasks.BatchDone:
		m.ok = update.Ok
		m.fail = update.Fail
		m.appendLog(update.Message)
	}
}

func (m *Monitor) appendLog(line string) {
	if line == "" {
		return
	}
	m.logLines = append(m.logLines, line)
	if len(m.logLines) > logTail {
		m.logLines = m.logLines[len(m.logLines)-logTail:]
	}
}

func (m *Monitor) waitForUpdate() tea.Cmd {
	return func() tea.Msg {
		update, ok := <-m.updates
		if !ok {
			return nil
		}
		return updateMsg(update)
	}
}

func (m *Monitor) waitForResult() tea.Cmd {
	return func() tea.Msg {
		result, ok := <-m.results
		if !ok {
			return nil
		}
		return runDoneMsg(result)
	}
}

func (m *Monitor) listWidth() int {
	return max(m.width-4, 40)
}

func (m *Monitor) listHeight() int {
	return max(m.height-12, 5)
}

func (m *Monitor) renderRunning() string {
	var b strings.Builder
	b.WriteString(styles.title.Render("Downloading Playlist") + "\n")

	if m.total > 0 {
		b.WriteString(fmt.Sprintf("Track %d/%d", m.trackIndex, m.total))
		if m.current != "" {
			b.WriteString(": " + m.current)
		}
		b.WriteString("\n")
	} else {
		b.WriteString("Resolving playlist...\n")
	}

	if m.state != "" {
		b.WriteString(fmt.Sprintf("%s %s\n", m.bar.ViewAs(m.percent/100), styles.warn.Render(m.state)))
	}

	b.WriteString("\n")
	for _, line := range m.logLines {
		b.WriteString(styles.help.Render(line) + "\n")
	}

	b.WriteString(fmt.Sprintf("\n%s / %s\n",
		styles.ok.Render(fmt.Sprintf("%d ok", m.ok)),
		styles.err.Render(fmt.Sprintf("%d failed", m.fail))))

	switch {
	case m.cancelling:
		b.WriteString(styles.warn.Render("Cancelling after the current track...") + "\n")
	case m.control.Paused():
		b.WriteString(styles.warn.Render("Paused (press r to resume)") + "\n")
	}

	b.WriteString("\n" + m.help.ShortHelpView(m.keys.ShortHelp()))
	return b.String()
}

func (m *Monitor) renderResult() string {
	var b strings.Builder

	switch {
	case m.result == nil:
		b.WriteString(styles.err.Render("No result available") + "\n")
	case errors.Is(m.result.Err, shared.ErrJobCancelled):
		b.WriteString(styles.warn.Render("Job cancelled") + "\n")
	case m.result.Err != nil:
		b.WriteString(styles.err.Render(fmt.Sprintf("✗ Run failed: %v", m.result.Err)) + "\n")
	default:
		b.WriteString(styles.ok.Render("✓ Job complete") + "\n")
	}

	if m.result != nil && m.result.Job != nil {
		job := m.result.Job
		if job.PlaylistName() != "" {
			b.WriteString(fmt.Sprintf("\nPlaylist: %s\n", job.PlaylistName()))
		}
		b.WriteString(fmt.Sprintf("Tracks: %d processed, %d ok, %d failed\n",
			job.ProcessedTracks(), job.OkCount(), job.FailCount()))
		if job.OutputDir() != "" && job.OkCount() > 0 {
			b.WriteString(fmt.Sprintf("Saved to: %s\n", job.OutputDir()))
		}
	}

	if len(m.failures) > 0 {
		b.WriteString("\n" + m.failList.View() + "\n")
	}

	b.WriteString("\n" + m.help.ShortHelpView([]key.Binding{m.keys.quit}))
	return b.String()
}
