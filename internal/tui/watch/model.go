package watch

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fluxlab/curator/internal/events"
	"github.com/fluxlab/curator/internal/pipeline"
	"github.com/fluxlab/curator/internal/session"
)

// Model is the main BubbleTea model for the watch TUI.
type Model struct {
	apiURL string
	apiKey string

	width  int
	height int

	connected bool
	running   bool
	pipe      pipeline.Snapshot
	sess      session.State
	eventLog  []events.Event
	lastError string

	theme    Theme
	progress progress.Model
	spinner  spinner.Model

	hubEvents chan events.Event
}

// New creates a new watch TUI model.
func New(apiURL, apiKey string) *Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return &Model{
		apiURL:    apiURL,
		apiKey:    apiKey,
		theme:     NewDefaultTheme(),
		progress:  progress.New(progress.WithDefaultGradient()),
		spinner:   sp,
		eventLog:  make([]events.Event, 0),
		hubEvents: make(chan events.Event, 100),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		subscribeToEvents(m.apiURL, m.apiKey, m.hubEvents),
		receiveNextEvent(m.hubEvents),
		func() tea.Msg { return fetchStatus(m.apiURL, m.apiKey) },
		m.spinner.Tick,
		tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) }),
		tea.EnterAltScreen,
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = msg.Width - 12

	case tickMsg:
		return m, tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case eventMsg:
		e := events.Event(msg)

		// Newest first, bounded log.
		m.eventLog = append([]events.Event{e}, m.eventLog...)
		if len(m.eventLog) > 50 {
			m.eventLog = m.eventLog[:50]
		}

		m.connected = true
		m.lastError = ""
		return m, receiveNextEvent(m.hubEvents)

	case statusMsg:
		m.pipe = msg.Pipeline
		m.sess = msg.Session
		m.running = msg.Running
		m.connected = true
		m.lastError = ""
		return m, tea.Tick(2*time.Second, func(t time.Time) tea.Msg {
			return fetchStatus(m.apiURL, m.apiKey)
		})

	case sseDisconnectedMsg:
		m.connected = false
		m.lastError = "event stream disconnected, reconnecting..."
		return m, tea.Tick(3*time.Second, func(t time.Time) tea.Msg {
			return reconnectMsg{}
		})

	case reconnectMsg:
		return m, subscribeToEvents(m.apiURL, m.apiKey, m.hubEvents)

	case errMsg:
		m.lastError = msg.Error()
		return m, tea.Tick(5*time.Second, func(t time.Time) tea.Msg {
			return fetchStatus(m.apiURL, m.apiKey)
		})
	}

	return m, nil
}

func (m Model) View() string {
	if m.width == 0 {
		return "Connecting to curator..."
	}

	header := m.renderHeader()
	cycle := m.renderCycle()
	eventStream := renderEventStream(m.eventLog, m.theme, m.width)

	var errBar string
	if m.lastError != "" {
		errBar = m.theme.StatusFailed.Render(fmt.Sprintf(" ⚠ %s", m.lastError))
	}

	help := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241")).
		Render(" [q] Quit")

	parts := []string{header, cycle, eventStream}
	if errBar != "" {
		parts = append(parts, errBar)
	}
	parts = append(parts, help)

	return lipgloss.NewStyle().Margin(1, 2).Render(
		lipgloss.JoinVertical(lipgloss.Left, parts...),
	)
}

func (m Model) renderHeader() string {
	innerWidth := m.width - 4

	statusText := m.theme.StatusIdle.Render("IDLE")
	if !m.connected {
		statusText = m.theme.StatusFailed.Render("CONNECTING")
	} else if m.running {
		statusText = m.theme.StatusRunning.Render("RUNNING " + m.spinner.View())
	}

	user := "not logged in"
	if m.sess.LoggedIn {
		user = m.sess.User
	}

	titleLine := fmt.Sprintf(" CURATOR WATCH  %s", m.theme.Dim.Render(time.Now().Format("15:04:05")))
	sessionLine := fmt.Sprintf(" %s  user: %s  context: %s  collection: %s",
		statusText,
		m.theme.Highlight.Render(user),
		m.theme.Highlight.Render(orDash(m.sess.Context)),
		m.theme.Highlight.Render(orDash(m.sess.Collection)),
	)

	content := lipgloss.JoinVertical(lipgloss.Left, titleLine, sessionLine)
	return m.theme.Border.Width(innerWidth).Render(content)
}

func (m Model) renderCycle() string {
	innerWidth := m.width - 4

	status := fmt.Sprintf(" status: %s", m.pipe.StatusMessage)
	if m.pipe.CurrentEntry != "" {
		status += fmt.Sprintf("  entry: %s", m.theme.Highlight.Render(m.pipe.CurrentEntry))
	}

	bar := " " + m.progress.ViewAs(float64(m.pipe.ProgressPercent)/100)
	counts := fmt.Sprintf(" processed %d / %d  (backlog %d)",
		len(m.pipe.ProcessedList), m.pipe.TotalCount, len(m.pipe.UnprocessedList))

	content := lipgloss.JoinVertical(lipgloss.Left,
		m.theme.Title.Render("CYCLE"),
		status,
		bar,
		counts,
	)
	return m.theme.Border.Width(innerWidth).Render(content)
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
