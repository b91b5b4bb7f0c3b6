package monitor

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	phmerrors "github.com/vibesense/phmwatch/internal/errors"
	"github.com/vibesense/phmwatch/internal/realtime"
)

// Width breakpoints for the feature card grid
const (
	BreakpointCompact  = 80
	BreakpointStandard = 120
)

// DefaultAckTimeout bounds an acknowledgement started from the dashboard.
const DefaultAckTimeout = 10 * time.Second

// spinnerFrames match the connecting glyphs used elsewhere in the dashboard.
var spinnerFrames = spinner.Spinner{
	Frames: []string{"◐", "◓", "◑", "◒"},
	FPS:    time.Second / 8,
}

// Model is the Bubble Tea model for the sensor dashboard. It reads
// everything it renders from the store on each frame.
type Model struct {
	store      *realtime.Store
	sensor     string
	interval   time.Duration
	ackTimeout time.Duration

	width    int
	height   int
	selected int
	showHelp bool
	quitting bool

	notice    string
	noticeErr bool

	spinner spinner.Model
}

// tickMsg signals a periodic refresh.
type tickMsg time.Time

// ackResultMsg carries the outcome of an acknowledgement.
type ackResultMsg struct {
	id  string
	err error
}

// NewModel creates a dashboard for sensor backed by store. interval is the
// redraw period; ackTimeout bounds acknowledgement requests (0 uses
// DefaultAckTimeout).
func NewModel(store *realtime.Store, sensor string, interval, ackTimeout time.Duration) Model {
	if interval <= 0 {
		interval = time.Second
	}
	if ackTimeout <= 0 {
		ackTimeout = DefaultAckTimeout
	}

	sp := spinner.New()
	sp.Spinner = spinnerFrames
	sp.Style = lipgloss.NewStyle().Foreground(ColorWarning)

	return Model{
		store:      store,
		sensor:     sensor,
		interval:   interval,
		ackTimeout: ackTimeout,
		spinner:    sp,
	}
}

// Init starts the refresh timer and the connecting spinner.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.tickCmd(), m.spinner.Tick)
}

// Update handles messages and updates the model state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if handled, cmd := m.HandleKeyMsg(msg); handled {
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		return m, m.tickCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case ackResultMsg:
		if msg.err != nil {
			m.setNotice("ack "+msg.id+" failed: "+errorSummary(msg.err), true)
		} else {
			m.setNotice("alert "+msg.id+" acknowledged", false)
		}
	}

	return m, nil
}

// View renders the dashboard.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.showHelp {
		return m.renderHelpOverlay()
	}
	return m.renderDashboard()
}

// Selected returns the feature channel shown in the detail graph.
func (m Model) Selected() int {
	return m.selected
}

// Notice returns the last status line message and whether it was an error.
func (m Model) Notice() (string, bool) {
	return m.notice, m.noticeErr
}

// tickCmd returns a command that sends a tick after the refresh interval.
func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// acknowledgeLatest acknowledges the newest alert in the background.
func (m *Model) acknowledgeLatest() tea.Cmd {
	latest, ok := m.store.LatestAlert()
	if !ok {
		m.setNotice("no alerts to acknowledge", false)
		return nil
	}

	m.setNotice("acknowledging alert "+latest.ID+"...", false)
	store, id, timeout := m.store, latest.ID, m.ackTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return ackResultMsg{id: id, err: store.AcknowledgeAlert(ctx, id)}
	}
}

func (m *Model) setNotice(text string, isErr bool) {
	m.notice = text
	m.noticeErr = isErr
}

// errorSummary returns the one-line message of err.
func errorSummary(err error) string {
	var phmErr *phmerrors.Error
	if stderrors.As(err, &phmErr) {
		return phmErr.Message
	}
	msg, _, _ := strings.Cut(err.Error(), "\n")
	return msg
}
