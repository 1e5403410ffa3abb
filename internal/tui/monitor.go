// SPDX-License-Identifier: MIT
package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	"doppler/internal/analysis"
	"doppler/internal/session"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	historyLength   = 20
	refreshInterval = 250 * time.Millisecond

	spectrumWidth = 64
	spectrumMaxHz = 4000.0
	spectrumFloor = -120.0 // dB drawn as an empty column
)

var (
	approachingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#25A065")).Bold(true)
	withdrawingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#E0533D")).Bold(true)
	panelStyle       = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("#25A065")).
				Padding(0, 1)
)

// SessionView is the read side of a session the monitor polls.
// *session.Session satisfies it.
type SessionView interface {
	Stats() session.Stats
	Snapshot() (session.Snapshot, error)
}

type monitorKeyMap struct {
	Quit  key.Binding
	Clear key.Binding
}

func (k monitorKeyMap) ShortHelp() []key.Binding  { return []key.Binding{k.Clear, k.Quit} }
func (k monitorKeyMap) FullHelp() [][]key.Binding { return [][]key.Binding{k.ShortHelp()} }

var monitorKeys = monitorKeyMap{
	Quit:  key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	Clear: key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "clear history")),
}

// resultMsg carries one published result into the program.
type resultMsg analysis.Result

// refreshMsg carries polled session state.
type refreshMsg struct {
	stats    session.Stats
	spectrum string
}

// Monitor shows the latest result, a short history, a coarse spectrum and
// the session counters.
type Monitor struct {
	title string
	mode  analysis.Mode
	view  SessionView

	latest   *analysis.Result
	history  []analysis.Result
	stats    session.Stats
	spectrum string

	viewport viewport.Model
	help     help.Model
	ready    bool
}

// NewMonitor creates a monitor for a session running in mode.
func NewMonitor(title string, mode analysis.Mode, view SessionView) Monitor {
	return Monitor{
		title: title,
		mode:  mode,
		view:  view,
		help:  help.New(),
	}
}

// Init starts polling the session.
func (m Monitor) Init() tea.Cmd {
	return m.poll()
}

func (m Monitor) poll() tea.Cmd {
	view := m.view
	return tea.Tick(refreshInterval, func(time.Time) tea.Msg {
		msg := refreshMsg{stats: view.Stats()}
		if snap, err := view.Snapshot(); err == nil {
			msg.spectrum = renderSpectrum(snap.Spectrum, spectrumMaxHz, spectrumWidth)
		}
		return msg
	})
}

func (m Monitor) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-6)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 6
		}
		m.help.Width = msg.Width
		m.viewport.SetContent(m.renderHistory())

	case resultMsg:
		r := analysis.Result(msg)
		m.latest = &r
		m.history = append(m.history, r)
		if len(m.history) > historyLength {
			m.history = m.history[len(m.history)-historyLength:]
		}
		m.viewport.SetContent(m.renderHistory())
		m.viewport.GotoBottom()

	case refreshMsg:
		m.stats = msg.stats
		if msg.spectrum != "" {
			m.spectrum = msg.spectrum
		}
		cmds = append(cmds, m.poll())

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, monitorKeys.Quit):
			return m, tea.Quit
		case key.Matches(msg, monitorKeys.Clear):
			m.history = nil
			m.viewport.SetContent(m.renderHistory())
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// View renders the UI
func (m Monitor) View() string {
	if !m.ready {
		return "Initializing..."
	}

	header := lipgloss.JoinHorizontal(lipgloss.Top,
		panelStyle.Render(m.renderLatest()),
		panelStyle.Render(m.renderStats()),
	)

	var sb strings.Builder
	sb.WriteString(titleStyle.Render(m.title))
	sb.WriteString("\n")
	sb.WriteString(header)
	sb.WriteString("\n")
	if m.spectrum != "" {
		sb.WriteString(dimStyle.Render(fmt.Sprintf("0-%.0f Hz ", spectrumMaxHz)))
		sb.WriteString(m.spectrum)
		sb.WriteString("\n")
	}
	sb.WriteString(m.viewport.View())
	sb.WriteString("\n")
	sb.WriteString(m.help.View(monitorKeys))
	return sb.String()
}

func (m Monitor) renderLatest() string {
	if m.latest == nil {
		return fmt.Sprintf("%s mode\nwaiting for a result...", m.mode)
	}
	r := m.latest
	switch {
	case r.Peaks != nil:
		return fmt.Sprintf("Peak 1  %8.2f Hz  %6.1f dB\nPeak 2  %8.2f Hz  %6.1f dB",
			r.Peaks.First.Frequency, r.Peaks.First.Magnitude,
			r.Peaks.Second.Frequency, r.Peaks.Second.Magnitude)
	case r.Motion != nil:
		return fmt.Sprintf("%s\ncarrier %.2f Hz  L %.1f  R %.1f dB",
			motionLabel(r.Motion.State), r.Motion.Frequency, r.Motion.Left, r.Motion.Right)
	default:
		return "empty result"
	}
}

func (m Monitor) renderStats() string {
	s := m.stats
	return fmt.Sprintf("ticks %d  results %d\nno result %d  skipped %d",
		s.Ticks, s.Results, s.NoResult, s.Skipped)
}

func (m Monitor) renderHistory() string {
	if len(m.history) == 0 {
		return dimStyle.Render("no results yet")
	}
	var sb strings.Builder
	for _, r := range m.history {
		sb.WriteString(r.Timestamp.Format("15:04:05.000"))
		sb.WriteString("  ")
		sb.WriteString(r.String())
		sb.WriteString("\n")
	}
	return sb.String()
}

func motionLabel(s analysis.MotionState) string {
	label := strings.ToUpper(s.String())
	switch s {
	case analysis.Approaching:
		return approachingStyle.Render(label)
	case analysis.Withdrawing:
		return withdrawingStyle.Render(label)
	default:
		return label
	}
}

var spectrumLevels = []rune(" ▁▂▃▄▅▆▇█")

// renderSpectrum draws frame from 0 to maxHz as width block characters,
// each the loudest bin in its range, scaled from spectrumFloor to 0 dB.
func renderSpectrum(frame analysis.SpectrumFrame, maxHz float64, width int) string {
	if frame.Len() == 0 || frame.Resolution <= 0 || width <= 0 {
		return ""
	}

	bins := min(int(maxHz/frame.Resolution), frame.Len())
	if bins == 0 {
		return ""
	}

	out := make([]rune, width)
	top := len(spectrumLevels) - 1
	for col := range width {
		lo := col * bins / width
		hi := max((col+1)*bins/width, lo+1)
		loudest := math.Inf(-1)
		for _, v := range frame.Bins[lo:min(hi, bins)] {
			loudest = math.Max(loudest, v)
		}

		level := int(math.Round((loudest - spectrumFloor) / -spectrumFloor * float64(top)))
		out[col] = spectrumLevels[max(0, min(level, top))]
	}
	return string(out)
}

// RunMonitor shows s in a full-screen monitor until the user quits. Results
// reach the program through a queue so a slow terminal never delays a tick.
func RunMonitor(s *session.Session, title string) error {
	p := tea.NewProgram(NewMonitor(title, s.Mode(), s), tea.WithAltScreen())

	dispatcher := session.NewQueueDispatcher(64)
	defer dispatcher.Close()

	sub := s.Subscribe(session.SubscriberFunc(func(r analysis.Result) {
		p.Send(resultMsg(r))
	}), session.WithDispatcher(dispatcher))
	defer sub.Unsubscribe()

	_, err := p.Run()
	return err
}
