// Package monitor is a read-only bubbletea status view over a running
// engine.Engine: transport phase and position, and per-device sensing
// health. Grounded on the teacher's tui/model.go Elm-architecture
// shape (Init/Update/View, a ListenForUpdates select loop over a
// notification channel) and theme/theme.go's lipgloss role styling,
// scoped down from the teacher's full track/session editor to exactly
// the read-only surface this module's scope calls for.
package monitor

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/grahamseamans/seqcore/engine"
)

// Model is the monitor's bubbletea state: nothing but a reference to
// the engine it observes and the last frame size, since every other
// value it renders lives in engine.Status and is re-fetched each
// frame.
type Model struct {
	Engine   *engine.Engine
	quitting bool
	width    int
}

// tickMsg drives a render even if UpdateChan stays quiet, so the
// "last sensed Nms ago" readout keeps advancing between engine
// events.
type tickMsg struct{}

// updateMsg is delivered whenever engine.UpdateChan fires.
type updateMsg struct{}

func New(e *engine.Engine) Model {
	return Model{Engine: e}
}

func listenForUpdates(e *engine.Engine) tea.Cmd {
	return func() tea.Msg {
		<-e.UpdateChan
		return updateMsg{}
	}
}

func tickEvery() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(time.Time) tea.Msg { return tickMsg{} })
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(listenForUpdates(m.Engine), tickEvery())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case updateMsg:
		return m, listenForUpdates(m.Engine)

	case tickMsg:
		return m, tickEvery()
	}
	return m, nil
}

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	badStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	st := m.Engine.Status()
	bpm := 0
	if st.Tempo > 0 {
		bpm = int(60 * 24_000_000 / (st.Tempo * 24))
	}

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(headerStyle.Render(fmt.Sprintf("seqcore  %-9s %3dbpm  tic:%d", st.Phase, bpm, st.CurTic)))
	out.WriteString("\n\n")

	for _, d := range st.Devices {
		line := fmt.Sprintf("  dev %d [%s]", d.Unit, d.Mode)
		if d.Failed {
			out.WriteString(badStyle.Render(line + "  FAILED"))
		} else {
			sensed := "never"
			if !d.LastSensed.IsZero() {
				sensed = time.Since(d.LastSensed).Round(100 * time.Millisecond).String() + " ago"
			}
			out.WriteString(okStyle.Render(line) + dimStyle.Render(fmt.Sprintf("  last sensed %s", sensed)))
		}
		out.WriteString("\n")
	}

	out.WriteString("\n")
	out.WriteString(dimStyle.Render("q:quit"))
	return out.String()
}

// Run starts the monitor's own bubbletea program, blocking until the
// user quits.
func Run(e *engine.Engine) error {
	_, err := tea.NewProgram(New(e)).Run()
	return err
}
