// Package tui is the terminal front end. Every stage of the pipeline is a
// Screen built by the director; the root model forwards input and ticks to
// whichever screen is active.
package tui

import (
	"fmt"
	"math/rand/v2"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tatianab/gamegen/internal/content"
	"github.com/tatianab/gamegen/internal/director"
)

// TickInterval is how often screens are given a chance to advance timers.
const TickInterval = 100 * time.Millisecond

// Screen is the presentation of one stage.
type Screen interface {
	Init() tea.Cmd
	Update(msg tea.Msg) tea.Cmd
	View(width, height int) string
}

// Options feed the screens things the shared state does not carry.
type Options struct {
	Progress *content.Progress // generation step shown while loading
	Rand     *rand.Rand        // battle rng, nil picks a random seed
	Dwell    time.Duration     // minimum time on the loading screen and after a battle
}

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(TickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFA500")).
			Bold(true).
			Underline(true)

	textStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Italic(true)

	artStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#5F5F87")).
			Italic(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5F5F")).
			Bold(true)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#3C3C3C")).
			Padding(0, 1)
)

type model struct {
	dir    *director.Director[Screen]
	active Screen
	width  int
	height int
	err    error
}

// NewModel wraps a director whose stages are screens.
func NewModel(d *director.Director[Screen]) model {
	return model{dir: d}
}

func (m model) Init() tea.Cmd {
	if err := m.dir.Start(); err != nil {
		return func() tea.Msg { return errMsg{err} }
	}
	return tea.Batch(tick(), func() tea.Msg { return stageMsg{} })
}

type errMsg struct {
	err error
}

// stageMsg asks the root model to pick up a newly started stage.
type stageMsg struct{}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.err != nil {
			if msg.Type == tea.KeyEsc || msg.Type == tea.KeyEnter {
				return m, tea.Quit
			}
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case errMsg:
		m.err = msg.err
		return m, nil

	case stageMsg:
		return m.sync(nil)
	}

	if m.err != nil || m.active == nil {
		if _, ok := msg.(tickMsg); ok {
			return m, tick()
		}
		return m, nil
	}

	cmd := m.active.Update(msg)
	if _, ok := msg.(tickMsg); ok {
		cmd = tea.Batch(cmd, tick())
	}
	return m.sync(cmd)
}

// sync notices stage changes made by the last update.
func (m model) sync(cmd tea.Cmd) (tea.Model, tea.Cmd) {
	if err := m.dir.Err(); err != nil {
		m.err = err
		return m, cmd
	}
	if m.dir.Finished() {
		return m, tea.Batch(cmd, tea.Quit)
	}
	current, _ := m.dir.Current()
	if current != nil && current != m.active {
		m.active = current
		cmds := []tea.Cmd{cmd, current.Init()}
		if m.width > 0 {
			cmds = append(cmds, func() tea.Msg {
				return tea.WindowSizeMsg{Width: m.width, Height: m.height}
			})
		}
		return m, tea.Batch(cmds...)
	}
	return m, cmd
}

func (m model) View() string {
	if m.err != nil {
		return fmt.Sprintf("\n  %s\n\n  %v\n\n%s\n",
			errorStyle.Render("The story could not continue."),
			m.err,
			helpStyle.Render("  Press Enter to quit."))
	}
	if m.active == nil {
		return ""
	}
	return "\n" + m.active.View(m.width, m.height) + "\n"
}

// Run starts the program on the alt screen.
func Run(d *director.Director[Screen]) error {
	p := tea.NewProgram(NewModel(d), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
