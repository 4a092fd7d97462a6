package tui

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tatianab/gamegen/internal/assets"
	"github.com/tatianab/gamegen/internal/battle"
	"github.com/tatianab/gamegen/internal/director"
	"github.com/tatianab/gamegen/internal/models"
)

var (
	cursorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EEEEEE")).
			Background(lipgloss.Color("#5F5F87")).
			Bold(true)

	outcomeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Bold(true)
)

// battleScreen plays the fight. Arrows move the menu, Enter confirms; the
// boss acts by itself once the post-action pause is over.
type battleScreen struct {
	state   *director.State
	done    director.Completion
	engine  *battle.Engine
	gallery *assets.Gallery
	dwell   time.Duration
	flash   string
	over    time.Duration
	err     error

	playerBar progress.Model
	bossBar   progress.Model
}

func newBattleScreen(s *director.State, done director.Completion, opts Options) *battleScreen {
	story := s.StoryOrNil()
	sc := &battleScreen{
		state:     s,
		done:      done,
		gallery:   s.GalleryOrNil(),
		dwell:     opts.Dwell,
		playerBar: progress.New(progress.WithGradient("#FF5F5F", "#5FFF87"), progress.WithoutPercentage()),
		bossBar:   progress.New(progress.WithGradient("#FF5F5F", "#FFA500"), progress.WithoutPercentage()),
	}
	eng, err := battle.New(story.Player, story.Boss, battle.Options{Rand: opts.Rand})
	if err != nil {
		log.Printf("tui: battle: %v", err)
		sc.err = err
		return sc
	}
	sc.engine = eng
	return sc
}

func (s *battleScreen) Init() tea.Cmd { return nil }

func (s *battleScreen) Update(msg tea.Msg) tea.Cmd {
	if s.err != nil {
		if msg, ok := msg.(tea.KeyMsg); ok && msg.Type == tea.KeyEnter {
			return tea.Quit
		}
		return nil
	}

	switch msg := msg.(type) {
	case tickMsg:
		s.advance(TickInterval)
	case tea.KeyMsg:
		s.key(msg)
	case tea.WindowSizeMsg:
		w := max(min(msg.Width/2-6, 40), 10)
		s.playerBar.Width = w
		s.bossBar.Width = w
	}
	return nil
}

// advance moves the engine clock and leaves the stage a moment after the
// fight is decided.
func (s *battleScreen) advance(dt time.Duration) {
	if !s.engine.Finished() {
		if s.engine.Advance(dt) {
			s.flash = ""
		}
		return
	}
	s.over += dt
	if s.over >= s.dwell {
		s.state.RecordBattle(s.engine.Victory(), s.engine.Transcript())
		s.done.Done()
	}
}

func (s *battleScreen) key(msg tea.KeyMsg) {
	if s.engine.Phase() != battle.PlayerChoosing {
		return
	}
	switch msg.Type {
	case tea.KeyLeft:
		s.engine.SelectMainCategory(-1)
	case tea.KeyRight:
		s.engine.SelectMainCategory(1)
	case tea.KeyUp:
		s.engine.SelectSubAction(-1)
	case tea.KeyDown:
		s.engine.SelectSubAction(1)
	case tea.KeyEnter:
		_, err := s.engine.ConfirmAction()
		switch {
		case errors.Is(err, battle.ErrNoAction):
			s.flash = "Nothing to use here."
		case errors.Is(err, battle.ErrNoUsesLeft):
			s.flash = "Your bag is empty."
		case err != nil:
			log.Printf("tui: confirm: %v", err)
		}
	}
}

func (s *battleScreen) combatant(c battle.Combatant, bar progress.Model) string {
	pct := 0.0
	if c.MaxHealth > 0 {
		pct = float64(c.Health) / float64(c.MaxHealth)
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render(c.Name),
		artLine(s.gallery.Portrait(c.Name)),
		bar.ViewAs(pct),
		textStyle.Render(fmt.Sprintf("%d / %d HP", c.Health, c.MaxHealth)),
	)
}

func (s *battleScreen) menu() string {
	var tabs []string
	for _, c := range battle.Categories {
		if c == s.engine.Category() {
			tabs = append(tabs, cursorStyle.Render(" "+c+" "))
		} else {
			tabs = append(tabs, " "+c+" ")
		}
	}

	var b strings.Builder
	b.WriteString(strings.Join(tabs, " ") + "\n\n")
	_, sub := s.engine.Cursor()
	actions := s.engine.Actions()
	if len(actions) == 0 {
		b.WriteString(helpStyle.Render("(empty)") + "\n")
	}
	for i, a := range actions {
		if i == sub {
			b.WriteString(cursorStyle.Render("> "+a) + "\n")
		} else {
			b.WriteString("  " + a + "\n")
		}
	}
	if name, desc, ok := s.engine.Selected(); ok && desc != "" {
		b.WriteString("\n" + helpStyle.Render(name+": "+desc))
	}
	if uses := s.engine.Player().ItemUses; s.engine.Category() == battle.CategoryItem && uses >= 0 {
		b.WriteString("\n" + helpStyle.Render(fmt.Sprintf("%d uses left", uses)))
	}
	return panelStyle.Render(b.String())
}

func (s *battleScreen) View(width, height int) string {
	if s.err != nil {
		return errorStyle.Render(fmt.Sprintf("The battle could not start: %v", s.err)) + "\n\n" + helpStyle.Render("Press Enter to quit.")
	}

	fighters := lipgloss.JoinHorizontal(lipgloss.Top,
		panelStyle.Render(s.combatant(s.engine.Player(), s.playerBar)),
		"  ",
		panelStyle.Render(s.combatant(s.engine.Boss(), s.bossBar)),
	)

	var status string
	if out, ok := s.engine.LastOutcome(); ok {
		status = outcomeStyle.Render(out.Description)
	}
	switch {
	case s.engine.Finished() && s.engine.Victory():
		status += "\n" + titleStyle.Render("Victory!")
	case s.engine.Finished():
		status += "\n" + errorStyle.Render("Defeat...")
	case s.flash != "":
		status += "\n" + helpStyle.Render(s.flash)
	}

	parts := []string{artLine(s.gallery.Background(models.SceneBattle)), fighters, "", status, ""}
	if s.engine.Phase() == battle.PlayerChoosing {
		parts = append(parts, s.menu(), helpStyle.Render("Left/Right: category  Up/Down: choose  Enter: act"))
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}
