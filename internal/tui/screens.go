package tui

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/tatianab/gamegen/internal/assets"
	"github.com/tatianab/gamegen/internal/director"
	"github.com/tatianab/gamegen/internal/models"
)

// Factories builds every stage of the default pipeline.
func Factories(opts Options) map[director.StageID]director.Factory[Screen] {
	if opts.Dwell <= 0 {
		opts.Dwell = 1500 * time.Millisecond
	}
	return map[director.StageID]director.Factory[Screen]{
		director.StageSetup: func(s *director.State, done director.Completion) Screen {
			return newSetupScreen(s, done)
		},
		director.StageLoading: func(s *director.State, done director.Completion) Screen {
			return newLoadingScreen(s, done, opts)
		},
		director.StageTitle: func(s *director.State, done director.Completion) Screen {
			return newTitleScreen(s, done)
		},
		director.StagePrologue: func(s *director.State, done director.Completion) Screen {
			story := s.StoryOrNil()
			return newTextScreen("Prologue", story.Prologue, s.GalleryOrNil().Background(models.ScenePrologue), done)
		},
		director.StageCutscenePrologue: func(s *director.State, done director.Completion) Screen {
			story := s.StoryOrNil()
			return newCutsceneScreen(story.PrologueDialogue, story, s.GalleryOrNil(), models.ScenePrologue, done)
		},
		director.StageBattle: func(s *director.State, done director.Completion) Screen {
			return newBattleScreen(s, done, opts)
		},
		director.StageCutsceneEpilogue: func(s *director.State, done director.Completion) Screen {
			story := s.StoryOrNil()
			return newCutsceneScreen(story.EpilogueDialogue(s.BattleWon), story, s.GalleryOrNil(), epilogueScene(s.BattleWon), done)
		},
		director.StageEpilogue: func(s *director.State, done director.Completion) Screen {
			story := s.StoryOrNil()
			title := "Epilogue"
			if s.BattleWon {
				title = "Epilogue: Victory"
			}
			return newTextScreen(title, story.Epilogue(s.BattleWon), s.GalleryOrNil().Background(epilogueScene(s.BattleWon)), done)
		},
		director.StageCredits: func(s *director.State, done director.Completion) Screen {
			return newCreditsScreen(s, done)
		},
	}
}

func epilogueScene(won bool) string {
	if won {
		return models.SceneEpilogueVictory
	}
	return models.SceneEpilogueDefeat
}

func artLine(h assets.Handle) string {
	if h.Placeholder() {
		return artStyle.Render(fmt.Sprintf("[%s: %s]", h.Kind, h.Name))
	}
	return artStyle.Render(fmt.Sprintf("[%s: %s]", h.Kind, h.Path))
}

// setupScreen asks the three setup questions.
type setupScreen struct {
	state  *director.State
	done   director.Completion
	inputs []textinput.Model
	focus  int
}

var setupQuestions = []struct {
	prompt      string
	placeholder string
}{
	{"What is your name?", "Bob"},
	{"What do you do for a living?", "builder"},
	{"Tell me anything else about yourself.", "afraid of heights"},
}

func newSetupScreen(s *director.State, done director.Completion) *setupScreen {
	sc := &setupScreen{state: s, done: done}
	for i, q := range setupQuestions {
		ti := textinput.New()
		ti.Placeholder = q.placeholder
		ti.CharLimit = 156
		ti.Width = 40
		if i == 0 {
			ti.Focus()
		}
		sc.inputs = append(sc.inputs, ti)
	}
	return sc
}

func (s *setupScreen) Init() tea.Cmd { return textinput.Blink }

func (s *setupScreen) value(i int) string {
	if v := strings.TrimSpace(s.inputs[i].Value()); v != "" {
		return v
	}
	return s.inputs[i].Placeholder
}

func (s *setupScreen) Update(msg tea.Msg) tea.Cmd {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.Type {
		case tea.KeyEnter, tea.KeyTab, tea.KeyDown:
			if s.focus == len(s.inputs)-1 && msg.Type == tea.KeyEnter {
				answers := models.SetupAnswers{Name: s.value(0), Occupation: s.value(1), Traits: s.value(2)}
				if err := s.state.SetAnswers(answers); err != nil {
					log.Printf("tui: setup: %v", err)
				}
				s.done.Done()
				return nil
			}
			return s.move(1)
		case tea.KeyShiftTab, tea.KeyUp:
			return s.move(-1)
		}
	}
	var cmd tea.Cmd
	s.inputs[s.focus], cmd = s.inputs[s.focus].Update(msg)
	return cmd
}

func (s *setupScreen) move(dir int) tea.Cmd {
	s.inputs[s.focus].Blur()
	s.focus = (s.focus + dir + len(s.inputs)) % len(s.inputs)
	return s.inputs[s.focus].Focus()
}

func (s *setupScreen) View(width, height int) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("A NEW STORY") + "\n\n")
	for i, q := range setupQuestions {
		b.WriteString(textStyle.Render(q.prompt) + "\n")
		b.WriteString(s.inputs[i].View() + "\n\n")
	}
	b.WriteString(helpStyle.Render("Tab to move between questions, Enter on the last one to begin."))
	return b.String()
}

// loadingScreen spins while the background worker starts on the story.
type loadingScreen struct {
	state   *director.State
	done    director.Completion
	opts    Options
	spinner spinner.Model
	elapsed time.Duration
}

func newLoadingScreen(s *director.State, done director.Completion, opts Options) *loadingScreen {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFA500"))
	return &loadingScreen{state: s, done: done, opts: opts, spinner: sp}
}

func (s *loadingScreen) Init() tea.Cmd { return s.spinner.Tick }

func (s *loadingScreen) Update(msg tea.Msg) tea.Cmd {
	switch msg.(type) {
	case tickMsg:
		s.elapsed += TickInterval
		if s.elapsed >= s.opts.Dwell || s.state.ContentReady() {
			s.done.Done()
		}
		return nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		s.spinner, cmd = s.spinner.Update(msg)
		return cmd
	}
	return nil
}

func (s *loadingScreen) View(width, height int) string {
	a, _ := s.state.Answers()
	line := fmt.Sprintf("%s Dreaming up a story for %s the %s...", s.spinner.View(), a.Name, a.Occupation)
	if step := s.opts.Progress.Step(); step != "" {
		line += "\n\n" + helpStyle.Render("  now writing: "+step)
	}
	return line
}

// titleScreen shows the title card once the story exists. It only lets the
// player continue when every background job has finished.
type titleScreen struct {
	state   *director.State
	done    director.Completion
	spinner spinner.Model
}

func newTitleScreen(s *director.State, done director.Completion) *titleScreen {
	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	return &titleScreen{state: s, done: done, spinner: sp}
}

func (s *titleScreen) Init() tea.Cmd { return s.spinner.Tick }

func (s *titleScreen) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyEnter && s.state.ContentReady() {
			s.done.Done()
		}
	case spinner.TickMsg:
		if s.state.ContentReady() {
			return nil
		}
		var cmd tea.Cmd
		s.spinner, cmd = s.spinner.Update(msg)
		return cmd
	}
	return nil
}

func (s *titleScreen) View(width, height int) string {
	if !s.state.ContentReady() {
		return fmt.Sprintf("%s %s", s.spinner.View(), helpStyle.Render("The ink is still drying..."))
	}
	story := s.state.StoryOrNil()
	if story == nil {
		// Generation failed; the next stage will report it.
		return helpStyle.Render("Press Enter to continue.")
	}
	card := lipgloss.JoinVertical(lipgloss.Center,
		titleStyle.Render(strings.ToUpper(story.Title)),
		"",
		textStyle.Render(fmt.Sprintf("a %s tale", story.Genre)),
		artLine(s.state.GalleryOrNil().Background(models.SceneTitle)),
	)
	return lipgloss.JoinVertical(lipgloss.Left,
		panelStyle.Render(card),
		"",
		helpStyle.Render("Press Enter to begin."),
	)
}

// textScreen shows a chapter of prose in a scrollable viewport.
type textScreen struct {
	title    string
	body     string
	art      assets.Handle
	done     director.Completion
	viewport viewport.Model
}

func newTextScreen(title, body string, art assets.Handle, done director.Completion) *textScreen {
	return &textScreen{title: title, body: body, art: art, done: done, viewport: viewport.New(80, 20)}
}

func (s *textScreen) Init() tea.Cmd {
	s.render(80)
	return nil
}

func (s *textScreen) render(width int) {
	md := fmt.Sprintf("# %s\n\n%s\n", s.title, s.body)
	out := md
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(max(width-4, 20)),
	)
	if err == nil {
		out, err = r.Render(md)
	}
	if err != nil {
		log.Printf("tui: render %s: %v", s.title, err)
		out = md
	}
	s.viewport.SetContent(out)
}

func (s *textScreen) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		s.viewport.Width = msg.Width
		s.viewport.Height = max(msg.Height-6, 5)
		s.render(msg.Width)
		return nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyEnter {
			s.done.Done()
			return nil
		}
	}
	var cmd tea.Cmd
	s.viewport, cmd = s.viewport.Update(msg)
	return cmd
}

func (s *textScreen) View(width, height int) string {
	return lipgloss.JoinVertical(lipgloss.Left,
		artLine(s.art),
		s.viewport.View(),
		helpStyle.Render("Arrows to scroll, Enter to continue."),
	)
}

// cutsceneScreen plays dialogue one line at a time. The first speaker stands
// on the left and sides alternate with each new speaker.
type cutsceneScreen struct {
	lines   models.Dialogue
	sides   map[string]int
	story   *models.Story
	gallery *assets.Gallery
	scene   string
	done    director.Completion
	index   int
}

func newCutsceneScreen(lines models.Dialogue, story *models.Story, g *assets.Gallery, scene string, done director.Completion) *cutsceneScreen {
	sc := &cutsceneScreen{lines: lines, story: story, gallery: g, scene: scene, done: done, sides: map[string]int{}}
	for i, speaker := range lines.Speakers() {
		sc.sides[speaker] = i % 2
	}
	if len(lines) == 0 {
		log.Printf("tui: cutscene %s has no dialogue, skipping", scene)
		done.Done()
	}
	return sc
}

func (s *cutsceneScreen) Init() tea.Cmd { return nil }

func (s *cutsceneScreen) Update(msg tea.Msg) tea.Cmd {
	if msg, ok := msg.(tea.KeyMsg); ok && (msg.Type == tea.KeyEnter || msg.Type == tea.KeySpace) {
		s.index++
		if s.index >= len(s.lines) {
			s.index = len(s.lines) - 1
			s.done.Done()
		}
	}
	return nil
}

// portraitFor maps a speaker onto the closest known character.
func (s *cutsceneScreen) portraitFor(speaker string) assets.Handle {
	if s.story != nil && speaker != s.story.Player.Name && strings.Contains(speaker, s.story.Boss.Name) {
		return s.gallery.Portrait(s.story.Boss.Name)
	}
	return s.gallery.Portrait(speaker)
}

func (s *cutsceneScreen) View(width, height int) string {
	if len(s.lines) == 0 {
		return ""
	}
	l := s.lines[s.index]
	boxWidth := max(min(width-4, 70), 30)
	speaker := titleStyle.Render(l.Speaker)
	box := panelStyle.Width(boxWidth).Render(speaker + "\n" + textStyle.Render(l.Line))

	align := lipgloss.Left
	if s.sides[l.Speaker] == 1 {
		align = lipgloss.Right
	}
	return lipgloss.JoinVertical(align,
		artLine(s.gallery.Background(s.scene)),
		artLine(s.portraitFor(l.Speaker)),
		box,
		helpStyle.Render(fmt.Sprintf("%d/%d  Enter to continue.", s.index+1, len(s.lines))),
	)
}

// creditsScreen is the closing title card.
type creditsScreen struct {
	state *director.State
	done  director.Completion
}

func newCreditsScreen(s *director.State, done director.Completion) *creditsScreen {
	return &creditsScreen{state: s, done: done}
}

func (s *creditsScreen) Init() tea.Cmd { return nil }

func (s *creditsScreen) Update(msg tea.Msg) tea.Cmd {
	if msg, ok := msg.(tea.KeyMsg); ok && (msg.Type == tea.KeyEnter || msg.Type == tea.KeyEsc) {
		s.done.Done()
	}
	return nil
}

func (s *creditsScreen) View(width, height int) string {
	a, _ := s.state.Answers()
	lines := []string{titleStyle.Render("THE END"), ""}
	if story := s.state.StoryOrNil(); story != nil {
		lines = append(lines, textStyle.Render(story.Title))
	}
	lines = append(lines, textStyle.Render(fmt.Sprintf("starring %s the %s", a.Name, a.Occupation)))
	return lipgloss.JoinVertical(lipgloss.Left,
		panelStyle.Render(lipgloss.JoinVertical(lipgloss.Center, lines...)),
		"",
		helpStyle.Render("Press Enter to exit."),
	)
}
