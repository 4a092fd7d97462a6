package tui

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tatianab/gamegen/internal/assets"
	"github.com/tatianab/gamegen/internal/battle"
	"github.com/tatianab/gamegen/internal/content"
	"github.com/tatianab/gamegen/internal/director"
	"github.com/tatianab/gamegen/internal/game"
	"github.com/tatianab/gamegen/internal/models"
	"github.com/tatianab/gamegen/internal/random"
)

var enter = tea.KeyMsg{Type: tea.KeyEnter}

type completion struct {
	count int
}

func (c *completion) Done() { c.count++ }

func newTestDirector(t *testing.T) *director.Director[Screen] {
	t.Helper()
	canned, err := content.NewCanned()
	if err != nil {
		t.Fatalf("canned: %v", err)
	}
	rng, err := random.New(7)
	if err != nil {
		t.Fatalf("rng: %v", err)
	}
	st := content.NewStoryteller(canned)
	cfg := game.Config(game.Options{
		Storyteller: st,
		Art:         assets.Placeholder{},
		SaveDir:     t.TempDir(),
	})
	d := director.New(context.Background(), director.NewState(), cfg,
		Factories(Options{Progress: st.Progress, Rand: rng, Dwell: TickInterval}))
	t.Cleanup(d.Close)
	return d
}

func send(m tea.Model, msg tea.Msg) tea.Model {
	m, _ = m.Update(msg)
	return m
}

func TestPlayThrough(t *testing.T) {
	d := newTestDirector(t)
	var m tea.Model = NewModel(d)
	m.Init()
	m = send(m, tea.WindowSizeMsg{Width: 100, Height: 40})
	m = send(m, stageMsg{})

	seen := map[director.StageID]bool{}
	for i := 0; !d.Finished(); i++ {
		if i > 20000 {
			t.Fatal("Expected the game to finish")
		}
		if err := d.Err(); err != nil {
			t.Fatalf("director: %v", err)
		}
		_, id := d.Current()
		seen[id] = true

		switch id {
		case director.StageTitle:
			if !d.State().ContentReady() {
				time.Sleep(5 * time.Millisecond)
				continue
			}
			m = send(m, enter)
		case director.StageBattle:
			sc := m.(model).active.(*battleScreen)
			if sc.engine.Phase() == battle.PlayerChoosing {
				m = send(m, enter)
			} else {
				m = send(m, tickMsg(time.Now()))
			}
		default:
			m = send(m, enter)
			m = send(m, tickMsg(time.Now()))
		}
	}

	for _, st := range director.DefaultPipeline() {
		if !seen[st.ID] {
			t.Errorf("Expected stage %s to be shown", st.ID)
		}
	}
	state := d.State()
	if !state.BattleDone {
		t.Error("Expected the battle outcome to be recorded")
	}
	if len(state.Transcript) == 0 {
		t.Error("Expected a battle transcript")
	}
	if a, _ := state.Answers(); a.Name != "Bob" {
		t.Errorf("Expected placeholder answers, got %+v", a)
	}
}

func TestSetupAnswers(t *testing.T) {
	state := director.NewState()
	done := &completion{}
	s := newSetupScreen(state, done)

	s.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("Alice")})
	s.Update(enter)
	s.Update(enter)
	if done.count != 0 {
		t.Fatal("Expected setup to wait for the last question")
	}
	s.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("loves cake")})
	s.Update(enter)

	if done.count != 1 {
		t.Fatalf("Expected one completion, got %d", done.count)
	}
	a, ok := state.Answers()
	if !ok {
		t.Fatal("Expected answers to be recorded")
	}
	want := models.SetupAnswers{Name: "Alice", Occupation: "builder", Traits: "loves cake"}
	if a != want {
		t.Errorf("Expected %+v, got %+v", want, a)
	}
}

func TestSetupFocusWraps(t *testing.T) {
	s := newSetupScreen(director.NewState(), &completion{})
	s.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	if s.focus != len(s.inputs)-1 {
		t.Errorf("Expected focus on the last question, got %d", s.focus)
	}
	s.Update(tea.KeyMsg{Type: tea.KeyTab})
	if s.focus != 0 {
		t.Errorf("Expected focus on the first question, got %d", s.focus)
	}
}

func TestCutsceneSkipsEmptyDialogue(t *testing.T) {
	done := &completion{}
	newCutsceneScreen(nil, nil, nil, models.ScenePrologue, done)
	if done.count != 1 {
		t.Errorf("Expected an empty cutscene to finish at once, got %d completions", done.count)
	}
}

func TestCutsceneSides(t *testing.T) {
	lines := models.Dialogue{
		{Speaker: "Bob", Line: "Who goes there?"},
		{Speaker: "Vexmoor", Line: "Your doom."},
		{Speaker: "Bob", Line: "I doubt it."},
	}
	story := &models.Story{
		Player: models.CharacterSheet{Name: "Bob"},
		Boss:   models.CharacterSheet{Name: "Vexmoor"},
	}
	done := &completion{}
	s := newCutsceneScreen(lines, story, nil, models.ScenePrologue, done)

	if s.sides["Bob"] != 0 || s.sides["Vexmoor"] != 1 {
		t.Errorf("Expected Bob left and Vexmoor right, got %v", s.sides)
	}
	if !strings.Contains(s.View(80, 24), "Who goes there?") {
		t.Error("Expected the first line to be shown")
	}
	for range lines {
		s.Update(enter)
	}
	if done.count != 1 {
		t.Errorf("Expected one completion after the last line, got %d", done.count)
	}
	if !strings.Contains(s.View(80, 24), "I doubt it.") {
		t.Error("Expected the last line to stay on screen")
	}
}

func TestTitleWaitsForContent(t *testing.T) {
	state := director.NewState()
	pending := make(chan struct{})
	w := director.NewWorker(context.Background(), 1)
	defer w.Close()
	state.Story = director.Submit(w, "story", func(ctx context.Context) (*models.Story, error) {
		<-pending
		return &models.Story{Title: "A Test"}, nil
	})
	state.Art = director.Resolved(&assets.Gallery{}, nil)

	done := &completion{}
	s := newTitleScreen(state, done)
	s.Update(enter)
	if done.count != 0 {
		t.Fatal("Expected the title to hold while content is pending")
	}

	close(pending)
	if _, err := state.Story.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(s.View(80, 24), "A TEST") {
		t.Errorf("Expected the title card, got %q", s.View(80, 24))
	}
	s.Update(enter)
	if done.count != 1 {
		t.Errorf("Expected the title to complete, got %d", done.count)
	}
}

func TestModelShowsDirectorError(t *testing.T) {
	d := director.New(context.Background(), director.NewState(), director.Config{
		Pipeline: []director.Stage{{ID: director.StageSetup}, {ID: "missing"}},
	}, Factories(Options{}))
	defer d.Close()

	var m tea.Model = NewModel(d)
	m.Init()
	m = send(m, stageMsg{})
	m = send(m, enter)
	m = send(m, enter)
	m = send(m, enter)

	if d.Err() == nil {
		t.Fatal("Expected an unknown stage error")
	}
	if !strings.Contains(m.View(), "could not continue") {
		t.Errorf("Expected the error screen, got %q", m.View())
	}
}
