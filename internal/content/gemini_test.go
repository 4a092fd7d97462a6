package content

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/tatianab/gamegen/internal/models"
)

// scripted answers prompts by the first matching keyword.
type scripted struct {
	answers map[string]string
	prompts []string
}

func (s *scripted) Complete(_ context.Context, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	for key, answer := range s.answers {
		if strings.Contains(prompt, key) {
			return answer, nil
		}
	}
	return "", errors.New("no scripted answer")
}

func TestLiveStatBlock(t *testing.T) {
	llm := &scripted{answers: map[string]string{
		"four attacks": "```yaml\n- name: Tackle\n  damage: 50\n  accuracy: 100\n  description: Hit.\n```",
		"two items":    `[{"name": "Potion", "damage": -100, "description": "Heals."}]`,
	}}
	l := NewLive(llm)
	b := Brief{Answers: models.SetupAnswers{Name: "Bob"}, PlayerDescription: "A tall builder."}

	sb, err := l.StatBlock(context.Background(), b, RolePlayer)
	if err != nil {
		t.Fatalf("stat block: %v", err)
	}
	if len(sb.Attacks) != 1 || sb.Attacks[0].Name != "Tackle" {
		t.Errorf("Expected Tackle, got %+v", sb.Attacks)
	}
	if len(sb.Items) != 1 || sb.Items[0].Damage != -100 {
		t.Errorf("Expected Potion, got %+v", sb.Items)
	}
	if !strings.Contains(llm.prompts[0], "A tall builder.") || !strings.Contains(llm.prompts[0], "Bob uses") {
		t.Errorf("Expected the prompt to carry the brief, got %q", llm.prompts[0])
	}
}

func TestLivePrompts(t *testing.T) {
	llm := &scripted{answers: map[string]string{
		"genre":             "1. Dark\n2. Fantasy\n3. Quest",
		"name for":          `"Vexmoor"`,
		"lines of dialogue": "Bob: Hello.\nVexmoor: Goodbye.",
		"battlefield":       "- flooded quarry.\n- jagged cliffs",
	}}
	l := NewLive(llm)
	b := Brief{
		Answers:         models.SetupAnswers{Name: "Bob", Occupation: "builder", Traits: "stubborn"},
		BossName:        "Vexmoor",
		BossDescription: "A stone giant.",
		EpilogueDefeat:  "The quarry won.",
	}
	ctx := context.Background()

	if g, err := l.Genre(ctx, b); err != nil || g != "Dark Fantasy Quest" {
		t.Errorf("Expected Dark Fantasy Quest, got %q (%v)", g, err)
	}
	if !strings.Contains(llm.prompts[0], `"stubborn"`) {
		t.Errorf("Expected traits in the genre prompt, got %q", llm.prompts[0])
	}

	if n, err := l.BossName(ctx, b); err != nil || n != "Vexmoor" {
		t.Errorf("Expected Vexmoor, got %q (%v)", n, err)
	}

	d, err := l.Dialogue(ctx, b, MomentDefeat)
	if err != nil || len(d) != 2 {
		t.Fatalf("Expected 2 lines, got %+v (%v)", d, err)
	}
	last := llm.prompts[len(llm.prompts)-1]
	if !strings.Contains(last, "The quarry won.") || !strings.Contains(last, "after Vexmoor defeats Bob") {
		t.Errorf("Expected a defeat prompt, got %q", last)
	}

	p, err := l.ScenePrompt(ctx, b, models.SceneBattle)
	if err != nil || p != "flooded quarry\njagged cliffs" {
		t.Errorf("Expected cleaned phrases, got %q (%v)", p, err)
	}
}

func TestLiveEmptyAnswer(t *testing.T) {
	l := NewLive(&scripted{answers: map[string]string{"title": "   "}})
	if _, err := l.Title(context.Background(), Brief{Prologue: "Once."}); err == nil {
		t.Error("Expected an error for a blank answer")
	}
}

func TestPromptTemplatesRender(t *testing.T) {
	l := NewLive(&scripted{})
	for _, name := range []string{"genre", "tone", "prologue", "description", "descriptors", "boss_name", "attacks", "items", "ending", "dialogue", "title", "scene"} {
		_, err := l.ask(context.Background(), name, promptData{Brief: Brief{Answers: models.SetupAnswers{Name: "Bob"}}})
		if err == nil || strings.Contains(err.Error(), "template") {
			t.Errorf("%s: Expected only the completer to fail, got %v", name, err)
		}
	}
}

type memoryStore struct {
	data  map[string]string
	saves int
}

func (m *memoryStore) Lookup(_ context.Context, model, prompt string) (string, bool, error) {
	v, ok := m.data[model+"|"+prompt]
	return v, ok, nil
}

func (m *memoryStore) Save(_ context.Context, model, prompt, completion string) error {
	m.saves++
	m.data[model+"|"+prompt] = completion
	return nil
}

func TestCachedCompleter(t *testing.T) {
	llm := &scripted{answers: map[string]string{"hello": "world"}}
	store := &memoryStore{data: map[string]string{}}
	c := NewCached(llm, store, "test-model")

	for i := 0; i < 3; i++ {
		out, err := c.Complete(context.Background(), "hello")
		if err != nil || out != "world" {
			t.Fatalf("Expected world, got %q (%v)", out, err)
		}
	}
	if len(llm.prompts) != 1 {
		t.Errorf("Expected 1 model call, got %d", len(llm.prompts))
	}
	if store.saves != 1 {
		t.Errorf("Expected 1 save, got %d", store.saves)
	}

	if _, err := c.Complete(context.Background(), "unknown"); err == nil {
		t.Error("Expected model errors to pass through")
	}
	if store.saves != 1 {
		t.Error("Expected failures not to be cached")
	}
}

// sequenced answers prompts by keyword, moving through its answers on each
// call and repeating the last one.
type sequenced struct {
	answers map[string][]string
	calls   map[string]int
}

func (s *sequenced) Complete(_ context.Context, prompt string) (string, error) {
	for key, answers := range s.answers {
		if strings.Contains(prompt, key) {
			n := s.calls[key]
			s.calls[key]++
			return answers[min(n, len(answers)-1)], nil
		}
	}
	return "", errors.New("no scripted answer")
}

func TestRetryReachesModelThroughCache(t *testing.T) {
	llm := &sequenced{
		answers: map[string][]string{
			"four attacks": {"not yaml", "- name: Tackle\n  damage: 50\n  accuracy: 100\n"},
			"two items":    {"- name: Potion\n  damage: -100\n"},
		},
		calls: map[string]int{},
	}
	store := &memoryStore{data: map[string]string{}}
	r := newTestResilient(NewLive(NewCached(llm, store, "test-model")))

	sb, err := r.StatBlock(context.Background(), Brief{Answers: models.SetupAnswers{Name: "Bob"}}, RolePlayer)
	if err != nil {
		t.Fatalf("stat block: %v", err)
	}
	if len(sb.Attacks) != 1 || sb.Attacks[0].Name != "Tackle" {
		t.Errorf("Expected Tackle after a retry, got %+v", sb.Attacks)
	}
	if llm.calls["four attacks"] != 2 {
		t.Errorf("Expected 2 model calls for attacks, got %d", llm.calls["four attacks"])
	}
	if r.Fallbacks() != 0 {
		t.Errorf("Expected no fallback, got %d", r.Fallbacks())
	}
	for _, v := range store.data {
		if v == "not yaml" {
			t.Error("Expected the malformed answer to stay out of the cache")
		}
	}
	if store.saves != 2 {
		t.Errorf("Expected 2 saves, got %d", store.saves)
	}
}

func TestCachedSkipsEmptyAnswers(t *testing.T) {
	llm := &sequenced{answers: map[string][]string{"title": {"  ", "The Quarry"}}, calls: map[string]int{}}
	store := &memoryStore{data: map[string]string{}}
	r := newTestResilient(NewLive(NewCached(llm, store, "test-model")))

	title, err := r.Title(context.Background(), Brief{Prologue: "Once."})
	if err != nil || title != "The Quarry" {
		t.Errorf("Expected The Quarry, got %q (%v)", title, err)
	}
	if store.saves != 1 {
		t.Errorf("Expected only the real title to be saved, got %d saves", store.saves)
	}
}

func TestCachedReplacesInvalidEntry(t *testing.T) {
	llm := &sequenced{answers: map[string][]string{"lines of dialogue": {"Bob: Hello."}}, calls: map[string]int{}}
	store := &memoryStore{data: map[string]string{}}
	l := NewLive(NewCached(llm, store, "test-model"))
	b := Brief{Answers: models.SetupAnswers{Name: "Bob"}, BossName: "Vexmoor"}

	// Record the prompt, then poison its entry.
	if _, err := l.Dialogue(context.Background(), b, MomentPrologue); err != nil {
		t.Fatalf("dialogue: %v", err)
	}
	for k := range store.data {
		store.data[k] = "no speakers here"
	}

	d, err := l.Dialogue(context.Background(), b, MomentPrologue)
	if err != nil || len(d) != 1 {
		t.Fatalf("Expected 1 line, got %+v (%v)", d, err)
	}
	if llm.calls["lines of dialogue"] != 2 {
		t.Errorf("Expected the model to be asked again, got %d calls", llm.calls["lines of dialogue"])
	}
	for _, v := range store.data {
		if v != "Bob: Hello." {
			t.Errorf("Expected the entry to be replaced, got %q", v)
		}
	}
}
