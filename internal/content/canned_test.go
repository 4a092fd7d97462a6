package content

import (
	"context"
	"reflect"
	"testing"

	"github.com/tatianab/gamegen/internal/models"
)

func TestCannedIsIdempotent(t *testing.T) {
	c, err := NewCanned()
	if err != nil {
		t.Fatalf("canned: %v", err)
	}
	st := NewStoryteller(c)
	answers := models.SetupAnswers{Name: "Alice", Occupation: "baker", Traits: "afraid of heights"}

	first, err := st.Generate(context.Background(), answers)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	second, err := st.Generate(context.Background(), answers)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("Expected the same story for the same answers")
	}
}

func TestCannedPersonalizesHero(t *testing.T) {
	c, err := NewCanned()
	if err != nil {
		t.Fatalf("canned: %v", err)
	}
	b := Brief{Answers: models.SetupAnswers{Name: "Alice"}}

	d, err := c.Dialogue(context.Background(), b, MomentPrologue)
	if err != nil {
		t.Fatalf("dialogue: %v", err)
	}
	speakers := d.Speakers()
	if len(speakers) != 2 || speakers[1] != "Alice" {
		t.Errorf("Expected Vexmoor and Alice, got %v", speakers)
	}

	// The stored story is left alone.
	if c.Story().PrologueDialogue[1].Speaker != "Bob" {
		t.Errorf("Expected the canned story to be unchanged, got %s", c.Story().PrologueDialogue[1].Speaker)
	}
}

func TestCannedStatsMatchScenario(t *testing.T) {
	c, err := NewCanned()
	if err != nil {
		t.Fatalf("canned: %v", err)
	}
	sb, err := c.StatBlock(context.Background(), Brief{}, RolePlayer)
	if err != nil {
		t.Fatalf("stat block: %v", err)
	}
	if len(sb.Attacks) == 0 || sb.Attacks[0].Name != "Tackle" || sb.Attacks[0].Damage != 50 || sb.Attacks[0].Accuracy != 100 {
		t.Errorf("Expected Tackle 50/100 first, got %+v", sb.Attacks)
	}

	sb.Attacks[0].Damage = 9999
	again, _ := c.StatBlock(context.Background(), Brief{}, RolePlayer)
	if again.Attacks[0].Damage != 50 {
		t.Error("Expected callers not to be able to change the canned stats")
	}

	for _, scene := range []string{models.SceneTitle, models.ScenePrologue, models.SceneBattle, models.SceneEpilogueVictory, models.SceneEpilogueDefeat} {
		if p, _ := c.ScenePrompt(context.Background(), Brief{}, scene); p == "" {
			t.Errorf("Expected a scene prompt for %s", scene)
		}
	}
}

func TestLoadReplay(t *testing.T) {
	dir := t.TempDir()
	story := &models.Story{Genre: "noir", Title: "Rain", Player: models.CharacterSheet{Name: "Sam"}}
	rec := &models.RunRecord{ID: "run-1", Story: story}
	if err := rec.Save(dir); err != nil {
		t.Fatalf("save: %v", err)
	}

	c, err := LoadReplay(dir, "run-1")
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if g, _ := c.Genre(context.Background(), Brief{}); g != "noir" {
		t.Errorf("Expected noir, got %q", g)
	}

	if _, err := LoadReplay(dir, "missing"); err == nil {
		t.Error("Expected an error for a missing run")
	}
}
