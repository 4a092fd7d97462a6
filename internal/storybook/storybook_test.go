package storybook

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/tatianab/gamegen/internal/assets"
	"github.com/tatianab/gamegen/internal/models"
)

func testRun() *models.RunRecord {
	return &models.RunRecord{
		ID:      "run-1",
		Answers: models.SetupAnswers{Name: "Zoë", Occupation: "cartographer"},
		Story: &models.Story{
			Title:    "The Last Map",
			Genre:    "fantasy",
			Tone:     "soft watercolor",
			Prologue: "Zoë drew the world.\n\nThen the world drew back.",
			Player:   models.CharacterSheet{Name: "Zoë", Description: "Ink-stained fingers."},
			Boss:     models.CharacterSheet{Name: "The Blank", Description: "An absence with teeth."},
			PrologueDialogue: models.Dialogue{
				{Speaker: "The Blank", Line: "Nothing is mapped here."},
				{Speaker: "Zoë", Line: "Not yet."},
			},
			EpilogueVictory: "Every coast was drawn.",
			EpilogueDefeat:  "The page stayed white.",
		},
		BattleWon:  true,
		Transcript: []string{"Zoë used Quill Strike and dealt 40 damage."},
	}
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, testRun(), nil); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
		t.Errorf("Expected a PDF header, got %q", buf.Bytes()[:min(8, buf.Len())])
	}
}

func TestWriteSkipsBrokenArt(t *testing.T) {
	dir := t.TempDir()
	bogus := filepath.Join(dir, "title.png")
	if err := os.WriteFile(bogus, []byte("not an image"), 0644); err != nil {
		t.Fatal(err)
	}
	g := &assets.Gallery{
		Backgrounds: map[string]assets.Handle{models.SceneTitle: {Kind: assets.KindBackground, Name: models.SceneTitle, Path: bogus}},
	}

	path := filepath.Join(dir, "story.pdf")
	if err := WriteFile(path, testRun(), g); err != nil {
		t.Fatalf("write: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Size() == 0 {
		t.Error("Expected a non-empty file")
	}
}

func TestWriteRequiresStory(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, &models.RunRecord{ID: "x"}, nil); err == nil {
		t.Error("Expected an error for a run without a story")
	}
}
