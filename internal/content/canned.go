package content

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tatianab/gamegen/internal/models"
)

//go:embed canned.yaml
var cannedStory []byte

// Canned answers every question from a fixed story. The same brief always
// gets the same answer.
type Canned struct {
	story *models.Story
}

// NewCanned serves the built-in story.
func NewCanned() (*Canned, error) {
	var s models.Story
	if err := yaml.Unmarshal(cannedStory, &s); err != nil {
		return nil, fmt.Errorf("parse canned story: %w", err)
	}
	return NewCannedFromStory(&s), nil
}

// NewCannedFromStory serves a previously generated story.
func NewCannedFromStory(s *models.Story) *Canned {
	return &Canned{story: s}
}

// LoadReplay serves the story saved with run id under dir.
func LoadReplay(dir, id string) (*Canned, error) {
	s, err := models.LoadStory(dir, id)
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", id, err)
	}
	return NewCannedFromStory(s), nil
}

// Story returns the story being served.
func (c *Canned) Story() *models.Story { return c.story }

// personalize swaps the stored hero's name for the one in the brief.
func (c *Canned) personalize(s string, b Brief) string {
	from, to := c.story.Player.Name, b.Answers.Name
	if from == "" || to == "" || from == to {
		return s
	}
	return strings.ReplaceAll(s, from, to)
}

func (c *Canned) sheet(role Role) models.CharacterSheet {
	if role == RoleBoss {
		return c.story.Boss
	}
	return c.story.Player
}

func (c *Canned) Genre(_ context.Context, _ Brief) (string, error) {
	return c.story.Genre, nil
}

func (c *Canned) Tone(_ context.Context, _ Brief) (string, error) {
	return c.story.Tone, nil
}

func (c *Canned) Prologue(_ context.Context, b Brief) (string, error) {
	return c.personalize(c.story.Prologue, b), nil
}

func (c *Canned) CharacterDescription(_ context.Context, b Brief, role Role) (string, error) {
	return c.personalize(c.sheet(role).Description, b), nil
}

func (c *Canned) Descriptors(_ context.Context, _ Brief, role Role) (string, error) {
	return c.sheet(role).Prompt, nil
}

func (c *Canned) StatBlock(_ context.Context, _ Brief, role Role) (StatBlock, error) {
	s := c.sheet(role)
	return StatBlock{
		Attacks: append([]models.Attack(nil), s.Attacks...),
		Items:   append([]models.Item(nil), s.Items...),
	}, nil
}

func (c *Canned) BossName(_ context.Context, _ Brief) (string, error) {
	return c.story.Boss.Name, nil
}

func (c *Canned) Ending(_ context.Context, b Brief, won bool) (string, error) {
	return c.personalize(c.story.Epilogue(won), b), nil
}

func (c *Canned) Dialogue(_ context.Context, b Brief, moment Moment) (models.Dialogue, error) {
	var src models.Dialogue
	switch moment {
	case MomentVictory:
		src = c.story.VictoryDialogue
	case MomentDefeat:
		src = c.story.DefeatDialogue
	default:
		src = c.story.PrologueDialogue
	}
	out := make(models.Dialogue, len(src))
	for i, l := range src {
		out[i] = models.DialogueLine{Speaker: c.personalize(l.Speaker, b), Line: c.personalize(l.Line, b)}
	}
	return out, nil
}

func (c *Canned) Title(_ context.Context, _ Brief) (string, error) {
	return c.story.Title, nil
}

func (c *Canned) ScenePrompt(_ context.Context, _ Brief, scene string) (string, error) {
	return c.story.ScenePrompts[scene], nil
}
