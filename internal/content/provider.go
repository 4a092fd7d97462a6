// Package content generates the narrative of a run: genre, prologue,
// characters, stat blocks, dialogue and endings.
//
// A Provider answers one question at a time. The Storyteller asks them in
// order and assembles the answers into a models.Story.
package content

import (
	"context"

	"github.com/tatianab/gamegen/internal/models"
)

// Role picks which character a question is about.
type Role string

const (
	RolePlayer Role = "player"
	RoleBoss   Role = "boss"
)

// Moment picks which cutscene a dialogue belongs to.
type Moment string

const (
	MomentPrologue Moment = "prologue"
	MomentVictory  Moment = "victory"
	MomentDefeat   Moment = "defeat"
)

// Brief is everything known about the story so far. Each step of generation
// fills in more of it.
type Brief struct {
	Answers           models.SetupAnswers
	Genre             string
	Tone              string
	Prologue          string
	PlayerDescription string
	BossDescription   string
	BossName          string
	EpilogueVictory   string
	EpilogueDefeat    string
	Title             string
}

// Subject returns the name of the character a role refers to.
func (b Brief) Subject(role Role) string {
	if role == RoleBoss {
		return b.BossName
	}
	return b.Answers.Name
}

// StatBlock is a character's combat options.
type StatBlock struct {
	Attacks []models.Attack `yaml:"attacks"`
	Items   []models.Item   `yaml:"items"`
}

// Provider supplies generated content. Every call may be slow and may fail.
type Provider interface {
	Genre(ctx context.Context, b Brief) (string, error)
	Tone(ctx context.Context, b Brief) (string, error)
	Prologue(ctx context.Context, b Brief) (string, error)
	CharacterDescription(ctx context.Context, b Brief, role Role) (string, error)
	// Descriptors returns short visual phrases for a portrait, one per line.
	Descriptors(ctx context.Context, b Brief, role Role) (string, error)
	StatBlock(ctx context.Context, b Brief, role Role) (StatBlock, error)
	BossName(ctx context.Context, b Brief) (string, error)
	Ending(ctx context.Context, b Brief, won bool) (string, error)
	Dialogue(ctx context.Context, b Brief, moment Moment) (models.Dialogue, error)
	Title(ctx context.Context, b Brief) (string, error)
	// ScenePrompt returns background descriptors for one of the models.Scene* names.
	ScenePrompt(ctx context.Context, b Brief, scene string) (string, error)
}
