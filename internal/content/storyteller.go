package content

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/tatianab/gamegen/internal/models"
)

var tracer = otel.Tracer("gamegen/content")

// DefaultAttack is given to a character whose stat block came back without
// any usable attack, so the fight can still be played.
var DefaultAttack = models.Attack{
	Name:        "Struggle",
	Damage:      25,
	Accuracy:    90,
	Description: "Flailing, but it works.",
}

// Progress holds the name of the generation step in flight. It is written by
// the background worker and read by the loading screen.
type Progress struct {
	step atomic.Pointer[string]
}

func (p *Progress) set(step string) {
	if p != nil {
		p.step.Store(&step)
	}
}

// Step returns the current step, or "" before generation starts.
func (p *Progress) Step() string {
	if p == nil {
		return ""
	}
	if s := p.step.Load(); s != nil {
		return *s
	}
	return ""
}

// Storyteller asks a Provider for every piece of a story, in order.
type Storyteller struct {
	provider Provider
	Progress *Progress
}

// NewStoryteller uses p for every question.
func NewStoryteller(p Provider) *Storyteller {
	return &Storyteller{provider: p, Progress: &Progress{}}
}

func step[T any](ctx context.Context, st *Storyteller, name string, fn func(context.Context) (T, error)) (T, error) {
	st.Progress.set(name)
	ctx, span := tracer.Start(ctx, "content."+name)
	defer span.End()
	v, err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return v, fmt.Errorf("%s: %w", name, err)
	}
	return v, nil
}

// Generate writes a complete story around the setup answers.
func (st *Storyteller) Generate(ctx context.Context, answers models.SetupAnswers) (_ *models.Story, err error) {
	ctx, span := tracer.Start(ctx, "content.Generate")
	span.SetAttributes(
		attribute.String("player.name", answers.Name),
		attribute.String("player.occupation", answers.Occupation),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	p := st.provider
	b := Brief{Answers: answers}

	if b.Genre, err = step(ctx, st, "genre", func(ctx context.Context) (string, error) { return p.Genre(ctx, b) }); err != nil {
		return nil, err
	}
	if b.Tone, err = step(ctx, st, "tone", func(ctx context.Context) (string, error) { return p.Tone(ctx, b) }); err != nil {
		return nil, err
	}
	if b.Prologue, err = step(ctx, st, "prologue", func(ctx context.Context) (string, error) { return p.Prologue(ctx, b) }); err != nil {
		return nil, err
	}

	player, err := st.character(ctx, &b, RolePlayer)
	if err != nil {
		return nil, err
	}
	boss, err := st.character(ctx, &b, RoleBoss)
	if err != nil {
		return nil, err
	}

	story := &models.Story{
		Genre:        b.Genre,
		Tone:         b.Tone,
		Prologue:     b.Prologue,
		Player:       player,
		Boss:         boss,
		ScenePrompts: map[string]string{},
	}

	if story.PrologueDialogue, err = step(ctx, st, "prologue dialogue", func(ctx context.Context) (models.Dialogue, error) {
		return p.Dialogue(ctx, b, MomentPrologue)
	}); err != nil {
		return nil, err
	}

	if b.EpilogueVictory, err = step(ctx, st, "victory ending", func(ctx context.Context) (string, error) { return p.Ending(ctx, b, true) }); err != nil {
		return nil, err
	}
	if b.EpilogueDefeat, err = step(ctx, st, "defeat ending", func(ctx context.Context) (string, error) { return p.Ending(ctx, b, false) }); err != nil {
		return nil, err
	}
	story.EpilogueVictory, story.EpilogueDefeat = b.EpilogueVictory, b.EpilogueDefeat

	if story.VictoryDialogue, err = step(ctx, st, "victory dialogue", func(ctx context.Context) (models.Dialogue, error) {
		return p.Dialogue(ctx, b, MomentVictory)
	}); err != nil {
		return nil, err
	}
	if story.DefeatDialogue, err = step(ctx, st, "defeat dialogue", func(ctx context.Context) (models.Dialogue, error) {
		return p.Dialogue(ctx, b, MomentDefeat)
	}); err != nil {
		return nil, err
	}

	if b.Title, err = step(ctx, st, "title", func(ctx context.Context) (string, error) { return p.Title(ctx, b) }); err != nil {
		return nil, err
	}
	story.Title = b.Title

	for _, scene := range []string{models.SceneTitle, models.ScenePrologue, models.SceneBattle, models.SceneEpilogueVictory, models.SceneEpilogueDefeat} {
		prompt, err := step(ctx, st, "scene "+scene, func(ctx context.Context) (string, error) { return p.ScenePrompt(ctx, b, scene) })
		if err != nil {
			return nil, err
		}
		story.ScenePrompts[scene] = prompt
	}

	st.Progress.set("done")
	return story, nil
}

// character fills in one combatant and records what was learned in b.
func (st *Storyteller) character(ctx context.Context, b *Brief, role Role) (models.CharacterSheet, error) {
	p := st.provider
	sheet := models.CharacterSheet{Name: b.Answers.Name, Health: models.DefaultPlayerHealth}

	desc, err := step(ctx, st, string(role)+" description", func(ctx context.Context) (string, error) {
		return p.CharacterDescription(ctx, *b, role)
	})
	if err != nil {
		return sheet, err
	}
	sheet.Description = desc

	if role == RoleBoss {
		b.BossDescription = desc
		name, err := step(ctx, st, "boss name", func(ctx context.Context) (string, error) { return p.BossName(ctx, *b) })
		if err != nil {
			return sheet, err
		}
		b.BossName = name
		sheet.Name = name
		sheet.Health = models.DefaultBossHealth
	} else {
		b.PlayerDescription = desc
	}

	if sheet.Prompt, err = step(ctx, st, string(role)+" descriptors", func(ctx context.Context) (string, error) {
		return p.Descriptors(ctx, *b, role)
	}); err != nil {
		return sheet, err
	}

	stats, err := step(ctx, st, string(role)+" stat block", func(ctx context.Context) (StatBlock, error) {
		return p.StatBlock(ctx, *b, role)
	})
	if err != nil {
		return sheet, err
	}
	sheet.Attacks, sheet.Items = stats.Attacks, stats.Items
	if len(sheet.Attacks) == 0 {
		sheet.Attacks = []models.Attack{DefaultAttack}
	}
	return sheet, nil
}
