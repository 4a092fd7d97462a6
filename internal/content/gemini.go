package content

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/tatianab/gamegen/internal/models"
)

//go:embed prompts/*.txt
var promptFS embed.FS

var prompts = template.Must(template.ParseFS(promptFS, "prompts/*.txt"))

// Completer turns a prompt into text.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// GeminiCompleter sends prompts to a Gemini model.
type GeminiCompleter struct {
	client *genai.Client
	model  *genai.GenerativeModel
	name   string
}

// NewGeminiCompleter connects to the Gemini API.
func NewGeminiCompleter(ctx context.Context, apiKey, model string) (*GeminiCompleter, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	return &GeminiCompleter{
		client: client,
		model:  client.GenerativeModel(model),
		name:   model,
	}, nil
}

// Model returns the model name.
func (g *GeminiCompleter) Model() string { return g.name }

func (g *GeminiCompleter) Close() error {
	return g.client.Close()
}

func (g *GeminiCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no content returned from Gemini")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("unexpected response type from Gemini")
	}
	return sb.String(), nil
}

var errNoDialogue = errors.New("no lines in answer")

// Live asks a language model for every piece of content.
type Live struct {
	llm Completer
}

// NewLive builds prompts for llm.
func NewLive(llm Completer) *Live {
	return &Live{llm: llm}
}

type promptData struct {
	Brief
	Boss      bool
	Won       bool
	Moment    Moment
	Scene     string
	SceneText string
}

func (l *Live) ask(ctx context.Context, name string, data promptData) (string, error) {
	return l.askChecked(ctx, name, data, nil)
}

// askChecked runs the named prompt and rejects answers that fail check.
func (l *Live) askChecked(ctx context.Context, name string, data promptData, check func(string) error) (string, error) {
	var buf bytes.Buffer
	if err := prompts.ExecuteTemplate(&buf, name+".txt", data); err != nil {
		return "", err
	}
	ctx = withCheck(ctx, check)
	out, err := l.llm.Complete(ctx, buf.String())
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}
	if err := checkAnswer(ctx, out); err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

func (l *Live) Genre(ctx context.Context, b Brief) (string, error) {
	out, err := l.ask(ctx, "genre", promptData{Brief: b})
	return words(out), err
}

func (l *Live) Tone(ctx context.Context, b Brief) (string, error) {
	out, err := l.ask(ctx, "tone", promptData{Brief: b})
	return words(out), err
}

func (l *Live) Prologue(ctx context.Context, b Brief) (string, error) {
	out, err := l.ask(ctx, "prologue", promptData{Brief: b})
	return strings.TrimSpace(out), err
}

func (l *Live) CharacterDescription(ctx context.Context, b Brief, role Role) (string, error) {
	out, err := l.ask(ctx, "description", promptData{Brief: b, Boss: role == RoleBoss})
	return strings.TrimSpace(out), err
}

func (l *Live) Descriptors(ctx context.Context, b Brief, role Role) (string, error) {
	out, err := l.ask(ctx, "descriptors", promptData{Brief: b, Boss: role == RoleBoss})
	return phrases(out), err
}

func (l *Live) StatBlock(ctx context.Context, b Brief, role Role) (StatBlock, error) {
	data := promptData{Brief: b, Boss: role == RoleBoss}
	attacks, err := l.askChecked(ctx, "attacks", data, func(s string) error {
		_, err := ParseAttacks(s)
		return err
	})
	if err != nil {
		return StatBlock{}, err
	}
	items, err := l.askChecked(ctx, "items", data, func(s string) error {
		_, err := ParseItems(s)
		return err
	})
	if err != nil {
		return StatBlock{}, err
	}
	return ParseStatBlock(attacks, items)
}

func (l *Live) BossName(ctx context.Context, b Brief) (string, error) {
	out, err := l.ask(ctx, "boss_name", promptData{Brief: b})
	return oneLine(out), err
}

func (l *Live) Ending(ctx context.Context, b Brief, won bool) (string, error) {
	out, err := l.ask(ctx, "ending", promptData{Brief: b, Won: won})
	return strings.TrimSpace(out), err
}

func (l *Live) Dialogue(ctx context.Context, b Brief, moment Moment) (models.Dialogue, error) {
	out, err := l.askChecked(ctx, "dialogue", promptData{Brief: b, Moment: moment}, func(s string) error {
		if len(ParseDialogue(s)) == 0 {
			return errNoDialogue
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ParseDialogue(out), nil
}

func (l *Live) Title(ctx context.Context, b Brief) (string, error) {
	out, err := l.ask(ctx, "title", promptData{Brief: b})
	return oneLine(out), err
}

func (l *Live) ScenePrompt(ctx context.Context, b Brief, scene string) (string, error) {
	data := promptData{Brief: b, Scene: scene}
	switch scene {
	case models.ScenePrologue:
		data.SceneText = b.Prologue
	case models.SceneEpilogueVictory:
		data.SceneText = b.EpilogueVictory
	case models.SceneEpilogueDefeat:
		data.SceneText = b.EpilogueDefeat
	}
	out, err := l.ask(ctx, "scene", data)
	return phrases(out), err
}
