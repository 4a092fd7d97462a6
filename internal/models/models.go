package models

import "time"

// Default starting health pools.
const (
	DefaultPlayerHealth = 1000
	DefaultBossHealth   = 500
)

// Attack is a combat action that must pass an accuracy roll to land.
type Attack struct {
	Name        string `yaml:"name"`
	Damage      int    `yaml:"damage"`   // positive harms the target, negative heals the user
	Accuracy    int    `yaml:"accuracy"` // percent, 0-100
	Description string `yaml:"description"`
}

// Item is a combat action that always lands.
type Item struct {
	Name        string `yaml:"name"`
	Damage      int    `yaml:"damage"`
	Description string `yaml:"description"`
}

// CharacterSheet describes one combatant: who they are and what they can do.
type CharacterSheet struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Prompt      string   `yaml:"prompt"` // short visual descriptors for portraits
	Health      int      `yaml:"health"`
	Attacks     []Attack `yaml:"attacks"`
	Items       []Item   `yaml:"items"`
}

// DialogueLine is one spoken line of a cutscene.
type DialogueLine struct {
	Speaker string `yaml:"speaker"`
	Line    string `yaml:"line"`
}

// Dialogue is an ordered exchange between characters.
type Dialogue []DialogueLine

// Speakers returns the distinct speakers in order of first appearance.
func (d Dialogue) Speakers() []string {
	seen := make(map[string]bool)
	var out []string
	for _, l := range d {
		if !seen[l.Speaker] {
			seen[l.Speaker] = true
			out = append(out, l.Speaker)
		}
	}
	return out
}

// Scene names used for background art.
const (
	SceneTitle           = "title-card"
	ScenePrologue        = "prologue"
	SceneBattle          = "battle"
	SceneEpilogueVictory = "epilogue-victory"
	SceneEpilogueDefeat  = "epilogue-defeat"
)

// Story holds every piece of generated narrative content for one run.
type Story struct {
	Genre            string            `yaml:"genre"`
	Tone             string            `yaml:"tone"`
	Title            string            `yaml:"title"`
	Prologue         string            `yaml:"prologue"`
	PrologueDialogue Dialogue          `yaml:"prologue_dialogue"`
	Player           CharacterSheet    `yaml:"player"`
	Boss             CharacterSheet    `yaml:"boss"`
	EpilogueVictory  string            `yaml:"epilogue_victory"`
	EpilogueDefeat   string            `yaml:"epilogue_defeat"`
	VictoryDialogue  Dialogue          `yaml:"victory_dialogue"`
	DefeatDialogue   Dialogue          `yaml:"defeat_dialogue"`
	ScenePrompts     map[string]string `yaml:"scene_prompts"` // scene name -> background descriptors
}

// Epilogue returns the ending text matching the battle outcome.
func (s *Story) Epilogue(won bool) string {
	if won {
		return s.EpilogueVictory
	}
	return s.EpilogueDefeat
}

// EpilogueDialogue returns the closing cutscene matching the battle outcome.
func (s *Story) EpilogueDialogue(won bool) Dialogue {
	if won {
		return s.VictoryDialogue
	}
	return s.DefeatDialogue
}

// SetupAnswers are collected once before generation starts.
type SetupAnswers struct {
	Name       string `yaml:"name"`
	Occupation string `yaml:"occupation"`
	Traits     string `yaml:"traits"`
}

// RunRecord is what gets persisted once a run ends.
type RunRecord struct {
	ID         string       `yaml:"id"`
	StartedAt  time.Time    `yaml:"started_at"`
	FinishedAt time.Time    `yaml:"finished_at"`
	Answers    SetupAnswers `yaml:"answers"`
	Story      *Story       `yaml:"story,omitempty"`
	BattleWon  bool         `yaml:"battle_won"`
	Transcript []string     `yaml:"transcript,omitempty"`
}
