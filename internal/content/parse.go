package content

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"

	"github.com/tatianab/gamegen/internal/models"
)

// stripFences removes a Markdown code fence wrapped around a model answer.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// The opening fence may carry a language tag.
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = ""
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// oneLine collapses an answer into a single trimmed line.
func oneLine(s string) string {
	s = strings.Join(strings.Fields(stripFences(s)), " ")
	return strings.Trim(s, "\"'*` ")
}

// words keeps only the words of a short answer such as a genre.
func words(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) || r == '.' || r == ',' || r == ')' {
			return ' '
		}
		return r
	}, stripFences(s))
	return oneLine(s)
}

// phrases cleans a list answer into one phrase per line.
func phrases(s string) string {
	var out []string
	for _, line := range strings.Split(stripFences(s), "\n") {
		line = strings.TrimLeftFunc(line, func(r rune) bool {
			return unicode.IsDigit(r) || unicode.IsSpace(r) || strings.ContainsRune("-*•.)", r)
		})
		line = strings.TrimSpace(strings.ReplaceAll(line, ".", ""))
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

type rawAction struct {
	Name        string `yaml:"name"`
	Damage      *int   `yaml:"damage"`
	Accuracy    *int   `yaml:"accuracy"`
	Description string `yaml:"description"`
}

// decodeActions reads a YAML (or JSON) list of actions. A mapping that wraps
// the list, like {"attacks": [...]}, is unwrapped. Entries whose fields have
// the wrong type come back with those fields unset.
func decodeActions(raw string) ([]rawAction, error) {
	raw = stripFences(raw)
	if raw == "" {
		return nil, errors.New("empty payload")
	}

	var list []rawAction
	err := yaml.Unmarshal([]byte(raw), &list)
	var typeErr *yaml.TypeError
	if err == nil || (errors.As(err, &typeErr) && len(list) > 0) {
		if err != nil {
			log.Printf("content: stat block has malformed fields: %v", err)
		}
		return list, nil
	}

	var wrapped map[string][]rawAction
	if werr := yaml.Unmarshal([]byte(raw), &wrapped); werr == nil || errors.As(werr, &typeErr) {
		for _, v := range wrapped {
			if len(v) > 0 {
				return v, nil
			}
		}
	}
	return nil, fmt.Errorf("parse stat block: %w", err)
}

// ParseAttacks validates a generated attack list. Entries without a name or
// damage are dropped, as are repeated names; accuracy is clamped to 0..100.
func ParseAttacks(raw string) ([]models.Attack, error) {
	entries, err := decodeActions(raw)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var out []models.Attack
	for i, e := range entries {
		name := strings.TrimSpace(e.Name)
		switch {
		case name == "":
			log.Printf("content: dropping attack %d: missing name", i)
			continue
		case e.Damage == nil:
			log.Printf("content: dropping attack %q: missing damage", name)
			continue
		case e.Accuracy == nil:
			log.Printf("content: dropping attack %q: missing accuracy", name)
			continue
		case seen[name]:
			log.Printf("content: dropping repeated attack %q", name)
			continue
		}
		seen[name] = true
		out = append(out, models.Attack{
			Name:        name,
			Damage:      *e.Damage,
			Accuracy:    min(max(*e.Accuracy, 0), 100),
			Description: strings.TrimSpace(e.Description),
		})
	}
	return out, nil
}

// ParseItems validates a generated item list the same way as ParseAttacks.
func ParseItems(raw string) ([]models.Item, error) {
	entries, err := decodeActions(raw)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var out []models.Item
	for i, e := range entries {
		name := strings.TrimSpace(e.Name)
		switch {
		case name == "":
			log.Printf("content: dropping item %d: missing name", i)
			continue
		case e.Damage == nil:
			log.Printf("content: dropping item %q: missing damage", name)
			continue
		case seen[name]:
			log.Printf("content: dropping repeated item %q", name)
			continue
		}
		seen[name] = true
		out = append(out, models.Item{
			Name:        name,
			Damage:      *e.Damage,
			Description: strings.TrimSpace(e.Description),
		})
	}
	return out, nil
}

// ParseStatBlock validates both halves of a stat block. Whatever parsed is
// returned alongside the error for the half that did not.
func ParseStatBlock(attacksRaw, itemsRaw string) (StatBlock, error) {
	attacks, aerr := ParseAttacks(attacksRaw)
	items, ierr := ParseItems(itemsRaw)
	if aerr != nil {
		aerr = fmt.Errorf("attacks: %w", aerr)
	}
	if ierr != nil {
		ierr = fmt.Errorf("items: %w", ierr)
	}
	return StatBlock{Attacks: attacks, Items: items}, errors.Join(aerr, ierr)
}

// ParseDialogue reads "speaker: line" text. Lines without a speaker are skipped.
func ParseDialogue(raw string) models.Dialogue {
	var out models.Dialogue
	for _, line := range strings.Split(stripFences(raw), "\n") {
		line = strings.TrimSpace(strings.ReplaceAll(line, "**", ""))
		line = strings.TrimLeft(line, "-* ")
		speaker, text, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		speaker = strings.TrimSpace(speaker)
		text = strings.Trim(strings.TrimSpace(text), "\"")
		if speaker == "" || text == "" {
			continue
		}
		out = append(out, models.DialogueLine{Speaker: speaker, Line: text})
	}
	return out
}
