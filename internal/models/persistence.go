package models

import (
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// DefaultSaveDir is where runs are written when no directory is configured.
const DefaultSaveDir = ".saves"

// Save writes the run under dir/<id>/ as story.yaml and run.yaml.
func (r *RunRecord) Save(dir string) error {
	runDir := filepath.Join(dir, r.ID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return err
	}

	// Save story.yaml on its own so it can seed a replay
	if r.Story != nil {
		storyData, err := yaml.Marshal(r.Story)
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(runDir, "story.yaml"), storyData, 0644); err != nil {
			return err
		}
	}

	// run.yaml carries everything except the story
	meta := *r
	meta.Story = nil
	runData, err := yaml.Marshal(&meta)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(runDir, "run.yaml"), runData, 0644)
}

// LoadRun reads a run saved by Save.
func LoadRun(dir, id string) (*RunRecord, error) {
	runDir := filepath.Join(dir, id)

	runData, err := os.ReadFile(filepath.Join(runDir, "run.yaml"))
	if err != nil {
		return nil, err
	}
	var run RunRecord
	if err := yaml.Unmarshal(runData, &run); err != nil {
		return nil, err
	}

	story, err := LoadStory(dir, id)
	if err != nil {
		return nil, err
	}
	run.Story = story
	return &run, nil
}

// LoadStory reads only the generated story of a saved run.
func LoadStory(dir, id string) (*Story, error) {
	storyData, err := os.ReadFile(filepath.Join(dir, id, "story.yaml"))
	if err != nil {
		return nil, err
	}
	var story Story
	if err := yaml.Unmarshal(storyData, &story); err != nil {
		return nil, err
	}
	return &story, nil
}

// ListRuns returns the ids of saved runs, sorted.
func ListRuns(dir string) ([]string, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return []string{}, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var runs []string
	for _, entry := range entries {
		if entry.IsDir() {
			// story.yaml marks a usable run
			storyPath := filepath.Join(dir, entry.Name(), "story.yaml")
			if _, err := os.Stat(storyPath); err == nil {
				runs = append(runs, entry.Name())
			}
		}
	}
	sort.Strings(runs)
	return runs, nil
}
