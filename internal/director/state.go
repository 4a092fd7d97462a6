package director

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tatianab/gamegen/internal/assets"
	"github.com/tatianab/gamegen/internal/models"
)

var (
	// ErrNotReady is returned when a stage needs content that was never requested
	// or has not finished yet.
	ErrNotReady = errors.New("content is not ready")
	// ErrAnswersSet is returned when setup answers are recorded twice.
	ErrAnswersSet = errors.New("setup answers already recorded")
)

// State is the record shared by every stage of a run.
//
// Only the stage that is currently active writes to it, and only from the
// main loop. Background jobs never touch State directly: each one owns a
// Future, and the foreground reads the value only after the future is done.
type State struct {
	RunID     string
	StartedAt time.Time

	answers    models.SetupAnswers
	answersSet bool

	// Filled in when setup completes.
	Story *Future[*models.Story]
	Art   *Future[*assets.Gallery]

	BattleWon  bool
	BattleDone bool
	Transcript []string
}

// NewState starts a fresh run.
func NewState() *State {
	return &State{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
}

// SetAnswers records the setup answers. They can only be recorded once.
func (s *State) SetAnswers(a models.SetupAnswers) error {
	if s.answersSet {
		return ErrAnswersSet
	}
	s.answers = a
	s.answersSet = true
	return nil
}

// Answers returns the recorded setup answers.
func (s *State) Answers() (models.SetupAnswers, bool) {
	return s.answers, s.answersSet
}

// ContentReady polls every content future without blocking.
func (s *State) ContentReady() bool {
	return s.Story.Ready() && s.Art.Ready()
}

// WaitContent blocks until every content future completes and returns the
// first failure.
func (s *State) WaitContent(ctx context.Context) error {
	if s.Story == nil || s.Art == nil {
		return fmt.Errorf("generation was never started: %w", ErrNotReady)
	}
	if _, err := s.Story.Wait(ctx); err != nil {
		return fmt.Errorf("story: %w", err)
	}
	if _, err := s.Art.Wait(ctx); err != nil {
		return fmt.Errorf("art: %w", err)
	}
	return nil
}

// StoryOrNil returns the generated story once it is ready.
func (s *State) StoryOrNil() *models.Story {
	if story, err := s.Story.Result(); err == nil {
		return story
	}
	return nil
}

// GalleryOrNil returns the generated art once it is ready.
func (s *State) GalleryOrNil() *assets.Gallery {
	if g, err := s.Art.Result(); err == nil {
		return g
	}
	return nil
}

// RecordBattle copies the battle outcome for later stages.
func (s *State) RecordBattle(won bool, transcript []string) {
	s.BattleWon = won
	s.BattleDone = true
	s.Transcript = append([]string(nil), transcript...)
}

// Record builds the persisted form of the run.
func (s *State) Record() *models.RunRecord {
	return &models.RunRecord{
		ID:         s.RunID,
		StartedAt:  s.StartedAt,
		FinishedAt: time.Now().UTC(),
		Answers:    s.answers,
		Story:      s.StoryOrNil(),
		BattleWon:  s.BattleWon,
		Transcript: s.Transcript,
	}
}
