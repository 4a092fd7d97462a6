// Package director sequences the stages of a run.
//
// A Director walks a fixed pipeline of stage ids, building one stage at a
// time through a factory. Each stage receives the shared State and a
// Completion it must call exactly once when it is finished. Content
// generation is handed to a single background Worker after a chosen stage
// completes; stages marked Gated are not built until that content is ready.
package director

import (
	"context"
	"errors"
	"fmt"
	"log"
)

// StageID names a stage of the pipeline.
type StageID string

const (
	StageSetup            StageID = "setup"
	StageLoading          StageID = "loading"
	StageTitle            StageID = "title"
	StagePrologue         StageID = "prologue"
	StageCutscenePrologue StageID = "cutscene-prologue"
	StageBattle           StageID = "battle"
	StageCutsceneEpilogue StageID = "cutscene-epilogue"
	StageEpilogue         StageID = "epilogue"
	StageCredits          StageID = "credits"
)

// Stage is one entry of the pipeline.
type Stage struct {
	ID    StageID
	Gated bool // wait for generated content before building
}

// DefaultPipeline is the full game flow.
func DefaultPipeline() []Stage {
	return []Stage{
		{ID: StageSetup},
		{ID: StageLoading},
		{ID: StageTitle},
		{ID: StagePrologue, Gated: true},
		{ID: StageCutscenePrologue, Gated: true},
		{ID: StageBattle, Gated: true},
		{ID: StageCutsceneEpilogue},
		{ID: StageEpilogue},
		{ID: StageCredits},
	}
}

// ErrUnknownStage is returned when the pipeline names a stage with no factory.
var ErrUnknownStage = errors.New("no factory for stage")

// Completion is handed to every stage. Done must be called exactly once.
type Completion interface {
	Done()
}

// Factory builds the stage for id.
type Factory[S any] func(state *State, done Completion) S

// Dispatch submits background jobs when a stage completes. It runs on the
// main loop and may store the returned futures in State.
type Dispatch func(w *Worker, state *State)

// Teardown runs once after the last stage.
type Teardown func(state *State) error

// Config describes a run.
type Config struct {
	Pipeline   []Stage
	Background map[StageID]Dispatch
	Teardown   []Teardown
	// Strict panics on a repeated Done instead of ignoring it.
	Strict bool
}

// Director drives the pipeline.
type Director[S any] struct {
	ctx       context.Context
	cfg       Config
	state     *State
	factories map[StageID]Factory[S]
	worker    *Worker

	cursor    int
	current   S
	currentID StageID
	finished  bool
	tornDown  bool
	err       error
}

// New prepares a director. Nothing is built until Start.
func New[S any](ctx context.Context, state *State, cfg Config, factories map[StageID]Factory[S]) *Director[S] {
	if cfg.Pipeline == nil {
		cfg.Pipeline = DefaultPipeline()
	}
	return &Director[S]{
		ctx:       ctx,
		cfg:       cfg,
		state:     state,
		factories: factories,
		worker:    NewWorker(ctx, 8),
	}
}

// Start builds the first stage.
func (d *Director[S]) Start() error {
	if d.cursor != 0 || d.finished {
		return nil
	}
	return d.advance()
}

// Current returns the active stage.
func (d *Director[S]) Current() (S, StageID) { return d.current, d.currentID }

// State returns the shared run state.
func (d *Director[S]) State() *State { return d.state }

// Finished reports whether the pipeline ran to completion.
func (d *Director[S]) Finished() bool { return d.finished }

// Err returns the error that stopped the pipeline, if any.
func (d *Director[S]) Err() error { return d.err }

// Upcoming returns the next stage in the pipeline, if there is one.
func (d *Director[S]) Upcoming() (Stage, bool) {
	if d.cursor >= len(d.cfg.Pipeline) {
		return Stage{}, false
	}
	return d.cfg.Pipeline[d.cursor], true
}

// Close stops the worker and runs teardown if the pipeline never got there.
func (d *Director[S]) Close() {
	d.teardown()
}

func (d *Director[S]) complete(id StageID) {
	if dispatch, ok := d.cfg.Background[id]; ok {
		dispatch(d.worker, d.state)
	}
	if err := d.advance(); err != nil {
		d.err = err
	}
}

func (d *Director[S]) advance() error {
	if d.finished || d.err != nil {
		return d.err
	}
	if d.cursor >= len(d.cfg.Pipeline) {
		d.teardown()
		d.finished = true
		return nil
	}

	stage := d.cfg.Pipeline[d.cursor]
	d.cursor++

	factory, ok := d.factories[stage.ID]
	if !ok {
		d.err = fmt.Errorf("%w: %s", ErrUnknownStage, stage.ID)
		return d.err
	}
	if stage.Gated {
		if err := d.state.WaitContent(d.ctx); err != nil {
			d.err = fmt.Errorf("stage %s: %w", stage.ID, err)
			return d.err
		}
	}

	done := &completion[S]{d: d, id: stage.ID}
	s := factory(d.state, done)
	// A stage that finished during construction has already advanced the
	// pipeline; keep the newer stage.
	if !done.fired {
		d.current = s
		d.currentID = stage.ID
	}
	return nil
}

func (d *Director[S]) teardown() {
	if d.tornDown {
		return
	}
	d.tornDown = true
	// Background jobs stop before the resources they use are released.
	d.worker.Close()
	for _, fn := range d.cfg.Teardown {
		if err := fn(d.state); err != nil {
			log.Printf("director: teardown: %v", err)
		}
	}
}

type completion[S any] struct {
	d     *Director[S]
	id    StageID
	fired bool
}

func (c *completion[S]) Done() {
	if c.fired {
		if c.d.cfg.Strict {
			panic(fmt.Sprintf("director: stage %s completed twice", c.id))
		}
		log.Printf("director: ignoring repeated completion of stage %s", c.id)
		return
	}
	c.fired = true
	c.d.complete(c.id)
}
