// Package game wires content generation, art and persistence into a
// director configuration shared by the interactive and headless front ends.
package game

import (
	"context"
	"fmt"
	"log"

	"github.com/tatianab/gamegen/internal/assets"
	"github.com/tatianab/gamegen/internal/content"
	"github.com/tatianab/gamegen/internal/director"
	"github.com/tatianab/gamegen/internal/models"
	"github.com/tatianab/gamegen/internal/storybook"
)

// Options describe one run.
type Options struct {
	Storyteller *content.Storyteller
	Art         assets.Provider
	SaveDir     string
	PDFPath     string // empty skips the storybook
	Closers     []func() error
	Strict      bool
}

// Config builds the director configuration for the default pipeline.
func Config(opts Options) director.Config {
	teardown := []director.Teardown{SaveRun(opts.SaveDir)}
	if opts.PDFPath != "" {
		teardown = append(teardown, ExportPDF(opts.PDFPath))
	}
	if len(opts.Closers) > 0 {
		teardown = append(teardown, closeAll(opts.Closers))
	}
	return director.Config{
		Pipeline: director.DefaultPipeline(),
		Background: map[director.StageID]director.Dispatch{
			director.StageSetup: Generate(opts.Storyteller, opts.Art),
		},
		Teardown: teardown,
		Strict:   opts.Strict,
	}
}

// Generate starts the story job and then the art job. The worker runs them
// in order, so the art job finds the story already finished.
func Generate(st *content.Storyteller, art assets.Provider) director.Dispatch {
	return func(w *director.Worker, s *director.State) {
		answers, ok := s.Answers()
		if !ok {
			log.Printf("game: generation started before setup answers were recorded")
		}
		story := director.Submit(w, "story", func(ctx context.Context) (*models.Story, error) {
			return st.Generate(ctx, answers)
		})
		s.Story = story
		s.Art = director.Submit(w, "art", func(ctx context.Context) (*assets.Gallery, error) {
			generated, err := story.Wait(ctx)
			if err != nil {
				return nil, fmt.Errorf("no story to draw: %w", err)
			}
			return assets.Prefetch(ctx, art, generated)
		})
	}
}

// SaveRun persists the run record when the pipeline ends.
func SaveRun(dir string) director.Teardown {
	return func(s *director.State) error {
		if _, ok := s.Answers(); !ok {
			// Nothing happened worth keeping.
			return nil
		}
		rec := s.Record()
		if err := rec.Save(dir); err != nil {
			return fmt.Errorf("save run %s: %w", rec.ID, err)
		}
		log.Printf("game: saved run %s", rec.ID)
		return nil
	}
}

// ExportPDF writes the storybook of a finished run.
func ExportPDF(path string) director.Teardown {
	return func(s *director.State) error {
		if s.StoryOrNil() == nil {
			return nil
		}
		if err := storybook.WriteFile(path, s.Record(), s.GalleryOrNil()); err != nil {
			return fmt.Errorf("export storybook: %w", err)
		}
		log.Printf("game: wrote storybook to %s", path)
		return nil
	}
}

func closeAll(closers []func() error) director.Teardown {
	return func(*director.State) error {
		var first error
		for _, c := range closers {
			if err := c(); err != nil && first == nil {
				first = err
			}
		}
		return first
	}
}
