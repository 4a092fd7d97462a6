package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tatianab/gamegen/internal/assets"
	"github.com/tatianab/gamegen/internal/cache"
	"github.com/tatianab/gamegen/internal/config"
	"github.com/tatianab/gamegen/internal/content"
	"github.com/tatianab/gamegen/internal/director"
	"github.com/tatianab/gamegen/internal/game"
	"github.com/tatianab/gamegen/internal/models"
	"github.com/tatianab/gamegen/internal/random"
	"github.com/tatianab/gamegen/internal/telemetry"
	"github.com/tatianab/gamegen/internal/tui"
)

func main() {
	if err := run(); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	cfg, err := config.LoadConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		if errors.Is(err, config.ErrMissingAPIKey) {
			return fmt.Errorf("%w (run with -cache to play the built-in story)", err)
		}
		return err
	}

	if cfg.List {
		ids, err := models.ListRuns(cfg.SaveDir)
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Println(id)
		}
		return nil
	}

	f, err := tea.LogToFile(cfg.LogFile, "gamegen")
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	shutdown, err := telemetry.Setup(ctx, cfg.OTelEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdown(context.WithoutCancel(ctx)); err != nil {
			log.Printf("telemetry shutdown: %v", err)
		}
	}()

	provider, closers, err := newProvider(ctx, cfg)
	if err != nil {
		return err
	}

	var art assets.Provider = assets.Placeholder{}
	if cfg.ImageURL != "" {
		sd, err := assets.NewStableDiffusion(cfg.ImageURL, cfg.ImageDir)
		if err != nil {
			return err
		}
		art = sd
	}

	rng, err := random.New(cfg.Seed)
	if err != nil {
		return err
	}

	st := content.NewStoryteller(provider)
	d := director.New(ctx, director.NewState(), game.Config(game.Options{
		Storyteller: st,
		Art:         assets.NewCache(art),
		SaveDir:     cfg.SaveDir,
		PDFPath:     cfg.PDFPath,
		Closers:     closers,
	}), tui.Factories(tui.Options{Progress: st.Progress, Rand: rng}))
	defer d.Close()

	log.Printf("starting run %s (live=%t, model=%s)", d.State().RunID, cfg.Live(), cfg.Model)
	return tui.Run(d)
}

// newProvider picks the content source: a saved run, the built-in story or
// the live model behind the completion cache.
func newProvider(ctx context.Context, cfg *config.Config) (content.Provider, []func() error, error) {
	switch {
	case cfg.Replay != "":
		c, err := content.LoadReplay(cfg.SaveDir, cfg.Replay)
		if err != nil {
			return nil, nil, err
		}
		return c, nil, nil
	case cfg.UseCache:
		c, err := content.NewCanned()
		if err != nil {
			return nil, nil, err
		}
		return c, nil, nil
	}

	llm, err := content.NewGeminiCompleter(ctx, cfg.GeminiAPIKey, cfg.Model)
	if err != nil {
		return nil, nil, err
	}
	store, err := cache.Open(cfg.CacheDB)
	if err != nil {
		llm.Close()
		return nil, nil, err
	}
	live := content.NewLive(content.NewCached(llm, store, llm.Model()))
	return content.NewResilient(live), []func() error{store.Close, llm.Close}, nil
}
