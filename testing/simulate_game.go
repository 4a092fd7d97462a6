// Command simulate_game plays a whole run without a terminal: it answers the
// setup questions, prints every chapter and lets the player side pick
// actions at random during the battle.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"strings"

	"github.com/tatianab/gamegen/internal/assets"
	"github.com/tatianab/gamegen/internal/battle"
	"github.com/tatianab/gamegen/internal/config"
	"github.com/tatianab/gamegen/internal/content"
	"github.com/tatianab/gamegen/internal/director"
	"github.com/tatianab/gamegen/internal/game"
	"github.com/tatianab/gamegen/internal/models"
	"github.com/tatianab/gamegen/internal/random"
)

type stage struct {
	play func()
}

func main() {
	log.SetPrefix("[SIM] ")
	ctx := context.Background()

	cfg, err := config.LoadConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	var (
		provider content.Provider
		closers  []func() error
	)
	switch {
	case cfg.Replay != "":
		provider, err = content.LoadReplay(cfg.SaveDir, cfg.Replay)
	case cfg.UseCache:
		provider, err = content.NewCanned()
	default:
		var llm *content.GeminiCompleter
		llm, err = content.NewGeminiCompleter(ctx, cfg.GeminiAPIKey, cfg.Model)
		if err == nil {
			provider = content.NewResilient(content.NewLive(llm))
			closers = append(closers, llm.Close)
		}
	}
	if err != nil {
		log.Fatalf("Failed to create content provider: %v", err)
	}

	rng, err := random.New(cfg.Seed)
	if err != nil {
		log.Fatalf("Failed to seed rng: %v", err)
	}

	st := content.NewStoryteller(provider)
	d := director.New(ctx, director.NewState(), game.Config(game.Options{
		Storyteller: st,
		Art:         assets.Placeholder{},
		SaveDir:     cfg.SaveDir,
		PDFPath:     cfg.PDFPath,
		Closers:     closers,
		Strict:      true,
	}), factories(ctx, rng))
	defer d.Close()

	if err := d.Start(); err != nil {
		log.Fatalf("Failed to start: %v", err)
	}
	for !d.Finished() {
		if err := d.Err(); err != nil {
			log.Fatalf("Run stopped: %v", err)
		}
		s, id := d.Current()
		log.Printf("stage %s", id)
		s.play()
	}

	state := d.State()
	fmt.Printf("\nRun %s finished: won=%t after %d battle lines\n", state.RunID, state.BattleWon, len(state.Transcript))
}

func factories(ctx context.Context, rng *rand.Rand) map[director.StageID]director.Factory[*stage] {
	return map[director.StageID]director.Factory[*stage]{
		director.StageSetup: func(s *director.State, done director.Completion) *stage {
			return &stage{play: func() {
				a := models.SetupAnswers{Name: "Robin", Occupation: "cartographer", Traits: "never lost, always late"}
				if err := s.SetAnswers(a); err != nil {
					log.Fatalf("Failed to record answers: %v", err)
				}
				fmt.Printf("--- Setup ---\n%s the %s (%s)\n\n", a.Name, a.Occupation, a.Traits)
				done.Done()
			}}
		},
		director.StageLoading: func(_ *director.State, done director.Completion) *stage {
			return &stage{play: done.Done}
		},
		director.StageTitle: func(s *director.State, done director.Completion) *stage {
			return &stage{play: func() {
				if err := s.WaitContent(ctx); err != nil {
					log.Fatalf("Generation failed: %v", err)
				}
				story := s.StoryOrNil()
				fmt.Printf("=== %s ===\na %s tale, %s\n\n", story.Title, story.Genre, story.Tone)
				done.Done()
			}}
		},
		director.StagePrologue: func(s *director.State, done director.Completion) *stage {
			return chapter("Prologue", s.StoryOrNil().Prologue, done)
		},
		director.StageCutscenePrologue: func(s *director.State, done director.Completion) *stage {
			return cutscene(s.StoryOrNil().PrologueDialogue, done)
		},
		director.StageBattle: func(s *director.State, done director.Completion) *stage {
			return &stage{play: func() {
				story := s.StoryOrNil()
				won, transcript := fight(story, rng)
				s.RecordBattle(won, transcript)
				done.Done()
			}}
		},
		director.StageCutsceneEpilogue: func(s *director.State, done director.Completion) *stage {
			return cutscene(s.StoryOrNil().EpilogueDialogue(s.BattleWon), done)
		},
		director.StageEpilogue: func(s *director.State, done director.Completion) *stage {
			return chapter("Epilogue", s.StoryOrNil().Epilogue(s.BattleWon), done)
		},
		director.StageCredits: func(_ *director.State, done director.Completion) *stage {
			return &stage{play: func() {
				fmt.Println("THE END")
				done.Done()
			}}
		},
	}
}

func chapter(title, body string, done director.Completion) *stage {
	return &stage{play: func() {
		fmt.Printf("--- %s ---\n%s\n\n", title, strings.TrimSpace(body))
		done.Done()
	}}
}

func cutscene(lines models.Dialogue, done director.Completion) *stage {
	return &stage{play: func() {
		for _, l := range lines {
			fmt.Printf("%s: %s\n", l.Speaker, l.Line)
		}
		fmt.Println()
		done.Done()
	}}
}

// fight plays the battle with random player choices and skips the display
// pauses.
func fight(story *models.Story, rng *rand.Rand) (bool, []string) {
	eng, err := battle.New(story.Player, story.Boss, battle.Options{Rand: rng})
	if err != nil {
		log.Fatalf("Failed to start battle: %v", err)
	}
	fmt.Printf("--- Battle: %s vs %s ---\n", story.Player.Name, story.Boss.Name)
	printed := 0
	for !eng.Finished() {
		if eng.Phase() == battle.PlayerChoosing {
			if rng.IntN(4) == 0 {
				eng.SelectMainCategory(1)
			}
			for range rng.IntN(4) {
				eng.SelectSubAction(1)
			}
			if _, err := eng.ConfirmAction(); err != nil {
				// Empty category or spent items, fall back to the attack menu.
				eng.SelectMainCategory(1)
				if _, err := eng.ConfirmAction(); err != nil {
					log.Fatalf("Player cannot act: %v", err)
				}
			}
		}
		eng.Advance(eng.Dwell())
		for _, line := range eng.Transcript()[printed:] {
			fmt.Println(line)
			printed++
		}
	}
	p, b := eng.Player(), eng.Boss()
	fmt.Printf("%s %d/%d HP, %s %d/%d HP after %d turns\n\n", p.Name, p.Health, p.MaxHealth, b.Name, b.Health, b.MaxHealth, eng.Turns())
	return eng.Victory(), eng.Transcript()
}
