package content

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/tatianab/gamegen/internal/models"
)

// DefaultAttempts is how many times a failing call is tried.
const DefaultAttempts = 3

// Resilient retries a Provider and falls back to placeholder content once
// the attempts run out, so generation never stops on a bad answer.
type Resilient struct {
	next     Provider
	Attempts int
	Backoff  time.Duration // grows linearly with each attempt

	fallbacks atomic.Int32
}

// NewResilient wraps next with the default retry policy.
func NewResilient(next Provider) *Resilient {
	return &Resilient{next: next, Attempts: DefaultAttempts, Backoff: 500 * time.Millisecond}
}

// Fallbacks reports how many answers were replaced by placeholders.
func (r *Resilient) Fallbacks() int { return int(r.fallbacks.Load()) }

func try[T any](ctx context.Context, r *Resilient, op string, fallback T, fn func(context.Context) (T, error)) (T, error) {
	attempts := max(r.Attempts, 1)
	var err error
	for i := 1; i <= attempts; i++ {
		var v T
		v, err = fn(ctx)
		if err == nil {
			return v, nil
		}
		log.Printf("content: %s failed, attempt %d of %d: %v", op, i, attempts, err)
		if ctx.Err() != nil {
			return fallback, ctx.Err()
		}
		if i < attempts && r.Backoff > 0 {
			select {
			case <-time.After(r.Backoff * time.Duration(i)):
			case <-ctx.Done():
				return fallback, ctx.Err()
			}
		}
	}
	r.fallbacks.Add(1)
	log.Printf("content: %s: using placeholder after %d attempts: %v", op, attempts, err)
	return fallback, nil
}

func (r *Resilient) Genre(ctx context.Context, b Brief) (string, error) {
	return try(ctx, r, "genre", "adventure", func(ctx context.Context) (string, error) {
		return nonEmpty(r.next.Genre(ctx, b))
	})
}

func (r *Resilient) Tone(ctx context.Context, b Brief) (string, error) {
	return try(ctx, r, "tone", "bold and colorful", func(ctx context.Context) (string, error) {
		return nonEmpty(r.next.Tone(ctx, b))
	})
}

func (r *Resilient) Prologue(ctx context.Context, b Brief) (string, error) {
	fallback := fmt.Sprintf("%s the %s set out to face a great evil.", b.Answers.Name, b.Answers.Occupation)
	return try(ctx, r, "prologue", fallback, func(ctx context.Context) (string, error) {
		return nonEmpty(r.next.Prologue(ctx, b))
	})
}

func (r *Resilient) CharacterDescription(ctx context.Context, b Brief, role Role) (string, error) {
	return try(ctx, r, "description", "A figure whose face is hard to make out.", func(ctx context.Context) (string, error) {
		return nonEmpty(r.next.CharacterDescription(ctx, b, role))
	})
}

func (r *Resilient) Descriptors(ctx context.Context, b Brief, role Role) (string, error) {
	return try(ctx, r, "descriptors", "", func(ctx context.Context) (string, error) {
		return nonEmpty(r.next.Descriptors(ctx, b, role))
	})
}

func (r *Resilient) StatBlock(ctx context.Context, b Brief, role Role) (StatBlock, error) {
	// A partial block from the last attempt beats an empty one.
	var last StatBlock
	sb, err := try(ctx, r, "stat block", StatBlock{}, func(ctx context.Context) (StatBlock, error) {
		sb, err := r.next.StatBlock(ctx, b, role)
		if len(sb.Attacks)+len(sb.Items) > len(last.Attacks)+len(last.Items) {
			last = sb
		}
		if err == nil && len(sb.Attacks) == 0 {
			err = fmt.Errorf("no usable attacks")
		}
		if err != nil {
			return last, err
		}
		return sb, nil
	})
	if err == nil && len(sb.Attacks)+len(sb.Items) == 0 {
		return last, nil
	}
	return sb, err
}

func (r *Resilient) BossName(ctx context.Context, b Brief) (string, error) {
	return try(ctx, r, "boss name", "The Nameless One", func(ctx context.Context) (string, error) {
		return nonEmpty(r.next.BossName(ctx, b))
	})
}

func (r *Resilient) Ending(ctx context.Context, b Brief, won bool) (string, error) {
	fallback := fmt.Sprintf("%s fell, and the story ended in silence.", b.Answers.Name)
	if won {
		fallback = fmt.Sprintf("%s stood victorious, and the land was at peace.", b.Answers.Name)
	}
	return try(ctx, r, "ending", fallback, func(ctx context.Context) (string, error) {
		return nonEmpty(r.next.Ending(ctx, b, won))
	})
}

func (r *Resilient) Dialogue(ctx context.Context, b Brief, moment Moment) (models.Dialogue, error) {
	return try(ctx, r, "dialogue", models.Dialogue{}, func(ctx context.Context) (models.Dialogue, error) {
		d, err := r.next.Dialogue(ctx, b, moment)
		if err == nil && len(d) == 0 {
			err = fmt.Errorf("no lines")
		}
		return d, err
	})
}

func (r *Resilient) Title(ctx context.Context, b Brief) (string, error) {
	return try(ctx, r, "title", "Untitled Adventure", func(ctx context.Context) (string, error) {
		return nonEmpty(r.next.Title(ctx, b))
	})
}

func (r *Resilient) ScenePrompt(ctx context.Context, b Brief, scene string) (string, error) {
	return try(ctx, r, "scene "+scene, "", func(ctx context.Context) (string, error) {
		return nonEmpty(r.next.ScenePrompt(ctx, b, scene))
	})
}

func nonEmpty(s string, err error) (string, error) {
	if err == nil && s == "" {
		err = fmt.Errorf("empty answer")
	}
	return s, err
}
