package content

import (
	"context"
	"errors"
	"log"
	"strings"
)

// CompletionStore persists model answers between runs.
type CompletionStore interface {
	Lookup(ctx context.Context, model, prompt string) (string, bool, error)
	Save(ctx context.Context, model, prompt, completion string) error
}

var errEmptyAnswer = errors.New("empty answer")

type checkKey struct{}

// withCheck attaches the validation the caller will apply to the answer, so
// a cache in front of the model only keeps answers that pass it.
func withCheck(ctx context.Context, check func(string) error) context.Context {
	return context.WithValue(ctx, checkKey{}, check)
}

// checkAnswer rejects empty answers and anything the caller's check rejects.
func checkAnswer(ctx context.Context, out string) error {
	if strings.TrimSpace(out) == "" {
		return errEmptyAnswer
	}
	if check, ok := ctx.Value(checkKey{}).(func(string) error); ok && check != nil {
		return check(out)
	}
	return nil
}

// Cached answers repeated prompts from a store instead of the model. Only
// answers that pass validation are stored, and a stored answer that no longer
// validates is treated as a miss and overwritten.
type Cached struct {
	next  Completer
	store CompletionStore
	model string
}

// NewCached wraps next. model is part of the cache key.
func NewCached(next Completer, store CompletionStore, model string) *Cached {
	return &Cached{next: next, store: store, model: model}
}

func (c *Cached) Complete(ctx context.Context, prompt string) (string, error) {
	if out, ok, err := c.store.Lookup(ctx, c.model, prompt); err != nil {
		log.Printf("content: completion cache lookup: %v", err)
	} else if ok {
		if checkAnswer(ctx, out) == nil {
			return out, nil
		}
		log.Printf("content: cached completion failed validation, asking the model again")
	}

	out, err := c.next.Complete(ctx, prompt)
	if err != nil {
		return "", err
	}
	if err := checkAnswer(ctx, out); err != nil {
		// The caller reports the bad answer; keep it out of the store so a
		// retry reaches the model again.
		return out, nil
	}
	if err := c.store.Save(ctx, c.model, prompt, out); err != nil {
		log.Printf("content: completion cache save: %v", err)
	}
	return out, nil
}
