// Package assets provides character portraits and scene backgrounds.
//
// Images are looked up by name. Providers may be slow, so every lookup goes
// through a Cache that makes repeated requests for the same name cheap and
// collapses concurrent ones into a single call.
package assets

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/tatianab/gamegen/internal/models"
)

// Kind separates portraits from backgrounds.
type Kind string

const (
	KindPortrait   Kind = "portrait"
	KindBackground Kind = "background"
)

// Handle refers to a generated image. Path is empty for placeholders.
type Handle struct {
	Kind Kind
	Name string
	Path string
}

// Placeholder reports whether the handle has no image behind it.
func (h Handle) Placeholder() bool {
	return h.Path == ""
}

// Provider produces images on demand.
type Provider interface {
	Portrait(ctx context.Context, name string) (Handle, error)
	Background(ctx context.Context, scene string) (Handle, error)
}

// Registrar is implemented by providers that need descriptors before drawing.
type Registrar interface {
	RegisterCharacter(name, descriptors string)
	RegisterScene(scene, descriptors string)
}

// Placeholder never draws anything.
type Placeholder struct{}

func (Placeholder) Portrait(_ context.Context, name string) (Handle, error) {
	return Handle{Kind: KindPortrait, Name: name}, nil
}

func (Placeholder) Background(_ context.Context, scene string) (Handle, error) {
	return Handle{Kind: KindBackground, Name: scene}, nil
}

// Cache memoizes a Provider by kind and name.
type Cache struct {
	next  Provider
	group singleflight.Group

	mu      sync.RWMutex
	handles map[string]Handle
}

// NewCache wraps next.
func NewCache(next Provider) *Cache {
	return &Cache{next: next, handles: map[string]Handle{}}
}

func (c *Cache) Portrait(ctx context.Context, name string) (Handle, error) {
	return c.get(ctx, KindPortrait, name, c.next.Portrait)
}

func (c *Cache) Background(ctx context.Context, scene string) (Handle, error) {
	return c.get(ctx, KindBackground, scene, c.next.Background)
}

// RegisterCharacter forwards to the wrapped provider when it needs descriptors.
func (c *Cache) RegisterCharacter(name, descriptors string) {
	if r, ok := c.next.(Registrar); ok {
		r.RegisterCharacter(name, descriptors)
	}
}

// RegisterScene forwards to the wrapped provider when it needs descriptors.
func (c *Cache) RegisterScene(scene, descriptors string) {
	if r, ok := c.next.(Registrar); ok {
		r.RegisterScene(scene, descriptors)
	}
}

func (c *Cache) get(ctx context.Context, kind Kind, name string, fetch func(context.Context, string) (Handle, error)) (Handle, error) {
	key := string(kind) + "/" + name

	c.mu.RLock()
	h, ok := c.handles[key]
	c.mu.RUnlock()
	if ok {
		return h, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		h, err := fetch(ctx, name)
		if err != nil {
			return Handle{}, err
		}
		c.mu.Lock()
		c.handles[key] = h
		c.mu.Unlock()
		return h, nil
	})
	if err != nil {
		return Handle{}, fmt.Errorf("%s %q: %w", kind, name, err)
	}
	return v.(Handle), nil
}

// Gallery is the art prepared for one run.
type Gallery struct {
	Portraits   map[string]Handle
	Backgrounds map[string]Handle
}

// Portrait returns the portrait for name, or a placeholder.
func (g *Gallery) Portrait(name string) Handle {
	if g != nil {
		if h, ok := g.Portraits[name]; ok {
			return h
		}
	}
	return Handle{Kind: KindPortrait, Name: name}
}

// Background returns the background for scene, or a placeholder.
func (g *Gallery) Background(scene string) Handle {
	if g != nil {
		if h, ok := g.Backgrounds[scene]; ok {
			return h
		}
	}
	return Handle{Kind: KindBackground, Name: scene}
}

// Scenes lists every background a run uses.
var Scenes = []string{
	models.SceneTitle,
	models.ScenePrologue,
	models.SceneBattle,
	models.SceneEpilogueVictory,
	models.SceneEpilogueDefeat,
}

// Prefetch draws every portrait and background the story needs. Failed
// images degrade to placeholders; only a cancelled ctx is an error.
func Prefetch(ctx context.Context, p Provider, story *models.Story) (*Gallery, error) {
	g := &Gallery{Portraits: map[string]Handle{}, Backgrounds: map[string]Handle{}}
	if story == nil {
		return g, nil
	}

	if r, ok := p.(Registrar); ok {
		r.RegisterCharacter(story.Player.Name, story.Player.Prompt)
		r.RegisterCharacter(story.Boss.Name, story.Boss.Prompt)
		for scene, prompt := range story.ScenePrompts {
			r.RegisterScene(scene, prompt)
		}
	}

	for _, name := range []string{story.Player.Name, story.Boss.Name} {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		h, err := p.Portrait(ctx, name)
		if err != nil {
			log.Printf("assets: %v", err)
			h = Handle{Kind: KindPortrait, Name: name}
		}
		g.Portraits[name] = h
	}
	for _, scene := range Scenes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		h, err := p.Background(ctx, scene)
		if err != nil {
			log.Printf("assets: %v", err)
			h = Handle{Kind: KindBackground, Name: scene}
		}
		g.Backgrounds[scene] = h
	}
	return g, nil
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// fileName turns a generated name into something safe to put on disk.
func fileName(name string, kind Kind) string {
	clean := strings.Trim(unsafeName.ReplaceAllString(name, "_"), "_")
	if clean == "" {
		clean = "unnamed"
	}
	return clean + "_" + string(kind) + ".png"
}
