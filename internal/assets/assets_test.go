package assets

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tatianab/gamegen/internal/models"
)

type countingProvider struct {
	calls atomic.Int32
	delay time.Duration
	fail  map[string]bool
}

func (p *countingProvider) Portrait(_ context.Context, name string) (Handle, error) {
	p.calls.Add(1)
	time.Sleep(p.delay)
	if p.fail[name] {
		return Handle{}, errors.New("server down")
	}
	return Handle{Kind: KindPortrait, Name: name, Path: "/tmp/" + name}, nil
}

func (p *countingProvider) Background(_ context.Context, scene string) (Handle, error) {
	p.calls.Add(1)
	if p.fail[scene] {
		return Handle{}, errors.New("server down")
	}
	return Handle{Kind: KindBackground, Name: scene, Path: "/tmp/" + scene}, nil
}

func TestCacheIsIdempotent(t *testing.T) {
	inner := &countingProvider{}
	c := NewCache(inner)
	ctx := context.Background()

	first, err := c.Portrait(ctx, "Bob")
	if err != nil {
		t.Fatalf("portrait: %v", err)
	}
	second, err := c.Portrait(ctx, "Bob")
	if err != nil {
		t.Fatalf("portrait: %v", err)
	}
	if first != second {
		t.Errorf("Expected the same handle, got %+v and %+v", first, second)
	}
	if got := inner.calls.Load(); got != 1 {
		t.Errorf("Expected 1 provider call, got %d", got)
	}

	// Same name, different kind, is a different image.
	if _, err := c.Background(ctx, "Bob"); err != nil {
		t.Fatalf("background: %v", err)
	}
	if got := inner.calls.Load(); got != 2 {
		t.Errorf("Expected 2 provider calls, got %d", got)
	}
}

func TestCacheCollapsesConcurrentCalls(t *testing.T) {
	inner := &countingProvider{delay: 50 * time.Millisecond}
	c := NewCache(inner)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Portrait(context.Background(), "Vex"); err != nil {
				t.Errorf("portrait: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := inner.calls.Load(); got != 1 {
		t.Errorf("Expected concurrent calls to collapse into 1, got %d", got)
	}
}

func TestCacheDoesNotKeepFailures(t *testing.T) {
	inner := &countingProvider{fail: map[string]bool{"Bob": true}}
	c := NewCache(inner)

	if _, err := c.Portrait(context.Background(), "Bob"); err == nil {
		t.Fatal("Expected an error")
	}
	delete(inner.fail, "Bob")
	if _, err := c.Portrait(context.Background(), "Bob"); err != nil {
		t.Fatalf("Expected a retry to succeed, got %v", err)
	}
}

func TestPrefetchDegradesToPlaceholders(t *testing.T) {
	inner := &countingProvider{fail: map[string]bool{"Vex": true, models.SceneBattle: true}}
	story := &models.Story{
		Player: models.CharacterSheet{Name: "Bob"},
		Boss:   models.CharacterSheet{Name: "Vex"},
	}

	g, err := Prefetch(context.Background(), NewCache(inner), story)
	if err != nil {
		t.Fatalf("prefetch: %v", err)
	}
	if g.Portrait("Bob").Placeholder() {
		t.Error("Expected a real portrait for Bob")
	}
	if !g.Portrait("Vex").Placeholder() {
		t.Error("Expected a placeholder for Vex")
	}
	if !g.Background(models.SceneBattle).Placeholder() {
		t.Error("Expected a placeholder battle background")
	}
	if len(g.Backgrounds) != len(Scenes) {
		t.Errorf("Expected %d backgrounds, got %d", len(Scenes), len(g.Backgrounds))
	}
}

func TestStableDiffusionWritesAndReuses(t *testing.T) {
	png := []byte("\x89PNG fake image")
	var hits atomic.Int32
	var lastPrompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/sdapi/v1/txt2img" {
			http.NotFound(w, r)
			return
		}
		var req txt2imgRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		lastPrompt = req.Prompt
		json.NewEncoder(w).Encode(txt2imgResponse{Images: []string{base64.StdEncoding.EncodeToString(png)}})
	}))
	defer srv.Close()

	sd, err := NewStableDiffusion(srv.URL, t.TempDir())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	sd.RegisterCharacter("Bob the Builder", "hard hat, tool belt\nwide grin")

	h, err := sd.Portrait(context.Background(), "Bob the Builder")
	if err != nil {
		t.Fatalf("portrait: %v", err)
	}
	data, err := os.ReadFile(h.Path)
	if err != nil {
		t.Fatalf("read image: %v", err)
	}
	if string(data) != string(png) {
		t.Errorf("Expected image bytes to be written, got %q", data)
	}
	if !strings.HasSuffix(h.Path, "Bob_the_Builder_portrait.png") {
		t.Errorf("Expected a sanitized file name, got %s", h.Path)
	}
	if !strings.Contains(lastPrompt, "tool belt") || !strings.Contains(lastPrompt, "wide grin") {
		t.Errorf("Expected descriptors in the prompt, got %q", lastPrompt)
	}

	if _, err := sd.Portrait(context.Background(), "Bob the Builder"); err != nil {
		t.Fatalf("second portrait: %v", err)
	}
	if hits.Load() != 1 {
		t.Errorf("Expected the file on disk to be reused, got %d requests", hits.Load())
	}
}

func TestStableDiffusionServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	sd, err := NewStableDiffusion(srv.URL, t.TempDir())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := sd.Background(context.Background(), models.SceneTitle); err == nil {
		t.Fatal("Expected an error for a 503")
	}
}
