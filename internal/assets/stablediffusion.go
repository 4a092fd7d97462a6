package assets

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

var (
	negativePrompts = []string{
		"bad anatomy", "amputations", "missing head", "body out of frame",
		"face out of frame", "blurry", "nsfw",
	}
	portraitPrompts   = []string{"full color", "portrait", "head-shot", "face", "chest-up"}
	backgroundPrompts = []string{"full color", "landscape", "no people"}
)

// StableDiffusion draws images with an AUTOMATIC1111-compatible txt2img API
// and keeps them on disk. A file that already exists is reused.
type StableDiffusion struct {
	baseURL string
	dir     string
	client  *http.Client

	mu          sync.Mutex
	descriptors map[string][]string
}

// NewStableDiffusion stores images under dir.
func NewStableDiffusion(baseURL, dir string) (*StableDiffusion, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("image server url is required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create image dir: %w", err)
	}
	return &StableDiffusion{
		baseURL:     strings.TrimRight(baseURL, "/"),
		dir:         dir,
		client:      &http.Client{Timeout: 5 * time.Minute},
		descriptors: map[string][]string{},
	}, nil
}

// RegisterCharacter records the comma- or line-separated descriptors for name.
func (s *StableDiffusion) RegisterCharacter(name, descriptors string) {
	s.register(string(KindPortrait)+"/"+name, descriptors)
}

// RegisterScene records the descriptors for a background.
func (s *StableDiffusion) RegisterScene(scene, descriptors string) {
	s.register(string(KindBackground)+"/"+scene, descriptors)
}

func (s *StableDiffusion) register(key, descriptors string) {
	var parts []string
	for _, p := range strings.FieldsFunc(descriptors, func(r rune) bool { return r == ',' || r == '\n' }) {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.descriptors[key] = append(s.descriptors[key], parts...)
}

func (s *StableDiffusion) Portrait(ctx context.Context, name string) (Handle, error) {
	return s.draw(ctx, KindPortrait, name, portraitPrompts)
}

func (s *StableDiffusion) Background(ctx context.Context, scene string) (Handle, error) {
	return s.draw(ctx, KindBackground, scene, backgroundPrompts)
}

type txt2imgRequest struct {
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negative_prompt"`
	Steps          int    `json:"steps"`
	BatchSize      int    `json:"batch_size"`
	RestoreFaces   bool   `json:"restore_faces"`
}

type txt2imgResponse struct {
	Images []string `json:"images"`
}

func (s *StableDiffusion) draw(ctx context.Context, kind Kind, name string, base []string) (Handle, error) {
	h := Handle{Kind: kind, Name: name, Path: filepath.Join(s.dir, fileName(name, kind))}
	if _, err := os.Stat(h.Path); err == nil {
		return h, nil
	}

	s.mu.Lock()
	desc := append([]string(nil), s.descriptors[string(kind)+"/"+name]...)
	s.mu.Unlock()

	body, err := json.Marshal(txt2imgRequest{
		Prompt:         strings.Join(append(append([]string(nil), base...), desc...), ","),
		NegativePrompt: strings.Join(negativePrompts, ","),
		Steps:          50,
		BatchSize:      1,
		RestoreFaces:   kind == KindPortrait,
	})
	if err != nil {
		return Handle{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/sdapi/v1/txt2img", bytes.NewReader(body))
	if err != nil {
		return Handle{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return Handle{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Handle{}, fmt.Errorf("txt2img: %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}

	var out txt2imgResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Handle{}, fmt.Errorf("decode txt2img response: %w", err)
	}
	if len(out.Images) == 0 {
		return Handle{}, errors.New("txt2img returned no images")
	}

	// Some servers prefix the payload with a data URI.
	encoded := out.Images[0]
	if i := strings.Index(encoded, ","); i >= 0 && strings.HasPrefix(encoded, "data:") {
		encoded = encoded[i+1:]
	}
	img, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return Handle{}, fmt.Errorf("decode image: %w", err)
	}
	if err := os.WriteFile(h.Path, img, 0644); err != nil {
		return Handle{}, err
	}
	return h, nil
}
