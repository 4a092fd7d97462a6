package config

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// ErrMissingAPIKey is returned when live generation is requested without a key.
var ErrMissingAPIKey = errors.New("GEMINI_API_KEY environment variable is not set")

// Config holds the application configuration.
type Config struct {
	GeminiAPIKey string `env:"GEMINI_API_KEY"`
	Model        string `env:"GAMEGEN_MODEL" envDefault:"gemini-2.5-flash"`
	SaveDir      string `env:"GAMEGEN_SAVE_DIR" envDefault:".saves"`
	CacheDB      string `env:"GAMEGEN_CACHE_DB" envDefault:".saves/completions.db"`
	ImageURL     string `env:"GAMEGEN_IMAGE_URL"`
	ImageDir     string `env:"GAMEGEN_IMAGE_DIR" envDefault:".saves/images"`
	LogFile      string `env:"GAMEGEN_LOG_FILE" envDefault:"gamegen.log"`
	OTelEndpoint string `env:"GAMEGEN_OTEL_ENDPOINT"`

	// Flag-only settings.
	UseCache bool
	Replay   string
	List     bool
	PDFPath  string
	Seed     int64
}

// LoadConfig loads the configuration from an optional .env file, the
// environment, and then command-line flags.
func LoadConfig(fs *flag.FlagSet, args []string) (*Config, error) {
	// A missing .env is normal.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	fs.BoolVar(&cfg.UseCache, "cache", false, "use the canned story instead of live generation")
	fs.StringVar(&cfg.Replay, "replay", "", "replay the story of a saved run")
	fs.BoolVar(&cfg.List, "list", false, "list saved runs and exit")
	fs.StringVar(&cfg.PDFPath, "pdf", "", "export the finished run as a PDF storybook")
	fs.Int64Var(&cfg.Seed, "seed", 0, "battle random seed (0 picks one)")
	fs.StringVar(&cfg.Model, "model", cfg.Model, "Gemini model name")
	fs.StringVar(&cfg.SaveDir, "save-dir", cfg.SaveDir, "directory for saved runs")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if cfg.Live() && cfg.GeminiAPIKey == "" {
		return nil, ErrMissingAPIKey
	}
	return &cfg, nil
}

// Live reports whether content comes from the external generator.
func (c *Config) Live() bool {
	return !c.UseCache && c.Replay == "" && !c.List
}
