package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"busboard/internal/services/quality"
)

type Config struct {
	Env             string
	ListenAddr      string
	DatabaseURL     string
	ProcessInterval time.Duration
	OCRServiceURL   string
	OCRTimeout      time.Duration
	ImageDir        string
	RulesFile       string
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func Load() (Config, error) {
	cfg := Config{
		Env:             getenv("APP_ENV", "development"),
		ListenAddr:      getenv("LISTEN_ADDR", ":8080"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		ProcessInterval: getenvDuration("PROCESS_INTERVAL", time.Minute),
		OCRServiceURL:   os.Getenv("OCR_SERVICE_URL"),
		OCRTimeout:      getenvDuration("OCR_TIMEOUT", 30*time.Second),
		ImageDir:        getenv("IMAGE_DIR", "data/images"),
		RulesFile:       os.Getenv("RULES_FILE"),
	}
	if cfg.DatabaseURL == "" {
		// Not fatal for early local runs; warn via error value so callers can decide.
		return cfg, fmt.Errorf("DATABASE_URL not set")
	}
	return cfg, nil
}

// LoadRules reads the validation rule set. An unset path means the built-in
// defaults; a set path must parse, since silently falling back would let a
// typo loosen validation.
func LoadRules(path string) (quality.Rules, error) {
	rules := quality.DefaultRules()
	if path == "" {
		return rules, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return quality.Rules{}, fmt.Errorf("read rules file: %w", err)
	}
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return quality.Rules{}, fmt.Errorf("parse rules file %s: %w", path, err)
	}
	return rules, nil
}
