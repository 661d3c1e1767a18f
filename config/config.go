package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"acao/pkg/optimizer"
	"acao/pkg/suitability"
)

type AppConfig struct {
	Port             string
	Timezone         string
	DBPath           string
	LogMode          string
	LogLevel         string
	EnginePath       string
	WeatherScenario  string
	BulletinURL      string
	BulletinMaxBytes int
}

// Engine holds the tunables of scoring and optimization.
type Engine struct {
	Weights   suitability.Weights `yaml:"weights"`
	Optimizer optimizer.Config    `yaml:"optimizer"`
}

func DefaultEngine() Engine {
	return Engine{Weights: suitability.DefaultWeights(), Optimizer: optimizer.DefaultConfig()}
}

func (e Engine) Validate() error {
	if err := e.Weights.Validate(); err != nil {
		return err
	}
	return e.Optimizer.Validate()
}

func Load() AppConfig {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Printf("[cfg] No .env file found or error loading: %v", err)
	}

	get := func(k, def string) string {
		if v := os.Getenv(k); v != "" {
			return v
		}
		return def
	}
	maxBytes, err := strconv.Atoi(get("BULLETIN_MAX_BYTES", "2097152"))
	if err != nil || maxBytes <= 0 {
		maxBytes = 2 << 20
	}
	cfg := AppConfig{
		Port:             get("PORT", "8080"),
		Timezone:         get("TZ", "UTC"),
		DBPath:           get("DB_PATH", "acao.db"),
		LogMode:          get("LOG_MODE", "dev"),
		LogLevel:         get("LOG_LEVEL", "info"),
		EnginePath:       get("ENGINE_CONFIG", ""),
		WeatherScenario:  get("WEATHER_SCENARIO", "p50"),
		BulletinURL:      get("PRICE_BULLETIN_URL", ""),
		BulletinMaxBytes: maxBytes,
	}
	log.Printf("[cfg] %+v", cfg)
	return cfg
}

// LoadEngine reads the engine YAML at path over the defaults. An empty path yields
// the defaults.
func LoadEngine(path string) (Engine, error) {
	e := DefaultEngine()
	if path == "" {
		return e, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return e, fmt.Errorf("read engine config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &e); err != nil {
		return e, fmt.Errorf("parse engine config %s: %w", path, err)
	}
	if err := e.Validate(); err != nil {
		return e, err
	}
	return e, nil
}
