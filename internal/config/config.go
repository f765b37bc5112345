package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/passbi/passbi_planner/internal/raptor"
)

// Config holds the settings of the planner API
type Config struct {
	Port        string `validate:"required,numeric"`
	LogLevel    string `validate:"oneof=debug info warn warning error"`
	GTFSPath    string
	MetricsAddr string
	UseCache    bool

	Planner Planner `yaml:"planner"`
}

// Planner tunes the journey searches. It can be overridden by the YAML file
// named in PLANNER_CONFIG.
type Planner struct {
	WalkSpeed       float64           `yaml:"walkSpeed" validate:"gt=0,lte=5"`
	MaxWalkDistance float64           `yaml:"maxWalkDistance" validate:"gt=0"`
	SearchWindow    int               `yaml:"searchWindow" validate:"gte=0,lte=86400"`
	Timeout         time.Duration     `yaml:"timeout" validate:"gt=0"`
	Slack           raptor.Slack      `yaml:"slack"`
	Costs           raptor.CostParams `yaml:"costs"`
}

func Load() (*Config, error) {
	// Load .env into environment (ignore if missing)
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnv("API_PORT", "8080"),
		LogLevel:    strings.ToLower(getEnv("LOG_LEVEL", "info")),
		GTFSPath:    os.Getenv("GTFS_PATH"),
		MetricsAddr: os.Getenv("METRICS_ADDR"),
		UseCache:    getEnv("USE_CACHE", "true") == "true",
		Planner: Planner{
			WalkSpeed:       1.4,
			MaxWalkDistance: 500,
			Timeout:         10 * time.Second,
			Slack:           raptor.Slack{Transfer: 180},
			Costs:           raptor.DefaultCostParams(),
		},
	}

	var err error
	p := &cfg.Planner
	if p.WalkSpeed, err = envFloat("WALK_SPEED", p.WalkSpeed); err != nil {
		return nil, err
	}
	if p.MaxWalkDistance, err = envFloat("MAX_WALK_DISTANCE", p.MaxWalkDistance); err != nil {
		return nil, err
	}
	if p.SearchWindow, err = envInt("SEARCH_WINDOW", p.SearchWindow); err != nil {
		return nil, err
	}
	if p.Slack.Board, err = envInt("BOARD_SLACK", p.Slack.Board); err != nil {
		return nil, err
	}
	if p.Slack.Alight, err = envInt("ALIGHT_SLACK", p.Slack.Alight); err != nil {
		return nil, err
	}
	if p.Slack.Transfer, err = envInt("TRANSFER_SLACK", p.Slack.Transfer); err != nil {
		return nil, err
	}
	if v := os.Getenv("SEARCH_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid SEARCH_TIMEOUT: %q", v)
		}
		p.Timeout = d
	}

	if path := os.Getenv("PLANNER_CONFIG"); path != "" {
		if err := loadPlannerFile(path, p); err != nil {
			return nil, err
		}
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// loadPlannerFile overlays the fields present in a YAML file
func loadPlannerFile(path string, p *Planner) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read planner config: %w", err)
	}
	var file struct {
		Planner *Planner `yaml:"planner"`
	}
	file.Planner = p
	if err := yaml.Unmarshal(b, &file); err != nil {
		return fmt.Errorf("parse planner config %s: %w", path, err)
	}
	return nil
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return n, nil
}

func envFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return f, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
