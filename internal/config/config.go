package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/imrishuroy/go-procurement-workflow/internal/procurement"
)

// Storage backends.
const (
	StorageDynamoDB = "dynamodb"
	StorageSQLite   = "sqlite"
	StorageMemory   = "memory"
)

// Config is the runtime configuration of the API and worker.
type Config struct {
	Storage          string              `yaml:"storage"`
	SQLitePath       string              `yaml:"sqlite_path"`
	RequestsTable    string              `yaml:"requests_table"`
	IdempotencyTable string              `yaml:"idempotency_table"`
	IdempotencyTTL   time.Duration       `yaml:"idempotency_ttl"`
	EventsQueueURL   string              `yaml:"events_queue_url"`
	ExtractionURL    string              `yaml:"extraction_url"`
	CatalogPath      string              `yaml:"catalog_path"`
	RunLocal         bool                `yaml:"run_local"`
	Addr             string              `yaml:"addr"`
	Transitions      map[string][]string `yaml:"transitions"`
}

// Load reads configuration from the environment, then overlays the YAML file
// named by PROCUREMENT_CONFIG when set.
func Load() (Config, error) {
	cfg := Config{
		Storage:          getenvDefault("STORAGE", StorageDynamoDB),
		SQLitePath:       getenvDefault("SQLITE_PATH", "procurement.db"),
		RequestsTable:    os.Getenv("REQUESTS_TABLE"),
		IdempotencyTable: os.Getenv("IDEMPOTENCY_TABLE"),
		IdempotencyTTL:   48 * time.Hour,
		EventsQueueURL:   os.Getenv("EVENTS_QUEUE_URL"),
		ExtractionURL:    os.Getenv("EXTRACTION_URL"),
		CatalogPath:      os.Getenv("CATALOG_PATH"),
		RunLocal:         os.Getenv("RUN_LOCAL") == "true",
		Addr:             getenvDefault("ADDR", ":8080"),
	}
	if v := os.Getenv("IDEMPOTENCY_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("config: IDEMPOTENCY_TTL: %w", err)
		}
		cfg.IdempotencyTTL = d
	}

	if path := os.Getenv("PROCUREMENT_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: %s: %w", path, err)
		}
	}

	cfg.Storage = strings.ToLower(strings.TrimSpace(cfg.Storage))
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	switch c.Storage {
	case StorageDynamoDB:
		if c.RequestsTable == "" {
			return errors.New("config: REQUESTS_TABLE required for dynamodb storage")
		}
	case StorageSQLite:
		if c.SQLitePath == "" {
			return errors.New("config: sqlite_path required for sqlite storage")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("config: unknown storage %q", c.Storage)
	}
	if c.IdempotencyTTL <= 0 {
		return errors.New("config: idempotency ttl must be positive")
	}
	if _, err := c.TransitionTable(); err != nil {
		return err
	}
	return nil
}

// TransitionTable converts the configured transitions; nil when none are set.
func (c Config) TransitionTable() (procurement.TransitionTable, error) {
	if len(c.Transitions) == 0 {
		return nil, nil
	}
	table := procurement.TransitionTable{}
	for from, tos := range c.Transitions {
		f, err := procurement.ParseStatus(from)
		if err != nil {
			return nil, fmt.Errorf("config: transitions: %w", err)
		}
		for _, to := range tos {
			t, err := procurement.ParseStatus(to)
			if err != nil {
				return nil, fmt.Errorf("config: transitions from %s: %w", from, err)
			}
			table[f] = append(table[f], t)
		}
	}
	return table, nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}
