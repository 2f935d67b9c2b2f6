package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	BaseURL    string
	DetailPath string
	PageSize   int
	MaxPages   int

	MaxConcurrency int
	RateLimitMs    int
	RateJitterMs   int
	RequestTimeout time.Duration
	MaxRetries     int
	FetchBackend   string
	ChromeBin      string
	UserAgent      string

	ExtendedFields bool
	SkipFailed     bool
	Overwrite      bool
	LogLevel       string

	SnapshotStore string
	OutputPath    string
	ListingsFile  string

	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string
	PostgresTable    string
}

// Fetch backends and snapshot stores understood by the CLI.
const (
	BackendHTTP    = "http"
	BackendBrowser = "browser"

	StoreTSV      = "tsv"
	StorePostgres = "postgres"
)

// MaxWorkers caps extraction concurrency regardless of configuration.
const MaxWorkers = 8

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		BaseURL:    getEnv("LISTING_BASE_URL", "https://www.rightmove.co.uk"),
		DetailPath: getEnv("DETAIL_PATH", "/properties/"),
		PageSize:   getEnvInt("PAGE_SIZE", 24),
		MaxPages:   getEnvInt("MAX_PAGES", 0),

		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 1),
		RateLimitMs:    getEnvInt("RATE_LIMIT_MS", 1000),
		RateJitterMs:   getEnvInt("RATE_JITTER_MS", 500),
		RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		FetchBackend:   getEnv("FETCH_BACKEND", BackendHTTP),
		ChromeBin:      getEnv("CHROME_BIN", ""),
		UserAgent: getEnv("USER_AGENT", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 "+
			"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),

		ExtendedFields: getEnvBool("EXTENDED_FIELDS", true),
		SkipFailed:     getEnvBool("SKIP_FAILED", false),
		Overwrite:      getEnvBool("OVERWRITE", true),
		LogLevel:       getEnv("LOG_LEVEL", "info"),

		SnapshotStore: getEnv("SNAPSHOT_STORE", StoreTSV),
		OutputPath:    getEnv("OUTPUT_PATH", ""),
		ListingsFile:  getEnv("LISTINGS_FILE", ""),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "scraper"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "scraper123"),
		PostgresDB:       getEnv("POSTGRES_DB", "rental_db"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		PostgresTable:    getEnv("POSTGRES_TABLE", "snapshot"),
	}
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.PageSize < 1 {
		return fmt.Errorf("config: PAGE_SIZE must be positive, got %d", c.PageSize)
	}
	if c.MaxPages < 0 {
		return fmt.Errorf("config: MAX_PAGES must not be negative, got %d", c.MaxPages)
	}
	if c.MaxConcurrency < 1 || c.MaxConcurrency > MaxWorkers {
		return fmt.Errorf("config: MAX_CONCURRENCY must be between 1 and %d, got %d", MaxWorkers, c.MaxConcurrency)
	}
	switch c.FetchBackend {
	case BackendHTTP, BackendBrowser:
	default:
		return fmt.Errorf("config: unknown FETCH_BACKEND %q", c.FetchBackend)
	}
	switch c.SnapshotStore {
	case StoreTSV:
		if c.OutputPath == "" {
			return fmt.Errorf("config: an output path is required for the tsv store")
		}
	case StorePostgres:
	default:
		return fmt.Errorf("config: unknown SNAPSHOT_STORE %q", c.SnapshotStore)
	}
	return nil
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

// Listing is one named search URL, e.g. a region.
type Listing struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

type listingsFile struct {
	Listings []Listing `yaml:"listings"`
}

// LoadListings reads a YAML file of search URLs.
func LoadListings(path string) ([]Listing, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read listings file: %w", err)
	}

	var f listingsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("config: parse listings file %q: %w", path, err)
	}

	out := make([]Listing, 0, len(f.Listings))
	for i, l := range f.Listings {
		l.URL = strings.TrimSpace(l.URL)
		if l.URL == "" {
			return nil, fmt.Errorf("config: listing %d in %q has no url", i, path)
		}
		out = append(out, l)
	}
	return out, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err == nil {
			return d
		}
	}
	return fallback
}
