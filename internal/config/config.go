package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
	StoreSQLite = "sqlite"
)

type AppConfig struct {
	APIURL string `envconfig:"WEATHERSTACK_API_URL" default:"http://api.weatherstack.com" validate:"required,url"`
	APIKey string `envconfig:"WEATHERSTACK_API_KEY" validate:"required"`

	// HTTPTimeout bounds each outbound call (0 = no client timeout).
	HTTPTimeout time.Duration `envconfig:"HTTP_TIMEOUT" default:"10s" validate:"gte=0"`

	// Timezone calendar days are computed in; empty means the host's local zone.
	Timezone string `envconfig:"WEATHER_TIMEZONE"`

	CacheTTL       time.Duration `envconfig:"CACHE_TTL" default:"15m" validate:"gt=0"`
	CacheNamespace string        `envconfig:"CACHE_NAMESPACE" default:"ws-cache-v1" validate:"required"`

	StoreBackend    string `envconfig:"STORE_BACKEND" default:"memory" validate:"oneof=memory redis sqlite"`
	StoreMaxEntries int    `envconfig:"STORE_MAX_ENTRIES" default:"1000" validate:"gte=0"`
	SQLitePath      string `envconfig:"SQLITE_PATH" default:"weather-cache.db"`
	Redis           RedisConfig

	// Cache warm-up.
	WarmLocationsFile string        `envconfig:"WARM_LOCATIONS_FILE"`
	WarmInterval      time.Duration `envconfig:"WARM_INTERVAL" default:"15m" validate:"gte=0"`
	WarmLocations     []string      `ignored:"true"`

	LogFile string `envconfig:"LOG_FILE"`
	Port    string `envconfig:"PORT" default:"8080" validate:"required,numeric"`
}

// RedisConfig is read from REDIS_ADDR, REDIS_PASSWORD and REDIS_DB.
type RedisConfig struct {
	Addr     string `envconfig:"ADDR" default:"localhost:6379"`
	Password string `envconfig:"PASSWORD"`
	DB       int    `envconfig:"DB" default:"0" validate:"gte=0"`
}

// warmFile is the YAML layout of WARM_LOCATIONS_FILE.
type warmFile struct {
	Locations []string `yaml:"locations"`
}

var validate = validator.New()

// Load reads configuration from the environment (and .env, when present).
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}

	cfg := &AppConfig{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("error loading configuration data, %w", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if cfg.WarmLocationsFile != "" {
		locs, err := LoadWarmLocations(cfg.WarmLocationsFile)
		if err != nil {
			return nil, err
		}
		cfg.WarmLocations = locs
	}

	return cfg, nil
}

// Location resolves Timezone, defaulting to time.Local.
func (c *AppConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid WEATHER_TIMEZONE: %w", err)
	}
	return loc, nil
}

// LoadWarmLocations reads the list of queries to keep warm from a YAML file.
// Blank and duplicate entries are dropped.
func LoadWarmLocations(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read locations file %s: %w", path, err)
	}

	var f warmFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse locations file: %w", err)
	}

	seen := make(map[string]bool, len(f.Locations))
	locs := make([]string, 0, len(f.Locations))
	for _, l := range f.Locations {
		l = strings.TrimSpace(l)
		if l == "" || seen[l] {
			continue
		}
		seen[l] = true
		locs = append(locs, l)
	}
	return locs, nil
}
