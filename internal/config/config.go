package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Upsert policies for redelivered call ids.
const (
	UpsertSkip  = "skip"
	UpsertMerge = "merge"
)

// Config holds all environment-driven settings.
type Config struct {
	HTTPPort       string
	DBPath         string
	SpoolDir       string
	EnableSpool    bool
	UpsertPolicy   string
	InitialBalance float64
	Environment    string
}

// fileConfig mirrors the optional YAML overlay. Pointer fields distinguish
// "not set" from zero values.
type fileConfig struct {
	HTTPPort       *string  `yaml:"http_port"`
	DBPath         *string  `yaml:"db_path"`
	SpoolDir       *string  `yaml:"spool_dir"`
	EnableSpool    *bool    `yaml:"enable_spool"`
	UpsertPolicy   *string  `yaml:"upsert_policy"`
	InitialBalance *float64 `yaml:"initial_balance"`
}

// Load reads configuration from an optional .env file, an optional YAML
// config file, and the environment. Environment variables win.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		HTTPPort:       "8080",
		DBPath:         "./calls.db",
		SpoolDir:       "./spool",
		EnableSpool:    false,
		UpsertPolicy:   UpsertSkip,
		InitialBalance: 5000,
		Environment:    "local",
	}

	applyFileConfig(&cfg, getenv("CONFIG_PATH", "config.yaml"))

	cfg.HTTPPort = getenv("PORT", cfg.HTTPPort)
	cfg.DBPath = getenv("DB_PATH", cfg.DBPath)
	cfg.SpoolDir = getenv("SPOOL_DIR", cfg.SpoolDir)
	cfg.EnableSpool = getenvBool("ENABLE_SPOOL", cfg.EnableSpool)
	cfg.UpsertPolicy = normalizePolicy(getenv("UPSERT_POLICY", cfg.UpsertPolicy))
	cfg.InitialBalance = getenvFloat("INITIAL_BALANCE", cfg.InitialBalance)
	cfg.Environment = getenv("ENVIRONMENT", cfg.Environment)

	log.Printf("config: db=%s port=%s upsert=%s spool=%v env=%s", cfg.DBPath, cfg.HTTPPort, cfg.UpsertPolicy, cfg.EnableSpool, cfg.Environment)
	return cfg
}

func applyFileConfig(cfg *Config, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		log.Printf("config: ignoring malformed %s: %v", path, err)
		return
	}
	if fc.HTTPPort != nil {
		cfg.HTTPPort = *fc.HTTPPort
	}
	if fc.DBPath != nil {
		cfg.DBPath = *fc.DBPath
	}
	if fc.SpoolDir != nil {
		cfg.SpoolDir = *fc.SpoolDir
	}
	if fc.EnableSpool != nil {
		cfg.EnableSpool = *fc.EnableSpool
	}
	if fc.UpsertPolicy != nil {
		cfg.UpsertPolicy = normalizePolicy(*fc.UpsertPolicy)
	}
	if fc.InitialBalance != nil {
		cfg.InitialBalance = *fc.InitialBalance
	}
}

func normalizePolicy(v string) string {
	if strings.ToLower(strings.TrimSpace(v)) == UpsertMerge {
		return UpsertMerge
	}
	return UpsertSkip
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getenvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

// Now returns utc time helper for deterministic timestamps.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}
