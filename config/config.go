// Package config reads the checker's settings from the environment, after
// loading a .env file when one is present.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/rfielding/kripke-atlk/atlk"
	"github.com/rfielding/kripke-atlk/bdd"
)

type Config struct {
	Variant       string
	Observability string
	Semantics     string
	Workers       int

	Filtering  bool
	Separation string
	Early      string
	Threshold  float64
	Caching    bool
	CacheSize  int

	BDDNodes int
	BDDCache int

	LogLevel    string
	MetricsAddr string
}

// Load reads the ATLK_* variables. Values are only checked for syntax here;
// Options reports unknown names.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Variant:       getenv("ATLK_VARIANT", "sf"),
		Observability: getenv("ATLK_OBSERVABILITY", "partial"),
		Semantics:     getenv("ATLK_SEMANTICS", "group"),
		Separation:    getenv("ATLK_PARTIAL_SEPARATION", "none"),
		Early:         getenv("ATLK_PARTIAL_EARLY", "none"),
		LogLevel:      getenv("ATLK_LOG_LEVEL", "info"),
		MetricsAddr:   strings.TrimSpace(os.Getenv("ATLK_METRICS_ADDR")),
	}

	var err error
	if cfg.Workers, err = intEnv("ATLK_WORKERS", runtime.NumCPU()); err != nil {
		return nil, err
	}
	if cfg.Filtering, err = boolEnv("ATLK_PARTIAL_FILTERING", true); err != nil {
		return nil, err
	}
	if cfg.Caching, err = boolEnv("ATLK_PARTIAL_CACHING", false); err != nil {
		return nil, err
	}
	if cfg.CacheSize, err = intEnv("ATLK_PARTIAL_CACHE_SIZE", 1024); err != nil {
		return nil, err
	}
	if cfg.BDDNodes, err = intEnv("ATLK_BDD_NODES", 0); err != nil {
		return nil, err
	}
	if cfg.BDDCache, err = intEnv("ATLK_BDD_CACHE", 0); err != nil {
		return nil, err
	}
	raw := getenv("ATLK_PARTIAL_THRESHOLD", "0.5")
	if cfg.Threshold, err = strconv.ParseFloat(raw, 64); err != nil {
		return nil, fmt.Errorf("ATLK_PARTIAL_THRESHOLD=%q: %w", raw, err)
	}
	return cfg, nil
}

// Options maps the configuration onto evaluator options.
func (c *Config) Options(logger *slog.Logger) (atlk.Options, error) {
	o := atlk.DefaultOptions()
	var err error
	if o.Variant, err = atlk.ParseVariant(c.Variant); err != nil {
		return o, err
	}
	if o.Observability, err = atlk.ParseObservability(c.Observability); err != nil {
		return o, err
	}
	if o.Semantics, err = atlk.ParseSemantics(c.Semantics); err != nil {
		return o, err
	}
	if o.Partial.Separation, err = atlk.ParseSeparation(c.Separation); err != nil {
		return o, err
	}
	if o.Partial.Early, err = atlk.ParseEarly(c.Early); err != nil {
		return o, err
	}
	o.Workers = c.Workers
	o.Partial.Filtering = c.Filtering
	o.Partial.Threshold = c.Threshold
	o.Partial.Caching = c.Caching
	o.Partial.CacheSize = c.CacheSize
	o.Logger = logger
	return o, nil
}

// BDDOptions sizes the BDD engine; zero values keep its defaults.
func (c *Config) BDDOptions() []bdd.Option {
	var opts []bdd.Option
	if c.BDDNodes > 0 {
		opts = append(opts, bdd.Nodesize(c.BDDNodes))
	}
	if c.BDDCache > 0 {
		opts = append(opts, bdd.Cachesize(c.BDDCache))
	}
	return opts
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log level %q: %w", c.LogLevel, err)
	}
	return l, nil
}

func getenv(k, def string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	return v
}

func intEnv(k string, def int) (int, error) {
	raw := os.Getenv(k)
	if strings.TrimSpace(raw) == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%s=%q: %w", k, raw, err)
	}
	return n, nil
}

func boolEnv(k string, def bool) (bool, error) {
	raw := os.Getenv(k)
	if strings.TrimSpace(raw) == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return false, fmt.Errorf("%s=%q: %w", k, raw, err)
	}
	return b, nil
}
