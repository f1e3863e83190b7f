// Package config holds the run configuration shared by every command.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"harvest/internal/dedup"
	"harvest/internal/scheduler"
	"harvest/internal/session"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "HARVEST_"

// Config holds harvest configuration.
type Config struct {
	BaseURL  string
	Lang     string
	Site     string
	Engine   string // rod or static
	Headless bool
	ProxyURL string

	BatchSize         int
	Concurrency       int
	NavigationTimeout time.Duration
	InterBatchDelay   time.Duration
	SettleDelay       time.Duration
	NextControlWait   time.Duration
	MaxPages          int

	BlockedResourceTypes []string
	FailurePolicy        string
	DedupKeys            string

	Store       string
	TargetsFile string
	RecordsFile string

	CheckpointSize      int
	CheckpointRedisAddr string
	CheckpointTTL       time.Duration

	MetricsAddr string
	LogLevel    string
	LogPretty   bool
}

// DefaultConfig returns the settings the catalog was tuned for.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:  "https://www.ditlep.com",
		Lang:     "pt-pt",
		Site:     "ditlep",
		Engine:   "rod",
		Headless: true,

		BatchSize:         50,
		Concurrency:       5,
		NavigationTimeout: 45 * time.Second,
		InterBatchDelay:   5 * time.Second,
		SettleDelay:       5 * time.Second,
		NextControlWait:   5 * time.Second,
		MaxPages:          -1,

		BlockedResourceTypes: []string{"image", "stylesheet", "font"},
		FailurePolicy:        string(scheduler.PolicyDrop),
		DedupKeys:            string(dedup.Coarse),

		TargetsFile: "json/namesAndUrls.json",
		RecordsFile: "json/dataResults.json",

		CheckpointSize: 4096,
		CheckpointTTL:  7 * 24 * time.Hour,

		LogLevel: "info",
	}
}

// LoadEnv applies HARVEST_* overrides read through getenv. A nil getenv reads
// the process environment.
func (c *Config) LoadEnv(getenv func(string) string) error {
	if getenv == nil {
		getenv = os.Getenv
	}
	e := envReader{getenv: getenv}

	e.str("BASE_URL", &c.BaseURL)
	e.str("LANG", &c.Lang)
	e.str("SITE", &c.Site)
	e.str("ENGINE", &c.Engine)
	e.boolean("HEADLESS", &c.Headless)
	e.str("PROXY", &c.ProxyURL)
	e.integer("BATCH_SIZE", &c.BatchSize)
	e.integer("CONCURRENCY", &c.Concurrency)
	e.duration("NAVIGATION_TIMEOUT", &c.NavigationTimeout)
	e.duration("INTER_BATCH_DELAY", &c.InterBatchDelay)
	e.duration("SETTLE_DELAY", &c.SettleDelay)
	e.duration("NEXT_CONTROL_WAIT", &c.NextControlWait)
	e.integer("MAX_PAGES", &c.MaxPages)
	e.list("BLOCKED_RESOURCE_TYPES", &c.BlockedResourceTypes)
	e.str("FAILURE_POLICY", &c.FailurePolicy)
	e.str("DEDUP_KEYS", &c.DedupKeys)
	e.str("STORE", &c.Store)
	e.str("TARGETS_FILE", &c.TargetsFile)
	e.str("RECORDS_FILE", &c.RecordsFile)
	e.integer("CHECKPOINT_SIZE", &c.CheckpointSize)
	e.str("CHECKPOINT_REDIS_ADDR", &c.CheckpointRedisAddr)
	e.duration("CHECKPOINT_TTL", &c.CheckpointTTL)
	e.str("METRICS_ADDR", &c.MetricsAddr)
	e.str("LOG_LEVEL", &c.LogLevel)
	e.boolean("LOG_PRETTY", &c.LogPretty)

	return e.err
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}
	parsed, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsed.Host == "" {
		return fmt.Errorf("base URL must include a host")
	}
	if c.Site == "" {
		return fmt.Errorf("site cannot be empty")
	}
	if c.Engine != "rod" && c.Engine != "static" {
		return fmt.Errorf("engine must be rod or static, got %q", c.Engine)
	}
	if c.ProxyURL != "" {
		if _, err := url.Parse(c.ProxyURL); err != nil {
			return fmt.Errorf("invalid proxy URL: %w", err)
		}
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive")
	}
	if c.NavigationTimeout <= 0 {
		return fmt.Errorf("navigation timeout must be positive")
	}
	if c.InterBatchDelay < 0 {
		return fmt.Errorf("inter-batch delay cannot be negative")
	}
	if c.SettleDelay < 0 {
		return fmt.Errorf("settle delay cannot be negative")
	}
	if c.NextControlWait <= 0 {
		return fmt.Errorf("next control wait must be positive")
	}
	if c.MaxPages == 0 || c.MaxPages < -1 {
		return fmt.Errorf("max pages must be positive or -1 for no limit")
	}
	if _, err := session.ParseBlockSet(c.BlockedResourceTypes); err != nil {
		return fmt.Errorf("blocked resource types: %w", err)
	}
	if _, err := scheduler.ParseFailurePolicy(c.FailurePolicy); err != nil {
		return err
	}
	if _, err := dedup.ParseKeying(c.DedupKeys); err != nil {
		return err
	}
	if c.Store == "" || c.Store == "json" {
		if c.TargetsFile == "" || c.RecordsFile == "" {
			return fmt.Errorf("targets and records files are required for the json store")
		}
	}
	if c.CheckpointSize < 0 {
		return fmt.Errorf("checkpoint size cannot be negative")
	}
	if c.CheckpointTTL < 0 {
		return fmt.Errorf("checkpoint ttl cannot be negative")
	}
	return nil
}

// envReader collects the first parse error so LoadEnv reads like a table.
type envReader struct {
	getenv func(string) string
	err    error
}

func (e *envReader) lookup(key string) (string, bool) {
	v := strings.TrimSpace(e.getenv(EnvPrefix + key))
	return v, v != ""
}

func (e *envReader) fail(key string, err error) {
	if e.err == nil {
		e.err = fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
	}
}

func (e *envReader) str(key string, dst *string) {
	if v, ok := e.lookup(key); ok {
		*dst = v
	}
}

func (e *envReader) integer(key string, dst *int) {
	v, ok := e.lookup(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(key, err)
		return
	}
	*dst = n
}

func (e *envReader) boolean(key string, dst *bool) {
	v, ok := e.lookup(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(key, err)
		return
	}
	*dst = b
}

func (e *envReader) duration(key string, dst *time.Duration) {
	v, ok := e.lookup(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(key, err)
		return
	}
	*dst = d
}

func (e *envReader) list(key string, dst *[]string) {
	v, ok := e.lookup(key)
	if !ok {
		return
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*dst = out
}
