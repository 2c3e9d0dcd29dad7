// Package config loads sixmem settings from a YAML file, environment
// variables and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/rcliao/sixmem/internal/assemble"
	"github.com/rcliao/sixmem/internal/embedding"
	"github.com/rcliao/sixmem/internal/memory"
	"github.com/rcliao/sixmem/internal/model"
	"github.com/rcliao/sixmem/internal/rank"
)

const (
	DefaultBackend          = "sqlite"
	DefaultIndex            = "bruteforce"
	DefaultBudgetTokens     = 2000
	DefaultDimensionTimeout = time.Second
	DefaultEmbedTimeout     = 5 * time.Second
	DefaultCacheSize        = 10000
	DefaultChunkRunes       = 2000
	DefaultAddr             = "127.0.0.1:7777"
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "text"
)

type Config struct {
	Store     StoreConfig     `yaml:"store"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Search    SearchConfig    `yaml:"search"`
	Context   ContextConfig   `yaml:"context"`
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
}

type StoreConfig struct {
	Backend string `yaml:"backend"` // "sqlite" or "memory"
	Path    string `yaml:"path"`
}

type EmbeddingConfig struct {
	Provider string `yaml:"provider"` // "", "ollama", "openai" or "hash"
	Model    string `yaml:"model,omitempty"`
	URL      string `yaml:"url,omitempty"`
	APIKey   string `yaml:"api_key,omitempty"`
	Dims     int    `yaml:"dims,omitempty"`
	// CacheSize bounds the query embedding cache; zero disables it.
	CacheSize int64 `yaml:"cache_size"`
	// ChunkRunes splits longer texts and pools the chunk vectors; zero
	// sends texts whole.
	ChunkRunes int           `yaml:"chunk_runes"`
	Timeout    time.Duration `yaml:"timeout"`
}

type SearchConfig struct {
	Index                string        `yaml:"index"` // "bruteforce" or "chromem"
	DefaultLimit         int           `yaml:"default_limit"`
	CoreLimit            int           `yaml:"core_limit"`
	MinSimilarity        float64       `yaml:"min_similarity"`
	SimilarityWeight     float64       `yaml:"similarity_weight"`
	RecencyWeight        float64       `yaml:"recency_weight"`
	RecencyDecay         string        `yaml:"recency_decay"`
	RecencyHalfLife      time.Duration `yaml:"recency_half_life"`
	RecencyWindow        time.Duration `yaml:"recency_window"`
	ConfidenceWeight     float64       `yaml:"confidence_weight"`
	KnowledgeThreshold   float64       `yaml:"knowledge_threshold"`
	ExpansionMinStrength float64       `yaml:"expansion_min_strength"`
}

type ContextConfig struct {
	// BudgetChars wins over BudgetTokens when both are set.
	BudgetChars      int            `yaml:"budget_chars,omitempty"`
	BudgetTokens     int            `yaml:"budget_tokens"`
	DimensionTimeout time.Duration  `yaml:"dimension_timeout"`
	Concurrency      int            `yaml:"concurrency"`
	TrimOrder        []string       `yaml:"trim_order"`
	Caps             map[string]int `yaml:"caps"`
}

type ServerConfig struct {
	Addr        string   `yaml:"addr"`
	CORSOrigins []string `yaml:"cors_origins"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// Default returns the built-in configuration.
func Default() *Config {
	mc := memory.DefaultConfig()
	caps := make(map[string]int)
	for d, n := range rank.DefaultCaps() {
		caps[string(d)] = n
	}
	trim := make([]string, len(assemble.DefaultTrimOrder))
	for i, d := range assemble.DefaultTrimOrder {
		trim[i] = string(d)
	}
	return &Config{
		Store: StoreConfig{Backend: DefaultBackend, Path: DefaultDBPath()},
		Embedding: EmbeddingConfig{
			CacheSize:  DefaultCacheSize,
			ChunkRunes: DefaultChunkRunes,
			Timeout:    DefaultEmbedTimeout,
		},
		Search: SearchConfig{
			Index:                DefaultIndex,
			DefaultLimit:         mc.DefaultLimit,
			CoreLimit:            mc.CoreLimit,
			MinSimilarity:        mc.MinSimilarity,
			SimilarityWeight:     mc.SimilarityWeight,
			RecencyWeight:        mc.RecencyWeight,
			RecencyDecay:         mc.RecencyDecay,
			RecencyHalfLife:      mc.RecencyHalfLife,
			RecencyWindow:        mc.RecencyWindow,
			ConfidenceWeight:     mc.ConfidenceWeight,
			KnowledgeThreshold:   mc.KnowledgeConfidenceThreshold,
			ExpansionMinStrength: mc.ExpansionMinStrength,
		},
		Context: ContextConfig{
			BudgetTokens:     DefaultBudgetTokens,
			DimensionTimeout: DefaultDimensionTimeout,
			Concurrency:      len(model.Dimensions),
			TrimOrder:        trim,
			Caps:             caps,
		},
		Server: ServerConfig{Addr: DefaultAddr},
		Log:    LogConfig{Level: DefaultLogLevel, Format: DefaultLogFormat},
	}
}

func Dir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".sixmem")
}

func DefaultPath() string { return filepath.Join(Dir(), "config.yaml") }

func DefaultDBPath() string { return filepath.Join(Dir(), "memory.db") }

// Load reads path over the defaults and applies environment overrides. An
// empty path means $SIXMEM_CONFIG, then DefaultPath; only an explicitly
// named file must exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		if env := os.Getenv("SIXMEM_CONFIG"); env != "" {
			path, explicit = env, true
		} else {
			path = DefaultPath()
		}
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if db := os.Getenv("SIXMEM_DB"); db != "" {
		c.Store.Path = db
	}
	if backend := os.Getenv("SIXMEM_BACKEND"); backend != "" {
		c.Store.Backend = backend
	}
	if provider := os.Getenv("SIXMEM_EMBED_PROVIDER"); provider != "" {
		c.Embedding.Provider = provider
	}
	if m := os.Getenv("SIXMEM_EMBED_MODEL"); m != "" {
		c.Embedding.Model = m
	}
	if url := os.Getenv("SIXMEM_EMBED_URL"); url != "" {
		c.Embedding.URL = url
	}
	if dims := os.Getenv("SIXMEM_EMBED_DIMS"); dims != "" {
		if n, err := strconv.Atoi(dims); err == nil {
			c.Embedding.Dims = n
		}
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && c.Embedding.APIKey == "" {
		c.Embedding.APIKey = key
	}
	if host := os.Getenv("OLLAMA_HOST"); host != "" && c.Embedding.URL == "" && c.Embedding.Provider == "ollama" {
		if !strings.Contains(host, "://") {
			host = "http://" + host
		}
		c.Embedding.URL = host
	}
	if level := os.Getenv("SIXMEM_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
}

// BudgetChars resolves the context budget in characters at four characters
// per token.
func (c *Config) BudgetChars() int {
	if c.Context.BudgetChars > 0 {
		return c.Context.BudgetChars
	}
	return c.Context.BudgetTokens * 4
}

// Validate reports every inconsistent setting at once.
func (c *Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) { errs = append(errs, fmt.Errorf(format, args...)) }

	switch c.Store.Backend {
	case "sqlite":
		if c.Store.Path == "" {
			bad("store.path is required for the sqlite backend")
		}
	case "memory":
	default:
		bad("store.backend %q is not sqlite or memory", c.Store.Backend)
	}
	switch c.Embedding.Provider {
	case "", "none", "disabled", "ollama", "openai", "hash":
	default:
		bad("embedding.provider %q is not ollama, openai, hash or none", c.Embedding.Provider)
	}
	if c.Embedding.Dims < 0 {
		bad("embedding.dims must not be negative")
	}
	if c.Embedding.CacheSize < 0 {
		bad("embedding.cache_size must not be negative")
	}
	if c.Embedding.ChunkRunes < 0 {
		bad("embedding.chunk_runes must not be negative")
	}
	switch c.Search.Index {
	case "", "bruteforce", "chromem":
	default:
		bad("search.index %q is not bruteforce or chromem", c.Search.Index)
	}
	switch c.Search.RecencyDecay {
	case memory.DecayExponential, memory.DecayLinear:
	default:
		bad("search.recency_decay %q is not exponential or linear", c.Search.RecencyDecay)
	}
	for name, w := range map[string]float64{
		"search.similarity_weight": c.Search.SimilarityWeight,
		"search.recency_weight":    c.Search.RecencyWeight,
	} {
		if w < 0 {
			bad("%s must not be negative", name)
		}
	}
	for name, v := range map[string]float64{
		"search.min_similarity":         c.Search.MinSimilarity,
		"search.confidence_weight":      c.Search.ConfidenceWeight,
		"search.knowledge_threshold":    c.Search.KnowledgeThreshold,
		"search.expansion_min_strength": c.Search.ExpansionMinStrength,
	} {
		if v < 0 || v > 1 {
			bad("%s %v is outside [0, 1]", name, v)
		}
	}
	if n := utf8.RuneCountInString(assemble.EmptyMarker); c.BudgetChars() < n {
		bad("context budget of %d characters is smaller than the empty-context marker (%d)", c.BudgetChars(), n)
	}
	for _, s := range c.Context.TrimOrder {
		if d, ok := model.ParseDimension(s); !ok || d == model.DimensionRelationship {
			bad("context.trim_order: unknown dimension %q", s)
		}
	}
	for s, n := range c.Context.Caps {
		if d, ok := model.ParseDimension(s); !ok || d == model.DimensionRelationship {
			bad("context.caps: unknown dimension %q", s)
		} else if n < 0 {
			bad("context.caps.%s must not be negative", s)
		}
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		bad("log.format %q is not text or json", c.Log.Format)
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// MemoryConfig maps the search settings onto the managers' config.
func (c *Config) MemoryConfig() memory.Config {
	return memory.Config{
		EmbeddingDims:                c.Embedding.Dims,
		EmbedTimeout:                 c.Embedding.Timeout,
		CoreLimit:                    c.Search.CoreLimit,
		DefaultLimit:                 c.Search.DefaultLimit,
		MinSimilarity:                c.Search.MinSimilarity,
		SimilarityWeight:             c.Search.SimilarityWeight,
		RecencyWeight:                c.Search.RecencyWeight,
		RecencyDecay:                 c.Search.RecencyDecay,
		RecencyHalfLife:              c.Search.RecencyHalfLife,
		RecencyWindow:                c.Search.RecencyWindow,
		ConfidenceWeight:             c.Search.ConfidenceWeight,
		KnowledgeConfidenceThreshold: c.Search.KnowledgeThreshold,
		ExpansionMinStrength:         c.Search.ExpansionMinStrength,
	}
}

// AssembleConfig maps the context settings onto the assembler's config.
// Unknown dimension names are skipped; Validate reports them.
func (c *Config) AssembleConfig() assemble.Config {
	var order []model.Dimension
	for _, s := range c.Context.TrimOrder {
		if d, ok := model.ParseDimension(s); ok {
			order = append(order, d)
		}
	}
	return assemble.Config{
		BudgetChars:      c.BudgetChars(),
		EmbedTimeout:     c.Embedding.Timeout,
		DimensionTimeout: c.Context.DimensionTimeout,
		Concurrency:      c.Context.Concurrency,
		TrimOrder:        order,
	}
}

// Caps returns the per-dimension record caps.
func (c *Config) Caps() rank.Caps {
	caps := make(rank.Caps, len(c.Context.Caps))
	for s, n := range c.Context.Caps {
		if d, ok := model.ParseDimension(s); ok {
			caps[d] = n
		}
	}
	return caps
}

// EmbeddingOptions returns the provider settings.
func (c *Config) EmbeddingOptions() embedding.Options {
	return embedding.Options{
		Provider: c.Embedding.Provider,
		Model:    c.Embedding.Model,
		URL:      c.Embedding.URL,
		APIKey:   c.Embedding.APIKey,
		Dims:     c.Embedding.Dims,
	}
}

// NewLogger builds the structured logger described by the log settings.
func (c *Config) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Log.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func parseLevel(s string) (slog.Level, error) {
	if s == "" {
		return slog.LevelInfo, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log.level %q: %w", s, err)
	}
	return level, nil
}

// Save writes cfg as YAML to path, creating its directory.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
