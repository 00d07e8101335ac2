// Package config turns the TOML configuration file and the process
// environment into the typed settings the application is wired from.
//
// Precedence, highest first: environment variables, the configuration
// file, built-in defaults. Every file key can be overridden by the
// variable SMARTMARKET_<KEY> with dots replaced by underscores
// (search.semantic_weight -> SMARTMARKET_SEARCH_SEMANTIC_WEIGHT).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/Jeremy-Tarlie/smartmarket/internal/core/domain"
	"github.com/Jeremy-Tarlie/smartmarket/internal/core/ports/driven"
	"github.com/Jeremy-Tarlie/smartmarket/internal/textproc"
)

// EnvPrefix prefixes every override variable.
const EnvPrefix = "SMARTMARKET_"

// Config keys.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	KeyEmbedProvider    = "embedding.provider"
	KeyEmbedModel       = "embedding.model"
	KeyEmbedBaseURL     = "embedding.base_url"
	KeyEmbedAPIKey      = "embedding.api_key"
	KeyEmbedDimensions  = "embedding.dimensions"
	KeyEmbedTimeout     = "embedding.timeout"
	KeyEmbedAttempts    = "embedding.max_attempts"
	KeyEmbedRPS         = "embedding.requests_per_second"
	KeyEmbedBatchSize   = "embedding.batch_size"
	KeyLLMProvider      = "llm.provider"
	KeyLLMModel         = "llm.model"
	KeyLLMBaseURL       = "llm.base_url"
	KeyLLMAPIKey        = "llm.api_key"
	KeyLLMTimeout       = "llm.timeout"
	KeyLLMAttempts      = "llm.max_attempts"
	KeyLLMMaxTokens     = "llm.max_tokens"
	KeyLLMTemperature   = "llm.temperature"
	KeyLLMLanguage      = "llm.language"
	KeyRecOverFetch     = "recommend.over_fetch"
	KeyRecMMRLambda     = "recommend.mmr_lambda"
	KeyRecMinSimilarity = "recommend.min_similarity"
	KeySearchSemantic   = "search.semantic_weight"
	KeySearchLexical    = "search.lexical_weight"
	KeySearchOverFetch  = "search.over_fetch"
	KeySearchMinSim     = "search.min_similarity"
	KeySearchExpansions = "search.max_expansions"
	KeyAskTopN          = "assistant.top_n"
	KeyAskMinSimilarity = "assistant.min_similarity"
	KeyAskDirectScore   = "assistant.direct_answer_score"
	KeyAskExcerpt       = "assistant.excerpt_length"
	KeyAskChunkSize     = "assistant.chunk_size"
	KeyAskChunkOverlap  = "assistant.chunk_overlap"
	KeyTextLanguage     = "text.language"
	KeyCacheEnabled     = "cache.enabled"
	KeyCacheTTL         = "cache.ttl"
	KeyCacheMaxEntries  = "cache.max_entries"
	KeyBuildMinInterval = "build.min_interval"
	KeyBuildAttempts    = "build.max_attempts"
	KeyBuildBackoff     = "build.retry_backoff"
	KeyDataDir          = "storage.data_dir"
	KeyArtifactDir      = "storage.artifact_dir"
	KeyPromptDir        = "storage.prompt_dir"
	KeyCatalogDriver    = "catalog.driver"
	KeyCatalogDSN       = "catalog.dsn"
	KeyCatalogPath      = "catalog.path"
	KeyCatalogWatch     = "catalog.watch"
	KeyDocumentsDir     = "documents.dir"
	KeyServerAddr       = "server.addr"
	KeyServerRateLimit  = "server.rate_limit"
	KeySchedEnabled     = "scheduler.enabled"
	KeySchedRebuild     = "scheduler.rebuild_interval"
	KeySchedCachePurge  = "scheduler.cache_purge_interval"
	KeyVerbose          = "verbose"
)

// Catalog drivers.
const (
	CatalogJSON     = "json"
	CatalogPostgres = "postgres"
)

// CatalogConfig selects the catalog source.
type CatalogConfig struct {
	// Driver is "json" or "postgres".
	Driver string

	// DSN is the PostgreSQL connection string.
	DSN string

	// Path is the JSON catalog file.
	Path string

	// Watch rebuilds the product index when the JSON file changes.
	Watch bool
}

// Config is the fully resolved application configuration.
type Config struct {
	Retrieval domain.RetrievalSettings
	Catalog   CatalogConfig

	// DataDir holds the SQLite database.
	DataDir string

	// ArtifactDir holds persisted index generations.
	ArtifactDir string

	// PromptDir holds user-editable prompt templates.
	PromptDir string

	// DocumentsDir holds the knowledge base documents.
	DocumentsDir string

	// ServerAddr is the HTTP listen address.
	ServerAddr string

	// RateLimit caps requests per client and minute on the HTTP API. Zero disables it.
	RateLimit int

	// Scheduler drives background rebuilds while serving.
	Scheduler domain.SchedulerConfig

	// TextLanguage selects the Snowball stemmer applied to indexed and query text.
	TextLanguage string

	Verbose bool
}

// Lookup resolves an environment variable.
type Lookup func(key string) (string, bool)

// LoadDotEnv loads variables from .env files into the process environment
// without overriding variables already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// EnvName returns the override variable of a config key.
func EnvName(key string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// Load resolves the configuration from store and env.
// A nil env uses os.LookupEnv. Malformed values and invalid settings fail
// with domain.ErrValidation.
func Load(store driven.ConfigStore, env Lookup) (*Config, error) {
	if env == nil {
		env = os.LookupEnv
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting home directory: %w", err)
	}
	root := filepath.Join(home, ".smartmarket")

	r := &reader{store: store, env: env}
	def := domain.DefaultRetrievalSettings()

	cfg := &Config{
		DataDir:      r.getString(KeyDataDir, filepath.Join(root, "data")),
		ArtifactDir:  r.getString(KeyArtifactDir, filepath.Join(root, "artifacts")),
		PromptDir:    r.getString(KeyPromptDir, filepath.Join(root, "prompts")),
		DocumentsDir: r.getString(KeyDocumentsDir, filepath.Join(root, "documents")),
		ServerAddr:   r.getString(KeyServerAddr, ":8080"),
		TextLanguage: strings.ToLower(r.getString(KeyTextLanguage, textproc.DefaultLanguage)),
		RateLimit:    r.getInt(KeyServerRateLimit, 30),
		Verbose:      r.getBool(KeyVerbose, false),
		Catalog: CatalogConfig{
			Driver: r.getString(KeyCatalogDriver, ""),
			DSN:    r.getString(KeyCatalogDSN, ""),
			Path:   r.getString(KeyCatalogPath, filepath.Join(root, "catalog.json")),
			Watch:  r.getBool(KeyCatalogWatch, true),
		},
	}
	if cfg.Catalog.DSN == "" {
		cfg.Catalog.DSN, _ = env("DATABASE_URL")
	}
	if cfg.Catalog.Driver == "" {
		cfg.Catalog.Driver = CatalogJSON
		if cfg.Catalog.DSN != "" {
			cfg.Catalog.Driver = CatalogPostgres
		}
	}

	s := &cfg.Retrieval
	s.Embedding = r.embedding(def.Embedding)
	s.LLM = r.llm(def.LLM)
	s.Recommend = domain.RecommendSettings{
		OverFetch:     r.getInt(KeyRecOverFetch, def.Recommend.OverFetch),
		MMRLambda:     r.getFloat(KeyRecMMRLambda, def.Recommend.MMRLambda),
		MinSimilarity: r.getFloat(KeyRecMinSimilarity, def.Recommend.MinSimilarity),
	}
	s.Search = domain.SearchSettings{
		SemanticWeight: r.getFloat(KeySearchSemantic, def.Search.SemanticWeight),
		LexicalWeight:  r.getFloat(KeySearchLexical, def.Search.LexicalWeight),
		OverFetch:      r.getInt(KeySearchOverFetch, def.Search.OverFetch),
		MinSimilarity:  r.getFloat(KeySearchMinSim, def.Search.MinSimilarity),
		MaxExpansions:  r.getInt(KeySearchExpansions, def.Search.MaxExpansions),
	}
	s.Assistant = domain.AssistantSettings{
		TopN:              r.getInt(KeyAskTopN, def.Assistant.TopN),
		MinSimilarity:     r.getFloat(KeyAskMinSimilarity, def.Assistant.MinSimilarity),
		DirectAnswerScore: r.getFloat(KeyAskDirectScore, def.Assistant.DirectAnswerScore),
		ExcerptLength:     r.getInt(KeyAskExcerpt, def.Assistant.ExcerptLength),
		ChunkSize:         r.getInt(KeyAskChunkSize, def.Assistant.ChunkSize),
		ChunkOverlap:      r.getInt(KeyAskChunkOverlap, def.Assistant.ChunkOverlap),
	}
	s.Cache = domain.CacheSettings{
		Enabled:    r.getBool(KeyCacheEnabled, def.Cache.Enabled),
		TTL:        r.getDuration(KeyCacheTTL, def.Cache.TTL),
		MaxEntries: r.getInt(KeyCacheMaxEntries, def.Cache.MaxEntries),
	}
	s.Build = domain.BuildSettings{
		MinInterval:  r.getDuration(KeyBuildMinInterval, def.Build.MinInterval),
		MaxAttempts:  r.getInt(KeyBuildAttempts, def.Build.MaxAttempts),
		RetryBackoff: r.getDuration(KeyBuildBackoff, def.Build.RetryBackoff),
	}

	cfg.Scheduler = domain.NewSchedulerConfig(
		r.getDuration(KeySchedRebuild, domain.DefaultRebuildInterval),
		r.getDuration(KeySchedCachePurge, domain.DefaultCachePurgeInterval),
	)
	cfg.Scheduler.Enabled = r.getBool(KeySchedEnabled, true)

	if err := errors.Join(r.errs...); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks provider names, the catalog driver and the retrieval settings.
func (c *Config) Validate() error {
	if p := c.Retrieval.Embedding.Provider; !p.IsValid() || p == domain.AIProviderAnthropic {
		return fmt.Errorf("%w: embedding provider %q", domain.ErrValidation, p)
	}
	if p := c.Retrieval.LLM.Provider; !p.IsValid() {
		return fmt.Errorf("%w: llm provider %q", domain.ErrValidation, p)
	}
	if !slices.Contains(textproc.Languages, c.TextLanguage) {
		return fmt.Errorf("%w: text.language %q (supported: %s)",
			domain.ErrValidation, c.TextLanguage, strings.Join(textproc.Languages, ", "))
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("%w: server.rate_limit must not be negative", domain.ErrValidation)
	}
	switch c.Catalog.Driver {
	case CatalogJSON:
	case CatalogPostgres:
		if c.Catalog.DSN == "" {
			return fmt.Errorf("%w: catalog.dsn or DATABASE_URL is required for postgres", domain.ErrValidation)
		}
	default:
		return fmt.Errorf("%w: catalog driver %q", domain.ErrValidation, c.Catalog.Driver)
	}
	return c.Retrieval.Validate()
}

func (r *reader) embedding(def domain.EmbeddingSettings) domain.EmbeddingSettings {
	provider := domain.AIProvider(r.getString(KeyEmbedProvider, string(def.Provider)))
	model := r.getString(KeyEmbedModel, domain.DefaultEmbeddingModels()[provider])
	dims := def.Dimensions
	if known, ok := domain.EmbeddingDimensions()[model]; ok {
		dims = known
	}

	e := domain.EmbeddingSettings{
		Provider:          provider,
		Model:             model,
		BaseURL:           r.getString(KeyEmbedBaseURL, ""),
		APIKey:            r.getString(KeyEmbedAPIKey, ""),
		Dimensions:        r.getInt(KeyEmbedDimensions, dims),
		Timeout:           r.getDuration(KeyEmbedTimeout, def.Timeout),
		MaxAttempts:       r.getInt(KeyEmbedAttempts, def.MaxAttempts),
		RequestsPerSecond: r.getFloat(KeyEmbedRPS, def.RequestsPerSecond),
		BatchSize:         r.getInt(KeyEmbedBatchSize, def.BatchSize),
	}
	if e.APIKey == "" && provider == domain.AIProviderOpenAI {
		e.APIKey, _ = r.env("OPENAI_API_KEY")
	}
	if e.BaseURL == "" && provider == domain.AIProviderOllama {
		e.BaseURL, _ = r.env("OLLAMA_HOST")
	}
	return e
}

func (r *reader) llm(def domain.LLMSettings) domain.LLMSettings {
	provider := domain.AIProvider(r.getString(KeyLLMProvider, string(def.Provider)))

	l := domain.LLMSettings{
		Provider:    provider,
		Model:       r.getString(KeyLLMModel, domain.DefaultLLMModels()[provider]),
		BaseURL:     r.getString(KeyLLMBaseURL, ""),
		APIKey:      r.getString(KeyLLMAPIKey, ""),
		Timeout:     r.getDuration(KeyLLMTimeout, def.Timeout),
		MaxAttempts: r.getInt(KeyLLMAttempts, def.MaxAttempts),
		MaxTokens:   r.getInt(KeyLLMMaxTokens, def.MaxTokens),
		Temperature: float32(r.getFloat(KeyLLMTemperature, float64(def.Temperature))),
		Language:    r.getString(KeyLLMLanguage, def.Language),
	}
	if l.APIKey == "" {
		switch provider {
		case domain.AIProviderOpenAI:
			l.APIKey, _ = r.env("OPENAI_API_KEY")
		case domain.AIProviderAnthropic:
			l.APIKey, _ = r.env("ANTHROPIC_API_KEY")
		}
	}
	if l.BaseURL == "" && provider == domain.AIProviderOllama {
		l.BaseURL, _ = r.env("OLLAMA_HOST")
	}
	return l
}

// reader resolves keys from the environment first, then the store.
// Parse failures are collected in errs.
type reader struct {
	store driven.ConfigStore
	env   Lookup
	errs  []error
}

func (r *reader) lookupEnv(key string) (string, bool) {
	v, ok := r.env(EnvName(key))
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func (r *reader) fail(key, value, kind string) {
	r.errs = append(r.errs, fmt.Errorf("%s: %q is not a valid %s", key, value, kind))
}

func (r *reader) has(key string) bool {
	if r.store == nil {
		return false
	}
	_, ok := r.store.Get(key)
	return ok
}

func (r *reader) getString(key, def string) string {
	if v, ok := r.lookupEnv(key); ok {
		return v
	}
	if r.has(key) {
		if s := r.store.GetString(key); s != "" {
			return s
		}
	}
	return def
}

func (r *reader) getInt(key string, def int) int {
	if v, ok := r.lookupEnv(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			r.fail(key, v, "integer")
			return def
		}
		return n
	}
	if r.has(key) {
		return r.store.GetInt(key)
	}
	return def
}

func (r *reader) getFloat(key string, def float64) float64 {
	if v, ok := r.lookupEnv(key); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			r.fail(key, v, "number")
			return def
		}
		return f
	}
	if r.has(key) {
		return r.store.GetFloat(key)
	}
	return def
}

func (r *reader) getBool(key string, def bool) bool {
	if v, ok := r.lookupEnv(key); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			r.fail(key, v, "boolean")
			return def
		}
		return b
	}
	if r.has(key) {
		return r.store.GetBool(key)
	}
	return def
}

// getDuration accepts a Go duration ("30m") or a number of seconds.
func (r *reader) getDuration(key string, def time.Duration) time.Duration {
	if v, ok := r.lookupEnv(key); ok {
		d, err := parseDuration(v)
		if err != nil {
			r.fail(key, v, "duration")
			return def
		}
		return d
	}
	if !r.has(key) {
		return def
	}
	val, _ := r.store.Get(key)
	switch v := val.(type) {
	case string:
		d, err := parseDuration(v)
		if err != nil {
			r.fail(key, v, "duration")
			return def
		}
		return d
	case time.Duration:
		return v
	case int64, int, float64:
		return r.store.GetDuration(key)
	default:
		r.fail(key, fmt.Sprint(val), "duration")
		return def
	}
}

func parseDuration(s string) (time.Duration, error) {
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return time.Duration(secs * float64(time.Second)), nil
}
