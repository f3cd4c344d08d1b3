// Package config loads HERMES configuration from a YAML file merged with
// environment variable overrides (prefix HERMES_).
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hermes-search/hermes/internal/herrors"
)

// ChunkingConfig controls the chunkers (C3).
type ChunkingConfig struct {
	MaxChars     int `yaml:"max_chars"`
	OverlapLines int `yaml:"overlap_lines"`
	MinChars     int `yaml:"min_chars"`
}

// EmbedConfig controls the bi-encoder/cross-encoder capabilities and the
// query embedding cache (C8).
type EmbedConfig struct {
	BiEncoderModel        string `yaml:"biencoder_model"`
	BiEncoderBatchSize     int    `yaml:"biencoder_batch_size"`
	CrossEncoderModel      string `yaml:"crossencoder_model"`
	CrossEncoderBatchSize  int    `yaml:"crossencoder_batch_size"`
	QueryCacheSize         int    `yaml:"query_cache_size"`
}

// IndexConfig controls the dense index (C5).
type IndexConfig struct {
	UseANN    bool `yaml:"use_ann"`
	ANNNlist  int  `yaml:"ann_nlist"`
	ANNNprobe int  `yaml:"ann_nprobe"`
}

// SearchConfig controls the search pipeline (C10).
type SearchConfig struct {
	TopKRetrieve         int           `yaml:"top_k_retrieve"`
	TopKRerank           int           `yaml:"top_k_rerank"`
	MaxRerankCandidates  int           `yaml:"max_rerank_candidates"`
	RerankTimeout        time.Duration `yaml:"rerank_timeout_seconds"`
	RetrievalMode        string        `yaml:"retrieval_mode"`
	RRFK                 int           `yaml:"rrf_k"`
}

// Config is the complete HERMES configuration.
type Config struct {
	ArtifactsDir string         `yaml:"artifacts_dir"`
	LogLevel     string         `yaml:"log_level"`
	LogJSON      bool           `yaml:"log_json"`
	Chunking     ChunkingConfig `yaml:"chunking"`
	Embed        EmbedConfig    `yaml:"embed"`
	Index        IndexConfig    `yaml:"index"`
	Search       SearchConfig   `yaml:"search"`
}

// Default returns the documented default configuration, matching the
// original Python implementation's defaults.
func Default() Config {
	return Config{
		ArtifactsDir: "artifacts",
		LogLevel:     "info",
		LogJSON:      false,
		Chunking: ChunkingConfig{
			MaxChars:     1500,
			OverlapLines: 3,
			MinChars:     50,
		},
		Embed: EmbedConfig{
			BiEncoderModel:        "hermes-hash-encoder",
			BiEncoderBatchSize:    64,
			CrossEncoderModel:     "hermes-lexical-reranker",
			CrossEncoderBatchSize: 16,
			QueryCacheSize:        1024,
		},
		Index: IndexConfig{
			UseANN:    false,
			ANNNlist:  100,
			ANNNprobe: 8,
		},
		Search: SearchConfig{
			TopKRetrieve:        100,
			TopKRerank:          10,
			MaxRerankCandidates: 50,
			RerankTimeout:       10 * time.Second,
			RetrievalMode:       "dense",
			RRFK:                60,
		},
	}
}

// Load reads a YAML config file (if path is non-empty and exists), merges
// in environment variable overrides, validates the result, and returns it.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, herrors.IoError(err, "reading config file %q", path)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, herrors.ConfigInvalid("parsing config file %q: %v", path, err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnvOverrides mutates cfg in place from HERMES_-prefixed environment
// variables. Unknown keys are ignored, per spec.
func applyEnvOverrides(cfg *Config) {
	if v, ok := lookupEnv("HERMES_ARTIFACTS_DIR"); ok {
		cfg.ArtifactsDir = v
	}
	if v, ok := lookupEnv("HERMES_LOG_LEVEL"); ok {
		cfg.LogLevel = v
	}
	if v, ok := lookupEnvBool("HERMES_LOG_JSON"); ok {
		cfg.LogJSON = v
	}
	if v, ok := lookupEnvInt("HERMES_CHUNK_MAX_CHARS"); ok {
		cfg.Chunking.MaxChars = v
	}
	if v, ok := lookupEnvInt("HERMES_CHUNK_OVERLAP_LINES"); ok {
		cfg.Chunking.OverlapLines = v
	}
	if v, ok := lookupEnvInt("HERMES_CHUNK_MIN_CHARS"); ok {
		cfg.Chunking.MinChars = v
	}
	if v, ok := lookupEnvInt("HERMES_EMBED_QUERY_CACHE_SIZE"); ok {
		cfg.Embed.QueryCacheSize = v
	}
	if v, ok := lookupEnvBool("HERMES_INDEX_USE_ANN"); ok {
		cfg.Index.UseANN = v
	}
	if v, ok := lookupEnvInt("HERMES_INDEX_ANN_NLIST"); ok {
		cfg.Index.ANNNlist = v
	}
	if v, ok := lookupEnvInt("HERMES_INDEX_ANN_NPROBE"); ok {
		cfg.Index.ANNNprobe = v
	}
	if v, ok := lookupEnvInt("HERMES_SEARCH_TOP_K_RETRIEVE"); ok {
		cfg.Search.TopKRetrieve = v
	}
	if v, ok := lookupEnvInt("HERMES_SEARCH_TOP_K_RERANK"); ok {
		cfg.Search.TopKRerank = v
	}
	if v, ok := lookupEnvInt("HERMES_SEARCH_MAX_RERANK_CANDIDATES"); ok {
		cfg.Search.MaxRerankCandidates = v
	}
	if v, ok := lookupEnv("HERMES_SEARCH_RERANK_TIMEOUT_SECONDS"); ok {
		if seconds, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Search.RerankTimeout = time.Duration(seconds * float64(time.Second))
		}
	}
	if v, ok := lookupEnv("HERMES_SEARCH_RETRIEVAL_MODE"); ok {
		cfg.Search.RetrievalMode = v
	}
	if v, ok := lookupEnvInt("HERMES_SEARCH_RRF_K"); ok {
		cfg.Search.RRFK = v
	}
}

func lookupEnv(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

func lookupEnvInt(key string) (int, bool) {
	v, ok := lookupEnv(key)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func lookupEnvBool(key string) (bool, bool) {
	v, ok := lookupEnv(key)
	if !ok {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}

func validate(cfg Config) error {
	if cfg.Chunking.MaxChars <= 0 {
		return herrors.ConfigInvalid("chunking.max_chars must be positive, got %d", cfg.Chunking.MaxChars)
	}
	if cfg.Chunking.MinChars <= 0 || cfg.Chunking.MinChars > cfg.Chunking.MaxChars {
		return herrors.ConfigInvalid("chunking.min_chars must be in (0, max_chars], got %d", cfg.Chunking.MinChars)
	}
	if cfg.Chunking.OverlapLines < 0 {
		return herrors.ConfigInvalid("chunking.overlap_lines must be >= 0, got %d", cfg.Chunking.OverlapLines)
	}
	switch cfg.Search.RetrievalMode {
	case "dense", "sparse", "hybrid":
	default:
		return herrors.ConfigInvalid("search.retrieval_mode must be dense|sparse|hybrid, got %q", cfg.Search.RetrievalMode)
	}
	if cfg.Search.TopKRetrieve < 1 || cfg.Search.TopKRetrieve > 1000 {
		return herrors.ConfigInvalid("search.top_k_retrieve must be in [1,1000], got %d", cfg.Search.TopKRetrieve)
	}
	if cfg.Search.TopKRerank < 1 || cfg.Search.TopKRerank > 200 {
		return herrors.ConfigInvalid("search.top_k_rerank must be in [1,200], got %d", cfg.Search.TopKRerank)
	}
	if cfg.Search.RRFK <= 0 {
		return herrors.ConfigInvalid("search.rrf_k must be positive, got %d", cfg.Search.RRFK)
	}
	if cfg.Index.ANNNlist <= 0 {
		return herrors.ConfigInvalid("index.ann_nlist must be positive, got %d", cfg.Index.ANNNlist)
	}
	return nil
}
