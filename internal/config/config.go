// Package config loads corerag's configuration: hardcoded defaults, then an
// optional YAML file, then environment variables, in increasing precedence.
// Unknown option names are rejected at every layer.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	corerrors "github.com/ragforge/corerag/internal/errors"
)

// Config is the flat set of named options the core consumes, per the
// external-interfaces option table.
type Config struct {
	DocumentsDir             string  `yaml:"documents_dir"`
	DataDir                  string  `yaml:"data_dir"`
	VectorStoreURI           string  `yaml:"vector_store_uri"`
	EmbeddingEndpoint        string  `yaml:"embedding_endpoint"`
	EmbeddingModel           string  `yaml:"embedding_model"`
	EmbeddingBatchSize       int     `yaml:"embedding_batch_size"`
	EmbeddingConcurrency     int     `yaml:"embedding_concurrency"`
	ChunkSize                int     `yaml:"chunk_size"`
	ChunkOverlap             int     `yaml:"chunk_overlap"`
	MinChunkSize             int     `yaml:"min_chunk_size"`
	WatcherDebounceMS        int     `yaml:"watcher_debounce_ms"`
	WatcherMaxQueue          int     `yaml:"watcher_max_queue"`
	MaxConcurrentProcessing  int     `yaml:"max_concurrent_processing"`
	SemanticScoreThreshold   float64 `yaml:"semantic_score_threshold"`
	HybridRRFK               int     `yaml:"hybrid_rrf_k"`
	TopKDefault              int     `yaml:"top_k_default"`

	// Ambient, not in spec's option table, but needed to run the process:
	LogLevel   string `yaml:"log_level"`
	LogFile    string `yaml:"log_file"`
	ServerName string `yaml:"server_name"`
}

// allowedKeys mirrors the yaml tags above; used to reject unknown names.
var allowedKeys = map[string]struct{}{
	"documents_dir": {}, "data_dir": {}, "vector_store_uri": {},
	"embedding_endpoint": {}, "embedding_model": {}, "embedding_batch_size": {},
	"embedding_concurrency": {}, "chunk_size": {}, "chunk_overlap": {},
	"min_chunk_size": {}, "watcher_debounce_ms": {}, "watcher_max_queue": {},
	"max_concurrent_processing": {}, "semantic_score_threshold": {},
	"hybrid_rrf_k": {}, "top_k_default": {}, "log_level": {}, "log_file": {},
	"server_name": {},
}

// envOverrides maps CORERAG_* environment variables onto Config fields.
var envOverrides = map[string]func(*Config, string) error{
	"CORERAG_DOCUMENTS_DIR":      func(c *Config, v string) error { c.DocumentsDir = v; return nil },
	"CORERAG_DATA_DIR":           func(c *Config, v string) error { c.DataDir = v; return nil },
	"CORERAG_VECTOR_STORE_URI":   func(c *Config, v string) error { c.VectorStoreURI = v; return nil },
	"CORERAG_EMBEDDING_ENDPOINT": func(c *Config, v string) error { c.EmbeddingEndpoint = v; return nil },
	"CORERAG_EMBEDDING_MODEL":    func(c *Config, v string) error { c.EmbeddingModel = v; return nil },
	"CORERAG_LOG_LEVEL":          func(c *Config, v string) error { c.LogLevel = v; return nil },
	"CORERAG_EMBEDDING_BATCH_SIZE": func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		c.EmbeddingBatchSize = n
		return nil
	},
	"CORERAG_EMBEDDING_CONCURRENCY": func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		c.EmbeddingConcurrency = n
		return nil
	},
	"CORERAG_TOP_K_DEFAULT": func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		c.TopKDefault = n
		return nil
	},
	"CORERAG_SEMANTIC_SCORE_THRESHOLD": func(c *Config, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		c.SemanticScoreThreshold = f
		return nil
	},
	"CORERAG_HYBRID_RRF_K": func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		c.HybridRRFK = n
		return nil
	},
}

// Default returns the hardcoded baseline configuration.
func Default() *Config {
	return &Config{
		DataDir:                 "./.corerag",
		VectorStoreURI:          "",
		EmbeddingModel:          "nomic-embed-text",
		EmbeddingEndpoint:       "http://localhost:11434",
		EmbeddingBatchSize:      12,
		EmbeddingConcurrency:    4,
		ChunkSize:               800,
		ChunkOverlap:            120,
		MinChunkSize:            64,
		WatcherDebounceMS:       200,
		WatcherMaxQueue:         50,
		MaxConcurrentProcessing: 2,
		SemanticScoreThreshold:  0.0,
		HybridRRFK:              60,
		TopKDefault:             10,
		LogLevel:                "info",
		ServerName:              "corerag",
	}
}

// Load builds a Config from defaults, an optional YAML file at path, and
// environment variables, in that order of precedence. path may be empty.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := cfg.loadYAML(path); err != nil {
				return nil, err
			}
		} else if !os.IsNotExist(err) {
			return nil, corerrors.Initialization(corerrors.CodeStoreUnreadable,
				"cannot stat config file "+path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.VectorStoreURI == "" {
		cfg.VectorStoreURI = cfg.DataDir + "/lancedb"
	}

	return cfg, nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return corerrors.Initialization(corerrors.CodeStoreUnreadable, "read config file", err)
	}

	if err := rejectUnknownKeys(data); err != nil {
		return err
	}

	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		return corerrors.Validation(corerrors.CodeUnknownOption, "parse config file "+path, err)
	}
	return nil
}

// rejectUnknownKeys walks the raw YAML mapping and errors on any top-level
// key outside allowedKeys, since yaml.Decoder.KnownFields only rejects
// keys that don't map to a struct field — which is the same set here, but
// this gives a clearer validation error naming the offending key.
func rejectUnknownKeys(data []byte) error {
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return corerrors.Validation(corerrors.CodeUnknownOption, "parse config as mapping", err)
	}
	for key := range raw {
		if _, ok := allowedKeys[key]; !ok {
			return corerrors.Validation(corerrors.CodeUnknownOption,
				fmt.Sprintf("unknown configuration option %q", key), nil)
		}
	}
	return nil
}

func (c *Config) applyEnv() error {
	for _, kv := range os.Environ() {
		name, _, _ := strings.Cut(kv, "=")
		if !strings.HasPrefix(name, "CORERAG_") {
			continue
		}
		if _, ok := envOverrides[name]; !ok {
			return corerrors.Validation(corerrors.CodeUnknownOption,
				fmt.Sprintf("unknown configuration environment variable %q", name), nil)
		}
	}
	for name, apply := range envOverrides {
		v, ok := os.LookupEnv(name)
		if !ok || v == "" {
			continue
		}
		if err := apply(c, v); err != nil {
			return corerrors.Validation(corerrors.CodeUnknownOption,
				fmt.Sprintf("invalid value for %s", name), err)
		}
	}
	return nil
}

// Validate checks cross-field and range invariants.
func (c *Config) Validate() error {
	if c.DocumentsDir == "" {
		// Documents dir is required only for watch/sync flows; serve-only
		// deployments may omit it, so this is not validated here.
	}
	if c.ChunkOverlap >= c.ChunkSize && c.ChunkSize > 0 {
		return corerrors.Validation(corerrors.CodeUnknownOption,
			"chunk_overlap must be smaller than chunk_size", nil)
	}
	if c.EmbeddingBatchSize <= 0 {
		return corerrors.Validation(corerrors.CodeUnknownOption, "embedding_batch_size must be positive", nil)
	}
	if c.EmbeddingConcurrency <= 0 {
		return corerrors.Validation(corerrors.CodeUnknownOption, "embedding_concurrency must be positive", nil)
	}
	if c.HybridRRFK <= 0 {
		return corerrors.Validation(corerrors.CodeUnknownOption, "hybrid_rrf_k must be positive", nil)
	}
	if c.SemanticScoreThreshold < 0 || c.SemanticScoreThreshold > 1 {
		return corerrors.Validation(corerrors.CodeUnknownOption, "semantic_score_threshold must be in [0,1]", nil)
	}
	return nil
}
