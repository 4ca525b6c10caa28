// Package config loads the single YAML document that drives the
// application: an optional .env is loaded into the environment first, the
// YAML document is read next, and defaults are applied last, matching the
// corpus's internal/config.Load idiom. Strings in the document support
// recursive "${VAR[:default]}" environment expansion; the environment
// supplies values only through that expansion.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"jeeveswatcher/internal/rules"
)

// WatchConfig configures the filesystem watcher.
type WatchConfig struct {
	Paths           []string `yaml:"paths"`
	Ignored         []string `yaml:"ignored"`
	PollIntervalMs  int      `yaml:"pollIntervalMs"`
	DebounceMs      int      `yaml:"debounceMs"`
	StabilityMs     int      `yaml:"stabilityMs"`
	StabilityPollMs int      `yaml:"stabilityPollMs"`
}

// ConfigWatchConfig configures hot-reload of the config file itself.
type ConfigWatchConfig struct {
	Path       string `yaml:"path"`
	DebounceMs int    `yaml:"debounceMs"`
}

// EmbeddingConfig configures the embedding backend.
type EmbeddingConfig struct {
	Provider           string `yaml:"provider"` // "hash" or "http"
	Model              string `yaml:"model"`
	BaseURL            string `yaml:"baseUrl"`
	APIKey             string `yaml:"apiKey"`
	Dimensions         int    `yaml:"dimensions"`
	RateLimitPerMinute int    `yaml:"rateLimitPerMinute"`
	Concurrency        int    `yaml:"concurrency"`
	ChunkSize          int    `yaml:"chunkSize"`
	ChunkOverlap       int    `yaml:"chunkOverlap"`
}

// VectorStoreConfig configures the vector store client.
type VectorStoreConfig struct {
	URL        string `yaml:"url"`
	Collection string `yaml:"collection"`
	APIKey     string `yaml:"apiKey"`
	Metric     string `yaml:"metric"`
}

// APIConfig configures the HTTP surface.
type APIConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level string `yaml:"level"`
	Path  string `yaml:"path"`
}

// Config is the full application configuration document.
type Config struct {
	Watch             WatchConfig                  `yaml:"watch"`
	ConfigWatch       ConfigWatchConfig             `yaml:"configWatch"`
	Embedding         EmbeddingConfig               `yaml:"embedding"`
	VectorStore       VectorStoreConfig             `yaml:"vectorStore"`
	MetadataDir       string                        `yaml:"metadataDir"`
	API               APIConfig                     `yaml:"api"`
	InferenceRules    []rules.Rule                  `yaml:"inferenceRules"`
	Maps              map[string]rules.TransformDef `yaml:"maps"`
	Logging           LoggingConfig                 `yaml:"logging"`
	ShutdownTimeoutMs int                           `yaml:"shutdownTimeoutMs"`
}

func (c *Config) applyDefaults() {
	if c.Watch.DebounceMs <= 0 {
		c.Watch.DebounceMs = 500
	}
	if c.Watch.StabilityMs <= 0 {
		c.Watch.StabilityMs = 300
	}
	if c.Watch.StabilityPollMs <= 0 {
		c.Watch.StabilityPollMs = 100
	}
	if c.ConfigWatch.Path == "" {
		c.ConfigWatch.Path = "jeeveswatcher.yaml"
	}
	if c.ConfigWatch.DebounceMs <= 0 {
		c.ConfigWatch.DebounceMs = 500
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "hash"
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 256
	}
	if c.Embedding.Concurrency <= 0 {
		c.Embedding.Concurrency = 1
	}
	if c.Embedding.ChunkSize <= 0 {
		c.Embedding.ChunkSize = 1000
	}
	if c.Embedding.ChunkOverlap <= 0 {
		c.Embedding.ChunkOverlap = 200
	}
	if c.VectorStore.Collection == "" {
		c.VectorStore.Collection = "jeeveswatcher"
	}
	if c.VectorStore.Metric == "" {
		c.VectorStore.Metric = "cosine"
	}
	if c.MetadataDir == "" {
		c.MetadataDir = ".jeeves-watcher"
	}
	if c.API.Host == "" {
		c.API.Host = "127.0.0.1"
	}
	if c.API.Port <= 0 {
		c.API.Port = 8090
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.ShutdownTimeoutMs <= 0 {
		c.ShutdownTimeoutMs = 10_000
	}
}

// ShutdownTimeout is ShutdownTimeoutMs as a time.Duration.
func (c Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutMs) * time.Millisecond
}

func (c WatchConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

func (c WatchConfig) Debounce() time.Duration {
	return time.Duration(c.DebounceMs) * time.Millisecond
}

func (c WatchConfig) Stability() time.Duration {
	return time.Duration(c.StabilityMs) * time.Millisecond
}

func (c WatchConfig) StabilityPoll() time.Duration {
	return time.Duration(c.StabilityPollMs) * time.Millisecond
}

func (c ConfigWatchConfig) Debounce() time.Duration {
	return time.Duration(c.DebounceMs) * time.Millisecond
}

// Load reads an optional .env, loads the YAML document at path (if it
// exists), expands "${VAR[:default]}" references throughout, and applies
// defaults. A missing file is not a read error, but configuration fields
// are only taken from the YAML document, so without one watch.paths stays
// empty and Load returns an error.
func Load(path string) (Config, error) {
	_ = godotenv.Overload()

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("config: read %s: %w", path, err)
			}
		} else {
			expanded := expandAll(string(data), 10)
			if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
				return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}
	cfg.applyDefaults()
	if len(cfg.Watch.Paths) == 0 {
		return Config{}, fmt.Errorf("config: watch.paths must list at least one path")
	}
	return cfg, nil
}

// expandAll recursively resolves "${VAR}" and "${VAR:default}" references
// in s, bounded to maxDepth passes so an expansion cycle (a variable whose
// value itself contains a reference) cannot loop forever.
func expandAll(s string, maxDepth int) string {
	for i := 0; i < maxDepth; i++ {
		next := expandOnce(s)
		if next == s {
			return next
		}
		s = next
	}
	return s
}

func expandOnce(s string) string {
	var out strings.Builder
	for i := 0; i < len(s); {
		if s[i] == '$' && i+1 < len(s) && s[i+1] == '{' {
			end := strings.IndexByte(s[i+2:], '}')
			if end < 0 {
				out.WriteByte(s[i])
				i++
				continue
			}
			body := s[i+2 : i+2+end]
			name, def, hasDef := strings.Cut(body, ":")
			val, ok := os.LookupEnv(name)
			switch {
			case ok:
				out.WriteString(val)
			case hasDef:
				out.WriteString(def)
			}
			i = i + 2 + end + 1
			continue
		}
		out.WriteByte(s[i])
		i++
	}
	return out.String()
}
