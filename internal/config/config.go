package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	LLM      LLMConfig      `yaml:"llm"`
	EmbedLLM LLMConfig      `yaml:"embed_llm"`
	RAG      RAGConfig      `yaml:"rag"`
	Summary  SummaryConfig  `yaml:"summary"`
	Memory   MemoryConfig   `yaml:"memory"`
	Language LanguageConfig `yaml:"language"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	UserHeader string `yaml:"user_header"`
}

type DatabaseConfig struct {
	// Driver is "pgdriver" (bun native) or "postgres" (lib/pq).
	Driver   string `yaml:"driver"`
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	Debug    bool   `yaml:"debug"`
}

// LLMConfig describes one langchaingo backed model, used both for
// completions and for embeddings.
type LLMConfig struct {
	Provider    string   `yaml:"provider"`
	BaseURL     string   `yaml:"base_url"`
	Key         string   `yaml:"key"`
	Model       string   `yaml:"model"`
	Temperature float64  `yaml:"temperature"`
	MaxTokens   int      `yaml:"max_tokens"`
	Timeout     Duration `yaml:"timeout"`
}

type RAGConfig struct {
	StoreRoot          string   `yaml:"store_root"`
	Compress           bool     `yaml:"compress"`
	EncryptionKey      string   `yaml:"encryption_key"`
	TopK               int      `yaml:"top_k"`
	ChunkSize          int      `yaml:"chunk_size"`
	ChunkOverlap       int      `yaml:"chunk_overlap"`
	SemanticWeight     float64  `yaml:"semantic_weight"`
	LexicalWeight      float64  `yaml:"lexical_weight"`
	RelevanceThreshold float64  `yaml:"relevance_threshold"`
	NormalizeTokens    bool     `yaml:"normalize_tokens"`
	StoreCacheSize     int      `yaml:"store_cache_size"`
	StoreCacheTTL      Duration `yaml:"store_cache_ttl"`
}

type SummaryConfig struct {
	MaxGroupLength int  `yaml:"max_group_length"`
	MaxInputTokens int  `yaml:"max_input_tokens"`
	Concurrency    int  `yaml:"concurrency"`
	ExactDedup     bool `yaml:"exact_dedup"`
	// Cache is a pointer so an explicit false in YAML survives defaults.
	Cache *bool `yaml:"cache"`
}

type MemoryConfig struct {
	Exchanges     int      `yaml:"exchanges"`
	IdleTTL       Duration `yaml:"idle_ttl"`
	SweepInterval Duration `yaml:"sweep_interval"`
}

type LanguageConfig struct {
	Default   string `yaml:"default"`
	Alternate string `yaml:"alternate"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Duration accepts Go duration strings ("30m", "1h") in YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (c SummaryConfig) CacheEnabled() bool {
	return c.Cache == nil || *c.Cache
}

// LoadConfig reads the YAML file at path. Variables from a .env file in the
// working directory are loaded first and ${VAR} references in the YAML are
// expanded. A missing config file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// Default returns a config with every default applied.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.UserHeader == "" {
		cfg.Server.UserHeader = "X-User-ID"
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "pgdriver"
	}

	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "ollama"
	}
	if cfg.LLM.BaseURL == "" && cfg.LLM.Provider == "ollama" {
		cfg.LLM.BaseURL = "http://localhost:11434"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "llama3.1"
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = Duration(2 * time.Minute)
	}
	if cfg.EmbedLLM.Provider == "" {
		cfg.EmbedLLM.Provider = "ollama"
	}
	if cfg.EmbedLLM.BaseURL == "" && cfg.EmbedLLM.Provider == "ollama" {
		cfg.EmbedLLM.BaseURL = "http://localhost:11434"
	}
	if cfg.EmbedLLM.Model == "" {
		cfg.EmbedLLM.Model = "nomic-embed-text"
	}

	if cfg.RAG.StoreRoot == "" {
		cfg.RAG.StoreRoot = "./vectorstore"
	}
	if cfg.RAG.TopK == 0 {
		cfg.RAG.TopK = 4
	}
	if cfg.RAG.ChunkSize == 0 || cfg.RAG.ChunkOverlap == 0 {
		cfg.RAG.ChunkSize = 1000
		cfg.RAG.ChunkOverlap = 200
	}
	if cfg.RAG.SemanticWeight == 0 && cfg.RAG.LexicalWeight == 0 {
		cfg.RAG.SemanticWeight = 0.7
		cfg.RAG.LexicalWeight = 0.3
	}
	if cfg.RAG.RelevanceThreshold == 0 {
		cfg.RAG.RelevanceThreshold = 0.7
	}
	if cfg.RAG.StoreCacheSize == 0 {
		cfg.RAG.StoreCacheSize = 64
	}
	if cfg.RAG.StoreCacheTTL == 0 {
		cfg.RAG.StoreCacheTTL = Duration(10 * time.Minute)
	}

	if cfg.Summary.MaxGroupLength == 0 {
		cfg.Summary.MaxGroupLength = 5000
	}
	if cfg.Summary.MaxInputTokens == 0 {
		cfg.Summary.MaxInputTokens = 15000
	}
	if cfg.Summary.Concurrency == 0 {
		cfg.Summary.Concurrency = 1
	}

	if cfg.Memory.Exchanges == 0 {
		cfg.Memory.Exchanges = 5
	}
	if cfg.Memory.IdleTTL == 0 {
		cfg.Memory.IdleTTL = Duration(30 * time.Minute)
	}
	if cfg.Memory.SweepInterval == 0 {
		cfg.Memory.SweepInterval = Duration(time.Minute)
	}

	if cfg.Language.Default == "" {
		cfg.Language.Default = "en"
	}
	if cfg.Language.Alternate == "" {
		cfg.Language.Alternate = "ro"
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
}
