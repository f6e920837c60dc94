package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"llmstack/internal/logger"
	"llmstack/internal/service"
)

// EnvPrefix is the prefix for environment overrides, e.g.
// LLMSTACK_EMBEDDING_MODEL, LLMSTACK_TIMEOUT, LLMSTACK_HOST.
const EnvPrefix = "LLMSTACK"

// Defaults. Every knob is overridable via environment or config file.
const (
	DefaultHost          = "127.0.0.1"
	DefaultCtxSize       = 8192
	DefaultTimeout       = 120 * time.Second
	DefaultEmbeddingPort = 8081
	DefaultRerankerPort  = 8082
	DefaultLLMPort       = 8000
	DefaultLogDir        = "logs"
	DefaultStatusAddr    = "127.0.0.1:9090"
	DefaultLlamaServer   = "llama-server"
	DefaultVLLM          = "vllm"

	DefaultEmbeddingModel = "models/embedding.gguf"
	DefaultRerankerModel  = "models/reranker.gguf"
	DefaultLLMModel       = "Qwen/Qwen3-8B"
)

// LLMReadyMarker is the line vLLM prints once the model is loaded and the
// server is accepting requests. Device memory for the big model is claimed
// before this line appears, which an HTTP probe cannot observe.
const LLMReadyMarker = "Application startup complete."

// ErrModelNotFound marks a required model file missing on disk. This is a
// configuration failure: it aborts the run before any process is spawned.
var ErrModelNotFound = errors.New("model not found")

// Config is the resolved launcher configuration.
type Config struct {
	Host    string        `mapstructure:"host"`
	CtxSize int           `mapstructure:"ctx_size"`
	Timeout time.Duration `mapstructure:"timeout"` // per-service startup budget
	LogDir  string        `mapstructure:"log_dir"`
	Grace   time.Duration `mapstructure:"grace"` // zero: orchestrator default

	EmbeddingModel string `mapstructure:"embedding_model"`
	RerankerModel  string `mapstructure:"reranker_model"`
	LLMModel       string `mapstructure:"llm_model"`

	EmbeddingPort int `mapstructure:"embedding_port"`
	RerankerPort  int `mapstructure:"reranker_port"`
	LLMPort       int `mapstructure:"llm_port"`

	LlamaServerBin string `mapstructure:"llama_server_bin"`
	VLLMBin        string `mapstructure:"vllm_bin"`

	HistoryDSN string `mapstructure:"history_dsn"` // empty disables run history
	StatusAddr string `mapstructure:"status_addr"` // empty disables the status API
}

// Load resolves configuration: defaults, then an optional TOML file, then
// environment overrides last.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetDefault("host", DefaultHost)
	v.SetDefault("ctx_size", DefaultCtxSize)
	v.SetDefault("timeout", DefaultTimeout)
	v.SetDefault("log_dir", DefaultLogDir)
	v.SetDefault("grace", time.Duration(0))
	v.SetDefault("embedding_model", DefaultEmbeddingModel)
	v.SetDefault("reranker_model", DefaultRerankerModel)
	v.SetDefault("llm_model", DefaultLLMModel)
	v.SetDefault("embedding_port", DefaultEmbeddingPort)
	v.SetDefault("reranker_port", DefaultRerankerPort)
	v.SetDefault("llm_port", DefaultLLMPort)
	v.SetDefault("llama_server_bin", DefaultLlamaServer)
	v.SetDefault("vllm_bin", DefaultVLLM)
	v.SetDefault("history_dsn", "")
	v.SetDefault("status_addr", DefaultStatusAddr)

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &c, nil
}

// Validate checks the resolved values and locates required model files.
func (c *Config) Validate() error {
	if c.Timeout < time.Second {
		return fmt.Errorf("timeout must be at least 1s, got %v", c.Timeout)
	}
	if c.CtxSize <= 0 {
		return fmt.Errorf("ctx_size must be positive, got %d", c.CtxSize)
	}
	if err := requireFile("embedding model", c.EmbeddingModel); err != nil {
		return err
	}
	if err := requireFile("reranker model", c.RerankerModel); err != nil {
		return err
	}
	// The LLM model may be a hub id resolved by the server itself; only
	// absolute paths are checked on disk.
	if filepath.IsAbs(c.LLMModel) {
		if err := requireFile("llm model", c.LLMModel); err != nil {
			return err
		}
	}
	return nil
}

func requireFile(what, path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("%s %s: %w", what, path, ErrModelNotFound)
	}
	return nil
}

// Sink returns the log sink configuration for service output files.
func (c *Config) Sink() logger.SinkConfig {
	return logger.SinkConfig{Dir: c.LogDir}
}

// Descriptors builds the fixed launch order and validates the configuration,
// including model files on disk.
func (c *Config) Descriptors() ([]service.Descriptor, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	descs := c.Plan()
	for _, d := range descs {
		if err := d.Validate(); err != nil {
			return nil, err
		}
	}
	return descs, nil
}

// Plan builds the fixed launch order without touching the filesystem, so the
// plan can be inspected on machines without the models present. Services are
// started smallest-first so each claims its slice of device memory before the
// next, and the big model's failure to allocate shows up before time is
// wasted loading it alongside the small ones.
func (c *Config) Plan() []service.Descriptor {
	sink := c.Sink()
	descs := []service.Descriptor{
		{
			Name: "embeddings",
			Command: fmt.Sprintf("%s --embedding -m %s --host %s --port %d -c %d",
				c.LlamaServerBin, c.EmbeddingModel, c.Host, c.EmbeddingPort, c.CtxSize),
			LogPath: sink.Path("embeddings"),
			Readiness: service.Readiness{
				Type: service.ReadinessHTTP,
				URL:  fmt.Sprintf("http://%s:%d/health", c.Host, c.EmbeddingPort),
			},
			Timeout: c.Timeout,
		},
		{
			Name: "reranker",
			Command: fmt.Sprintf("%s --reranking -m %s --host %s --port %d -c %d",
				c.LlamaServerBin, c.RerankerModel, c.Host, c.RerankerPort, c.CtxSize),
			LogPath: sink.Path("reranker"),
			Readiness: service.Readiness{
				Type: service.ReadinessHTTP,
				URL:  fmt.Sprintf("http://%s:%d/health", c.Host, c.RerankerPort),
			},
			Timeout: c.Timeout,
		},
		{
			Name: "llm",
			Command: fmt.Sprintf("%s serve %s --host %s --port %d --max-model-len %d",
				c.VLLMBin, c.LLMModel, c.Host, c.LLMPort, c.CtxSize),
			LogPath: sink.Path("llm"),
			Readiness: service.Readiness{
				Type:    service.ReadinessLog,
				Pattern: LLMReadyMarker,
			},
			Timeout: c.Timeout,
		},
	}
	return descs
}
