// Package config loads the settings shared by the wuieval binaries from a
// YAML file and WUIEVAL_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-wuieval/internal/evalclient"
	"github.com/ahrav/go-wuieval/internal/observability"
	"github.com/ahrav/go-wuieval/internal/poller"
)

var validate = validator.New()

// EventsBackend selects where lifecycle events go.
type EventsBackend string

const (
	// EventsNone discards events.
	EventsNone EventsBackend = "none"
	// EventsMemory keeps events in process memory.
	EventsMemory EventsBackend = "memory"
	// EventsRedis appends events to a Redis stream.
	EventsRedis EventsBackend = "redis"
)

// Defaults.
const (
	DefaultTemporalHostPort = "localhost:7233"
	DefaultNamespace        = "default"
	DefaultTaskQueue        = "wuieval"
	DefaultRedisAddr        = "localhost:6379"
	DefaultStream           = "wuieval:events"
	DefaultStreamMaxLen     = 10000
	DefaultStubAddr         = ":8000"
	DefaultResultBaseURL    = "http://localhost:3000/results"
)

// Config is the full settings tree.
type Config struct {
	Service       evalclient.Config           `json:"service" yaml:"service"`
	Poll          poller.Config               `json:"poll" yaml:"poll"`
	ResultBaseURL string                      `json:"result_base_url" yaml:"result_base_url" validate:"required,url"`
	Temporal      TemporalConfig              `json:"temporal" yaml:"temporal"`
	Events        EventsConfig                `json:"events" yaml:"events"`
	Log           observability.LogConfig     `json:"log" yaml:"log"`
	Tracing       observability.TracingConfig `json:"tracing" yaml:"tracing"`
	Stub          StubConfig                  `json:"stub" yaml:"stub"`
}

// TemporalConfig locates the Temporal frontend and the worker task queue.
type TemporalConfig struct {
	HostPort  string `json:"host_port" yaml:"host_port" validate:"required"`
	Namespace string `json:"namespace" yaml:"namespace" validate:"required"`
	TaskQueue string `json:"task_queue" yaml:"task_queue" validate:"required"`
}

// EventsConfig selects and configures the event sink.
type EventsConfig struct {
	Backend EventsBackend `json:"backend" yaml:"backend" validate:"oneof=none memory redis"`
	Redis   RedisConfig   `json:"redis" yaml:"redis"`
}

// RedisConfig holds the stream sink connection settings.
type RedisConfig struct {
	Addr     string `json:"addr" yaml:"addr"`
	Password string `json:"-" yaml:"password"`
	DB       int    `json:"db" yaml:"db" validate:"min=0"`
	Stream   string `json:"stream" yaml:"stream"`
	MaxLen   int64  `json:"max_len" yaml:"max_len" validate:"min=0"`
}

// StubConfig configures the local evaluation service stand-in.
type StubConfig struct {
	Addr         string        `json:"addr" yaml:"addr" validate:"required"`
	ComputeDelay time.Duration `json:"compute_delay" yaml:"compute_delay" validate:"min=0"`
}

// DefaultConfig returns settings for a local setup with events disabled.
func DefaultConfig() *Config {
	return &Config{
		Service:       evalclient.DefaultConfig(),
		Poll:          poller.DefaultConfig(),
		ResultBaseURL: DefaultResultBaseURL,
		Temporal: TemporalConfig{
			HostPort:  DefaultTemporalHostPort,
			Namespace: DefaultNamespace,
			TaskQueue: DefaultTaskQueue,
		},
		Events: EventsConfig{
			Backend: EventsNone,
			Redis: RedisConfig{
				Addr:   DefaultRedisAddr,
				Stream: DefaultStream,
				MaxLen: DefaultStreamMaxLen,
			},
		},
		Log:     observability.LogConfig{Level: "info", Format: "text"},
		Tracing: observability.DefaultTracingConfig("wuieval"),
		Stub:    StubConfig{Addr: DefaultStubAddr, ComputeDelay: 2 * time.Second},
	}
}

// Validate checks the settings tree.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Events.Backend == EventsRedis && (c.Events.Redis.Addr == "" || c.Events.Redis.Stream == "") {
		return errors.New("invalid configuration: redis events need an address and a stream")
	}
	return nil
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from WUIEVAL_* variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"WUIEVAL_BASE_URL":           &c.Service.BaseURL,
		"WUIEVAL_RESULT_BASE_URL":    &c.ResultBaseURL,
		"WUIEVAL_TEMPORAL_HOST_PORT": &c.Temporal.HostPort,
		"WUIEVAL_TEMPORAL_NAMESPACE": &c.Temporal.Namespace,
		"WUIEVAL_TASK_QUEUE":         &c.Temporal.TaskQueue,
		"WUIEVAL_REDIS_ADDR":         &c.Events.Redis.Addr,
		"WUIEVAL_REDIS_PASSWORD":     &c.Events.Redis.Password,
		"WUIEVAL_REDIS_STREAM":       &c.Events.Redis.Stream,
		"WUIEVAL_LOG_LEVEL":          &c.Log.Level,
		"WUIEVAL_LOG_FORMAT":         &c.Log.Format,
		"WUIEVAL_OTLP_ENDPOINT":      &c.Tracing.OTLPEndpoint,
		"WUIEVAL_STUB_ADDR":          &c.Stub.Addr,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
	if v, ok := lookup("WUIEVAL_EVENTS_BACKEND"); ok {
		c.Events.Backend = EventsBackend(v)
	}

	durations := map[string]*time.Duration{
		"WUIEVAL_TIMEOUT":       &c.Service.Timeout,
		"WUIEVAL_POLL_INTERVAL": &c.Poll.Interval,
		"WUIEVAL_COMPUTE_DELAY": &c.Stub.ComputeDelay,
	}
	for key, dst := range durations {
		v, ok := lookup(key)
		if !ok {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = d
	}

	if v, ok := lookup("WUIEVAL_POLL_MAX_ATTEMPTS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid WUIEVAL_POLL_MAX_ATTEMPTS: %w", err)
		}
		c.Poll.MaxAttempts = n
	}
	if v, ok := lookup("WUIEVAL_TRACING_ENABLED"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid WUIEVAL_TRACING_ENABLED: %w", err)
		}
		c.Tracing.Enabled = b
	}
	return nil
}
