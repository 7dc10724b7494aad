package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/xtal-lab/xtal/internal/evaluation"
	"github.com/xtal-lab/xtal/internal/instrument"
	"github.com/xtal-lab/xtal/internal/sandbox"
)

// Storage backends.
const (
	StorageMemory   = "memory"
	StorageFile     = "file"
	StorageBadger   = "badger"
	StoragePostgres = "postgres"
)

// EnvPrefix is the prefix of environment overrides. Sections are separated by "__",
// so XTAL_EVALUATION__TIMEOUT sets evaluation.timeout.
const EnvPrefix = "XTAL_"

var hookName = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// Config represents the top-level application config.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Storage    StorageConfig    `koanf:"storage"`
	Evaluation EvaluationConfig `koanf:"evaluation"`
	Watch      WatchConfig      `koanf:"watch"`
}

type ServerConfig struct {
	Port          int    `koanf:"port"`
	Host          string `koanf:"host"`
	MaxBodySizeMB int    `koanf:"max_body_size_mb"`
	Mode          string `koanf:"mode"` // debug | release
}

type StorageConfig struct {
	Type         string `koanf:"type"`
	Path         string `koanf:"path"` // file and badger backends
	DSN          string `koanf:"dsn"`
	MaxOpenConns int    `koanf:"max_open_conns"`
	MaxIdleConns int    `koanf:"max_idle_conns"`
	AutoMigrate  bool   `koanf:"auto_migrate"`
	MaxMemMB     int    `koanf:"max_mem_mb"` // badger memtable budget
}

type EvaluationConfig struct {
	Timeout        time.Duration `koanf:"timeout"`
	RawTimeout     time.Duration `koanf:"raw_timeout"`
	RunTimeout     time.Duration `koanf:"run_timeout"`
	MaxCallStack   int           `koanf:"max_call_stack"`
	HookName       string        `koanf:"hook_name"`
	Kinds          []string      `koanf:"kinds"` // empty means every kind
	SingleRun      bool          `koanf:"single_run"`
	MaxConcurrency int           `koanf:"max_concurrency"`
	CacheCapacity  int           `koanf:"cache_capacity"`
}

type WatchConfig struct {
	Debounce time.Duration `koanf:"debounce"`
}

// Defaults returns the default key/value map applied before the file and env layers.
func Defaults() map[string]interface{} {
	return map[string]interface{}{
		"server.port":                8080,
		"server.host":                "0.0.0.0",
		"server.max_body_size_mb":    1,
		"server.mode":                "release",
		"storage.type":               StorageMemory,
		"storage.path":               "./xtal-data",
		"storage.dsn":                "",
		"storage.max_open_conns":     10,
		"storage.max_idle_conns":     10,
		"storage.auto_migrate":       true,
		"storage.max_mem_mb":         64,
		"evaluation.timeout":         "2s",
		"evaluation.raw_timeout":     "50ms",
		"evaluation.run_timeout":     "1s",
		"evaluation.max_call_stack":  500,
		"evaluation.hook_name":       "__xtal__",
		"evaluation.kinds":           []string{},
		"evaluation.single_run":      false,
		"evaluation.max_concurrency": 4,
		"evaluation.cache_capacity":  256,
		"watch.debounce":             "150ms",
	}
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d (must be 1-65535)", c.Server.Port)
	}
	if strings.TrimSpace(c.Server.Host) == "" {
		return fmt.Errorf("server.host is required")
	}
	if c.Server.MaxBodySizeMB <= 0 {
		return fmt.Errorf("server.max_body_size_mb must be > 0")
	}
	if c.Server.Mode != "debug" && c.Server.Mode != "release" {
		return fmt.Errorf("invalid server.mode %q (must be debug or release)", c.Server.Mode)
	}

	switch c.Storage.Type {
	case StorageMemory:
	case StorageFile, StorageBadger:
		if strings.TrimSpace(c.Storage.Path) == "" {
			return fmt.Errorf("storage.path is required for storage.type %q", c.Storage.Type)
		}
		if c.Storage.Type == StorageBadger && c.Storage.MaxMemMB <= 0 {
			return fmt.Errorf("storage.max_mem_mb must be > 0")
		}
	case StoragePostgres:
		if strings.TrimSpace(c.Storage.DSN) == "" {
			return fmt.Errorf("storage.dsn is required for storage.type %q", c.Storage.Type)
		}
		if c.Storage.MaxOpenConns <= 0 {
			return fmt.Errorf("storage.max_open_conns must be > 0")
		}
		if c.Storage.MaxIdleConns <= 0 {
			return fmt.Errorf("storage.max_idle_conns must be > 0")
		}
	default:
		return fmt.Errorf("unsupported storage.type %q", c.Storage.Type)
	}

	e := c.Evaluation
	for name, d := range map[string]time.Duration{
		"evaluation.timeout":     e.Timeout,
		"evaluation.raw_timeout": e.RawTimeout,
		"evaluation.run_timeout": e.RunTimeout,
		"watch.debounce":         c.Watch.Debounce,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be > 0", name)
		}
	}
	if e.RawTimeout >= e.RunTimeout {
		return fmt.Errorf("evaluation.raw_timeout (%s) must be less than evaluation.run_timeout (%s)", e.RawTimeout, e.RunTimeout)
	}
	if e.RunTimeout > e.Timeout {
		return fmt.Errorf("evaluation.run_timeout (%s) must not exceed evaluation.timeout (%s)", e.RunTimeout, e.Timeout)
	}
	if e.MaxCallStack <= 0 {
		return fmt.Errorf("evaluation.max_call_stack must be > 0")
	}
	if !hookName.MatchString(e.HookName) {
		return fmt.Errorf("invalid evaluation.hook_name %q (must be a JavaScript identifier)", e.HookName)
	}
	if _, err := instrument.ParseKinds(e.Kinds); err != nil {
		return fmt.Errorf("invalid evaluation.kinds: %w", err)
	}
	if e.MaxConcurrency <= 0 {
		return fmt.Errorf("evaluation.max_concurrency must be > 0")
	}
	if e.CacheCapacity <= 0 {
		return fmt.Errorf("evaluation.cache_capacity must be > 0")
	}

	return nil
}

// SandboxOptions maps the evaluation section onto sandbox options.
func (e EvaluationConfig) SandboxOptions() sandbox.Options {
	return sandbox.Options{
		Timeout:          e.Timeout,
		RawTimeout:       e.RawTimeout,
		RunTimeout:       e.RunTimeout,
		MaxCallStackSize: e.MaxCallStack,
		Hook:             e.HookName,
		SingleRun:        e.SingleRun,
	}
}

// WithTimeout returns a copy with the overall budget set to d. The sub-budgets
// shrink when needed so that raw < run <= overall still holds.
func (e EvaluationConfig) WithTimeout(d time.Duration) EvaluationConfig {
	e.Timeout = d
	if e.RunTimeout > d {
		e.RunTimeout = d
	}
	if e.RawTimeout >= e.RunTimeout {
		e.RawTimeout = e.RunTimeout / 2
	}
	return e
}

// ServiceConfig maps the evaluation section onto an evaluation service config.
func (e EvaluationConfig) ServiceConfig() (evaluation.Config, error) {
	kinds, err := instrument.ParseKinds(e.Kinds)
	if err != nil {
		return evaluation.Config{}, err
	}
	return evaluation.Config{
		Sandbox:        e.SandboxOptions(),
		Kinds:          kinds,
		MaxConcurrency: e.MaxConcurrency,
		CacheCapacity:  e.CacheCapacity,
	}, nil
}

// Load parses config from defaults, file and env, then validates it.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	for key, value := range Defaults() {
		k.Set(key, value)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
