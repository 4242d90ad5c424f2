// Package config loads runtime settings from defaults, an optional YAML
// file and the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Python backends.
const (
	BackendDocker = "docker"
	BackendWasm   = "wasm"
	BackendNone   = "none"
)

const envPrefix = "RUNNER"

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type StorageConfig struct {
	DBPath string `mapstructure:"db_path"`
}

type AuthConfig struct {
	// JWTSecret signs session tokens. Empty leaves session routes open.
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type ExecutionConfig struct {
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxCodeLength int           `mapstructure:"max_code_length"`
}

type JavaScriptConfig struct {
	MaxCallStack int `mapstructure:"max_call_stack"`
}

type PythonConfig struct {
	Backend          string `mapstructure:"backend"`
	WasmPath         string `mapstructure:"wasm_path"`
	StdlibDir        string `mapstructure:"stdlib_dir"`
	MemoryLimitPages uint32 `mapstructure:"memory_limit_pages"`
}

type DockerConfig struct {
	Image       string  `mapstructure:"image"`
	MemoryLimit int64   `mapstructure:"memory_limit"`
	CPULimit    float64 `mapstructure:"cpu_limit"`
	PoolSize    int     `mapstructure:"pool_size"`
}

type SessionConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Log        LogConfig        `mapstructure:"log"`
	Execution  ExecutionConfig  `mapstructure:"execution"`
	JavaScript JavaScriptConfig `mapstructure:"javascript"`
	Python     PythonConfig     `mapstructure:"python"`
	Docker     DockerConfig     `mapstructure:"docker"`
	Session    SessionConfig    `mapstructure:"session"`
}

// Load reads configuration. An explicit path must exist; otherwise
// snippet-runner.yaml is looked up in the working directory and
// $HOME/.snippet-runner and may be absent. RUNNER_SECTION_KEY environment
// variables override both, and the plain PORT, DB_PATH and JWT_SECRET
// variables are still honoured.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("snippet-runner")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.snippet-runner")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range map[string]string{
		"server.port":     "PORT",
		"storage.db_path": "DB_PATH",
		"auth.jwt_secret": "JWT_SECRET",
	} {
		envKey := envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envKey, legacy); err != nil {
			return nil, fmt.Errorf("binding %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.Python.Backend = strings.ToLower(strings.TrimSpace(cfg.Python.Backend))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("storage.db_path", "data/snippets.db")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", 24*time.Hour)
	v.SetDefault("log.level", "info")
	v.SetDefault("execution.timeout", 5*time.Second)
	v.SetDefault("execution.max_code_length", 100000)
	v.SetDefault("javascript.max_call_stack", 1000)
	v.SetDefault("python.backend", BackendDocker)
	v.SetDefault("python.wasm_path", "")
	v.SetDefault("python.stdlib_dir", "")
	v.SetDefault("python.memory_limit_pages", 0)
	v.SetDefault("docker.image", "python:3.12-alpine")
	v.SetDefault("docker.memory_limit", 128*1024*1024)
	v.SetDefault("docker.cpu_limit", 0.5)
	v.SetDefault("docker.pool_size", 3)
	v.SetDefault("session.ttl", time.Hour)
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Execution.Timeout <= 0 {
		return fmt.Errorf("execution.timeout must be positive, got %s", c.Execution.Timeout)
	}
	switch c.Python.Backend {
	case BackendDocker, BackendNone:
	case BackendWasm:
		if c.Python.WasmPath == "" {
			return errors.New("python.wasm_path is required for the wasm backend")
		}
	default:
		return fmt.Errorf("python.backend %q is not one of docker, wasm, none", c.Python.Backend)
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(level string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return l, nil
}
