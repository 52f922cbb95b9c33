package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// AppConfig is read from a YAML file under the user's home directory.
// All fields are optional; defaults are applied by the accessor methods.
//
// Example (~/.thinkbot/config.yaml):
//
// server:
//   host: 127.0.0.1
//   port: 8089
// log:
//   level: info
// storage:
//   backend: sqlite
//   path: /home/me/.local/share/thinkbot/thinkbot.db
// orchestrator:
//   parallel_branches: false
//   max_parallel: 4
// extraction:
//   timeout_seconds: 20
//
// Notes:
// - If the config file does not exist, Load returns defaults without error.
// - If the config file exists but cannot be parsed, Load returns an error.
// - Port must be between 1 and 65535.
type AppConfig struct {
	Server       ServerConfig       `yaml:"server"`
	Log          LogConfig          `yaml:"log"`
	Storage      StorageConfig      `yaml:"storage"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Extraction   ExtractionConfig   `yaml:"extraction"`
}

type ServerConfig struct {
	Host *string `yaml:"host"`
	Port *int    `yaml:"port" validate:"omitempty,min=1,max=65535"`
}

type LogConfig struct {
	Level *string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
}

// StorageConfig selects the document store backend.
type StorageConfig struct {
	Backend *string     `yaml:"backend" validate:"omitempty,oneof=memory file sqlite bolt redis postgres mysql"`
	Path    *string     `yaml:"path"`
	DSN     *string     `yaml:"dsn"`
	Key     *string     `yaml:"key"`
	Redis   RedisConfig `yaml:"redis"`
}

type RedisConfig struct {
	Addr     *string `yaml:"addr"`
	Password *string `yaml:"password"`
	DB       *int    `yaml:"db" validate:"omitempty,min=0"`
}

type OrchestratorConfig struct {
	ParallelBranches *bool `yaml:"parallel_branches"`
	MaxParallel      *int  `yaml:"max_parallel" validate:"omitempty,min=1,max=64"`
	HistoryTokens    *int  `yaml:"history_tokens" validate:"omitempty,min=0"`
	ContextTokens    *int  `yaml:"context_tokens" validate:"omitempty,min=0"`
}

type ExtractionConfig struct {
	TimeoutSeconds *int    `yaml:"timeout_seconds" validate:"omitempty,min=1,max=600"`
	Browser        *bool   `yaml:"browser"`
	UserAgent      *string `yaml:"user_agent"`
}

const (
	DefaultHost           = "127.0.0.1"
	DefaultPort           = 8089
	DefaultLogLevel       = "info"
	DefaultBackend        = "sqlite"
	DefaultSnapshotKey    = "thinkbot:config:v1"
	DefaultMaxParallel    = 4
	DefaultHistoryTokens  = 2048
	DefaultContextTokens  = 6000
	DefaultExtractTimeout = 20
	DefaultUserAgent      = "Mozilla/5.0 (compatible; thinkbot/1.0)"
	DefaultRedisAddr      = "127.0.0.1:6379"
)

var validate = validator.New()

// DefaultPaths returns the config dir and config file path.
func DefaultPaths() (configDir string, configFile string, err error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", "", fmt.Errorf("get user home dir: %w", err)
	}
	configDir = filepath.Join(home, ".thinkbot")
	configFile = filepath.Join(configDir, "config.yaml")
	return configDir, configFile, nil
}

// DataDir is where file-backed stores keep their data by default.
func DataDir() string {
	return filepath.Join(xdg.DataHome, "thinkbot")
}

// Load reads ~/.thinkbot/config.yaml.
// If the file doesn't exist, it returns a default config and nil error.
func Load() (*AppConfig, string, error) {
	_, configFile, err := DefaultPaths()
	if err != nil {
		return nil, "", err
	}

	cfg := &AppConfig{}

	b, err := os.ReadFile(configFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, configFile, nil
		}
		return nil, "", fmt.Errorf("read config file %s: %w", configFile, err)
	}

	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, "", fmt.Errorf("parse yaml config %s: %w", configFile, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", fmt.Errorf("%w in %s", err, configFile)
	}

	return cfg, configFile, nil
}

// Validate checks field ranges and enumerations.
func (c *AppConfig) Validate() error {
	if strings.TrimSpace(c.Host()) == "" {
		return fmt.Errorf("invalid server.host (empty)")
	}
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			e := verrs[0]
			return fmt.Errorf("invalid %s: failed on '%s' with value '%v'", e.Namespace(), e.Tag(), deref(e.Value()))
		}
		return err
	}
	return nil
}

// EnsureDefaultConfig writes a default config file if it doesn't already exist.
// It is safe to call on startup.
func EnsureDefaultConfig() (string, error) {
	configDir, configFile, err := DefaultPaths()
	if err != nil {
		return "", err
	}

	if _, err := os.Stat(configFile); err == nil {
		return configFile, nil
	}

	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return "", fmt.Errorf("create config dir %s: %w", configDir, err)
	}

	defaultCfg := AppConfig{
		Server:  ServerConfig{Host: ptr(DefaultHost), Port: ptr(DefaultPort)},
		Log:     LogConfig{Level: ptr(DefaultLogLevel)},
		Storage: StorageConfig{Backend: ptr(DefaultBackend)},
	}
	b, err := yaml.Marshal(&defaultCfg)
	if err != nil {
		return "", fmt.Errorf("marshal default config: %w", err)
	}

	if err := os.WriteFile(configFile, b, 0o600); err != nil {
		return "", fmt.Errorf("write default config file %s: %w", configFile, err)
	}

	return configFile, nil
}

func (c *AppConfig) Host() string {
	if c == nil || c.Server.Host == nil {
		return DefaultHost
	}
	v := strings.TrimSpace(*c.Server.Host)
	if v == "" {
		return DefaultHost
	}
	return v
}

func (c *AppConfig) Port() int {
	if c == nil || c.Server.Port == nil {
		return DefaultPort
	}
	return *c.Server.Port
}

func (c *AppConfig) LogLevel() string {
	if c == nil || c.Log.Level == nil || *c.Log.Level == "" {
		return DefaultLogLevel
	}
	return *c.Log.Level
}

func (c *AppConfig) StorageBackend() string {
	if c == nil || c.Storage.Backend == nil || *c.Storage.Backend == "" {
		return DefaultBackend
	}
	return *c.Storage.Backend
}

// StoragePath returns the data file for file, sqlite and bolt backends.
func (c *AppConfig) StoragePath() string {
	if c != nil && c.Storage.Path != nil && strings.TrimSpace(*c.Storage.Path) != "" {
		return *c.Storage.Path
	}
	switch c.StorageBackend() {
	case "file":
		return filepath.Join(DataDir(), "documents")
	case "bolt":
		return filepath.Join(DataDir(), "thinkbot.bolt")
	default:
		return filepath.Join(DataDir(), "thinkbot.db")
	}
}

func (c *AppConfig) StorageDSN() string {
	if c == nil || c.Storage.DSN == nil {
		return ""
	}
	return *c.Storage.DSN
}

// SnapshotKey is the document key holding the stored snapshot.
func (c *AppConfig) SnapshotKey() string {
	if c == nil || c.Storage.Key == nil || *c.Storage.Key == "" {
		return DefaultSnapshotKey
	}
	return *c.Storage.Key
}

func (c *AppConfig) RedisAddr() string {
	if c == nil || c.Storage.Redis.Addr == nil || *c.Storage.Redis.Addr == "" {
		return DefaultRedisAddr
	}
	return *c.Storage.Redis.Addr
}

func (c *AppConfig) RedisPassword() string {
	if c == nil || c.Storage.Redis.Password == nil {
		return ""
	}
	return *c.Storage.Redis.Password
}

func (c *AppConfig) RedisDB() int {
	if c == nil || c.Storage.Redis.DB == nil {
		return 0
	}
	return *c.Storage.Redis.DB
}

func (c *AppConfig) ParallelBranches() bool {
	if c == nil || c.Orchestrator.ParallelBranches == nil {
		return false
	}
	return *c.Orchestrator.ParallelBranches
}

func (c *AppConfig) MaxParallel() int {
	if c == nil || c.Orchestrator.MaxParallel == nil || *c.Orchestrator.MaxParallel <= 0 {
		return DefaultMaxParallel
	}
	return *c.Orchestrator.MaxParallel
}

func (c *AppConfig) HistoryTokens() int {
	if c == nil || c.Orchestrator.HistoryTokens == nil {
		return DefaultHistoryTokens
	}
	return *c.Orchestrator.HistoryTokens
}

func (c *AppConfig) ContextTokens() int {
	if c == nil || c.Orchestrator.ContextTokens == nil {
		return DefaultContextTokens
	}
	return *c.Orchestrator.ContextTokens
}

func (c *AppConfig) ExtractTimeoutSeconds() int {
	if c == nil || c.Extraction.TimeoutSeconds == nil {
		return DefaultExtractTimeout
	}
	return *c.Extraction.TimeoutSeconds
}

func (c *AppConfig) ExtractWithBrowser() bool {
	if c == nil || c.Extraction.Browser == nil {
		return false
	}
	return *c.Extraction.Browser
}

func (c *AppConfig) UserAgent() string {
	if c == nil || c.Extraction.UserAgent == nil || *c.Extraction.UserAgent == "" {
		return DefaultUserAgent
	}
	return *c.Extraction.UserAgent
}

func ptr[T any](v T) *T { return &v }

func deref(v any) any {
	switch p := v.(type) {
	case *int:
		if p != nil {
			return *p
		}
	case *string:
		if p != nil {
			return *p
		}
	}
	return v
}
