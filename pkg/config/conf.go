package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mchmarny/dosecheck/pkg/confidence"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// FileName is the name of the config file inside the app directory.
	FileName = "config.yaml"
	// EnvPrefix prefixes environment overrides, e.g. DOSECHECK_LOG_LEVEL.
	EnvPrefix = "DOSECHECK"

	dirMode  = 0700
	fileMode = 0600

	serverPortDefault    = 8080
	maxBodyBytesDefault  = 1 << 20
	batchParallelDefault = 4
)

// Config represents app config object.
type Config struct {
	LogLevel   string            `json:"log_level" yaml:"log_level" mapstructure:"log_level"`
	DB         string            `json:"db" yaml:"db" mapstructure:"db"`
	Server     ServerConfig      `json:"server" yaml:"server" mapstructure:"server"`
	Batch      BatchConfig       `json:"batch" yaml:"batch" mapstructure:"batch"`
	Confidence confidence.Config `json:"confidence" yaml:"confidence" mapstructure:"confidence"`
}

// ServerConfig configures the local HTTP API.
type ServerConfig struct {
	Port         int   `json:"port" yaml:"port" mapstructure:"port"`
	MaxBodyBytes int64 `json:"max_body_bytes" yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
}

// BatchConfig configures the batch scoring command.
type BatchConfig struct {
	Concurrency int `json:"concurrency" yaml:"concurrency" mapstructure:"concurrency"`
}

// Default returns the configuration used when no file exists. An empty DB
// path means the log lives next to the config file.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Server: ServerConfig{
			Port:         serverPortDefault,
			MaxBodyBytes: maxBodyBytesDefault,
		},
		Batch: BatchConfig{
			Concurrency: batchParallelDefault,
		},
		Confidence: confidence.DefaultConfig(),
	}
}

// Validate checks the config values that the engine does not cover.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.MaxBodyBytes <= 0 {
		return errors.Errorf("invalid server max body bytes: %d", c.Server.MaxBodyBytes)
	}
	if c.Batch.Concurrency <= 0 {
		return errors.Errorf("invalid batch concurrency: %d", c.Batch.Concurrency)
	}
	if err := c.Confidence.Validate(); err != nil {
		return errors.Wrap(err, "invalid confidence config")
	}
	return nil
}

// Save writes c to the config file in dirPath.
func Save(dirPath string, c *Config) error {
	if dirPath == "" {
		return errors.New("config directory required")
	}
	if c == nil {
		return errors.New("config required")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}
	path := filepath.Join(dirPath, FileName)
	if err := os.WriteFile(path, b, fileMode); err != nil {
		return errors.Wrapf(err, "failed to write config file: %s", path)
	}
	return nil
}

// ReadOrCreate reads app config from directory or creates a new one.
func ReadOrCreate(dirPath string) (*Config, error) {
	if dirPath == "" {
		return nil, errors.New("config directory required")
	}

	if _, err := os.Stat(dirPath); errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(dirPath, dirMode); err != nil {
			return nil, errors.Wrapf(err, "failed to create dir: %s", dirPath)
		}
	}

	path := filepath.Join(dirPath, FileName)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		slog.Debug("creating default config", "path", path)
		if err := Save(dirPath, Default()); err != nil {
			return nil, errors.Wrap(err, "failed to create default config")
		}
	}

	return Load(path)
}

// Load reads the config file at path on top of the defaults and applies
// environment overrides. The result is validated.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path required")
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// seed every key so env overrides apply to keys missing from the file
	defaults, err := yaml.Marshal(Default())
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal default config")
	}
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return nil, errors.Wrap(err, "failed to read default config")
	}

	v.SetConfigFile(path)
	if err := v.MergeInConfig(); err != nil {
		return nil, errors.Wrapf(err, "error reading config file: %s", path)
	}

	c := Default()
	if err := v.Unmarshal(c); err != nil {
		return nil, errors.Wrapf(err, "error decoding config file: %s", path)
	}

	if err := c.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid config file: %s", path)
	}
	slog.Debug("config loaded", "path", path, "level", c.LogLevel)
	return c, nil
}

// GetOrCreateHomeDir returns the app directory in the current user's home.
// The create flag is set to true if the directory was created.
func GetOrCreateHomeDir(name string) (path string, created bool, err error) {
	if name == "" {
		return "", false, errors.New("name cannot be empty")
	}

	if !strings.HasPrefix(name, ".") {
		name = "." + name
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", false, errors.Wrap(err, "failed to get user home dir")
	}

	dir := filepath.Join(home, name)
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		slog.Debug("creating dir", "path", dir)
		if err := os.Mkdir(dir, dirMode); err != nil {
			return "", false, errors.Wrapf(err, "failed to create dir: %s", dir)
		}
		created = true
	}
	return dir, created, nil
}
