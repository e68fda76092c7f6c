// Package config loads the auditor's YAML configuration file.
package config

import (
	"fmt"
	"os"

	yaml "gopkg.in/yaml.v2"

	"github.com/oyerishi/smart-contract-auditor/internal/app"
)

// Config is the on-disk configuration for the auditor binary.
type Config struct {
	Server Server      `yaml:"server"`
	Logger Logger      `yaml:"logger"`
	App    *app.Config `yaml:"app"`
}

type Server struct {
	ListenAddr string `yaml:"listen_addr"`
}

type Logger struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: Server{ListenAddr: ":8080"},
		Logger: Logger{Level: "info"},
		App:    app.DefaultConfig(),
	}
}

// ValidateConfigPath rejects paths that do not point at a regular file.
func ValidateConfigPath(path string) error {
	s, err := os.Stat(path)
	if err != nil {
		return err
	}
	if s.IsDir() {
		return fmt.Errorf("'%s' is a directory, not a file", path)
	}
	return nil
}

// LoadYAML decodes the YAML file at configPath into data.
func LoadYAML(configPath string, data interface{}) error {
	if err := ValidateConfigPath(configPath); err != nil {
		return err
	}

	file, err := os.Open(configPath)
	if err != nil {
		return err
	}
	defer file.Close()

	d := yaml.NewDecoder(file)
	if err := d.Decode(data); err != nil {
		return err
	}

	return nil
}

// NewConfig loads the file at configPath on top of the defaults, so a partial
// file only overrides what it names.
func NewConfig(configPath string) (*Config, error) {
	cfg := Default()

	if err := LoadYAML(configPath, cfg); err != nil {
		return nil, err
	}
	if cfg.App == nil {
		cfg.App = app.DefaultConfig()
	}

	return cfg, nil
}
