package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the configuration file location before "~" expansion.
const DefaultPath = "~/.config/secops/config.yaml"

// Environment variables that override file values. They may also be set in a
// .env file in the working directory.
const (
	EnvProfile       = "SECOPS_AWS_PROFILE"
	EnvRegion        = "SECOPS_AWS_REGION"
	EnvLogLevel      = "SECOPS_LOG_LEVEL"
	EnvSheetsCreds   = "SECOPS_SHEETS_CREDENTIALS"
	EnvSpreadsheetID = "SECOPS_SPREADSHEET_ID"
	EnvConfigPath    = "SECOPS_CONFIG"
	envFileName      = ".env"
)

var validate = validator.New()

// FileLoader reads a YAML config file, layers environment overrides on top
// and validates the result. A missing file yields Default().
type FileLoader struct {
	Path string

	// EnvFile is loaded with godotenv before overrides are read. Empty means
	// ".env"; a missing file is ignored.
	EnvFile string
}

// NewFileLoader returns a loader for $SECOPS_CONFIG or DefaultPath.
func NewFileLoader() *FileLoader {
	path := os.Getenv(EnvConfigPath)
	if path == "" {
		path = DefaultPath
	}
	return &FileLoader{Path: path}
}

// ConfigPath returns the expanded config file path.
func (l *FileLoader) ConfigPath() string {
	p, err := homedir.Expand(l.Path)
	if err != nil {
		return l.Path
	}
	return p
}

// Load implements Loader.
func (l *FileLoader) Load() (*Config, error) {
	envFile := l.EnvFile
	if envFile == "" {
		envFile = envFileName
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	cfg := Default()
	path := l.ConfigPath()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if cfg.Report.PolicyFile, err = expand(cfg.Report.PolicyFile); err != nil {
		return nil, err
	}
	if cfg.Sheets.CredentialsFile, err = expand(cfg.Sheets.CredentialsFile); err != nil {
		return nil, err
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvProfile); v != "" {
		cfg.AWS.DefaultProfile = v
	}
	if v := os.Getenv(EnvRegion); v != "" {
		cfg.AWS.DefaultRegion = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv(EnvSheetsCreds); v != "" {
		cfg.Sheets.CredentialsFile = v
	}
	if v := os.Getenv(EnvSpreadsheetID); v != "" {
		cfg.Sheets.SpreadsheetID = v
	}
}

func expand(p string) (string, error) {
	if p == "" {
		return "", nil
	}
	out, err := homedir.Expand(p)
	if err != nil {
		return "", fmt.Errorf("expand %s: %w", p, err)
	}
	return filepath.Clean(out), nil
}
