package config

// Config is the top-level application configuration.
// It is loaded from ~/.config/secops/config.yaml and must never be
// committed with real secrets.
type Config struct {
	AWS    AWSConfig    `yaml:"aws"    json:"aws"`
	Log    LogConfig    `yaml:"log"    json:"log"`
	Report ReportConfig `yaml:"report" json:"report"`
	Sheets SheetsConfig `yaml:"sheets" json:"sheets"`
}

// AWSConfig holds AWS-specific defaults used when flags are not provided.
type AWSConfig struct {
	// DefaultRegion is used when no region flag or profile region is set.
	DefaultRegion string `yaml:"default_region" json:"default_region"`

	// DefaultProfile is used when no --profile flag is provided.
	DefaultProfile string `yaml:"default_profile" json:"default_profile"`

	// MaxConcurrency bounds the number of resources fetched and evaluated
	// at the same time.
	MaxConcurrency int `yaml:"max_concurrency" json:"max_concurrency" validate:"gte=1,lte=64"`
}

// LogConfig selects the zerolog level and output format.
type LogConfig struct {
	Level  string `yaml:"level"  json:"level"  validate:"oneof=trace debug info warn error"`
	Format string `yaml:"format" json:"format" validate:"oneof=console json"`
}

// ReportConfig holds audit report defaults.
type ReportConfig struct {
	// Format is the default --report value.
	Format string `yaml:"format" json:"format" validate:"oneof=table json markdown"`

	// PolicyFile is loaded when --policy is not given. "~" is expanded.
	PolicyFile string `yaml:"policy_file" json:"policy_file"`
}

// SheetsConfig configures the Google Sheets export of public buckets.
type SheetsConfig struct {
	// CredentialsFile is a service-account JSON key. "~" is expanded.
	CredentialsFile string `yaml:"credentials_file" json:"credentials_file"`

	// SpreadsheetID is used when --sheet-id is not given.
	SpreadsheetID string `yaml:"spreadsheet_id" json:"spreadsheet_id"`

	// Range is the A1 range rows are appended after.
	Range string `yaml:"range" json:"range" validate:"required"`

	// Mode selects RAW or NORMALIZED row serialization.
	Mode string `yaml:"mode" json:"mode" validate:"oneof=RAW NORMALIZED"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		AWS:    AWSConfig{MaxConcurrency: 8},
		Log:    LogConfig{Level: "info", Format: "console"},
		Report: ReportConfig{Format: "table"},
		Sheets: SheetsConfig{Range: "Sheet1!A1", Mode: "NORMALIZED"},
	}
}

// Loader is the interface for reading Config from disk.
// Default implementation reads from ~/.config/secops/config.yaml.
type Loader interface {
	// Load reads, parses, and validates the configuration file.
	Load() (*Config, error)

	// ConfigPath returns the absolute path to the configuration file.
	ConfigPath() string
}
