package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

// Config holds the settings shared by every intuneforge command.
type Config struct {
	// GraphURL is the root of the Microsoft Graph API (without version segment).
	GraphURL string `yaml:"graph_url"`
	// StorageProxyURL optionally routes block uploads through a forwarding proxy.
	StorageProxyURL string `yaml:"storage_proxy_url,omitempty"`
	// PackagesDir is the directory holding package configuration files.
	PackagesDir string `yaml:"packages_dir"`
	// OutputDir is where built .intunewin containers are written.
	OutputDir string `yaml:"output_dir"`
	// LogLevel is the minimum level of emitted log entries.
	LogLevel string `yaml:"log_level"`
	// Timeout bounds every single Graph API request.
	Timeout time.Duration `yaml:"timeout"`
	// UploadTimeout bounds every single storage block request.
	UploadTimeout time.Duration `yaml:"upload_timeout"`
	// BlockSize is the size in bytes of an uploaded storage block.
	BlockSize int `yaml:"block_size"`
	// StorageURIPolling controls waiting for the delegated storage URI.
	StorageURIPolling Polling `yaml:"storage_uri_polling"`
	// CommitPolling controls waiting for the remote commit validation.
	CommitPolling Polling `yaml:"commit_polling"`
	// FinalizeRetry controls retries of the active content version update.
	FinalizeRetry Retry `yaml:"finalize_retry"`
}

// Polling is a bounded fixed-interval polling policy.
type Polling struct {
	// Interval is the delay between two polls.
	Interval time.Duration `yaml:"interval"`
	// Attempts is the maximum number of polls.
	Attempts int `yaml:"attempts"`
}

// Retry is a bounded retry policy with increasing delay.
type Retry struct {
	// Attempts is the maximum number of calls including the first one.
	Attempts int `yaml:"attempts"`
	// Delay is the wait before the first retry; it doubles afterwards.
	Delay time.Duration `yaml:"delay"`
}

const (
	// DefaultConfigFilename is the default filename for settings.
	DefaultConfigFilename = "intuneforge.yaml"

	// DefaultGraphURL is the public Microsoft Graph endpoint.
	DefaultGraphURL = "https://graph.microsoft.com"

	// DefaultPackagesDir is the default directory of package configurations.
	DefaultPackagesDir = "packages"

	// DefaultOutputDir is the default directory for built containers.
	DefaultOutputDir = "dist"

	// DefaultTimeout is the default duration of a single Graph request.
	DefaultTimeout = 30 * time.Second

	// DefaultUploadTimeout is the default duration of a single block upload.
	DefaultUploadTimeout = 5 * time.Minute

	// DefaultBlockSize is the storage block size expected by the service.
	DefaultBlockSize = 4 * 1024 * 1024

	// DefaultPollInterval is the delay between two file status polls.
	DefaultPollInterval = 2 * time.Second

	// DefaultStorageURIAttempts bounds waiting for the storage URI.
	DefaultStorageURIAttempts = 30

	// DefaultCommitAttempts bounds waiting for the commit validation.
	DefaultCommitAttempts = 60

	// DefaultFinalizeAttempts bounds the active content version update.
	DefaultFinalizeAttempts = 3

	// DefaultFinalizeDelay is the delay before the first finalize retry.
	DefaultFinalizeDelay = 2 * time.Second

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errNonPositive is returned for sizes and counts that must be positive.
	errNonPositive = errors.New("must be positive")
)

// Default returns settings populated with default values.
func Default() *Config {
	cfg := new(Config)
	applyDefaults(cfg)

	return cfg
}

// Load reads configuration from the provided path and validates it.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err = yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err = Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadOrDefault behaves like Load but returns Default when the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}

	return cfg, err
}

// Save writes the settings to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err = os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate fills unset fields with defaults and checks the remaining ones.
// All problems are reported at once.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	applyDefaults(cfg)

	var result *multierror.Error

	if _, err := url.ParseRequestURI(cfg.GraphURL); err != nil {
		result = multierror.Append(result, fmt.Errorf("invalid graph URL: %w", err))
	}

	if cfg.StorageProxyURL != "" {
		if _, err := url.ParseRequestURI(cfg.StorageProxyURL); err != nil {
			result = multierror.Append(result, fmt.Errorf("invalid storage proxy URL: %w", err))
		}
	}

	if cfg.BlockSize < 0 {
		result = multierror.Append(result, fmt.Errorf("block size %d: %w", cfg.BlockSize, errNonPositive))
	}

	for name, polling := range map[string]Polling{
		"storage URI polling": cfg.StorageURIPolling,
		"commit polling":      cfg.CommitPolling,
	} {
		if polling.Attempts < 0 || polling.Interval < 0 {
			result = multierror.Append(result, fmt.Errorf("%s: %w", name, errNonPositive))
		}
	}

	if cfg.FinalizeRetry.Attempts < 0 || cfg.FinalizeRetry.Delay < 0 {
		result = multierror.Append(result, fmt.Errorf("finalize retry: %w", errNonPositive))
	}

	return result.ErrorOrNil()
}

// applyDefaults replaces zero values with their defaults.
func applyDefaults(cfg *Config) {
	if cfg.GraphURL == "" {
		cfg.GraphURL = DefaultGraphURL
	}

	if cfg.PackagesDir == "" {
		cfg.PackagesDir = DefaultPackagesDir
	}

	if cfg.OutputDir == "" {
		cfg.OutputDir = DefaultOutputDir
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	if cfg.UploadTimeout == 0 {
		cfg.UploadTimeout = DefaultUploadTimeout
	}

	if cfg.BlockSize == 0 {
		cfg.BlockSize = DefaultBlockSize
	}

	applyPollingDefaults(&cfg.StorageURIPolling, DefaultStorageURIAttempts)
	applyPollingDefaults(&cfg.CommitPolling, DefaultCommitAttempts)

	if cfg.FinalizeRetry.Attempts == 0 {
		cfg.FinalizeRetry.Attempts = DefaultFinalizeAttempts
	}

	if cfg.FinalizeRetry.Delay == 0 {
		cfg.FinalizeRetry.Delay = DefaultFinalizeDelay
	}
}

func applyPollingDefaults(polling *Polling, attempts int) {
	if polling.Interval == 0 {
		polling.Interval = DefaultPollInterval
	}

	if polling.Attempts == 0 {
		polling.Attempts = attempts
	}
}
