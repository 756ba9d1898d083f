// Package config loads backfill settings from backfill.yaml.
// Configuration comes from the settings file only; there are no environment
// variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// SettingsFileName is the settings file looked up under the base directory.
const SettingsFileName = "backfill.yaml"

// RawSettings mirrors the structure of backfill.yaml. Fields are pointers so
// an absent key can be told apart from a zero value when applying defaults.
type RawSettings struct {
	// Directories
	JournalDir *string `yaml:"journal_dir"`
	ArchiveDir *string `yaml:"archive_dir"`

	// Run behavior
	TargetDate     *string `yaml:"target_date"`
	Workers        *int    `yaml:"workers"`
	LockTimeoutSec *int    `yaml:"lock_timeout_sec"`
	LeaseTTLSec    *int    `yaml:"lease_ttl_sec"`

	// Logging
	LogLevel *string `yaml:"log_level"`

	// Archive backend: "local" or "s3"
	Storage *string `yaml:"storage"`

	Feed *RawFeedSettings `yaml:"feed"`
	S3   *RawS3Settings   `yaml:"s3"`
}

// RawFeedSettings configures the upstream feed client.
type RawFeedSettings struct {
	BaseURL    *string `yaml:"base_url"`
	RatePerMin *int    `yaml:"rate_per_min"`
	PageSize   *int    `yaml:"page_size"`
}

// RawS3Settings configures the S3 archive backend.
type RawS3Settings struct {
	Bucket    *string `yaml:"bucket"`
	Prefix    *string `yaml:"prefix"`
	Region    *string `yaml:"region"`
	Endpoint  *string `yaml:"endpoint"`
	AccessKey *string `yaml:"access_key"`
	SecretKey *string `yaml:"secret_key"`
}

// Settings is the resolved configuration used by the commands.
type Settings struct {
	JournalDir     string
	ArchiveDir     string
	TargetDate     string
	Workers        int
	LockTimeoutSec int
	LeaseTTLSec    int
	LogLevel       string
	Storage        string
	Feed           FeedSettings
	S3             S3Settings

	// ConfigSource records where the values came from: "file" or "default".
	ConfigSource string
	SettingPath  string
}

// FeedSettings is the resolved feed client configuration.
type FeedSettings struct {
	BaseURL    string
	RatePerMin int
	PageSize   int
}

// S3Settings is the resolved S3 archive configuration.
type S3Settings struct {
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// LockTimeout is the budget for acquiring a journal file lock.
func (s *Settings) LockTimeout() time.Duration {
	return time.Duration(s.LockTimeoutSec) * time.Second
}

// LeaseTTL is how long a Started entry blocks other runs.
func (s *Settings) LeaseTTL() time.Duration {
	return time.Duration(s.LeaseTTLSec) * time.Second
}

// LoadSettings loads configuration from backfill.yaml under baseDir.
// Priority: backfill.yaml > defaults. A missing file is not an error.
func LoadSettings(baseDir string) (*Settings, error) {
	settings := &RawSettings{}
	configSource := "default"
	settingPath := ""

	yamlPath := filepath.Join(baseDir, SettingsFileName)
	if data, err := os.ReadFile(yamlPath); err == nil {
		if err := yaml.Unmarshal(data, settings); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", yamlPath, err)
		}
		configSource = "file"
		settingPath = yamlPath
	}

	applyDefaults(settings)

	built := build(settings, configSource, settingPath)
	if err := validate(built); err != nil {
		return nil, err
	}
	return built, nil
}

// applyDefaults fills in default values for any nil fields
func applyDefaults(settings *RawSettings) {
	// Directories
	if settings.JournalDir == nil {
		v := ".backfill/journal"
		settings.JournalDir = &v
	}
	if settings.ArchiveDir == nil {
		v := ".backfill/archive"
		settings.ArchiveDir = &v
	}

	// Run behavior
	if settings.TargetDate == nil {
		v := ""
		settings.TargetDate = &v
	}
	if settings.Workers == nil {
		v := 4
		settings.Workers = &v
	}
	if settings.LockTimeoutSec == nil {
		v := 180
		settings.LockTimeoutSec = &v
	}
	if settings.LeaseTTLSec == nil {
		v := 300
		settings.LeaseTTLSec = &v
	}

	// Logging
	if settings.LogLevel == nil {
		v := "info"
		settings.LogLevel = &v
	}

	// Archive backend
	if settings.Storage == nil {
		v := "local"
		settings.Storage = &v
	}

	// Feed
	if settings.Feed == nil {
		settings.Feed = &RawFeedSettings{}
	}
	if settings.Feed.BaseURL == nil {
		v := ""
		settings.Feed.BaseURL = &v
	}
	if settings.Feed.RatePerMin == nil {
		v := 60
		settings.Feed.RatePerMin = &v
	}
	if settings.Feed.PageSize == nil {
		v := 50
		settings.Feed.PageSize = &v
	}

	// S3
	if settings.S3 == nil {
		settings.S3 = &RawS3Settings{}
	}
	if settings.S3.Bucket == nil {
		v := ""
		settings.S3.Bucket = &v
	}
	if settings.S3.Prefix == nil {
		v := ""
		settings.S3.Prefix = &v
	}
	if settings.S3.Region == nil {
		v := ""
		settings.S3.Region = &v
	}
	if settings.S3.Endpoint == nil {
		v := ""
		settings.S3.Endpoint = &v
	}
	if settings.S3.AccessKey == nil {
		v := ""
		settings.S3.AccessKey = &v
	}
	if settings.S3.SecretKey == nil {
		v := ""
		settings.S3.SecretKey = &v
	}
}

// build converts RawSettings to Settings
func build(settings *RawSettings, configSource, settingPath string) *Settings {
	return &Settings{
		JournalDir:     *settings.JournalDir,
		ArchiveDir:     *settings.ArchiveDir,
		TargetDate:     *settings.TargetDate,
		Workers:        *settings.Workers,
		LockTimeoutSec: *settings.LockTimeoutSec,
		LeaseTTLSec:    *settings.LeaseTTLSec,
		LogLevel:       *settings.LogLevel,
		Storage:        *settings.Storage,
		Feed: FeedSettings{
			BaseURL:    *settings.Feed.BaseURL,
			RatePerMin: *settings.Feed.RatePerMin,
			PageSize:   *settings.Feed.PageSize,
		},
		S3: S3Settings{
			Bucket:    *settings.S3.Bucket,
			Prefix:    *settings.S3.Prefix,
			Region:    *settings.S3.Region,
			Endpoint:  *settings.S3.Endpoint,
			AccessKey: *settings.S3.AccessKey,
			SecretKey: *settings.S3.SecretKey,
		},
		ConfigSource: configSource,
		SettingPath:  settingPath,
	}
}

func validate(s *Settings) error {
	if s.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", s.Workers)
	}
	if s.LockTimeoutSec < 0 {
		return fmt.Errorf("lock_timeout_sec cannot be negative, got %d", s.LockTimeoutSec)
	}
	if s.LeaseTTLSec < 1 {
		return fmt.Errorf("lease_ttl_sec must be at least 1, got %d", s.LeaseTTLSec)
	}
	if s.Storage != "local" && s.Storage != "s3" {
		return fmt.Errorf("storage must be %q or %q, got %q", "local", "s3", s.Storage)
	}
	if s.Storage == "s3" && s.S3.Bucket == "" {
		return fmt.Errorf("storage %q requires s3.bucket", "s3")
	}
	return nil
}

// CreateDefaultSettings renders a default backfill.yaml.
func CreateDefaultSettings() []byte {
	return DefaultSettingsFor(".backfill")
}

// DefaultSettingsFor renders a default backfill.yaml whose journal and
// archive directories live under baseDir.
func DefaultSettingsFor(baseDir string) []byte {
	journalDir := filepath.Join(baseDir, "journal")
	archiveDir := filepath.Join(baseDir, "archive")
	settings := &RawSettings{JournalDir: &journalDir, ArchiveDir: &archiveDir}
	applyDefaults(settings)

	data, _ := yaml.Marshal(settings)
	return data
}
