package shared

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Plex     PlexConfig     `toml:"plex"`
	Matching MatchingConfig `toml:"matching"`
	Sync     SyncConfig     `toml:"sync"`
	Jobs     JobsConfig     `toml:"jobs"`
	Reports  ReportsConfig  `toml:"reports"`
	Database DatabaseConfig `toml:"database"`
	Server   ServerConfig   `toml:"server"`
	Log      LogConfig      `toml:"log"`
}

// PlexConfig contains connection settings for the Plex Media Server.
type PlexConfig struct {
	URL               string  `toml:"url"`
	Token             string  `toml:"token"`
	Library           string  `toml:"library"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// MatchingConfig contains the fuzzy matcher tunables.
type MatchingConfig struct {
	Threshold   int `toml:"threshold"`
	ArtistFloor int `toml:"artist_floor"`
	TieEpsilon  int `toml:"tie_epsilon"`
}

// SyncConfig contains playlist synchronization defaults.
type SyncConfig struct {
	DefaultMode          string `toml:"default_mode"`
	DefaultPlaylist      string `toml:"default_playlist"`
	SearchTimeoutSeconds int    `toml:"search_timeout_seconds"`
	Workers              int    `toml:"workers"`
}

// JobsConfig controls how long finished jobs remain pollable.
type JobsConfig struct {
	RetentionMinutes int `toml:"retention_minutes"`
	MaxRetained      int `toml:"max_retained"`
}

// ReportsConfig controls report retention.
type ReportsConfig struct {
	TTLMinutes int `toml:"ttl_minutes"`
	MaxReports int `toml:"max_reports"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Enabled      bool   `toml:"enabled"`
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level string `toml:"level"`
}

// LoadConfig reads a TOML configuration file from path and overlays it on [DefaultConfig].
//
// Keys missing from the file keep their default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv overlays settings from environment variables using lookup (normally [os.LookupEnv]).
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("PLEX_URL"); ok && v != "" {
		c.Plex.URL = v
	}
	if v, ok := lookup("PLEX_TOKEN"); ok && v != "" {
		c.Plex.Token = v
	}
	if v, ok := lookup("DEFAULT_MUSIC_SECTION"); ok && v != "" {
		c.Plex.Library = v
	}
	if v, ok := lookup("DEFAULT_REPLACE_PLAYLIST"); ok && v != "" {
		replace, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: DEFAULT_REPLACE_PLAYLIST=%q", ErrInvalidConfig, v)
		}
		if replace {
			c.Sync.DefaultMode = "replace"
		} else {
			c.Sync.DefaultMode = "append"
		}
	}
	if v, ok := lookup("MATCH_CONFIDENCE_THRESHOLD"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: MATCH_CONFIDENCE_THRESHOLD=%q", ErrInvalidConfig, v)
		}
		c.Matching.Threshold = n
	}
	if v, ok := lookup("APP_PORT"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: APP_PORT=%q", ErrInvalidConfig, v)
		}
		c.Server.Port = n
	}
	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		c.Log.Level = strings.ToLower(v)
	}
	return nil
}

// Validate reports configuration values that would make a sync meaningless.
func (c *Config) Validate() error {
	if c.Matching.Threshold < 0 || c.Matching.Threshold > 100 {
		return fmt.Errorf("%w: matching.threshold must be within 0-100, got %d", ErrInvalidConfig, c.Matching.Threshold)
	}
	if c.Matching.ArtistFloor < 0 || c.Matching.ArtistFloor > 100 {
		return fmt.Errorf("%w: matching.artist_floor must be within 0-100, got %d", ErrInvalidConfig, c.Matching.ArtistFloor)
	}
	if c.Matching.TieEpsilon < 0 {
		return fmt.Errorf("%w: matching.tie_epsilon must not be negative", ErrInvalidConfig)
	}
	switch strings.ToLower(c.Sync.DefaultMode) {
	case "replace", "append":
	default:
		return fmt.Errorf("%w: sync.default_mode must be replace or append, got %q", ErrInvalidConfig, c.Sync.DefaultMode)
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// PlexTimeout returns the HTTP timeout for Plex requests.
func (c *Config) PlexTimeout() time.Duration {
	return secondsOr(c.Plex.TimeoutSeconds, 30)
}

// SearchTimeout returns the per-record search deadline.
func (c *Config) SearchTimeout() time.Duration {
	return secondsOr(c.Sync.SearchTimeoutSeconds, 15)
}

// JobRetention returns how long terminal jobs stay pollable.
func (c *Config) JobRetention() time.Duration {
	return minutesOr(c.Jobs.RetentionMinutes, 60)
}

// ReportTTL returns how long generated reports remain downloadable.
func (c *Config) ReportTTL() time.Duration {
	return minutesOr(c.Reports.TTLMinutes, 60)
}

func secondsOr(n, fallback int) time.Duration {
	if n <= 0 {
		n = fallback
	}
	return time.Duration(n) * time.Second
}

func minutesOr(n, fallback int) time.Duration {
	if n <= 0 {
		n = fallback
	}
	return time.Duration(n) * time.Minute
}
