package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DirName is the directory holding config and the local base, both under $HOME
// and at a repo root.
const DirName = ".cohesion"

// EnvScoringURL overrides ScoringURL when set.
const EnvScoringURL = "COHESION_SCORING_URL"

// Config holds application configuration.
type Config struct {
	// ScoringURL is the full endpoint of the cohesion scoring service.
	ScoringURL string `json:"scoring_url,omitempty"`

	// ScoringTimeoutSeconds bounds a single scoring request. The first request
	// can be slow while the service loads its model.
	ScoringTimeoutSeconds int `json:"scoring_timeout_seconds,omitempty"`

	// PollIntervalMs is the delay between host readiness checks.
	PollIntervalMs int `json:"poll_interval_ms,omitempty"`

	// PollMaxAttempts bounds the readiness poll. Interval * attempts is the
	// effective readiness timeout.
	PollMaxAttempts int `json:"poll_max_attempts,omitempty"`

	// ProgressEvery emits a progress log line every N poll attempts.
	ProgressEvery int `json:"progress_every,omitempty"`

	// DefaultMethod is the aggregation method preselected in a fresh panel.
	DefaultMethod string `json:"default_method,omitempty"`

	// LogFile receives JSON logs in addition to stderr. Empty disables it.
	LogFile string `json:"log_file,omitempty"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// FrameAncestors lists host origins allowed to embed the web panel, in
	// addition to the panel's own origin.
	FrameAncestors []string `json:"frame_ancestors,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		ScoringURL:            "http://localhost:5000/api/calculate-cohesion",
		ScoringTimeoutSeconds: 120,
		PollIntervalMs:        100,
		PollMaxAttempts:       300,
		ProgressEvery:         20,
		DefaultMethod:         "mean",
		LogLevel:              "info",
	}
}

// PollInterval returns PollIntervalMs as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// ScoringTimeout returns ScoringTimeoutSeconds as a duration.
func (c *Config) ScoringTimeout() time.Duration {
	return time.Duration(c.ScoringTimeoutSeconds) * time.Second
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.cohesion.
func Load(baseDir string) (*Config, error) {
	cfg, err := loadFile(filepath.Join(baseDir, "config.json"))
	if err != nil {
		return nil, err
	}
	applyEnv(cfg)
	return cfg, nil
}

// LoadWithRepo loads configuration from both global (~/.cohesion) and repo (.cohesion) directories.
// Repo config is found by walking upward from startDir.
// Repo config takes precedence for scalar values; arrays are merged (deduplicated).
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	repo, err := loadFileRaw(FindRepoConfig(startDir))
	if err != nil {
		return nil, err
	}

	cfg := Merge(Merge(DefaultConfig(), global), repo)
	applyEnv(cfg)
	return cfg, nil
}

// FindRepoConfig walks upward from startDir to find the nearest .cohesion/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	dir := startDir
	for {
		configPath := filepath.Join(dir, DirName, "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

func applyEnv(cfg *Config) {
	if url := strings.TrimSpace(os.Getenv(EnvScoringURL)); url != "" {
		cfg.ScoringURL = url
	}
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{
		ScoringURL:            pickString(overlay.ScoringURL, base.ScoringURL),
		ScoringTimeoutSeconds: pickInt(overlay.ScoringTimeoutSeconds, base.ScoringTimeoutSeconds),
		PollIntervalMs:        pickInt(overlay.PollIntervalMs, base.PollIntervalMs),
		PollMaxAttempts:       pickInt(overlay.PollMaxAttempts, base.PollMaxAttempts),
		ProgressEvery:         pickInt(overlay.ProgressEvery, base.ProgressEvery),
		DefaultMethod:         pickString(overlay.DefaultMethod, base.DefaultMethod),
		LogFile:               pickString(overlay.LogFile, base.LogFile),
		LogLevel:              pickString(overlay.LogLevel, base.LogLevel),
	}

	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)
	result.FrameAncestors = mergeStringSlice(base.FrameAncestors, overlay.FrameAncestors)

	return result
}

func pickString(overlay, base string) string {
	if strings.TrimSpace(overlay) != "" {
		return overlay
	}
	return base
}

func pickInt(overlay, base int) int {
	if overlay > 0 {
		return overlay
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
