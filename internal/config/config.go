package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/chaz8081/gostt-translate/internal/lang"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Languages  LanguagesConfig  `yaml:"languages"`
	Audio      AudioConfig      `yaml:"audio"`
	Recording  RecordingConfig  `yaml:"recording"`
	Playback   PlaybackConfig   `yaml:"playback"`
	Permission PermissionConfig `yaml:"permission"`
	Hotkey     HotkeyConfig     `yaml:"hotkey"`
	Output     OutputConfig     `yaml:"output"`
	Auth       AuthConfig       `yaml:"auth"`
	LogLevel   string           `yaml:"log_level"`
}

// ServerConfig describes the remote translation/synthesis service.
type ServerConfig struct {
	BaseURL           string        `yaml:"base_url"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`    // accent store, identity lookup
	TranslateTimeout  time.Duration `yaml:"translate_timeout"`  // upload + transcribe + translate
	SynthesizeTimeout time.Duration `yaml:"synthesize_timeout"` // voice generation, the slowest stage
}

// LanguagesConfig holds the initial language pair.
type LanguagesConfig struct {
	Source string `yaml:"source"`
	Target string `yaml:"target"`
}

// AudioConfig holds audio capture settings.
type AudioConfig struct {
	SampleRate uint32 `yaml:"sample_rate"`
	Channels   uint32 `yaml:"channels"`
}

// RecordingConfig controls where recordings are written.
type RecordingConfig struct {
	Dir       string `yaml:"dir"` // empty means the OS temp dir
	KeepFiles bool   `yaml:"keep_files"`
}

// PlaybackConfig controls synthesized audio playback.
type PlaybackConfig struct {
	Autoplay     bool          `yaml:"autoplay"`
	PollInterval time.Duration `yaml:"poll_interval"` // fallback engine completion polling
	CacheDir     string        `yaml:"cache_dir"`
}

// PermissionConfig controls the microphone permission gate.
type PermissionConfig struct {
	MaxPrompts int `yaml:"max_prompts"`
}

// HotkeyConfig holds hotkey-related settings.
type HotkeyConfig struct {
	Keys       []string `yaml:"keys"`
	CancelKeys []string `yaml:"cancel_keys"`
	Mode       string   `yaml:"mode"` // "hold" or "toggle"
}

// OutputConfig controls delivery of the translated text.
type OutputConfig struct {
	Method string `yaml:"method"` // "none", "type", "paste" or "clipboard"
}

// AuthConfig holds caller credentials. Secrets normally live in EnvFile.
type AuthConfig struct {
	EnvFile       string `yaml:"env_file"`
	Token         string `yaml:"token"`
	CallerID      string `yaml:"caller_id"`
	ResolveCaller bool   `yaml:"resolve_caller"` // look up caller_id via /api/users/me
}

// Environment variables that override file values.
const (
	EnvToken    = "GOSTT_TOKEN"
	EnvCallerID = "GOSTT_CALLER_ID"
	EnvBaseURL  = "GOSTT_BASE_URL"
)

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "gostt-translate")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// DefaultCacheDir returns the directory for downloaded playback artifacts.
func DefaultCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "gostt-translate")
	}
	return filepath.Join(dir, "gostt-translate")
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			BaseURL:           "http://127.0.0.1:8000",
			RequestTimeout:    10 * time.Second,
			TranslateTimeout:  2 * time.Minute,
			SynthesizeTimeout: 5 * time.Minute,
		},
		Languages: LanguagesConfig{
			Source: "eng_Latn",
			Target: "hin_Deva",
		},
		Audio: AudioConfig{
			SampleRate: 16000,
			Channels:   1,
		},
		Playback: PlaybackConfig{
			Autoplay:     true,
			PollInterval: 100 * time.Millisecond,
			CacheDir:     DefaultCacheDir(),
		},
		Permission: PermissionConfig{
			MaxPrompts: 2,
		},
		Hotkey: HotkeyConfig{
			Keys:       []string{"ctrl", "shift", "t"},
			CancelKeys: []string{"ctrl", "shift", "x"},
			Mode:       "hold",
		},
		Output: OutputConfig{
			Method: "none",
		},
		Auth: AuthConfig{
			EnvFile: filepath.Join(DefaultConfigDir(), ".env"),
		},
		LogLevel: "info",
	}
}

// Load reads and parses a YAML config file. Missing fields are filled
// with defaults. Tilde (~) in paths is expanded to the user's home directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.Recording.Dir = expandTilde(cfg.Recording.Dir)
	cfg.Playback.CacheDir = expandTilde(cfg.Playback.CacheDir)
	cfg.Auth.EnvFile = expandTilde(cfg.Auth.EnvFile)

	return cfg, nil
}

// LoadEnv fills credentials from the env file (if it exists) and the process
// environment. Variables already set in the environment win over the file,
// and both win over values from config.yaml.
func (c *Config) LoadEnv() error {
	if c.Auth.EnvFile != "" {
		if _, err := os.Stat(c.Auth.EnvFile); err == nil {
			if err := godotenv.Load(c.Auth.EnvFile); err != nil {
				return fmt.Errorf("loading env file %s: %w", c.Auth.EnvFile, err)
			}
		}
	}

	if v := os.Getenv(EnvToken); v != "" {
		c.Auth.Token = v
	}
	if v := os.Getenv(EnvCallerID); v != "" {
		c.Auth.CallerID = v
	}
	if v := os.Getenv(EnvBaseURL); v != "" {
		c.Server.BaseURL = v
	}
	return nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Server.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("server.base_url must be an absolute URL, got %q", c.Server.BaseURL)
	}

	if c.Server.RequestTimeout <= 0 || c.Server.TranslateTimeout <= 0 || c.Server.SynthesizeTimeout <= 0 {
		return fmt.Errorf("server timeouts must be > 0")
	}

	if c.Server.SynthesizeTimeout < c.Server.TranslateTimeout {
		return fmt.Errorf("server.synthesize_timeout (%s) must not be shorter than server.translate_timeout (%s)",
			c.Server.SynthesizeTimeout, c.Server.TranslateTimeout)
	}

	if err := c.Pair().Validate(); err != nil {
		return fmt.Errorf("languages: %w", err)
	}

	if c.Audio.SampleRate == 0 {
		return fmt.Errorf("audio.sample_rate must be > 0")
	}

	if c.Audio.Channels == 0 {
		return fmt.Errorf("audio.channels must be > 0")
	}

	if c.Playback.PollInterval <= 0 {
		return fmt.Errorf("playback.poll_interval must be > 0")
	}

	if c.Permission.MaxPrompts <= 0 {
		return fmt.Errorf("permission.max_prompts must be > 0")
	}

	if len(c.Hotkey.Keys) == 0 {
		return fmt.Errorf("hotkey.keys must not be empty")
	}

	switch c.Hotkey.Mode {
	case "hold", "toggle":
	default:
		return fmt.Errorf("hotkey.mode must be \"hold\" or \"toggle\", got %q", c.Hotkey.Mode)
	}

	switch c.Output.Method {
	case "none", "type", "paste", "clipboard":
	default:
		return fmt.Errorf("output.method must be none, type, paste, or clipboard, got %q", c.Output.Method)
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	return nil
}

// ValidateCredentials checks that the caller can authenticate. It is separate
// from Validate because commands like "languages" need no credentials.
func (c *Config) ValidateCredentials() error {
	if c.Auth.Token == "" {
		return fmt.Errorf("auth token is not set (set %s or auth.token)", EnvToken)
	}
	if c.Auth.CallerID == "" && !c.Auth.ResolveCaller {
		return fmt.Errorf("caller id is not set (set %s, auth.caller_id, or auth.resolve_caller)", EnvCallerID)
	}
	return nil
}

// Pair returns the configured language pair.
func (c *Config) Pair() lang.Pair {
	return lang.Pair{Source: c.Languages.Source, Target: c.Languages.Target}
}

// RecordingDir returns the directory recordings are written to.
func (c *Config) RecordingDir() string {
	if c.Recording.Dir == "" {
		return filepath.Join(os.TempDir(), "gostt-translate")
	}
	return c.Recording.Dir
}

// WriteDefault writes the default config to DefaultConfigPath if no file
// exists there yet. It returns the written path, or "" if a file already
// existed.
func WriteDefault() (string, error) {
	path := DefaultConfigPath()
	if _, err := os.Stat(path); err == nil {
		return "", nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("creating config dir: %w", err)
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return "", fmt.Errorf("encoding default config: %w", err)
	}

	header := "# gostt-translate configuration\n# Credentials belong in auth.env_file (GOSTT_TOKEN, GOSTT_CALLER_ID).\n\n"
	if err := os.WriteFile(path, append([]byte(header), data...), 0644); err != nil {
		return "", fmt.Errorf("writing config file: %w", err)
	}
	return path, nil
}

// ParseLogLevel maps a log_level string to a slog.Level, defaulting to info.
func ParseLogLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// expandTilde replaces a leading ~ with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
