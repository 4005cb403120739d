// Package config assembles runtime settings from flags, environment, and
// the sources TOML file. Flags carry tunables, environment carries
// secrets, and the TOML file carries what to watch.
package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	SourcesPath  string
	HistoryPath  string
	Window       time.Duration
	MaxRetries   int
	RetryDelay   time.Duration
	ItemDelay    time.Duration
	PollInterval time.Duration
	Port         int
	CookiesPath  string
	Bitrate      string

	BotToken string
	ChatID   int64

	SpotifyClientID     string
	SpotifyClientSecret string
	YouTubeAPIKey       string
}

// DefaultHistoryPath returns the default history location under
// XDG_CACHE_HOME.
func DefaultHistoryPath() string {
	cacheDir := os.Getenv("XDG_CACHE_HOME")
	if cacheDir == "" {
		home, _ := os.UserHomeDir()
		cacheDir = filepath.Join(home, ".cache")
	}
	return filepath.Join(cacheDir, "tunedrop", "history.json")
}

// Load parses flags and environment to build Config. A .env file in the
// working directory is loaded first if present; real environment wins.
func Load(args []string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	fs := flag.NewFlagSet("tunedrop", flag.ContinueOnError)
	fs.StringVar(&cfg.SourcesPath, "sources", "sources.toml", "Path to the sources TOML file")
	fs.StringVar(&cfg.HistoryPath, "history", DefaultHistoryPath(), "Path to the delivery history file")
	fs.DurationVar(&cfg.Window, "window", 7*24*time.Hour, "Recency window; older items are ignored")
	fs.IntVar(&cfg.MaxRetries, "max-retries", 3, "Delivery retries after the initial attempt")
	fs.DurationVar(&cfg.RetryDelay, "retry-delay", 10*time.Second, "Pause after a transient delivery failure")
	fs.DurationVar(&cfg.ItemDelay, "item-delay", 5*time.Second, "Pause between deliveries")
	fs.DurationVar(&cfg.PollInterval, "poll-interval", 0, "Pause between passes; 0 runs a single pass")
	fs.IntVar(&cfg.Port, "port", 0, "Status server port; 0 disables it")
	fs.StringVar(&cfg.CookiesPath, "cookies", "", "Cookies file handed to the downloader")
	fs.StringVar(&cfg.Bitrate, "bitrate", "192k", "Audio bitrate for transcoding")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if err := applyEnv(cfg, os.Getenv); err != nil {
		return nil, err
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv layers environment values over cfg. Paths and secrets come
// from getenv so tests can inject their own environment. A malformed
// value is a configuration fault, not a silent fallback.
func applyEnv(cfg *Config, getenv func(string) string) error {
	if v := getenv("TUNEDROP_SOURCES"); v != "" {
		cfg.SourcesPath = v
	}
	if v := getenv("TUNEDROP_HISTORY"); v != "" {
		cfg.HistoryPath = v
	}
	if v := getenv("TUNEDROP_WINDOW"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("TUNEDROP_WINDOW %q is not a duration: %w", v, err)
		}
		cfg.Window = d
	}

	cfg.BotToken = getenv("TELEGRAM_BOT_TOKEN")
	if v := getenv("TELEGRAM_CHAT_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("TELEGRAM_CHAT_ID %q is not an integer chat id: %w", v, err)
		}
		cfg.ChatID = id
	}
	cfg.SpotifyClientID = getenv("SPOTIFY_CLIENT_ID")
	cfg.SpotifyClientSecret = getenv("SPOTIFY_CLIENT_SECRET")
	cfg.YouTubeAPIKey = getenv("YOUTUBE_API_KEY")
	return nil
}

func validate(cfg *Config) error {
	if cfg.BotToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}
	if cfg.ChatID == 0 {
		return fmt.Errorf("TELEGRAM_CHAT_ID is required and must be an integer chat id")
	}
	if cfg.Window <= 0 {
		return fmt.Errorf("window must be positive, got %s", cfg.Window)
	}
	return nil
}

// SpotifyEnabled reports whether Spotify credentials are configured.
func (c *Config) SpotifyEnabled() bool {
	return c.SpotifyClientID != "" && c.SpotifyClientSecret != ""
}
