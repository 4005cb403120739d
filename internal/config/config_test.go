package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultHistoryPath(t *testing.T) {
	t.Run("with XDG_CACHE_HOME", func(t *testing.T) {
		t.Setenv("XDG_CACHE_HOME", "/custom/cache")
		path := DefaultHistoryPath()

		expected := "/custom/cache/tunedrop/history.json"
		if path != expected {
			t.Errorf("DefaultHistoryPath() = %q, want %q", path, expected)
		}
	})

	t.Run("without XDG_CACHE_HOME", func(t *testing.T) {
		t.Setenv("XDG_CACHE_HOME", "")
		os.Unsetenv("XDG_CACHE_HOME")
		path := DefaultHistoryPath()

		if !strings.HasSuffix(path, filepath.Join(".cache", "tunedrop", "history.json")) {
			t.Errorf("DefaultHistoryPath() = %q, want suffix .cache/tunedrop/history.json", path)
		}
	})
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"TELEGRAM_BOT_TOKEN":    "123:abc",
		"TELEGRAM_CHAT_ID":      "-1001234567890",
		"SPOTIFY_CLIENT_ID":     "cid",
		"SPOTIFY_CLIENT_SECRET": "csecret",
		"TUNEDROP_WINDOW":       "48h",
		"TUNEDROP_SOURCES":      "/etc/tunedrop/sources.toml",
	}
	cfg := &Config{SourcesPath: "sources.toml", Window: 7 * 24 * time.Hour}
	if err := applyEnv(cfg, func(k string) string { return env[k] }); err != nil {
		t.Fatalf("applyEnv() error = %v", err)
	}

	if cfg.BotToken != "123:abc" {
		t.Errorf("BotToken = %q", cfg.BotToken)
	}
	if cfg.ChatID != -1001234567890 {
		t.Errorf("ChatID = %d", cfg.ChatID)
	}
	if !cfg.SpotifyEnabled() {
		t.Error("SpotifyEnabled() = false with both credentials set")
	}
	if cfg.Window != 48*time.Hour {
		t.Errorf("Window = %s, want 48h", cfg.Window)
	}
	if cfg.SourcesPath != "/etc/tunedrop/sources.toml" {
		t.Errorf("SourcesPath = %q", cfg.SourcesPath)
	}
}

func TestApplyEnv_MalformedValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"bad chat id", map[string]string{"TELEGRAM_CHAT_ID": "not-a-number"}, "TELEGRAM_CHAT_ID"},
		{"bad window", map[string]string{"TUNEDROP_WINDOW": "seven days"}, "TUNEDROP_WINDOW"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			err := applyEnv(cfg, func(k string) string { return tt.env[k] })
			if err == nil {
				t.Fatal("applyEnv() error = nil for malformed value")
			}
			// The diagnostic must name the offending variable and value.
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("applyEnv() error = %q, want mention of %s", err, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"ok", Config{BotToken: "t", ChatID: 1, Window: time.Hour}, false},
		{"missing token", Config{ChatID: 1, Window: time.Hour}, true},
		{"missing chat id", Config{BotToken: "t", Window: time.Hour}, true},
		{"zero window", Config{BotToken: "t", ChatID: 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validate(&tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSpotifyEnabled_PartialCredentials(t *testing.T) {
	cfg := &Config{SpotifyClientID: "cid"}
	if cfg.SpotifyEnabled() {
		t.Error("SpotifyEnabled() = true with secret missing")
	}
}

func TestParseSources(t *testing.T) {
	doc := []byte(`
[youtube]
strategy = "api"
channels = ["https://www.youtube.com/@SomeHandle", "UCabcdefghijklmnopqrstuv"]

[spotify]
artists = ["https://open.spotify.com/artist/4Z8W4fKeB5YxbusRsdQVPb"]
market = "FR"

[history]
backend = "sqlite"
max_entries = 500
`)
	s, err := ParseSources(doc)
	if err != nil {
		t.Fatalf("ParseSources() error = %v", err)
	}
	if s.YouTube.Strategy != "api" {
		t.Errorf("strategy = %q", s.YouTube.Strategy)
	}
	if len(s.YouTube.Channels) != 2 {
		t.Errorf("channels = %d, want 2", len(s.YouTube.Channels))
	}
	if len(s.Spotify.Artists) != 1 || s.Spotify.Market != "FR" {
		t.Errorf("spotify = %+v", s.Spotify)
	}
	if s.History.Backend != "sqlite" || s.History.MaxEntries != 500 {
		t.Errorf("history = %+v", s.History)
	}
}

func TestParseSources_Defaults(t *testing.T) {
	doc := []byte(`
[youtube]
channels = ["UCabcdefghijklmnopqrstuv"]
`)
	s, err := ParseSources(doc)
	if err != nil {
		t.Fatalf("ParseSources() error = %v", err)
	}
	if s.YouTube.Strategy != "feed" {
		t.Errorf("default strategy = %q, want feed", s.YouTube.Strategy)
	}
	if s.History.Backend != "json" {
		t.Errorf("default backend = %q, want json", s.History.Backend)
	}
	if s.History.MaxEntries != 0 {
		t.Errorf("default max_entries = %d, want 0", s.History.MaxEntries)
	}
}

func TestParseSources_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"bad toml", `[youtube` + "\n"},
		{"unknown strategy", "[youtube]\nstrategy = \"scrape\"\nchannels = [\"a\"]\n"},
		{"unknown backend", "[youtube]\nchannels = [\"a\"]\n[history]\nbackend = \"csv\"\n"},
		{"negative max_entries", "[youtube]\nchannels = [\"a\"]\n[history]\nmax_entries = -1\n"},
		{"empty watch list", "[history]\nbackend = \"json\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseSources([]byte(tt.doc)); err == nil {
				t.Error("ParseSources() error = nil, want error")
			}
		})
	}
}

func TestLoadSources_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.toml")
	doc := "[spotify]\nartists = [\"4Z8W4fKeB5YxbusRsdQVPb\"]\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := LoadSources(path)
	if err != nil {
		t.Fatalf("LoadSources() error = %v", err)
	}
	if len(s.Spotify.Artists) != 1 {
		t.Errorf("artists = %d, want 1", len(s.Spotify.Artists))
	}
}

func TestLoadSources_Missing(t *testing.T) {
	if _, err := LoadSources(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Error("LoadSources() error = nil for missing file")
	}
}
