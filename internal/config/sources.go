package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Sources is the watch list loaded from the sources TOML file.
type Sources struct {
	YouTube YouTubeSources `toml:"youtube"`
	Spotify SpotifySources `toml:"spotify"`
	History HistoryConfig  `toml:"history"`
}

// YouTubeSources selects the channel list and the scan strategy.
type YouTubeSources struct {
	// Strategy is "feed" (public Atom feeds) or "api" (Data API v3).
	Strategy string   `toml:"strategy"`
	Channels []string `toml:"channels"`
}

// SpotifySources lists artists to watch and the catalog market.
type SpotifySources struct {
	Artists []string `toml:"artists"`
	Market  string   `toml:"market"`
}

// HistoryConfig selects the history backend and its bound.
type HistoryConfig struct {
	// Backend is "json" or "sqlite".
	Backend string `toml:"backend"`
	// MaxEntries trims the oldest ids past the bound; 0 keeps all.
	MaxEntries int `toml:"max_entries"`
}

// LoadSources reads and validates the sources file.
func LoadSources(path string) (*Sources, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources file: %w", err)
	}
	return ParseSources(data)
}

// ParseSources decodes the TOML document and applies defaults.
func ParseSources(data []byte) (*Sources, error) {
	var s Sources
	if err := toml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse sources file: %w", err)
	}

	if s.YouTube.Strategy == "" {
		s.YouTube.Strategy = "feed"
	}
	switch s.YouTube.Strategy {
	case "feed", "api":
	default:
		return nil, fmt.Errorf("unknown youtube strategy %q (want feed or api)", s.YouTube.Strategy)
	}

	if s.History.Backend == "" {
		s.History.Backend = "json"
	}
	switch s.History.Backend {
	case "json", "sqlite":
	default:
		return nil, fmt.Errorf("unknown history backend %q (want json or sqlite)", s.History.Backend)
	}
	if s.History.MaxEntries < 0 {
		return nil, fmt.Errorf("history max_entries must not be negative")
	}

	if len(s.YouTube.Channels) == 0 && len(s.Spotify.Artists) == 0 {
		return nil, fmt.Errorf("sources file lists no channels and no artists")
	}
	return &s, nil
}
