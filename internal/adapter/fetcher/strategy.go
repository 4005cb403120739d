// Package fetcher turns item URLs into raw audio bytes by shelling out to
// acquisition tools, trying an ordered list of strategies per source kind.
package fetcher

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"tunedrop/internal/domain"
)

// Strategy is one concrete way of producing an audio file for an item
// inside workdir. It returns the path of the produced file.
type Strategy interface {
	Name() string
	Fetch(ctx context.Context, item domain.Item, workdir string) (string, error)
}

// YtdlpStrategy extracts audio with yt-dlp, transcoding to mp3 via ffmpeg.
type YtdlpStrategy struct {
	name          string
	binary        string
	bitrate       string
	cookies       string
	extraArgs     []string
	searchByTitle bool
}

// NewYtdlp creates the primary yt-dlp strategy. cookies may be empty;
// extraArgs are appended verbatim (e.g. alternate extractor arguments).
func NewYtdlp(name, bitrate, cookies string, extraArgs ...string) *YtdlpStrategy {
	return &YtdlpStrategy{
		name:      name,
		binary:    "yt-dlp",
		bitrate:   bitrate,
		cookies:   cookies,
		extraArgs: extraArgs,
	}
}

// NewYtdlpSearch creates a strategy that searches the video platform for
// the item's title instead of using its URL. Used as a track fallback when
// the catalog downloader fails.
func NewYtdlpSearch(name, bitrate string) *YtdlpStrategy {
	return &YtdlpStrategy{
		name:          name,
		binary:        "yt-dlp",
		bitrate:       bitrate,
		searchByTitle: true,
	}
}

func (s *YtdlpStrategy) Name() string { return s.name }

func (s *YtdlpStrategy) Fetch(ctx context.Context, item domain.Item, workdir string) (string, error) {
	target := item.URL
	if s.searchByTitle {
		target = "ytsearch1:" + item.Title
	}

	args := []string{
		"-f", "bestaudio/best",
		"-x", "--audio-format", "mp3",
		"--audio-quality", s.bitrate,
		"--no-progress", "--no-warnings",
		"--retries", "3", "--fragment-retries", "3",
		"-o", "audio.%(ext)s",
	}
	if s.cookies != "" {
		args = append(args, "--cookies", s.cookies)
	}
	args = append(args, s.extraArgs...)
	args = append(args, target)

	cmd := exec.CommandContext(ctx, s.binary, args...)
	cmd.Dir = workdir
	output, err := cmd.CombinedOutput()
	if err != nil {
		if classified := classifyToolOutput(string(output)); classified != nil {
			return "", classified
		}
		return "", fmt.Errorf("%s failed: %w: %s", s.binary, err, firstLine(output))
	}
	return findAudio(workdir)
}

// SpotdlStrategy downloads a catalog track with spotdl.
type SpotdlStrategy struct {
	name    string
	binary  string
	bitrate string
}

// NewSpotdl creates the spotdl strategy. bitrate is like "192k".
func NewSpotdl(name, bitrate string) *SpotdlStrategy {
	return &SpotdlStrategy{name: name, binary: "spotdl", bitrate: bitrate}
}

func (s *SpotdlStrategy) Name() string { return s.name }

func (s *SpotdlStrategy) Fetch(ctx context.Context, item domain.Item, workdir string) (string, error) {
	args := []string{
		"download", item.URL,
		"--output", "{artists} - {title}.{output-ext}",
		"--format", "mp3",
		"--bitrate", s.bitrate,
	}

	cmd := exec.CommandContext(ctx, s.binary, args...)
	cmd.Dir = workdir
	output, err := cmd.CombinedOutput()
	if err != nil {
		if classified := classifyToolOutput(string(output)); classified != nil {
			return "", classified
		}
		return "", fmt.Errorf("%s failed: %w: %s", s.binary, err, firstLine(output))
	}
	return findAudio(workdir)
}

// gatedMarkers are tool output fragments meaning the content is behind
// sign-in, membership, geo restrictions, or not yet live. These are
// permanent for this run; retrying other strategies wastes resources.
var gatedMarkers = []string{
	"sign in to confirm",
	"sign in to view",
	"login required",
	"private video",
	"members-only",
	"members only",
	"not available in your country",
	"geo restricted",
	"premieres in",
	"this live event will begin",
}

var notFoundMarkers = []string{
	"video unavailable",
	"has been removed",
	"does not exist",
	"404",
}

var transcodeMarkers = []string{
	"postprocessing",
	"ffprobe and ffmpeg not found",
	"conversion failed",
}

// classifyToolOutput maps tool output to a typed fetch error, or nil when
// the failure is unclassified (and therefore worth trying the next
// strategy).
func classifyToolOutput(output string) error {
	lower := strings.ToLower(output)
	for _, m := range gatedMarkers {
		if strings.Contains(lower, m) {
			return fmt.Errorf("%w: %s", domain.ErrGated, firstLine([]byte(output)))
		}
	}
	for _, m := range notFoundMarkers {
		if strings.Contains(lower, m) {
			return fmt.Errorf("%w: %s", domain.ErrNotFound, firstLine([]byte(output)))
		}
	}
	for _, m := range transcodeMarkers {
		if strings.Contains(lower, m) {
			return fmt.Errorf("%w: %s", domain.ErrTranscodeFailed, firstLine([]byte(output)))
		}
	}
	return nil
}

// findAudio returns the first mp3 produced in dir. The exact name depends
// on the tool's output template, so the directory is scanned.
func findAudio(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasSuffix(strings.ToLower(entry.Name()), ".mp3") {
			return filepath.Join(dir, entry.Name()), nil
		}
	}
	return "", fmt.Errorf("no audio file produced in %s", dir)
}

func firstLine(output []byte) string {
	s := strings.TrimSpace(string(output))
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
