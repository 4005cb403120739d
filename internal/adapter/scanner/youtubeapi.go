package scanner

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"google.golang.org/api/option"
	youtube "google.golang.org/api/youtube/v3"

	"tunedrop/internal/domain"
)

// apiPageSize bounds how many uploads are examined per channel, large
// enough to cover the window under typical publish cadence.
const apiPageSize = 25

// APIScanner lists recent channel uploads through the YouTube Data API.
// It is the keyed scanning strategy; deployments select it in the sources
// file when a quota is available.
type APIScanner struct {
	svc      *youtube.Service
	channels []string
	history  domain.HistoryStore
	filter   *domain.RecencyFilter
}

// NewAPI builds the Data API scanner. apiKey must be non-empty.
func NewAPI(ctx context.Context, apiKey string, channels []string, history domain.HistoryStore, filter *domain.RecencyFilter) (*APIScanner, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("youtube api scanner requires an API key")
	}
	svc, err := youtube.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create youtube service: %w", err)
	}
	return &APIScanner{svc: svc, channels: channels, history: history, filter: filter}, nil
}

func (s *APIScanner) Kind() domain.SourceKind { return domain.KindVideo }
func (s *APIScanner) Name() string            { return "youtube-api" }

// Scan queries every configured channel, isolating per-channel failures.
func (s *APIScanner) Scan(ctx context.Context, now time.Time) ([]domain.Item, error) {
	var items []domain.Item
	for _, ch := range s.channels {
		entries, err := s.listChannel(ctx, strings.TrimSpace(ch))
		if err != nil {
			log.Printf("youtube: channel %s: %v", ch, err)
			continue
		}
		items = append(items, domain.SelectNew(domain.KindVideo, entries, s.history, s.filter, now)...)
	}
	return items, nil
}

func (s *APIScanner) listChannel(ctx context.Context, ref string) ([]domain.RawEntry, error) {
	playlistID, err := s.uploadsPlaylist(ctx, ref)
	if err != nil {
		return nil, err
	}

	resp, err := s.svc.PlaylistItems.
		List([]string{"snippet", "contentDetails"}).
		PlaylistId(playlistID).
		MaxResults(apiPageSize).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}

	entries := make([]domain.RawEntry, 0, len(resp.Items))
	for _, it := range resp.Items {
		if it.ContentDetails == nil || it.Snippet == nil {
			continue
		}
		id := it.ContentDetails.VideoId
		entry := domain.RawEntry{
			ID:    id,
			URL:   "https://www.youtube.com/watch?v=" + id,
			Title: it.Snippet.Title,
		}
		raw := it.ContentDetails.VideoPublishedAt
		if raw == "" {
			raw = it.Snippet.PublishedAt
		}
		if raw != "" {
			if ts, err := time.Parse(time.RFC3339, raw); err == nil {
				entry.Published = ts.In(s.filter.Location())
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// uploadsPlaylist resolves a channel reference (id URL, @handle, or bare
// id) to the channel's uploads playlist.
func (s *APIScanner) uploadsPlaylist(ctx context.Context, ref string) (string, error) {
	call := s.svc.Channels.List([]string{"contentDetails"})
	if id := channelIDPattern.FindString(ref); id != "" {
		call = call.Id(id)
	} else if at := strings.LastIndex(ref, "@"); at >= 0 {
		handle := strings.TrimRight(ref[at:], "/")
		call = call.ForHandle(handle)
	} else {
		return "", fmt.Errorf("unrecognized channel reference %q", ref)
	}

	resp, err := call.Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("resolve channel: %w", err)
	}
	if len(resp.Items) == 0 || resp.Items[0].ContentDetails == nil {
		return "", fmt.Errorf("channel not found for %q", ref)
	}
	playlistID := resp.Items[0].ContentDetails.RelatedPlaylists.Uploads
	if playlistID == "" {
		return "", fmt.Errorf("no uploads playlist for %q", ref)
	}
	return playlistID, nil
}
