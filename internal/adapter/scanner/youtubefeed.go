// Package scanner provides the per-source-kind provider adapters.
package scanner

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/time/rate"

	"tunedrop/internal/domain"
)

const (
	userAgent = "tunedrop/1.0 (+https://github.com/tunedrop)"

	// feedPageSize bounds how many feed entries are considered per
	// channel. The channel Atom feed carries at most 15 anyway.
	feedPageSize = 20

	// feedRPS paces feed and page fetches; feeds are generous but there
	// is no reason to burst.
	feedRPS = 10
)

var channelIDPattern = regexp.MustCompile(`UC[0-9A-Za-z_-]{22}`)
var pageChannelIDPattern = regexp.MustCompile(`"channelId"\s*:\s*"(UC[0-9A-Za-z_-]{22})"`)

// FeedScanner lists recent channel uploads from the public channel Atom
// feed. It is the zero-credential scanning strategy.
type FeedScanner struct {
	channels []string
	history  domain.HistoryStore
	filter   *domain.RecencyFilter

	client  *http.Client
	limiter *rate.Limiter
	parser  *gofeed.Parser

	// feedBase is the site root the feed URL is built against.
	// Overridable for tests.
	feedBase string
}

// NewFeed creates a feed scanner over the given channel references
// (channel URLs, @handle URLs, or bare channel ids).
func NewFeed(channels []string, history domain.HistoryStore, filter *domain.RecencyFilter) *FeedScanner {
	return &FeedScanner{
		channels: channels,
		history:  history,
		filter:   filter,
		client:   &http.Client{Timeout: 30 * time.Second},
		limiter:  rate.NewLimiter(rate.Limit(feedRPS), 1),
		parser:   gofeed.NewParser(),
		feedBase: "https://www.youtube.com",
	}
}

func (s *FeedScanner) Kind() domain.SourceKind { return domain.KindVideo }
func (s *FeedScanner) Name() string            { return "youtube-feed" }

// Scan queries every configured channel. A failing channel is logged and
// skipped; it never aborts the remaining channels.
func (s *FeedScanner) Scan(ctx context.Context, now time.Time) ([]domain.Item, error) {
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

func (s *FeedScanner) listChannel(ctx context.Context, ref string) ([]domain.RawEntry, error) {
	channelID, err := s.resolveChannelID(ctx, ref)
	if err != nil {
		return nil, err
	}

	feedURL := fmt.Sprintf("%s/feeds/videos.xml?channel_id=%s", s.feedBase, channelID)
	body, err := s.get(ctx, feedURL)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	feed, err := s.parser.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	entries := make([]domain.RawEntry, 0, len(feed.Items))
	for i, it := range feed.Items {
		if i >= feedPageSize {
			break
		}
		entry := domain.RawEntry{
			ID:    videoID(it),
			URL:   it.Link,
			Title: it.Title,
		}
		if it.PublishedParsed != nil {
			entry.Published = it.PublishedParsed.In(s.filter.Location())
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// resolveChannelID maps a channel reference to its canonical UC… id. For
// handle URLs it fetches the channel page and reads the id out of the
// embedded metadata. Resolution failure counts as a provider failure for
// that source.
func (s *FeedScanner) resolveChannelID(ctx context.Context, ref string) (string, error) {
	if id := channelIDPattern.FindString(ref); id != "" {
		return id, nil
	}
	if !strings.Contains(ref, "@") {
		return "", fmt.Errorf("unrecognized channel reference %q", ref)
	}

	body, err := s.get(ctx, ref)
	if err != nil {
		return "", fmt.Errorf("resolve handle: %w", err)
	}
	defer body.Close()

	page, err := io.ReadAll(io.LimitReader(body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("resolve handle: %w", err)
	}
	m := pageChannelIDPattern.FindSubmatch(page)
	if m == nil {
		return "", fmt.Errorf("no channel id found on page for %q", ref)
	}
	return string(m[1]), nil
}

func (s *FeedScanner) get(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	if _, err := url.Parse(rawURL); err != nil {
		return nil, fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP %d fetching %s", resp.StatusCode, rawURL)
	}
	return resp.Body, nil
}

// videoID extracts the video id from a feed entry, preferring the
// yt:videoId extension and falling back to the link's v parameter.
func videoID(it *gofeed.Item) string {
	if yt, ok := it.Extensions["yt"]; ok {
		if vals, ok := yt["videoId"]; ok && len(vals) > 0 && vals[0].Value != "" {
			return vals[0].Value
		}
	}
	u, err := url.Parse(it.Link)
	if err != nil {
		return ""
	}
	return u.Query().Get("v")
}
