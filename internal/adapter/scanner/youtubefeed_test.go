package scanner

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tunedrop/internal/domain"
)

const testChannelID = "UCabcdefghijklmnopqrstuv"

func feedXML(now time.Time) string {
	recent := now.Add(-48 * time.Hour).Format(time.RFC3339)
	stale := now.Add(-10 * 24 * time.Hour).Format(time.RFC3339)
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns:yt="http://www.youtube.com/xml/schemas/2015" xmlns="http://www.w3.org/2005/Atom">
  <title>Test Channel</title>
  <entry>
    <id>yt:video:vid-recent</id>
    <yt:videoId>vid-recent</yt:videoId>
    <title>New Song</title>
    <link rel="alternate" href="https://www.youtube.com/watch?v=vid-recent"/>
    <published>%s</published>
  </entry>
  <entry>
    <id>yt:video:vid-known</id>
    <yt:videoId>vid-known</yt:videoId>
    <title>Already Delivered</title>
    <link rel="alternate" href="https://www.youtube.com/watch?v=vid-known"/>
    <published>%s</published>
  </entry>
  <entry>
    <id>yt:video:vid-stale</id>
    <yt:videoId>vid-stale</yt:videoId>
    <title>Old Song</title>
    <link rel="alternate" href="https://www.youtube.com/watch?v=vid-stale"/>
    <published>%s</published>
  </entry>
</feed>`, recent, recent, stale)
}

func newFeedServer(t *testing.T, now time.Time) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/feeds/videos.xml", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("channel_id"); got != testChannelID {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/atom+xml")
		fmt.Fprint(w, feedXML(now))
	})
	mux.HandleFunc("/@testhandle", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html><script>var ytcfg = {"channelId":"%s"};</script></html>`, testChannelID)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newVideoHistory(ids ...string) domain.HistoryStore {
	h := &fakeHistory{seen: make(map[string]struct{})}
	for _, id := range ids {
		h.Record(domain.KindVideo, id)
	}
	return h
}

// fakeHistory implements domain.HistoryStore for scanner tests; the kind
// is folded into the key.
type fakeHistory struct {
	seen map[string]struct{}
}

func (h *fakeHistory) Contains(kind domain.SourceKind, id string) bool {
	_, ok := h.seen[string(kind)+"/"+id]
	return ok
}

func (h *fakeHistory) Record(kind domain.SourceKind, id string) {
	h.seen[string(kind)+"/"+id] = struct{}{}
}

func (h *fakeHistory) Flush() error                     { return nil }
func (h *fakeHistory) Sizes() map[domain.SourceKind]int { return nil }
func (h *fakeHistory) Close() error                     { return nil }

func TestFeedScanner_Scan(t *testing.T) {
	filter := domain.NewRecencyFilter(0)
	now := filter.Now()
	srv := newFeedServer(t, now)

	s := NewFeed(
		[]string{"https://www.youtube.com/channel/" + testChannelID},
		newVideoHistory("vid-known"),
		filter,
	)
	s.feedBase = srv.URL

	items, err := s.Scan(context.Background(), now)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("Scan() returned %d items, want 1", len(items))
	}
	it := items[0]
	if it.ID != "vid-recent" {
		t.Errorf("item ID = %q, want vid-recent", it.ID)
	}
	if it.Kind != domain.KindVideo {
		t.Errorf("item Kind = %q, want %q", it.Kind, domain.KindVideo)
	}
	if it.Title != "New Song" {
		t.Errorf("item Title = %q, want New Song", it.Title)
	}
	if it.URL != "https://www.youtube.com/watch?v=vid-recent" {
		t.Errorf("item URL = %q", it.URL)
	}
}

func TestFeedScanner_HandleResolution(t *testing.T) {
	filter := domain.NewRecencyFilter(0)
	now := filter.Now()
	srv := newFeedServer(t, now)

	s := NewFeed([]string{srv.URL + "/@testhandle"}, newVideoHistory(), filter)
	s.feedBase = srv.URL

	items, err := s.Scan(context.Background(), now)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("Scan() returned %d items, want 2", len(items))
	}
}

func TestFeedScanner_FailingChannelIsIsolated(t *testing.T) {
	filter := domain.NewRecencyFilter(0)
	now := filter.Now()
	srv := newFeedServer(t, now)

	s := NewFeed(
		[]string{
			"https://www.youtube.com/channel/UC000000000000000000000x", // unknown channel, 404
			"https://www.youtube.com/channel/" + testChannelID,
		},
		newVideoHistory(),
		filter,
	)
	s.feedBase = srv.URL

	items, err := s.Scan(context.Background(), now)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("Scan() returned %d items, want 2 from the healthy channel", len(items))
	}
}

func TestResolveChannelID_Direct(t *testing.T) {
	s := NewFeed(nil, newVideoHistory(), domain.NewRecencyFilter(0))

	tests := []struct {
		ref     string
		want    string
		wantErr bool
	}{
		{"https://www.youtube.com/channel/" + testChannelID, testChannelID, false},
		{testChannelID, testChannelID, false},
		{"https://www.youtube.com/watch?v=abc", "", true},
	}
	for _, tt := range tests {
		got, err := s.resolveChannelID(context.Background(), tt.ref)
		if (err != nil) != tt.wantErr {
			t.Errorf("resolveChannelID(%q) error = %v, wantErr %v", tt.ref, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("resolveChannelID(%q) = %q, want %q", tt.ref, got, tt.want)
		}
	}
}
