package scanner

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"

	"tunedrop/internal/domain"
)

const (
	// albumPageSize covers recent releases without walking the whole
	// discography.
	albumPageSize = 30
	// trackPageSize is enough for any single album or EP.
	trackPageSize = 50
)

// catalogAlbum is one artist release as the catalog reports it, with the
// release date still in its raw precision-dependent form.
type catalogAlbum struct {
	ID          string
	Name        string
	ReleaseDate string
	Precision   domain.Precision
}

// catalogTrack is one album track, already titled for delivery.
type catalogTrack struct {
	ID    string
	URL   string
	Title string
}

// catalog is the narrow view of the music catalog API the scanner needs.
type catalog interface {
	ArtistAlbums(ctx context.Context, artistID string, limit int) ([]catalogAlbum, error)
	AlbumTracks(ctx context.Context, albumID string, limit int) ([]catalogTrack, error)
}

// SpotifyScanner lists tracks from albums and singles an artist released
// inside the recency window. Tracks inherit the album's release instant.
type SpotifyScanner struct {
	cat     catalog
	artists []string
	history domain.HistoryStore
	filter  *domain.RecencyFilter
}

// NewSpotify builds the scanner with a Web API catalog authenticated via
// the client-credentials flow. The underlying HTTP client fetches tokens
// lazily and re-fetches them on expiry, so long-running deployments keep
// scanning past the token lifetime.
func NewSpotify(ctx context.Context, clientID, clientSecret, market string, artists []string, history domain.HistoryStore, filter *domain.RecencyFilter) (*SpotifyScanner, error) {
	if clientID == "" || clientSecret == "" {
		return nil, fmt.Errorf("spotify scanner requires client credentials")
	}
	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	client := spotify.New(cfg.Client(ctx))
	return &SpotifyScanner{
		cat:     &webCatalog{client: client, market: market},
		artists: artists,
		history: history,
		filter:  filter,
	}, nil
}

func (s *SpotifyScanner) Kind() domain.SourceKind { return domain.KindTrack }
func (s *SpotifyScanner) Name() string            { return "spotify" }

// Scan walks every configured artist, isolating per-artist failures. An
// in-run seen set keeps a track that appears on both a single and an
// album from being offered twice in the same pass.
func (s *SpotifyScanner) Scan(ctx context.Context, now time.Time) ([]domain.Item, error) {
	var items []domain.Item
	seen := make(map[string]struct{})

	for _, artist := range s.artists {
		artistID, err := ArtistID(artist)
		if err != nil {
			log.Printf("spotify: %v", err)
			continue
		}
		albums, err := s.cat.ArtistAlbums(ctx, artistID, albumPageSize)
		if err != nil {
			log.Printf("spotify: artist %s: %v", artistID, err)
			continue
		}

		for _, album := range albums {
			released, err := s.filter.Normalize(album.ReleaseDate, album.Precision)
			if err != nil {
				log.Printf("spotify: album %s (%q): %v, skipping", album.ID, album.Name, err)
				continue
			}
			if !s.filter.IsRecent(released, now) {
				continue
			}

			tracks, err := s.cat.AlbumTracks(ctx, album.ID, trackPageSize)
			if err != nil {
				log.Printf("spotify: album %s (%q): %v", album.ID, album.Name, err)
				continue
			}
			for _, tr := range tracks {
				if tr.ID == "" || tr.URL == "" {
					continue
				}
				if _, dup := seen[tr.ID]; dup || s.history.Contains(domain.KindTrack, tr.ID) {
					continue
				}
				seen[tr.ID] = struct{}{}
				items = append(items, domain.Item{
					ID:          tr.ID,
					Kind:        domain.KindTrack,
					URL:         tr.URL,
					Title:       tr.Title,
					PublishedAt: released,
				})
			}
		}
	}
	return items, nil
}

// ArtistID extracts the artist id from an open.spotify.com URL, a
// spotify: URI, or a bare id.
func ArtistID(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("empty artist reference")
	}
	if strings.HasPrefix(ref, "spotify:artist:") {
		return strings.TrimPrefix(ref, "spotify:artist:"), nil
	}
	trimmed := strings.TrimRight(ref, "/")
	last := trimmed[strings.LastIndex(trimmed, "/")+1:]
	if q := strings.Index(last, "?"); q >= 0 {
		last = last[:q]
	}
	if last == "" {
		return "", fmt.Errorf("cannot extract artist id from %q", ref)
	}
	return last, nil
}

// webCatalog adapts the Spotify Web API client to the catalog interface.
type webCatalog struct {
	client *spotify.Client
	market string
}

func (c *webCatalog) ArtistAlbums(ctx context.Context, artistID string, limit int) ([]catalogAlbum, error) {
	opts := []spotify.RequestOption{spotify.Limit(limit)}
	if c.market != "" {
		opts = append(opts, spotify.Market(c.market))
	}
	page, err := c.client.GetArtistAlbums(ctx, spotify.ID(artistID),
		[]spotify.AlbumType{spotify.AlbumTypeAlbum, spotify.AlbumTypeSingle}, opts...)
	if err != nil {
		return nil, err
	}

	albums := make([]catalogAlbum, 0, len(page.Albums))
	for _, a := range page.Albums {
		albums = append(albums, catalogAlbum{
			ID:          string(a.ID),
			Name:        a.Name,
			ReleaseDate: a.ReleaseDate,
			Precision:   domain.Precision(a.ReleaseDatePrecision),
		})
	}
	return albums, nil
}

func (c *webCatalog) AlbumTracks(ctx context.Context, albumID string, limit int) ([]catalogTrack, error) {
	page, err := c.client.GetAlbumTracks(ctx, spotify.ID(albumID), spotify.Limit(limit))
	if err != nil {
		return nil, err
	}

	tracks := make([]catalogTrack, 0, len(page.Tracks))
	for _, tr := range page.Tracks {
		names := make([]string, 0, len(tr.Artists))
		for _, a := range tr.Artists {
			names = append(names, a.Name)
		}
		tracks = append(tracks, catalogTrack{
			ID:    string(tr.ID),
			URL:   tr.ExternalURLs["spotify"],
			Title: strings.Join(names, ", ") + " - " + tr.Name,
		})
	}
	return tracks, nil
}
