package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"tunedrop/internal/adapter/fetcher"
	"tunedrop/internal/adapter/history"
	httpAdapter "tunedrop/internal/adapter/http"
	"tunedrop/internal/adapter/scanner"
	"tunedrop/internal/adapter/telegram"
	"tunedrop/internal/config"
	"tunedrop/internal/deliver"
	"tunedrop/internal/domain"
	"tunedrop/internal/worker"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("tunedrop: %v", err)
	}
}

func run() error {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		return err
	}
	sources, err := config.LoadSources(cfg.SourcesPath)
	if err != nil {
		return err
	}

	log.Printf("starting tunedrop, window %s", cfg.Window)
	log.Printf("history: %s (%s backend)", cfg.HistoryPath, sources.History.Backend)

	if _, err := exec.LookPath("ffmpeg"); err != nil {
		log.Println("warning: ffmpeg not found in PATH, audio extraction will likely fail")
	}

	store := openHistory(sources, cfg.HistoryPath)
	defer store.Close()

	filter := domain.NewRecencyFilter(cfg.Window)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scanners, err := buildScanners(ctx, cfg, sources, store, filter)
	if err != nil {
		return err
	}
	if len(scanners) == 0 {
		return fmt.Errorf("no usable sources configured")
	}

	fetch := buildFetcher(cfg)
	transport := telegram.New(cfg.BotToken, cfg.ChatID)
	engine := deliver.New(transport, cfg.MaxRetries, cfg.RetryDelay)

	w := worker.New(scanners, fetch, engine, store, filter, cfg.ItemDelay, cfg.PollInterval)

	var srv *httpAdapter.Server
	if cfg.Port > 0 {
		srv = httpAdapter.NewServer(w, store, fmt.Sprintf(":%d", cfg.Port))
		go func() {
			log.Printf("status server listening on %s", srv.Addr())
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("status server error: %v", err)
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
		// Single-pass mode finished, or the loop exited.
	case sig := <-sigCh:
		log.Printf("received signal %v, shutting down", sig)
		cancel()
		<-done
	}

	if srv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("status server shutdown error: %v", err)
		}
	}

	log.Println("shutdown complete")
	return nil
}

// openHistory selects the configured backend. Both constructors degrade
// to an empty or memory-only store on persistence faults rather than
// failing startup.
func openHistory(sources *config.Sources, path string) domain.HistoryStore {
	if sources.History.Backend == "sqlite" {
		return history.NewSQLite(path, sources.History.MaxEntries)
	}
	return history.NewJSON(path, sources.History.MaxEntries)
}

func buildScanners(ctx context.Context, cfg *config.Config, sources *config.Sources, store domain.HistoryStore, filter *domain.RecencyFilter) ([]domain.Scanner, error) {
	var scanners []domain.Scanner

	if len(sources.YouTube.Channels) > 0 {
		switch sources.YouTube.Strategy {
		case "api":
			if cfg.YouTubeAPIKey == "" {
				return nil, fmt.Errorf("youtube strategy %q needs YOUTUBE_API_KEY", sources.YouTube.Strategy)
			}
			s, err := scanner.NewAPI(ctx, cfg.YouTubeAPIKey, sources.YouTube.Channels, store, filter)
			if err != nil {
				return nil, fmt.Errorf("youtube api scanner: %w", err)
			}
			scanners = append(scanners, s)
		default:
			scanners = append(scanners, scanner.NewFeed(sources.YouTube.Channels, store, filter))
		}
	}

	if len(sources.Spotify.Artists) > 0 {
		if !cfg.SpotifyEnabled() {
			log.Println("spotify artists configured but credentials missing, skipping spotify")
		} else {
			s, err := scanner.NewSpotify(ctx, cfg.SpotifyClientID, cfg.SpotifyClientSecret, sources.Spotify.Market, sources.Spotify.Artists, store, filter)
			if err != nil {
				return nil, fmt.Errorf("spotify scanner: %w", err)
			}
			scanners = append(scanners, s)
		}
	}

	return scanners, nil
}

// buildFetcher wires the per-kind strategy chains. Videos try a plain
// download first, then the android player client which sidesteps some
// gating. Tracks try spotdl first, then a title search on video sources.
func buildFetcher(cfg *config.Config) *fetcher.Fetcher {
	f := fetcher.New(0)
	f.Register(domain.KindVideo,
		fetcher.NewYtdlp("ytdlp", cfg.Bitrate, cfg.CookiesPath),
		fetcher.NewYtdlp("ytdlp-android", cfg.Bitrate, cfg.CookiesPath,
			"--extractor-args", "youtube:player_client=android"),
	)
	f.Register(domain.KindTrack,
		fetcher.NewSpotdl("spotdl", cfg.Bitrate),
		fetcher.NewYtdlpSearch("ytdlp-search", cfg.Bitrate),
	)
	return f
}
