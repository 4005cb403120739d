// Package worker sequences the polling pipeline: scan each source, then
// fetch, deliver, and record one item at a time.
package worker

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"tunedrop/internal/domain"
)

// DefaultItemDelay is the fixed pause between deliveries of the same run,
// keeping the destination's rate limiter friendly.
const DefaultItemDelay = 5 * time.Second

// Deliverer is the delivery engine as the worker sees it.
type Deliverer interface {
	Deliver(ctx context.Context, audio []byte, title string) error
}

// Stats summarizes one completed pass.
type Stats struct {
	RunID     string                    `json:"run_id"`
	Started   time.Time                 `json:"started"`
	Finished  time.Time                 `json:"finished"`
	Scanned   int                       `json:"scanned"`
	Delivered int                       `json:"delivered"`
	Failed    int                       `json:"failed"`
	ByKind    map[domain.SourceKind]int `json:"by_kind"`
}

// Worker owns the pipeline. It processes sources in the configured order
// and never has more than one item in flight, so the history store needs
// no coordination beyond its own.
type Worker struct {
	scanners  []domain.Scanner
	fetcher   domain.AudioFetcher
	deliverer Deliverer
	history   domain.HistoryStore
	filter    *domain.RecencyFilter

	itemDelay    time.Duration
	pollInterval time.Duration

	mu      sync.Mutex
	last    Stats
	hasLast bool
}

// New creates a worker. pollInterval zero means single-pass mode; a
// negative itemDelay selects DefaultItemDelay.
func New(scanners []domain.Scanner, fetcher domain.AudioFetcher, deliverer Deliverer, history domain.HistoryStore, filter *domain.RecencyFilter, itemDelay, pollInterval time.Duration) *Worker {
	if itemDelay < 0 {
		itemDelay = DefaultItemDelay
	}
	return &Worker{
		scanners:     scanners,
		fetcher:      fetcher,
		deliverer:    deliverer,
		history:      history,
		filter:       filter,
		itemDelay:    itemDelay,
		pollInterval: pollInterval,
	}
}

// Run executes passes until the context is cancelled. In single-pass mode
// it returns after the first pass.
func (w *Worker) Run(ctx context.Context) {
	for {
		w.RunOnce(ctx)
		if w.pollInterval <= 0 {
			return
		}
		log.Printf("worker sleeping %s until next pass", w.pollInterval)
		select {
		case <-ctx.Done():
			log.Println("worker shutting down")
			return
		case <-time.After(w.pollInterval):
		}
	}
}

// RunOnce executes one full pass over all sources. The cutoff instant is
// sampled once so every item in the pass sees the same window.
func (w *Worker) RunOnce(ctx context.Context) Stats {
	stats := Stats{
		RunID:   uuid.NewString()[:8],
		Started: time.Now(),
		ByKind:  make(map[domain.SourceKind]int),
	}
	now := w.filter.Now()
	log.Printf("run %s: starting pass, window %s", stats.RunID, w.filter.Window())

	for _, scanner := range w.scanners {
		if ctx.Err() != nil {
			break
		}
		items, err := scanner.Scan(ctx, now)
		if err != nil {
			log.Printf("run %s: %s scan failed: %v", stats.RunID, scanner.Name(), err)
			continue
		}
		stats.Scanned += len(items)

		for _, item := range items {
			if ctx.Err() != nil {
				break
			}
			if w.history.Contains(item.Kind, item.ID) {
				continue
			}
			if w.processItem(ctx, stats.RunID, item) {
				stats.Delivered++
				stats.ByKind[item.Kind]++
				w.pause(ctx)
			} else {
				stats.Failed++
			}
		}
	}

	stats.Finished = time.Now()
	log.Printf("run %s: pass finished, %d delivered, %d failed", stats.RunID, stats.Delivered, stats.Failed)

	w.mu.Lock()
	w.last = stats
	w.hasLast = true
	w.mu.Unlock()
	return stats
}

// processItem runs one item through fetch, deliver, and record. Any
// failure skips only this item; the id stays out of history so a future
// run inside the window can retry it.
func (w *Worker) processItem(ctx context.Context, runID string, item domain.Item) bool {
	log.Printf("run %s: processing %s %s (%q)", runID, item.Kind, item.ID, item.Title)

	audio, err := w.fetcher.Fetch(ctx, item)
	if err != nil {
		log.Printf("run %s: fetch %s: %v, skipping", runID, item.ID, err)
		return false
	}
	if err := w.deliverer.Deliver(ctx, audio, item.Title); err != nil {
		log.Printf("run %s: deliver %s: %v, skipping", runID, item.ID, err)
		return false
	}

	w.history.Record(item.Kind, item.ID)
	if err := w.history.Flush(); err != nil {
		log.Printf("run %s: warning: history flush failed: %v", runID, err)
	}
	return true
}

func (w *Worker) pause(ctx context.Context) {
	if w.itemDelay <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(w.itemDelay):
	}
}

// LastStats returns the most recently completed pass, if any.
func (w *Worker) LastStats() (Stats, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last, w.hasLast
}
