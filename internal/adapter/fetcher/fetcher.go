package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"tunedrop/internal/domain"
)

// DefaultMinAudioBytes is the smallest output accepted as real audio; an
// empty or token-sized file is a failed fetch, not a silent success.
const DefaultMinAudioBytes = 16 * 1024

// Fetcher runs an ordered strategy chain per source kind inside a
// disposable working directory that is removed on every exit path.
type Fetcher struct {
	chains   map[domain.SourceKind][]Strategy
	minBytes int64
}

// New creates a fetcher. minBytes <= 0 selects DefaultMinAudioBytes.
func New(minBytes int64) *Fetcher {
	if minBytes <= 0 {
		minBytes = DefaultMinAudioBytes
	}
	return &Fetcher{
		chains:   make(map[domain.SourceKind][]Strategy),
		minBytes: minBytes,
	}
}

// Register appends strategies to the chain for kind, in try order.
func (f *Fetcher) Register(kind domain.SourceKind, strategies ...Strategy) {
	f.chains[kind] = append(f.chains[kind], strategies...)
}

// Fetch tries each registered strategy in order and returns the first
// non-trivially-sized audio produced. Gated and not-found classifications
// short-circuit the chain; anything else moves on to the next strategy.
// All strategies failing yields ErrAllStrategiesExhausted.
func (f *Fetcher) Fetch(ctx context.Context, item domain.Item) ([]byte, error) {
	strategies := f.chains[item.Kind]
	if len(strategies) == 0 {
		return nil, fmt.Errorf("no fetch strategies registered for kind %s", item.Kind)
	}

	scratch, err := os.MkdirTemp("", "tunedrop-fetch-*")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	for i, strategy := range strategies {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		workdir := filepath.Join(scratch, fmt.Sprintf("try%d", i))
		if err := os.MkdirAll(workdir, 0755); err != nil {
			return nil, fmt.Errorf("create workdir: %w", err)
		}

		path, err := strategy.Fetch(ctx, item, workdir)
		if err != nil {
			if errors.Is(err, domain.ErrGated) || errors.Is(err, domain.ErrNotFound) {
				return nil, err
			}
			log.Printf("fetch %s: strategy %s: %v", item.ID, strategy.Name(), err)
			continue
		}

		info, err := os.Stat(path)
		if err != nil {
			log.Printf("fetch %s: strategy %s produced no readable output: %v", item.ID, strategy.Name(), err)
			continue
		}
		if info.Size() < f.minBytes {
			log.Printf("fetch %s: strategy %s output too small (%d bytes)", item.ID, strategy.Name(), info.Size())
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			log.Printf("fetch %s: strategy %s: read output: %v", item.ID, strategy.Name(), err)
			continue
		}
		return data, nil
	}
	return nil, domain.ErrAllStrategiesExhausted
}
