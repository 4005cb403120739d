// Package history provides the delivered-id stores backing deduplication.
package history

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"tunedrop/internal/domain"
)

// partitions is the in-memory delivered-id record shared by both backends:
// insertion-ordered slices for persistence plus a set for lookups.
type partitions struct {
	order map[domain.SourceKind][]string
	seen  map[domain.SourceKind]map[string]struct{}
}

func newPartitions() *partitions {
	return &partitions{
		order: make(map[domain.SourceKind][]string),
		seen:  make(map[domain.SourceKind]map[string]struct{}),
	}
}

func (p *partitions) contains(kind domain.SourceKind, id string) bool {
	_, ok := p.seen[kind][id]
	return ok
}

// add appends id to the partition, reporting whether it was new.
func (p *partitions) add(kind domain.SourceKind, id string) bool {
	if p.contains(kind, id) {
		return false
	}
	if p.seen[kind] == nil {
		p.seen[kind] = make(map[string]struct{})
	}
	p.seen[kind][id] = struct{}{}
	p.order[kind] = append(p.order[kind], id)
	return true
}

// trim retains only the max most recently added ids in the partition.
func (p *partitions) trim(kind domain.SourceKind, max int) {
	ids := p.order[kind]
	if max <= 0 || len(ids) <= max {
		return
	}
	dropped := ids[:len(ids)-max]
	for _, id := range dropped {
		delete(p.seen[kind], id)
	}
	p.order[kind] = append([]string(nil), ids[len(ids)-max:]...)
}

func (p *partitions) sizes() map[domain.SourceKind]int {
	sizes := make(map[domain.SourceKind]int)
	for k, ids := range p.order {
		sizes[k] = len(ids)
	}
	return sizes
}

// JSONStore persists delivered ids as a single JSON document with one
// array per source kind, in insertion order.
type JSONStore struct {
	path       string
	maxEntries int

	mu    sync.Mutex
	parts *partitions
}

// NewJSON loads the store from path. A missing or corrupt document is a
// warning, never an error: the store starts empty and overwrites it on the
// next flush. maxEntries <= 0 disables trimming.
func NewJSON(path string, maxEntries int) *JSONStore {
	s := &JSONStore{path: path, maxEntries: maxEntries, parts: newPartitions()}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("warning: cannot read history %s: %v, starting empty", path, err)
		}
		return s
	}

	var doc map[domain.SourceKind][]string
	if err := json.Unmarshal(data, &doc); err != nil {
		log.Printf("warning: history %s is corrupt: %v, starting empty", path, err)
		return s
	}
	for kind, ids := range doc {
		for _, id := range ids {
			s.parts.add(kind, id) // add dedups, tolerating duplicated stored ids
		}
	}
	return s
}

// Contains reports whether id was already delivered for kind.
func (s *JSONStore) Contains(kind domain.SourceKind, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.parts.contains(kind, id)
}

// Record appends id to the kind's partition. Recording a known id is a
// no-op.
func (s *JSONStore) Record(kind domain.SourceKind, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.parts.add(kind, id) {
		s.parts.trim(kind, s.maxEntries)
	}
}

// Flush atomically writes the full document: temp file in the same
// directory, then rename, so an interrupted write never truncates the
// store.
func (s *JSONStore) Flush() error {
	s.mu.Lock()
	doc := map[domain.SourceKind][]string{
		domain.KindVideo: {},
		domain.KindTrack: {},
	}
	for kind, ids := range s.parts.order {
		doc[kind] = append([]string(nil), ids...)
	}
	s.mu.Unlock()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create history dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".history-*.json")
	if err != nil {
		return fmt.Errorf("create temp history: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write temp history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp history: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace history: %w", err)
	}
	return nil
}

// Sizes returns the number of delivered ids per kind.
func (s *JSONStore) Sizes() map[domain.SourceKind]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.parts.sizes()
}

// Close flushes the store one last time.
func (s *JSONStore) Close() error {
	return s.Flush()
}
