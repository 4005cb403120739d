package domain

import (
	"log"
	"time"
)

// SelectNew applies the candidate rules shared by all scanners to one
// provider response: skip ids already delivered, skip entries whose
// publication instant could not be determined, skip entries outside the
// window. Provider order is preserved.
func SelectNew(kind SourceKind, entries []RawEntry, history HistoryStore, filter *RecencyFilter, now time.Time) []Item {
	var items []Item
	for _, e := range entries {
		if e.ID == "" || history.Contains(kind, e.ID) {
			continue
		}
		if e.Published.IsZero() {
			log.Printf("%s: no publication date for %s (%q), skipping", kind, e.ID, e.Title)
			continue
		}
		if !filter.IsRecent(e.Published, now) {
			continue
		}
		items = append(items, Item{
			ID:          e.ID,
			Kind:        kind,
			URL:         e.URL,
			Title:       e.Title,
			PublishedAt: e.Published,
		})
	}
	return items
}
