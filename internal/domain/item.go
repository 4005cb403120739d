package domain

import "time"

// SourceKind identifies the origin category of an item. The values double
// as partition keys in the persisted history document.
type SourceKind string

const (
	KindVideo SourceKind = "ytm"
	KindTrack SourceKind = "spotify"
)

// Item is one candidate piece of content produced by a scanner. Items are
// rebuilt from provider data on every poll; only the ID outlives a run, via
// the history store.
type Item struct {
	ID          string
	Kind        SourceKind
	URL         string
	Title       string
	PublishedAt time.Time // zero when the provider gave no usable date
}

// RawEntry is one provider row before candidate selection. Published is
// left zero when the publication instant could not be determined.
type RawEntry struct {
	ID        string
	URL       string
	Title     string
	Published time.Time
}
