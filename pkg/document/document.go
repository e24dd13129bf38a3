// Package document implements the project/task aggregate shared between
// clients and the server, together with its serialized forms.
//
// The aggregate is only mutated through Document.Modify, which advances the
// document's last-modified timestamp after every call. Synchronization relies
// on that single timestamp to decide which replica is newer.
package document

import (
	"math"
	"sync"
	"time"
)

// MinTimestamp is the earliest timestamp a document can carry. A fresh
// document starts with it so any replica holding data is considered newer.
var MinTimestamp = time.Unix(0, math.MinInt64).UTC()

var now = time.Now

// Document is a Database plus the time of its last modification.
type Document struct {
	mu           sync.RWMutex
	projects     Database
	lastModified time.Time
}

// New returns an empty document stamped with MinTimestamp.
func New() *Document {
	return &Document{lastModified: MinTimestamp}
}

// Modify runs f with exclusive access to the projects, then advances the
// last-modified timestamp to now, whether or not f changed anything.
func (d *Document) Modify(f func(db *Database)) {
	d.mu.Lock()
	defer d.mu.Unlock()

	f(&d.projects)
	d.lastModified = now().UTC()
}

// Read runs f with shared access to the projects. f must not mutate them.
func (d *Document) Read(f func(db *Database)) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	f(&d.projects)
}

// LastModified returns the time of the last Modify call.
func (d *Document) LastModified() time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lastModified
}

// Snapshot returns the binary encoding together with the timestamp it was
// taken at, atomically.
func (d *Document) Snapshot() ([]byte, time.Time, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	data, err := encodeBinary(&d.projects, d.lastModified)
	if err != nil {
		return nil, time.Time{}, err
	}
	return data, d.lastModified, nil
}

// ReplaceWith swaps the whole content and timestamp with other's.
// other must not be used afterwards.
func (d *Document) ReplaceWith(other *Document) {
	if d == other {
		return
	}
	other.mu.Lock()
	projects, ts := other.projects, other.lastModified
	other.projects = Database{}
	other.mu.Unlock()

	d.mu.Lock()
	d.projects = projects
	d.lastModified = ts
	d.mu.Unlock()
}

// HasSameContentAs reports whether both documents hold the same visible
// content in the same order. The timestamp and running tracking clocks are
// ignored.
//
// Only one document lock is held at a time: other is copied under its own
// lock first, so comparisons running in opposite directions cannot deadlock.
func (d *Document) HasSameContentAs(other *Document) bool {
	if d == other {
		return true
	}
	other.mu.RLock()
	theirs := cloneDatabase(&other.projects)
	other.mu.RUnlock()

	d.mu.RLock()
	defer d.mu.RUnlock()
	return sameDatabase(&d.projects, theirs)
}
