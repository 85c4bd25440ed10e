// dedup.go drops events delivered more than once.
//
// The same event can arrive over both NATS and the websocket stream, and
// JetStream redelivers anything not acknowledged in time. Handler asks the
// Deduplicator before applying an event; the set of seen IDs is bounded and
// evicts the oldest tenth when full.
package events

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

// defaultMaxSeen is the maximum number of event IDs to track.
const defaultMaxSeen = 1000

// Deduplicator tracks seen event IDs. Safe for concurrent use.
type Deduplicator struct {
	mu      sync.Mutex
	seen    map[string]time.Time
	maxSeen int
	logger  *slog.Logger
}

// NewDeduplicator creates a deduplicator tracking up to 1000 IDs.
func NewDeduplicator(logger *slog.Logger) *Deduplicator {
	return newDeduplicator(defaultMaxSeen, logger)
}

func newDeduplicator(maxSeen int, logger *slog.Logger) *Deduplicator {
	return &Deduplicator{
		seen:    make(map[string]time.Time),
		maxSeen: maxSeen,
		logger:  logger,
	}
}

// MarkSeen records id and reports whether it was new. Empty IDs are always
// new since they cannot be told apart.
func (d *Deduplicator) MarkSeen(id string) bool {
	if id == "" {
		return true
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; ok {
		d.logger.Debug("skipping duplicate event", slog.String("event_id", id))
		return false
	}
	d.seen[id] = time.Now()

	if len(d.seen) > d.maxSeen {
		d.evictOldest()
	}
	return true
}

// evictOldest removes the oldest tenth of the entries. Caller holds d.mu.
func (d *Deduplicator) evictOldest() {
	toRemove := max(d.maxSeen/10, 1)

	type entry struct {
		id   string
		time time.Time
	}
	entries := make([]entry, 0, len(d.seen))
	for id, t := range d.seen {
		entries = append(entries, entry{id, t})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].time.Before(entries[j].time) })

	for i := 0; i < toRemove && i < len(entries); i++ {
		delete(d.seen, entries[i].id)
	}

	d.logger.Debug("evicted old event IDs",
		slog.Int("removed", toRemove),
		slog.Int("remaining", len(d.seen)),
	)
}

// IsSeen checks an ID without marking it.
func (d *Deduplicator) IsSeen(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.seen[id]
	return ok
}

// Count returns the number of tracked IDs.
func (d *Deduplicator) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
