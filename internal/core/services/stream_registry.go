package services

import (
	"sync"
	"time"

	"roomlink/internal/core/domain"
	"roomlink/internal/core/ports"
)

// streamRegistry holds every locally known media stream in insertion order.
// It is the single source of truth the rendering layer projects from.
type streamRegistry struct {
	mu        sync.Mutex
	entries   map[domain.StreamID]domain.MediaStreamEntry
	order     []domain.StreamID
	collector ports.Collector
}

func NewStreamRegistry(collector ports.Collector) ports.StreamRegistry {
	if collector == nil {
		collector = ports.NopCollector{}
	}
	return &streamRegistry{
		entries:   make(map[domain.StreamID]domain.MediaStreamEntry),
		collector: collector,
	}
}

// Add registers an entry. Re-adding an existing identifier is a no-op:
// renegotiation replays track-arrival notifications and those must not
// produce duplicates.
func (r *streamRegistry) Add(entry domain.MediaStreamEntry) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[entry.ID]; exists {
		return false
	}
	if entry.AddedAt.IsZero() {
		entry.AddedAt = time.Now()
	}
	r.entries[entry.ID] = entry
	r.order = append(r.order, entry.ID)
	r.collector.RegistrySize(len(r.entries))
	return true
}

func (r *streamRegistry) Remove(id domain.StreamID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[id]; !exists {
		return false
	}
	delete(r.entries, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.collector.RegistrySize(len(r.entries))
	return true
}

func (r *streamRegistry) Snapshot() []domain.MediaStreamEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.MediaStreamEntry, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.entries[id])
	}
	return out
}

func (r *streamRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = make(map[domain.StreamID]domain.MediaStreamEntry)
	r.order = nil
	r.collector.RegistrySize(0)
}

func (r *streamRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
