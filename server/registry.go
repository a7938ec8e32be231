package main

import "time"

// Registry holds every configured source in configuration order. The
// set is fixed at startup; the order drives both the UI and the mixer
// rotation. The registry itself is immutable, all mutable state lives
// inside the individual sources.
type Registry struct {
	sources []*Source
	byID    map[int]*Source
}

// NewRegistry builds the registry from the ordered URL list. IDs are
// assigned 1..N in configuration order.
func NewRegistry(urls []string) *Registry {
	r := &Registry{byID: make(map[int]*Source, len(urls))}
	for i, u := range urls {
		s := NewSource(i+1, u)
		r.sources = append(r.sources, s)
		r.byID[s.ID] = s
	}
	return r
}

// Sources returns all sources in configuration order.
func (r *Registry) Sources() []*Source { return r.sources }

// Len returns the number of configured sources.
func (r *Registry) Len() int { return len(r.sources) }

// Lookup returns the source with the given id, or nil.
func (r *Registry) Lookup(id int) *Source { return r.byID[id] }

// Statuses snapshots every source's health, in configuration order.
func (r *Registry) Statuses() []SourceStatus {
	out := make([]SourceStatus, 0, len(r.sources))
	for _, s := range r.sources {
		online, lastErr := s.Health()
		out = append(out, SourceStatus{ID: s.ID, Online: online, Error: lastErr})
	}
	return out
}

// Publish installs a new frame and marks the source online. The frame
// pointer is swapped under the lock so readers always observe either
// the previous complete frame or the new one, never a partial write.
func (s *Source) Publish(f *Frame) {
	s.mu.Lock()
	s.frame = f
	s.online = true
	s.lastError = ""
	s.lastUpdated = time.Now()
	close(s.changed)
	s.changed = make(chan struct{})
	s.mu.Unlock()
}

// SetOffline records a failure cause. The last frame is kept so the
// mixer can hold it during short outages.
func (s *Source) SetOffline(cause string) {
	s.mu.Lock()
	s.online = false
	s.lastError = cause
	s.mu.Unlock()
}

// Snapshot returns the latest frame (nil before the first publish)
// together with a channel that is closed when the next frame arrives.
func (s *Source) Snapshot() (*Frame, <-chan struct{}) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frame, s.changed
}

// Health returns the current status and last recorded error.
func (s *Source) Health() (online bool, lastError string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.online, s.lastError
}

// LastUpdated returns the time of the most recent successful frame.
func (s *Source) LastUpdated() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastUpdated
}

// Online reports whether the source is currently marked online.
func (s *Source) Online() bool {
	online, _ := s.Health()
	return online
}
