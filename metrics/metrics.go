// Package metrics keeps in-process counters for the health endpoint.
package metrics

import (
	"sync"
	"time"
)

// Metrics holds service counters. The zero value is ready to use.
type Metrics struct {
	mu sync.RWMutex

	cacheHits         int64
	cacheMisses       int64
	rebuilds          int64
	emptyRebuildsKept int64
	sourceFailures    int64
	articlesServed    int64

	lastRebuildDuration time.Duration
	lastRebuildAt       time.Time
	lastError           string
	lastErrorAt         time.Time
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	CacheHits         int64     `json:"cacheHits"`
	CacheMisses       int64     `json:"cacheMisses"`
	Rebuilds          int64     `json:"rebuilds"`
	EmptyRebuildsKept int64     `json:"emptyRebuildsKept"`
	SourceFailures    int64     `json:"sourceFailures"`
	ArticlesServed    int64     `json:"articlesServed"`
	LastRebuildMillis int64     `json:"lastRebuildMs"`
	LastRebuildAt     time.Time `json:"lastRebuildAt"`
	LastError         string    `json:"lastError,omitempty"`
	LastErrorAt       time.Time `json:"lastErrorAt"`
	Healthy           bool      `json:"healthy"`
}

// RecordRequest counts one served payload.
func (m *Metrics) RecordRequest(hit bool, articles int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if hit {
		m.cacheHits++
	} else {
		m.cacheMisses++
	}
	m.articlesServed += int64(articles)
}

// RecordRebuild counts a completed rebuild. kept is false when an empty
// result was not stored because a non-empty payload was already cached.
func (m *Metrics) RecordRebuild(duration time.Duration, kept bool, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rebuilds++
	if !kept {
		m.emptyRebuildsKept++
	}
	m.lastRebuildDuration = duration
	m.lastRebuildAt = at
}

// RecordSourceFailure counts one source that failed during a rebuild.
func (m *Metrics) RecordSourceFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sourceFailures++
}

// SetError records a request-level failure.
func (m *Metrics) SetError(err string, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastError = err
	m.lastErrorAt = at
}

// Snapshot returns the current counters. The service is healthy unless the
// most recent event was an error.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return Snapshot{
		CacheHits:         m.cacheHits,
		CacheMisses:       m.cacheMisses,
		Rebuilds:          m.rebuilds,
		EmptyRebuildsKept: m.emptyRebuildsKept,
		SourceFailures:    m.sourceFailures,
		ArticlesServed:    m.articlesServed,
		LastRebuildMillis: m.lastRebuildDuration.Milliseconds(),
		LastRebuildAt:     m.lastRebuildAt,
		LastError:         m.lastError,
		LastErrorAt:       m.lastErrorAt,
		Healthy:           m.lastError == "" || m.lastRebuildAt.After(m.lastErrorAt),
	}
}
