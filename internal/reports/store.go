// Package reports keeps finished import reports downloadable for a limited time.
package reports

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/desertthunder/plexlist/internal/models"
	"github.com/desertthunder/plexlist/internal/shared"
)

const (
	DefaultTTL        = time.Hour
	DefaultMaxReports = 100
)

type stored struct {
	entries   []models.ReportEntry
	createdAt time.Time
}

// Store maps opaque tokens to report tables.
//
// A report is handed out once: [Store.Take] removes it. Reports nobody takes expire after the TTL,
// and the oldest report is dropped when the store is full.
type Store struct {
	mu      sync.Mutex
	reports map[string]stored
	order   []string
	ttl     time.Duration
	limit   int
	now     func() time.Time
}

// NewStore creates a store holding at most limit reports. Non-positive values select the defaults.
func NewStore(ttl time.Duration, limit int) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if limit <= 0 {
		limit = DefaultMaxReports
	}
	return &Store{reports: make(map[string]stored), ttl: ttl, limit: limit, now: time.Now}
}

// Put stores a copy of entries and returns the token that retrieves it.
func (s *Store) Put(entries []models.ReportEntry) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expire()
	for len(s.order) >= s.limit {
		delete(s.reports, s.order[0])
		s.order = s.order[1:]
	}

	token := shared.GenerateToken()
	s.reports[token] = stored{entries: append([]models.ReportEntry(nil), entries...), createdAt: s.now()}
	s.order = append(s.order, token)
	return token
}

// Take returns the report for token and forgets it.
func (s *Store) Take(token string) ([]models.ReportEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.lookup(token)
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrReportNotFound, token)
	}
	s.drop(token)
	return r.entries, nil
}

// Peek returns a copy of the report for token without consuming it.
func (s *Store) Peek(token string) ([]models.ReportEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.lookup(token)
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrReportNotFound, token)
	}
	return append([]models.ReportEntry(nil), r.entries...), nil
}

// Len returns the number of live reports.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expire()
	return len(s.reports)
}

// StartCleanup expires reports every interval until ctx is cancelled.
func (s *Store) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.mu.Lock()
				s.expire()
				s.mu.Unlock()
			}
		}
	}()
}

func (s *Store) lookup(token string) (stored, bool) {
	r, ok := s.reports[token]
	if !ok {
		return stored{}, false
	}
	if s.now().Sub(r.createdAt) > s.ttl {
		s.drop(token)
		return stored{}, false
	}
	return r, true
}

func (s *Store) expire() {
	cutoff := s.now().Add(-s.ttl)
	kept := s.order[:0]
	for _, token := range s.order {
		if r, ok := s.reports[token]; ok && r.createdAt.Before(cutoff) {
			delete(s.reports, token)
			continue
		}
		kept = append(kept, token)
	}
	s.order = kept
}

func (s *Store) drop(token string) {
	delete(s.reports, token)
	for i, t := range s.order {
		if t == token {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}
