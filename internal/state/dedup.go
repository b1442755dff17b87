// Package state tracks which URLs a crawl has already seen, so accepted
// links are only enqueued once. Duplicate detection lives here, outside the
// admission filter, which stays stateless.
package state

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

// SeenSet records seen URLs using a Bloom filter with an exact set behind it
// to rule out false positives.
type SeenSet struct {
	mu     sync.RWMutex
	filter *bloom.BloomFilter
	exact  map[string]struct{}
	count  int
}

// NewSeenSet creates a seen set sized for the estimated crawl.
func NewSeenSet(estimatedItems int) *SeenSet {
	if estimatedItems < 1000 {
		estimatedItems = 1000
	}

	return &SeenSet{
		filter: bloom.NewWithEstimates(uint(estimatedItems), 0.001),
		exact:  make(map[string]struct{}),
	}
}

// Mark records a URL as seen.
func (s *SeenSet) Mark(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mark(url)
}

// MarkBatch records multiple URLs at once.
func (s *SeenSet) MarkBatch(urls []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, url := range urls {
		s.mark(url)
	}
}

func (s *SeenSet) mark(url string) {
	if _, exists := s.exact[url]; !exists {
		s.filter.AddString(url)
		s.exact[url] = struct{}{}
		s.count++
	}
}

// Seen checks if a URL has been seen before.
func (s *SeenSet) Seen(url string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Fast negative check with the Bloom filter
	if !s.filter.TestString(url) {
		return false
	}

	_, exists := s.exact[url]
	return exists
}

// Count returns the number of unique URLs seen.
func (s *SeenSet) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

// Reset clears the seen set.
func (s *SeenSet) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.filter.ClearAll()
	s.exact = make(map[string]struct{})
	s.count = 0
}
