// Package queue provides the crawl frontier: the ordered set of URLs a
// crawl intends to fetch next. Accepted links from the admission filter are
// pushed here; workers pop them as crawl steps.
package queue

import "time"

// Step is one pending crawl step in the frontier.
type Step struct {
	URL        string    `json:"url"`
	Depth      int       `json:"depth"`
	ParentURL  string    `json:"parent_url,omitempty"`
	JobID      string    `json:"job_id,omitempty"`
	Priority   int       `json:"priority,omitempty"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Queue defines the interface for frontier queues.
type Queue interface {
	// Push adds a step to the frontier
	Push(step *Step) error

	// Pop removes and returns the next step
	Pop() (*Step, error)

	// Peek returns the next step without removing it
	Peek() (*Step, error)

	// Len returns the number of pending steps
	Len() int

	// IsEmpty returns true if the frontier is empty
	IsEmpty() bool

	// Clear removes all pending steps
	Clear() error

	// Close closes the queue and releases resources
	Close() error

	// Contains checks if a URL is already pending
	Contains(url string) bool
}
