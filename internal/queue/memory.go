package queue

import (
	"container/heap"
	"errors"
	"sync"
)

var (
	ErrQueueEmpty  = errors.New("queue is empty")
	ErrQueueClosed = errors.New("queue is closed")
)

// stepHeap implements heap.Interface over pending steps.
type stepHeap []*Step

func (h stepHeap) Len() int { return len(h) }

func (h stepHeap) Less(i, j int) bool {
	// Lower depth = higher priority (breadth-first)
	if h[i].Depth != h[j].Depth {
		return h[i].Depth < h[j].Depth
	}
	// Higher priority value = higher priority
	return h[i].Priority > h[j].Priority
}

func (h stepHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
}

func (h *stepHeap) Push(x interface{}) {
	*h = append(*h, x.(*Step))
}

func (h *stepHeap) Pop() interface{} {
	old := *h
	n := len(old)
	step := old[n-1]
	old[n-1] = nil
	*h = old[0 : n-1]
	return step
}

// MemoryQueue is a thread-safe in-memory frontier.
type MemoryQueue struct {
	mu       sync.RWMutex
	heap     stepHeap
	urlSet   map[string]struct{}
	closed   bool
	capacity int
}

// NewMemoryQueue creates a new in-memory frontier. A capacity of zero means
// unbounded.
func NewMemoryQueue(capacity int) *MemoryQueue {
	return &MemoryQueue{
		heap:     make(stepHeap, 0),
		urlSet:   make(map[string]struct{}),
		capacity: capacity,
	}
}

// Push adds a step. Steps whose URL is already pending are dropped silently.
func (q *MemoryQueue) Push(step *Step) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	if _, ok := q.urlSet[step.URL]; ok {
		return nil
	}

	if q.capacity > 0 && len(q.heap) >= q.capacity {
		return ErrQueueFull
	}

	heap.Push(&q.heap, step)
	q.urlSet[step.URL] = struct{}{}
	return nil
}

// Pop removes and returns the next step.
func (q *MemoryQueue) Pop() (*Step, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil, ErrQueueClosed
	}
	if len(q.heap) == 0 {
		return nil, ErrQueueEmpty
	}

	step := heap.Pop(&q.heap).(*Step)
	delete(q.urlSet, step.URL)
	return step, nil
}

// Peek returns the next step without removing it.
func (q *MemoryQueue) Peek() (*Step, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return nil, ErrQueueClosed
	}
	if len(q.heap) == 0 {
		return nil, ErrQueueEmpty
	}
	return q.heap[0], nil
}

// Len returns the number of pending steps.
func (q *MemoryQueue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.heap)
}

// IsEmpty returns true if the frontier is empty.
func (q *MemoryQueue) IsEmpty() bool {
	return q.Len() == 0
}

// Clear removes all pending steps.
func (q *MemoryQueue) Clear() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.heap = q.heap[:0]
	q.urlSet = make(map[string]struct{})
	return nil
}

// Close closes the queue.
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	return nil
}

// Contains checks if a URL is already pending.
func (q *MemoryQueue) Contains(url string) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	_, ok := q.urlSet[url]
	return ok
}

// ErrQueueFull is returned when a bounded queue is at capacity.
var ErrQueueFull = errors.New("queue is full")
