package queue

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketFrontier = []byte("frontier")
	bucketVisited  = []byte("visited")
)

// PersistentQueue is a disk-backed frontier using BoltDB. An interrupted
// crawl resumes from the pending steps on disk.
type PersistentQueue struct {
	mu     sync.Mutex
	db     *bolt.DB
	memory *MemoryQueue // In-memory buffer for fast access
	seq    uint64
	closed bool
	dbPath string
	maxMem int // Max steps to keep in memory
}

// NewPersistentQueue creates a new persistent frontier.
func NewPersistentQueue(dbPath string, maxMemory int) (*PersistentQueue, error) {
	if maxMemory <= 0 {
		maxMemory = 10000
	}

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{
		Timeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketFrontier); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(bucketVisited); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	pq := &PersistentQueue{
		db:     db,
		memory: NewMemoryQueue(0),
		dbPath: dbPath,
		maxMem: maxMemory,
	}

	if err := pq.loadFromDisk(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load from disk: %w", err)
	}

	return pq, nil
}

// loadFromDisk loads pending steps from disk into memory and recovers the
// sequence counter.
func (pq *PersistentQueue) loadFromDisk() error {
	return pq.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketFrontier)
		if b == nil {
			return nil
		}

		count := 0
		return b.ForEach(func(k, v []byte) error {
			if seq := binary.BigEndian.Uint64(k); seq > pq.seq {
				pq.seq = seq
			}
			if count >= pq.maxMem {
				return nil
			}

			var step Step
			if err := json.Unmarshal(v, &step); err != nil {
				return nil // Skip corrupt entries
			}

			pq.memory.Push(&step)
			count++
			return nil
		})
	})
}

// Push adds a step, persisting it before buffering. URLs already visited or
// pending are dropped silently.
func (pq *PersistentQueue) Push(step *Step) error {
	pq.mu.Lock()
	defer pq.mu.Unlock()

	if pq.closed {
		return ErrQueueClosed
	}

	if pq.isVisited(step.URL) || pq.memory.Contains(step.URL) {
		return nil
	}

	if err := pq.persistStep(step); err != nil {
		return err
	}

	if pq.memory.Len() < pq.maxMem {
		return pq.memory.Push(step)
	}
	return nil
}

// persistStep writes a step to disk under the next sequence key.
func (pq *PersistentQueue) persistStep(step *Step) error {
	data, err := json.Marshal(step)
	if err != nil {
		return err
	}

	pq.seq++
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, pq.seq)

	return pq.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketFrontier).Put(key, data)
	})
}

// Pop removes and returns the next step, marking its URL visited.
func (pq *PersistentQueue) Pop() (*Step, error) {
	pq.mu.Lock()
	defer pq.mu.Unlock()

	if pq.closed {
		return nil, ErrQueueClosed
	}

	if pq.memory.IsEmpty() {
		if err := pq.refill(); err != nil {
			return nil, err
		}
	}

	step, err := pq.memory.Pop()
	if err != nil {
		return nil, err
	}

	if err := pq.removeAndMarkVisited(step.URL); err != nil {
		return nil, err
	}
	return step, nil
}

// refill moves steps from disk into the memory buffer, skipping URLs that
// were already handed out.
func (pq *PersistentQueue) refill() error {
	return pq.db.View(func(tx *bolt.Tx) error {
		visited := tx.Bucket(bucketVisited)
		count := 0
		return tx.Bucket(bucketFrontier).ForEach(func(k, v []byte) error {
			if count >= pq.maxMem {
				return nil
			}

			var step Step
			if err := json.Unmarshal(v, &step); err != nil {
				return nil
			}
			if visited.Get([]byte(step.URL)) != nil {
				return nil
			}

			pq.memory.Push(&step)
			count++
			return nil
		})
	})
}

// removeAndMarkVisited deletes all disk entries for a URL and records it in
// the visited bucket.
func (pq *PersistentQueue) removeAndMarkVisited(url string) error {
	return pq.db.Update(func(tx *bolt.Tx) error {
		frontier := tx.Bucket(bucketFrontier)

		var stale [][]byte
		err := frontier.ForEach(func(k, v []byte) error {
			var step Step
			if err := json.Unmarshal(v, &step); err != nil {
				stale = append(stale, append([]byte(nil), k...))
				return nil
			}
			if step.URL == url {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}

		for _, k := range stale {
			if err := frontier.Delete(k); err != nil {
				return err
			}
		}

		return tx.Bucket(bucketVisited).Put([]byte(url), []byte{1})
	})
}

// isVisited checks the visited bucket. Callers hold pq.mu.
func (pq *PersistentQueue) isVisited(url string) bool {
	visited := false
	pq.db.View(func(tx *bolt.Tx) error {
		visited = tx.Bucket(bucketVisited).Get([]byte(url)) != nil
		return nil
	})
	return visited
}

// Peek returns the next step without removing it.
func (pq *PersistentQueue) Peek() (*Step, error) {
	pq.mu.Lock()
	defer pq.mu.Unlock()

	if pq.closed {
		return nil, ErrQueueClosed
	}
	if pq.memory.IsEmpty() {
		if err := pq.refill(); err != nil {
			return nil, err
		}
	}
	return pq.memory.Peek()
}

// Len returns the number of pending steps on disk and in memory.
func (pq *PersistentQueue) Len() int {
	pq.mu.Lock()
	defer pq.mu.Unlock()

	count := 0
	pq.db.View(func(tx *bolt.Tx) error {
		count = tx.Bucket(bucketFrontier).Stats().KeyN
		return nil
	})
	if count < pq.memory.Len() {
		count = pq.memory.Len()
	}
	return count
}

// IsEmpty returns true if the frontier is empty.
func (pq *PersistentQueue) IsEmpty() bool {
	return pq.Len() == 0
}

// Clear removes all pending steps and the visited set.
func (pq *PersistentQueue) Clear() error {
	pq.mu.Lock()
	defer pq.mu.Unlock()

	pq.memory.Clear()
	return pq.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketFrontier); err != nil {
			return err
		}
		if err := tx.DeleteBucket(bucketVisited); err != nil {
			return err
		}
		if _, err := tx.CreateBucket(bucketFrontier); err != nil {
			return err
		}
		_, err := tx.CreateBucket(bucketVisited)
		return err
	})
}

// Close closes the queue and the underlying database.
func (pq *PersistentQueue) Close() error {
	pq.mu.Lock()
	defer pq.mu.Unlock()

	if pq.closed {
		return nil
	}
	pq.closed = true
	pq.memory.Close()
	return pq.db.Close()
}

// Contains checks if a URL is pending in memory.
func (pq *PersistentQueue) Contains(url string) bool {
	return pq.memory.Contains(url)
}
