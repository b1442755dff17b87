// Package shutdown provides graceful shutdown handling for the service.
package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

// Callback is a function called during shutdown.
type Callback func(ctx context.Context) error

// Handler manages graceful shutdown.
type Handler struct {
	mu sync.Mutex

	callbacks     []Callback
	callbackNames []string

	isShuttingDown atomic.Bool
	done           chan struct{}
	timeout        time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	sigChan chan os.Signal
}

// New creates a shutdown handler listening for SIGINT and SIGTERM.
func New(timeout time.Duration) *Handler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &Handler{
		done:    make(chan struct{}),
		timeout: timeout,
		ctx:     ctx,
		cancel:  cancel,
		sigChan: make(chan os.Signal, 1),
	}

	signal.Notify(h.sigChan, syscall.SIGINT, syscall.SIGTERM)
	go h.watch()

	return h
}

// Register adds a named callback to run at shutdown. Callbacks run in
// reverse registration order.
func (h *Handler) Register(name string, cb Callback) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.callbacks = append(h.callbacks, cb)
	h.callbackNames = append(h.callbackNames, name)
}

// Context returns a context cancelled when shutdown begins.
func (h *Handler) Context() context.Context {
	return h.ctx
}

// Done returns a channel closed when shutdown has completed.
func (h *Handler) Done() <-chan struct{} {
	return h.done
}

// Trigger starts shutdown programmatically.
func (h *Handler) Trigger() {
	go h.shutdown()
}

// Wait blocks until shutdown has completed.
func (h *Handler) Wait() {
	<-h.done
}

func (h *Handler) watch() {
	<-h.sigChan
	h.shutdown()
}

func (h *Handler) shutdown() {
	if !h.isShuttingDown.CompareAndSwap(false, true) {
		return
	}

	h.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	h.mu.Lock()
	callbacks := make([]Callback, len(h.callbacks))
	copy(callbacks, h.callbacks)
	h.mu.Unlock()

	// Reverse order: last registered, first stopped
	for i := len(callbacks) - 1; i >= 0; i-- {
		callbacks[i](ctx)
	}

	signal.Stop(h.sigChan)
	close(h.done)
}
