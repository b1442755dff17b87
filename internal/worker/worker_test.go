package worker

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/crawlspace/linkgate/internal/fetcher"
	"github.com/crawlspace/linkgate/internal/filter"
	"github.com/crawlspace/linkgate/internal/logger"
	"github.com/crawlspace/linkgate/internal/metrics"
	"github.com/crawlspace/linkgate/internal/queue"
	"github.com/crawlspace/linkgate/internal/ratelimit"
	"github.com/crawlspace/linkgate/internal/state"
)

// testSite serves a small site and records which paths were fetched.
type testSite struct {
	mu    sync.Mutex
	hits  map[string]int
	pages map[string]string
}

func newTestSite() *testSite {
	return &testSite{
		hits: make(map[string]int),
		pages: map[string]string{
			"/":           `<a href="/a">a</a> <a href="/b">b</a> <a href="http://elsewhere.example/x">ext</a>`,
			"/a":          `<a href="/a/sub">sub</a> <a href="/">home</a>`,
			"/a/sub":      `<p>leaf</p>`,
			"/b":          `<a href="/b/hidden">hidden</a>`,
			"/robots.txt": "User-agent: *\nDisallow: /b\n",
		},
	}
}

func (s *testSite) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.hits[r.URL.Path]++
	s.mu.Unlock()

	page, ok := s.pages[r.URL.Path]
	if !ok {
		http.NotFound(w, r)
		return
	}
	if r.URL.Path != "/robots.txt" {
		w.Header().Set("Content-Type", "text/html")
	}
	w.Write([]byte(page))
}

func (s *testSite) hitCount(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

func newTestPool(cfg Config, collector *metrics.Collector) *Pool {
	fetchCfg := fetcher.DefaultConfig()
	fetchCfg.Timeout = 2 * time.Second

	return NewPool(
		cfg,
		filter.NewEngine(""),
		queue.NewMemoryQueue(0),
		state.NewSeenSet(1000),
		fetcher.New(fetchCfg),
		ratelimit.NewLimiter(1000, 1000, 0, 0),
		collector,
		logger.Nop(),
	)
}

// =============================================================================
// Pool Tests
// =============================================================================

func TestPool_CrawlDrainsFrontier(t *testing.T) {
	site := newTestSite()
	ts := httptest.NewServer(site)
	defer ts.Close()

	collector := metrics.New()
	pool := newTestPool(Config{
		Workers:  2,
		MaxDepth: 5,
		IdlePoll: 10 * time.Millisecond,
	}, collector)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := pool.Run(ctx, ts.URL)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want self-cancel after drain", err)
	}

	// The whole reachable, admitted site was fetched exactly once
	for _, path := range []string{"/", "/a", "/a/sub"} {
		if n := site.hitCount(path); n != 1 {
			t.Errorf("hits[%s] = %d, want 1", path, n)
		}
	}

	// /b is robots-disallowed and must never be fetched
	if n := site.hitCount("/b"); n != 0 {
		t.Errorf("hits[/b] = %d, want 0", n)
	}

	snap := collector.Snapshot()
	if snap.PagesFetched != 3 {
		t.Errorf("PagesFetched = %d, want 3", snap.PagesFetched)
	}
	if snap.Denials["robots_disallowed"] == 0 {
		t.Error("no robots denial recorded")
	}
}

func TestPool_IgnoreRobots(t *testing.T) {
	site := newTestSite()
	ts := httptest.NewServer(site)
	defer ts.Close()

	pool := newTestPool(Config{
		Workers:         2,
		MaxDepth:        5,
		IgnoreRobotsTxt: true,
		IdlePoll:        10 * time.Millisecond,
	}, metrics.New())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := pool.Run(ctx, ts.URL); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v", err)
	}

	if n := site.hitCount("/b"); n != 1 {
		t.Errorf("hits[/b] = %d, want 1 with robots ignored", n)
	}
	if n := site.hitCount("/robots.txt"); n != 0 {
		t.Errorf("hits[/robots.txt] = %d, robots must not be fetched when ignored", n)
	}
}

func TestPool_MaxDepth(t *testing.T) {
	site := newTestSite()
	ts := httptest.NewServer(site)
	defer ts.Close()

	pool := newTestPool(Config{
		Workers:  1,
		MaxDepth: 1,
		IdlePoll: 10 * time.Millisecond,
	}, metrics.New())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := pool.Run(ctx, ts.URL); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v", err)
	}

	if n := site.hitCount("/a"); n != 1 {
		t.Errorf("hits[/a] = %d, want 1", n)
	}
	if n := site.hitCount("/a/sub"); n != 0 {
		t.Errorf("hits[/a/sub] = %d, want 0 past max depth", n)
	}
}

func TestPool_ExcludePatterns(t *testing.T) {
	site := newTestSite()
	ts := httptest.NewServer(site)
	defer ts.Close()

	pool := newTestPool(Config{
		Workers:         1,
		MaxDepth:        5,
		Excludes:        []string{"^/a"},
		IgnoreRobotsTxt: true,
		IdlePoll:        10 * time.Millisecond,
	}, metrics.New())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := pool.Run(ctx, ts.URL); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v", err)
	}

	if n := site.hitCount("/a"); n != 0 {
		t.Errorf("hits[/a] = %d, want 0 for excluded path", n)
	}
	if n := site.hitCount("/b"); n != 1 {
		t.Errorf("hits[/b] = %d, want 1", n)
	}
}

func TestPool_CancelledContext(t *testing.T) {
	site := newTestSite()
	ts := httptest.NewServer(site)
	defer ts.Close()

	pool := newTestPool(Config{Workers: 2, MaxDepth: 5}, metrics.New())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := pool.Run(ctx, ts.URL); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
}

func TestPool_InvalidTarget(t *testing.T) {
	pool := newTestPool(Config{Workers: 1}, metrics.New())

	if err := pool.Run(context.Background(), "not a url"); err == nil {
		t.Fatal("Run() with invalid target succeeded")
	}
}

func TestPool_JobID(t *testing.T) {
	a := newTestPool(Config{Workers: 1}, metrics.New())
	b := newTestPool(Config{Workers: 1}, metrics.New())

	if a.JobID() == "" {
		t.Error("JobID() is empty")
	}
	if a.JobID() == b.JobID() {
		t.Error("two pools share a job ID")
	}
}
