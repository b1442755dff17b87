// Package linkgate wires the admission filter, its HTTP boundary, and the
// crawl loop collaborators into a runnable service.
package linkgate

import (
	"context"
	"fmt"
	"time"

	"github.com/crawlspace/linkgate/internal/api"
	"github.com/crawlspace/linkgate/internal/fetcher"
	"github.com/crawlspace/linkgate/internal/filter"
	"github.com/crawlspace/linkgate/internal/logger"
	"github.com/crawlspace/linkgate/internal/metrics"
	"github.com/crawlspace/linkgate/internal/queue"
	"github.com/crawlspace/linkgate/internal/ratelimit"
	"github.com/crawlspace/linkgate/internal/shutdown"
	"github.com/crawlspace/linkgate/internal/state"
	"github.com/crawlspace/linkgate/internal/worker"
)

// Service is the assembled link admission service.
type Service struct {
	cfg     *Config
	log     *logger.Logger
	engine  *filter.Engine
	metrics *metrics.Collector
	server  *api.Server
}

// New creates a service from configuration.
func New(cfg *Config) (*Service, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logCfg := logger.DefaultConfig()
	if cfg.Debug {
		logCfg.Level = logger.DebugLevel
	}
	log := logger.New(logCfg)

	engine := filter.NewEngine(cfg.UserAgent)
	collector := metrics.New()

	return &Service{
		cfg:     cfg,
		log:     log,
		engine:  engine,
		metrics: collector,
		server:  api.NewServer(cfg.Listen, engine, collector, log),
	}, nil
}

// Engine exposes the filter engine for in-process callers.
func (s *Service) Engine() *filter.Engine {
	return s.engine
}

// Metrics exposes the metrics collector.
func (s *Service) Metrics() *metrics.Collector {
	return s.metrics
}

// Logger exposes the service logger.
func (s *Service) Logger() *logger.Logger {
	return s.log
}

// Serve runs the HTTP boundary until a shutdown signal arrives.
func (s *Service) Serve() error {
	sd := shutdown.New(30 * time.Second)
	sd.Register("http", s.server.Shutdown)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-sd.Context().Done():
		sd.Wait()
		return nil
	}
}

// Crawl runs a full crawl of target using the configured scope, returning
// when the frontier drains.
func (s *Service) Crawl(ctx context.Context, target string) error {
	var q queue.Queue
	if s.cfg.Queue.Path != "" {
		pq, err := queue.NewPersistentQueue(s.cfg.Queue.Path, s.cfg.Queue.MaxMemory)
		if err != nil {
			return fmt.Errorf("failed to open frontier: %w", err)
		}
		q = pq
	} else {
		q = queue.NewMemoryQueue(0)
	}
	defer q.Close()

	fetchCfg := fetcher.DefaultConfig()
	fetchCfg.UserAgent = s.cfg.UserAgent
	if s.cfg.Fetch.Timeout > 0 {
		fetchCfg.Timeout = s.cfg.Fetch.Timeout
	}
	fetchCfg.SkipTLSVerify = s.cfg.Fetch.SkipTLSVerify

	limiter := ratelimit.NewLimiter(
		s.cfg.Crawl.RequestsPerSecond, s.cfg.Crawl.Burst,
		s.cfg.Crawl.HostRPS, s.cfg.Crawl.HostBurst,
	)

	pool := worker.NewPool(
		worker.Config{
			Workers:               s.cfg.Crawl.Workers,
			MaxDepth:              s.cfg.Scope.MaxDepth,
			Limit:                 s.cfg.Scope.Limit,
			Excludes:              s.cfg.Scope.Excludes,
			Includes:              s.cfg.Scope.Includes,
			RegexOnFullURL:        s.cfg.Scope.RegexOnFullURL,
			AllowBackwardCrawling: s.cfg.Scope.AllowBackwardCrawling,
			IgnoreRobotsTxt:       s.cfg.Scope.IgnoreRobotsTxt,
		},
		s.engine,
		q,
		state.NewSeenSet(s.cfg.Crawl.EstimatedPages),
		fetcher.New(fetchCfg),
		limiter,
		s.metrics,
		s.log,
	)

	return pool.Run(ctx, target)
}
