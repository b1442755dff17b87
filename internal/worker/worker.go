// Package worker runs the crawl loop: pop a step from the frontier, fetch
// the page, extract candidate links, pass them through the admission filter,
// and enqueue what was accepted.
package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/crawlspace/linkgate/internal/extract"
	"github.com/crawlspace/linkgate/internal/fetcher"
	"github.com/crawlspace/linkgate/internal/filter"
	"github.com/crawlspace/linkgate/internal/logger"
	"github.com/crawlspace/linkgate/internal/metrics"
	"github.com/crawlspace/linkgate/internal/queue"
	"github.com/crawlspace/linkgate/internal/ratelimit"
	"github.com/crawlspace/linkgate/internal/state"
	"github.com/crawlspace/linkgate/internal/urlnorm"
)

// Config holds the crawl scope applied to every filter call in this crawl.
type Config struct {
	Workers               int
	MaxDepth              int
	Limit                 int
	Excludes              []string
	Includes              []string
	RegexOnFullURL        bool
	AllowBackwardCrawling bool
	IgnoreRobotsTxt       bool
	IdlePoll              time.Duration
}

// Pool is a crawl worker pool. One pool runs one crawl job.
type Pool struct {
	cfg     Config
	engine  *filter.Engine
	queue   queue.Queue
	seen    *state.SeenSet
	client  *fetcher.Client
	limiter *ratelimit.Limiter
	metrics *metrics.Collector
	log     *logger.Logger

	jobID      string
	baseURL    string
	initialURL string

	inflight atomic.Int64
}

// NewPool creates a pool. Every crawl job gets its own ID.
func NewPool(cfg Config, engine *filter.Engine, q queue.Queue, seen *state.SeenSet,
	client *fetcher.Client, limiter *ratelimit.Limiter, collector *metrics.Collector,
	log *logger.Logger) *Pool {

	if cfg.Workers <= 0 {
		cfg.Workers = 8
	}
	if cfg.IdlePoll <= 0 {
		cfg.IdlePoll = 100 * time.Millisecond
	}

	return &Pool{
		cfg:     cfg,
		engine:  engine,
		queue:   q,
		seen:    seen,
		client:  client,
		limiter: limiter,
		metrics: collector,
		log:     log.WithComponent("worker"),
		jobID:   uuid.NewString(),
	}
}

// JobID returns this crawl's job ID.
func (p *Pool) JobID() string {
	return p.jobID
}

// Run crawls from target until the frontier drains or the context is
// cancelled. The target is both scope anchor and seed.
func (p *Pool) Run(ctx context.Context, target string) error {
	seed, err := urlnorm.Parse(target)
	if err != nil {
		return err
	}

	p.baseURL = urlnorm.Canonical(seed)
	p.initialURL = p.baseURL

	p.seen.Mark(p.baseURL)
	if err := p.queue.Push(&queue.Step{
		URL:        p.baseURL,
		Depth:      0,
		JobID:      p.jobID,
		EnqueuedAt: time.Now(),
	}); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p.log.WithField("job_id", p.jobID).Infof("crawl started: %s", p.baseURL)
	p.metrics.SetActiveWorkers(int64(p.cfg.Workers))
	defer p.metrics.SetActiveWorkers(0)

	var wg sync.WaitGroup
	for i := 0; i < p.cfg.Workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.loop(ctx, cancel, id)
		}(i)
	}
	wg.Wait()

	p.log.WithField("job_id", p.jobID).Infof("crawl finished: %d pages seen", p.seen.Count())
	return ctx.Err()
}

// loop pops and processes steps until the crawl drains.
func (p *Pool) loop(ctx context.Context, cancel context.CancelFunc, workerID int) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		step, err := p.queue.Pop()
		if err != nil {
			// Drained: nothing pending and nobody mid-step
			if p.inflight.Load() == 0 && p.queue.IsEmpty() {
				cancel()
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.cfg.IdlePoll):
			}
			continue
		}

		p.inflight.Add(1)
		p.process(ctx, step, workerID)
		p.inflight.Add(-1)
		p.metrics.SetQueueDepth(int64(p.queue.Len()))
	}
}

// process runs one crawl step.
func (p *Pool) process(ctx context.Context, step *queue.Step, workerID int) {
	u, err := urlnorm.Parse(step.URL)
	if err != nil {
		return
	}

	if err := p.limiter.WaitHost(ctx, u.Host); err != nil {
		return
	}

	resp, err := p.client.Get(ctx, step.URL)
	if err != nil {
		p.metrics.RecordFetchError()
		p.log.CrawlEvent(logger.DebugLevel, step.URL, step.Depth, workerID).
			Err(err).Msg("fetch failed")
		return
	}
	p.metrics.RecordPageFetched()

	if resp.StatusCode >= 400 || !resp.IsHTML() {
		return
	}

	links, err := extract.Links(resp.URL, resp.Body)
	if err != nil || len(links) == 0 {
		return
	}

	var robotsTxt string
	if !p.cfg.IgnoreRobotsTxt {
		robotsTxt = p.client.RobotsTxt(ctx, u.Scheme, u.Host)
	}

	req := &filter.Request{
		Links:                 links,
		Limit:                 p.cfg.Limit,
		MaxDepth:              p.cfg.MaxDepth,
		BaseURL:               p.baseURL,
		InitialURL:            p.initialURL,
		RegexOnFullURL:        p.cfg.RegexOnFullURL,
		Excludes:              p.cfg.Excludes,
		Includes:              p.cfg.Includes,
		AllowBackwardCrawling: p.cfg.AllowBackwardCrawling,
		IgnoreRobotsTxt:       p.cfg.IgnoreRobotsTxt,
		RobotsTxt:             robotsTxt,
	}

	start := time.Now()
	result, err := p.engine.Filter(req)
	if err != nil {
		// Scope config is validated at startup, so this is unexpected
		p.metrics.RecordCallError()
		p.log.WithError(err).Error("filter call failed")
		return
	}

	p.metrics.RecordCall(len(links), len(result.Links), time.Since(start))
	for _, reason := range result.DenialReasons {
		p.metrics.RecordDenial(string(reason))
	}

	p.log.CrawlEvent(logger.DebugLevel, step.URL, step.Depth, workerID).
		Int("links", len(links)).
		Int("accepted", len(result.Links)).
		Msg("step complete")

	for _, link := range result.Links {
		if p.seen.Seen(link) {
			continue
		}
		p.seen.Mark(link)

		p.queue.Push(&queue.Step{
			URL:        link,
			Depth:      step.Depth + 1,
			ParentURL:  step.URL,
			JobID:      p.jobID,
			EnqueuedAt: time.Now(),
		})
	}
}
