// Package filter implements the batched link admission filter: the decision
// engine that takes newly discovered URLs plus crawl-scope configuration and
// returns, for every input link, acceptance into the frontier or a specific
// denial reason.
//
// A call is a pure function of its input: no shared state, no I/O, no
// caching across calls. It is safe to invoke concurrently from many crawl
// workers.
package filter

import (
	"fmt"
	"net/url"

	"github.com/crawlspace/linkgate/internal/errors"
	"github.com/crawlspace/linkgate/internal/robots"
	"github.com/crawlspace/linkgate/internal/urlnorm"
)

// DefaultUserAgent is the product token matched against robots.txt
// user-agent groups.
const DefaultUserAgent = "linkgate"

// Engine evaluates admission requests. It carries only immutable
// configuration and may be shared freely across goroutines.
type Engine struct {
	userAgent string
}

// NewEngine creates an engine. The user agent selects the robots.txt group
// applied during evaluation; empty means DefaultUserAgent.
func NewEngine(userAgent string) *Engine {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &Engine{userAgent: userAgent}
}

// call holds the per-call state derived once from the request.
type call struct {
	req         *Request
	patterns    *patternSet
	robots      *robots.Evaluator
	initialHost string
	initialSegs []string
}

// Filter classifies every link in the request. It returns a configuration
// error when the request itself is malformed; per-link rejections are normal
// results, never errors. A failed call carries no partial result.
func (e *Engine) Filter(req *Request) (result *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = errors.NewInternal("filter", fmt.Errorf("panic: %v", r))
		}
	}()

	c, err := e.prepare(req)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Links:         []string{},
		DenialReasons: make(map[string]DenialReason),
	}

	for _, raw := range req.Links {
		reason, ok := c.classify(raw)
		if ok {
			res.Links = append(res.Links, raw)
			continue
		}
		res.DenialReasons[raw] = reason
	}

	// The limit applies to otherwise-accepted links only: the first Limit
	// survivors stay, in input order, and the surplus is marked. A URL kept
	// in the accepted prefix is never also recorded as denied, so a surplus
	// occurrence of an accepted URL is dropped rather than marked.
	if req.Limit > 0 && len(res.Links) > req.Limit {
		kept := make(map[string]struct{}, req.Limit)
		for _, raw := range res.Links[:req.Limit] {
			kept[raw] = struct{}{}
		}
		for _, raw := range res.Links[req.Limit:] {
			if _, ok := kept[raw]; ok {
				continue
			}
			res.DenialReasons[raw] = ReasonLimitReached
		}
		res.Links = res.Links[:req.Limit]
	}

	return res, nil
}

// prepare normalizes the reference URLs and compiles the per-call state.
func (e *Engine) prepare(req *Request) (*call, error) {
	if req == nil {
		return nil, errors.NewConfiguration("prepare", "nil request", nil)
	}

	base, err := urlnorm.Parse(req.BaseURL)
	if err != nil {
		return nil, errors.NewConfiguration("prepare",
			fmt.Sprintf("invalid base_url %q", req.BaseURL), err)
	}
	if !urlnorm.Supported(base.Scheme) {
		return nil, errors.NewConfiguration("prepare",
			fmt.Sprintf("unsupported base_url scheme %q", base.Scheme), nil)
	}

	initialRaw := req.InitialURL
	if initialRaw == "" {
		initialRaw = req.BaseURL
	}
	initial, err := urlnorm.Parse(initialRaw)
	if err != nil {
		return nil, errors.NewConfiguration("prepare",
			fmt.Sprintf("invalid initial_url %q", req.InitialURL), err)
	}
	if !urlnorm.Supported(initial.Scheme) {
		return nil, errors.NewConfiguration("prepare",
			fmt.Sprintf("unsupported initial_url scheme %q", initial.Scheme), nil)
	}

	if req.MaxDepth < 0 {
		return nil, errors.NewConfiguration("prepare", "max_depth must not be negative", nil)
	}

	patterns, err := compilePatterns(req, base.Host)
	if err != nil {
		return nil, err
	}

	c := &call{
		req:         req,
		patterns:    patterns,
		initialHost: initial.Host,
		initialSegs: urlnorm.PathSegments(initial),
	}

	if !req.IgnoreRobotsTxt {
		c.robots = robots.Parse(req.RobotsTxt).Evaluator(e.userAgent)
	}

	return c, nil
}

// classify runs one candidate through the pipeline in fixed precedence
// order: normalization, scope, patterns, depth, robots. The first rejecting
// stage determines the denial reason.
func (c *call) classify(raw string) (DenialReason, bool) {
	u, err := urlnorm.Parse(raw)
	if err != nil {
		return ReasonInvalidURL, false
	}

	if !urlnorm.Supported(u.Scheme) {
		return ReasonUnsupportedProtocol, false
	}

	if !c.req.AllowBackwardCrawling && isBackward(u, c.initialHost, c.initialSegs) {
		return ReasonBackwardCrawlingDisallowed, false
	}

	if reason, ok := c.patterns.evaluate(u); !ok {
		return reason, false
	}

	if depthBeyond(u, c.initialSegs) > c.req.MaxDepth {
		return ReasonMaxDepthExceeded, false
	}

	if c.robots != nil && !c.robots.Allowed(robotsPath(u)) {
		return ReasonRobotsDisallowed, false
	}

	return "", true
}

// robotsPath is the path form robots rules are matched against.
func robotsPath(u *url.URL) string {
	p := u.EscapedPath()
	if p == "" {
		p = "/"
	}
	if u.RawQuery != "" {
		p += "?" + u.RawQuery
	}
	return p
}
