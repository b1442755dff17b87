package filter

// DenialReason is the specific cause recorded when a candidate link is
// excluded from the frontier.
type DenialReason string

// Denial reasons, highest precedence first. The first rejecting stage of the
// pipeline determines the reason; LimitReached can only apply to a link that
// survived every stage.
const (
	ReasonInvalidURL                 DenialReason = "invalid_url"
	ReasonUnsupportedProtocol        DenialReason = "unsupported_protocol"
	ReasonBackwardCrawlingDisallowed DenialReason = "backward_crawling_disallowed"
	ReasonExcludedByPattern          DenialReason = "excluded_by_pattern"
	ReasonNotIncludedByPattern       DenialReason = "not_included_by_pattern"
	ReasonMaxDepthExceeded           DenialReason = "max_depth_exceeded"
	ReasonRobotsDisallowed           DenialReason = "robots_disallowed"
	ReasonLimitReached               DenialReason = "limit_reached"
)

// Request is a batch of newly discovered URLs plus the crawl-scope
// configuration they are judged against. Requests are immutable once
// constructed; the filter never mutates one.
type Request struct {
	// Links are the raw candidate URLs, in discovery order. Duplicates are
	// permitted and each occurrence is classified independently.
	Links []string `json:"links"`

	// Limit caps the number of accepted links. Zero means no cap.
	Limit int `json:"limit,omitempty"`

	// MaxDepth is the maximum number of path segments a candidate may add
	// beyond the prefix it shares with InitialURL.
	MaxDepth int `json:"max_depth"`

	// BaseURL anchors the crawl scope; candidates on another host are out
	// of scope.
	BaseURL string `json:"base_url"`

	// InitialURL is the crawl seed. It may differ from BaseURL when the
	// scope is wider than the seed.
	InitialURL string `json:"initial_url"`

	// RegexOnFullURL matches patterns against the whole URL instead of the
	// path only.
	RegexOnFullURL bool `json:"regex_on_full_url"`

	// Excludes and Includes are regex pattern lists. Excludes always win.
	// An empty include list means include everything.
	Excludes []string `json:"excludes"`
	Includes []string `json:"includes"`

	// AllowBackwardCrawling permits links that climb above the seed's path.
	AllowBackwardCrawling bool `json:"allow_backward_crawling"`

	// IgnoreRobotsTxt skips robots evaluation entirely.
	IgnoreRobotsTxt bool `json:"ignore_robots_txt"`

	// RobotsTxt is the raw robots.txt body, meaningful only when robots
	// evaluation is enabled.
	RobotsTxt string `json:"robots_txt,omitempty"`
}

// Result is the outcome of one filter call. Every occurrence of an input
// link is classified exactly once: accepted into Links (input order
// preserved) or recorded in DenialReasons.
type Result struct {
	Links         []string                `json:"links"`
	DenialReasons map[string]DenialReason `json:"denial_reasons"`
}
