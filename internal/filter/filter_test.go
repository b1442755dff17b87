package filter

import (
	"reflect"
	"testing"

	"github.com/crawlspace/linkgate/internal/errors"
)

// =============================================================================
// Engine.Filter Tests
// =============================================================================

func TestFilter_ScopeAndDepth(t *testing.T) {
	engine := NewEngine("")

	req := &Request{
		Links: []string{
			"http://x.com/a/b",
			"http://x.com/",
			"http://y.com/a/b",
		},
		MaxDepth:        1,
		BaseURL:         "http://x.com/a/",
		InitialURL:      "http://x.com/a/",
		IgnoreRobotsTxt: true,
	}

	result, err := engine.Filter(req)
	if err != nil {
		t.Fatalf("Filter() error = %v", err)
	}

	wantLinks := []string{"http://x.com/a/b"}
	if !reflect.DeepEqual(result.Links, wantLinks) {
		t.Errorf("Links = %v, want %v", result.Links, wantLinks)
	}

	if got := result.DenialReasons["http://x.com/"]; got != ReasonBackwardCrawlingDisallowed {
		t.Errorf("denial for http://x.com/ = %v, want %v", got, ReasonBackwardCrawlingDisallowed)
	}
	if got := result.DenialReasons["http://y.com/a/b"]; got != ReasonExcludedByPattern {
		t.Errorf("denial for http://y.com/a/b = %v, want %v", got, ReasonExcludedByPattern)
	}
}

func TestFilter_DenialReasons(t *testing.T) {
	tests := []struct {
		name string
		req  *Request
		link string
		want DenialReason
	}{
		{
			name: "unparseable link",
			req:  &Request{BaseURL: "http://x.com/", IgnoreRobotsTxt: true, MaxDepth: 10},
			link: "http://x.com/%zz%",
			want: ReasonInvalidURL,
		},
		{
			name: "relative link",
			req:  &Request{BaseURL: "http://x.com/", IgnoreRobotsTxt: true, MaxDepth: 10},
			link: "foo/bar",
			want: ReasonInvalidURL,
		},
		{
			name: "ftp scheme",
			req:  &Request{BaseURL: "http://x.com/", IgnoreRobotsTxt: true, MaxDepth: 10},
			link: "ftp://x.com/file",
			want: ReasonUnsupportedProtocol,
		},
		{
			name: "mailto scheme",
			req:  &Request{BaseURL: "http://x.com/", IgnoreRobotsTxt: true, MaxDepth: 10},
			link: "mailto:admin@x.com",
			want: ReasonUnsupportedProtocol,
		},
		{
			name: "backward link",
			req: &Request{
				BaseURL: "http://x.com/a/b/", InitialURL: "http://x.com/a/b/",
				IgnoreRobotsTxt: true, MaxDepth: 10,
			},
			link: "http://x.com/a",
			want: ReasonBackwardCrawlingDisallowed,
		},
		{
			name: "backward wins over exclude",
			req: &Request{
				BaseURL: "http://x.com/a/b/", InitialURL: "http://x.com/a/b/",
				Excludes:        []string{"/a"},
				IgnoreRobotsTxt: true, MaxDepth: 10,
			},
			link: "http://x.com/a",
			want: ReasonBackwardCrawlingDisallowed,
		},
		{
			name: "excluded by pattern",
			req: &Request{
				BaseURL:         "http://x.com/",
				Excludes:        []string{`/logout`},
				IgnoreRobotsTxt: true, MaxDepth: 10,
			},
			link: "http://x.com/account/logout",
			want: ReasonExcludedByPattern,
		},
		{
			name: "excludes win over includes",
			req: &Request{
				BaseURL:         "http://x.com/",
				Excludes:        []string{"/private"},
				Includes:        []string{"/docs"},
				RegexOnFullURL:  true,
				IgnoreRobotsTxt: true, MaxDepth: 10,
			},
			link: "http://x.com/docs/private/x",
			want: ReasonExcludedByPattern,
		},
		{
			name: "not included by pattern",
			req: &Request{
				BaseURL:         "http://x.com/",
				Includes:        []string{"/docs"},
				IgnoreRobotsTxt: true, MaxDepth: 10,
			},
			link: "http://x.com/blog/post",
			want: ReasonNotIncludedByPattern,
		},
		{
			name: "foreign host",
			req:  &Request{BaseURL: "http://x.com/", IgnoreRobotsTxt: true, MaxDepth: 10},
			link: "http://other.com/page",
			want: ReasonExcludedByPattern,
		},
		{
			name: "depth exceeded wins over robots",
			req: &Request{
				BaseURL: "http://x.com/", InitialURL: "http://x.com/",
				MaxDepth:  1,
				RobotsTxt: "User-agent: *\nDisallow: /",
			},
			link: "http://x.com/a/b",
			want: ReasonMaxDepthExceeded,
		},
		{
			name: "robots disallowed",
			req: &Request{
				BaseURL: "http://x.com/", MaxDepth: 10,
				RobotsTxt: "User-agent: *\nDisallow: /private",
			},
			link: "http://x.com/private/data",
			want: ReasonRobotsDisallowed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.req.Links = []string{tt.link}
			result, err := NewEngine("").Filter(tt.req)
			if err != nil {
				t.Fatalf("Filter() error = %v", err)
			}
			if len(result.Links) != 0 {
				t.Fatalf("link was accepted, want denial %v", tt.want)
			}
			if got := result.DenialReasons[tt.link]; got != tt.want {
				t.Errorf("denial = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFilter_DepthBoundary(t *testing.T) {
	engine := NewEngine("")

	tests := []struct {
		name     string
		maxDepth int
		link     string
		accepted bool
	}{
		{"exactly at max depth", 1, "http://x.com/a/b", true},
		{"one beyond max depth", 1, "http://x.com/a/b/c", false},
		{"depth zero same level", 0, "http://x.com/a", true},
		{"depth zero one deeper", 0, "http://x.com/a/b", false},
		{"diverging path counts full segments", 1, "http://x.com/c/d", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &Request{
				Links:           []string{tt.link},
				MaxDepth:        tt.maxDepth,
				BaseURL:         "http://x.com/a/",
				InitialURL:      "http://x.com/a/",
				IgnoreRobotsTxt: true,
			}

			result, err := engine.Filter(req)
			if err != nil {
				t.Fatalf("Filter() error = %v", err)
			}

			if got := len(result.Links) == 1; got != tt.accepted {
				t.Errorf("accepted = %v, want %v (denials: %v)", got, tt.accepted, result.DenialReasons)
			}
			if !tt.accepted {
				if got := result.DenialReasons[tt.link]; got != ReasonMaxDepthExceeded {
					t.Errorf("denial = %v, want %v", got, ReasonMaxDepthExceeded)
				}
			}
		})
	}
}

func TestFilter_BackwardAllowed(t *testing.T) {
	engine := NewEngine("")

	req := &Request{
		Links:                 []string{"http://x.com/"},
		MaxDepth:              1,
		BaseURL:               "http://x.com/a/",
		InitialURL:            "http://x.com/a/",
		AllowBackwardCrawling: true,
		IgnoreRobotsTxt:       true,
	}

	result, err := engine.Filter(req)
	if err != nil {
		t.Fatalf("Filter() error = %v", err)
	}

	if len(result.Links) != 1 {
		t.Errorf("backward link not accepted with allow_backward_crawling: %v", result.DenialReasons)
	}
}

func TestFilter_IgnoreRobots(t *testing.T) {
	engine := NewEngine("")

	req := &Request{
		Links:           []string{"http://x.com/private/data"},
		MaxDepth:        10,
		BaseURL:         "http://x.com/",
		IgnoreRobotsTxt: true,
		RobotsTxt:       "User-agent: *\nDisallow: /",
	}

	result, err := engine.Filter(req)
	if err != nil {
		t.Fatalf("Filter() error = %v", err)
	}

	if len(result.Links) != 1 {
		t.Errorf("robots content must be irrelevant when ignored: %v", result.DenialReasons)
	}
}

func TestFilter_UserAgentGroup(t *testing.T) {
	engine := NewEngine("linkgate")

	req := &Request{
		Links:      []string{"http://x.com/page"},
		MaxDepth:   10,
		BaseURL:    "http://x.com/",
		InitialURL: "http://x.com/",
		RobotsTxt:  "User-agent: linkgate\nDisallow: /\n\nUser-agent: *\nAllow: /",
	}

	result, err := engine.Filter(req)
	if err != nil {
		t.Fatalf("Filter() error = %v", err)
	}

	if got := result.DenialReasons["http://x.com/page"]; got != ReasonRobotsDisallowed {
		t.Errorf("agent-specific group not applied, denials: %v", result.DenialReasons)
	}
}

func TestFilter_Limit(t *testing.T) {
	engine := NewEngine("")

	req := &Request{
		Links: []string{
			"http://x.com/p1",
			"http://x.com/p2",
			"http://x.com/p3",
			"http://x.com/p4",
			"http://x.com/p5",
		},
		Limit:           3,
		MaxDepth:        10,
		BaseURL:         "http://x.com/",
		IgnoreRobotsTxt: true,
	}

	result, err := engine.Filter(req)
	if err != nil {
		t.Fatalf("Filter() error = %v", err)
	}

	wantLinks := []string{"http://x.com/p1", "http://x.com/p2", "http://x.com/p3"}
	if !reflect.DeepEqual(result.Links, wantLinks) {
		t.Errorf("Links = %v, want %v", result.Links, wantLinks)
	}

	for _, url := range []string{"http://x.com/p4", "http://x.com/p5"} {
		if got := result.DenialReasons[url]; got != ReasonLimitReached {
			t.Errorf("denial for %s = %v, want %v", url, got, ReasonLimitReached)
		}
	}
}

func TestFilter_LimitOnlyAppliesToSurvivors(t *testing.T) {
	engine := NewEngine("")

	// The denied link must keep its own reason, not LimitReached
	req := &Request{
		Links: []string{
			"ftp://x.com/skip",
			"http://x.com/p1",
			"http://x.com/p2",
		},
		Limit:           2,
		MaxDepth:        10,
		BaseURL:         "http://x.com/",
		IgnoreRobotsTxt: true,
	}

	result, err := engine.Filter(req)
	if err != nil {
		t.Fatalf("Filter() error = %v", err)
	}

	if len(result.Links) != 2 {
		t.Errorf("Links = %v, want both http links", result.Links)
	}
	if got := result.DenialReasons["ftp://x.com/skip"]; got != ReasonUnsupportedProtocol {
		t.Errorf("denial = %v, want %v", got, ReasonUnsupportedProtocol)
	}
}

func TestFilter_ClassifiesEveryOccurrence(t *testing.T) {
	engine := NewEngine("")

	req := &Request{
		Links: []string{
			"http://x.com/p1",
			"http://x.com/p2",
			"ftp://x.com/skip",
			"http://y.com/out",
		},
		MaxDepth:        10,
		BaseURL:         "http://x.com/",
		IgnoreRobotsTxt: true,
	}

	result, err := engine.Filter(req)
	if err != nil {
		t.Fatalf("Filter() error = %v", err)
	}

	if got := len(result.Links) + len(result.DenialReasons); got != len(req.Links) {
		t.Errorf("classified %d of %d links", got, len(req.Links))
	}
}

func TestFilter_DuplicateNeverAcceptedAndDenied(t *testing.T) {
	engine := NewEngine("")

	req := &Request{
		Links: []string{
			"http://x.com/dup",
			"http://x.com/dup",
		},
		Limit:           1,
		MaxDepth:        10,
		BaseURL:         "http://x.com/",
		IgnoreRobotsTxt: true,
	}

	result, err := engine.Filter(req)
	if err != nil {
		t.Fatalf("Filter() error = %v", err)
	}

	if !reflect.DeepEqual(result.Links, []string{"http://x.com/dup"}) {
		t.Errorf("Links = %v, want one kept occurrence", result.Links)
	}
	// The limit-cut occurrence of an accepted URL is dropped, not denied
	if reason, ok := result.DenialReasons["http://x.com/dup"]; ok {
		t.Errorf("accepted URL also denied with %v", reason)
	}
}

func TestFilter_LimitCutSkipsAcceptedURLs(t *testing.T) {
	engine := NewEngine("")

	req := &Request{
		Links: []string{
			"http://x.com/a",
			"http://x.com/dup",
			"http://x.com/dup",
			"http://x.com/b",
		},
		Limit:           2,
		MaxDepth:        10,
		BaseURL:         "http://x.com/",
		IgnoreRobotsTxt: true,
	}

	result, err := engine.Filter(req)
	if err != nil {
		t.Fatalf("Filter() error = %v", err)
	}

	wantLinks := []string{"http://x.com/a", "http://x.com/dup"}
	if !reflect.DeepEqual(result.Links, wantLinks) {
		t.Errorf("Links = %v, want %v", result.Links, wantLinks)
	}
	if _, ok := result.DenialReasons["http://x.com/dup"]; ok {
		t.Error("kept URL marked limit_reached via its surplus occurrence")
	}
	if got := result.DenialReasons["http://x.com/b"]; got != ReasonLimitReached {
		t.Errorf("denial for http://x.com/b = %v, want %v", got, ReasonLimitReached)
	}
}

func TestFilter_DuplicateDeniedCollapsesToOneEntry(t *testing.T) {
	engine := NewEngine("")

	req := &Request{
		Links: []string{
			"ftp://x.com/f",
			"ftp://x.com/f",
		},
		MaxDepth:        10,
		BaseURL:         "http://x.com/",
		IgnoreRobotsTxt: true,
	}

	result, err := engine.Filter(req)
	if err != nil {
		t.Fatalf("Filter() error = %v", err)
	}

	if len(result.Links) != 0 {
		t.Errorf("Links = %v, want empty", result.Links)
	}
	// Identical denied occurrences share one map entry with one reason
	if len(result.DenialReasons) != 1 {
		t.Fatalf("DenialReasons = %v, want a single entry", result.DenialReasons)
	}
	if got := result.DenialReasons["ftp://x.com/f"]; got != ReasonUnsupportedProtocol {
		t.Errorf("denial = %v, want %v", got, ReasonUnsupportedProtocol)
	}
}

func TestFilter_DuplicatesProcessedIndependently(t *testing.T) {
	engine := NewEngine("")

	req := &Request{
		Links: []string{
			"http://x.com/dup",
			"http://x.com/dup",
		},
		MaxDepth:        10,
		BaseURL:         "http://x.com/",
		IgnoreRobotsTxt: true,
	}

	result, err := engine.Filter(req)
	if err != nil {
		t.Fatalf("Filter() error = %v", err)
	}

	// Both occurrences survive and both count
	if len(result.Links) != 2 {
		t.Errorf("Links = %v, want both occurrences", result.Links)
	}
}

func TestFilter_Idempotent(t *testing.T) {
	engine := NewEngine("")

	req := &Request{
		Links: []string{
			"http://x.com/a/b",
			"http://x.com/",
			"ftp://x.com/f",
			"http://x.com/a/c/d/e",
		},
		MaxDepth:   1,
		BaseURL:    "http://x.com/a/",
		InitialURL: "http://x.com/a/",
		RobotsTxt:  "User-agent: *\nDisallow: /a/c",
	}

	first, err := engine.Filter(req)
	if err != nil {
		t.Fatalf("Filter() error = %v", err)
	}
	second, err := engine.Filter(req)
	if err != nil {
		t.Fatalf("Filter() error = %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Errorf("results differ across identical calls:\n%+v\n%+v", first, second)
	}
}

func TestFilter_EmptyRequest(t *testing.T) {
	engine := NewEngine("")

	result, err := engine.Filter(&Request{
		BaseURL:         "http://x.com/",
		IgnoreRobotsTxt: true,
	})
	if err != nil {
		t.Fatalf("Filter() error = %v", err)
	}

	if len(result.Links) != 0 || len(result.DenialReasons) != 0 {
		t.Errorf("empty input produced non-empty result: %+v", result)
	}
}

// =============================================================================
// Configuration Error Tests
// =============================================================================

func TestFilter_ConfigurationErrors(t *testing.T) {
	tests := []struct {
		name string
		req  *Request
	}{
		{"nil request", nil},
		{"empty base_url", &Request{}},
		{"unparseable base_url", &Request{BaseURL: "http://x.com/%zz%"}},
		{"relative base_url", &Request{BaseURL: "x.com/a"}},
		{"non-http base_url", &Request{BaseURL: "ftp://x.com/"}},
		{"unparseable initial_url", &Request{BaseURL: "http://x.com/", InitialURL: "://bad"}},
		{"negative max_depth", &Request{BaseURL: "http://x.com/", MaxDepth: -1}},
		{
			"invalid exclude pattern",
			&Request{BaseURL: "http://x.com/", Excludes: []string{"[invalid"}},
		},
		{
			"invalid include pattern",
			&Request{BaseURL: "http://x.com/", Includes: []string{"[invalid"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := NewEngine("").Filter(tt.req)
			if err == nil {
				t.Fatal("Filter() succeeded, want configuration error")
			}
			if !errors.IsConfiguration(err) {
				t.Errorf("error kind = %v, want configuration", errors.GetKind(err))
			}
			if result != nil {
				t.Error("failed call must carry no partial result")
			}
		})
	}
}

// =============================================================================
// Pattern Target Tests
// =============================================================================

func TestFilter_RegexTarget(t *testing.T) {
	tests := []struct {
		name       string
		fullURL    bool
		pattern    string
		link       string
		wantDenied bool
	}{
		{"path-only misses host text", false, "x\\.com", "http://x.com/page", false},
		{"full URL sees host text", true, "x\\.com", "http://x.com/page", true},
		{"path-only sees path", false, "^/page", "http://x.com/page", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &Request{
				Links:           []string{tt.link},
				MaxDepth:        10,
				BaseURL:         "http://x.com/",
				RegexOnFullURL:  tt.fullURL,
				Excludes:        []string{tt.pattern},
				IgnoreRobotsTxt: true,
			}

			result, err := NewEngine("").Filter(req)
			if err != nil {
				t.Fatalf("Filter() error = %v", err)
			}

			denied := len(result.Links) == 0
			if denied != tt.wantDenied {
				t.Errorf("denied = %v, want %v", denied, tt.wantDenied)
			}
		})
	}
}

func TestFilter_ForeignHostViaInclude(t *testing.T) {
	// A non-empty include list that matches establishes the host
	req := &Request{
		Links:           []string{"http://docs.x.com/guide"},
		MaxDepth:        10,
		BaseURL:         "http://x.com/",
		RegexOnFullURL:  true,
		Includes:        []string{`docs\.x\.com`},
		IgnoreRobotsTxt: true,
	}

	result, err := NewEngine("").Filter(req)
	if err != nil {
		t.Fatalf("Filter() error = %v", err)
	}

	if len(result.Links) != 1 {
		t.Errorf("included foreign host rejected: %v", result.DenialReasons)
	}
}
