package filter

import (
	"fmt"
	"net/url"
	"regexp"

	"github.com/crawlspace/linkgate/internal/errors"
	"github.com/crawlspace/linkgate/internal/urlnorm"
)

// patternSet holds the compiled include/exclude patterns for one call,
// together with the scope host they guard.
type patternSet struct {
	excludes  []*regexp.Regexp
	includes  []*regexp.Regexp
	fullURL   bool
	scopeHost string
}

// compilePatterns compiles the request's pattern lists. Invalid regex syntax
// is a configuration error: the whole call fails and no link is classified.
func compilePatterns(req *Request, scopeHost string) (*patternSet, error) {
	ps := &patternSet{
		fullURL:   req.RegexOnFullURL,
		scopeHost: scopeHost,
	}

	for _, pattern := range req.Excludes {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, errors.NewConfiguration("compile_patterns",
				fmt.Sprintf("invalid exclude pattern %q", pattern), err)
		}
		ps.excludes = append(ps.excludes, re)
	}

	for _, pattern := range req.Includes {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, errors.NewConfiguration("compile_patterns",
				fmt.Sprintf("invalid include pattern %q", pattern), err)
		}
		ps.includes = append(ps.includes, re)
	}

	return ps, nil
}

// target returns the string patterns are matched against.
func (ps *patternSet) target(u *url.URL) string {
	if ps.fullURL {
		return urlnorm.Canonical(u)
	}
	if p := u.EscapedPath(); p != "" {
		return p
	}
	return "/"
}

// evaluate runs the pattern stage for one candidate. Excludes win over
// everything. A candidate on a foreign host is out of scope and rejected as
// excluded, unless a non-empty include list explicitly matches it.
func (ps *patternSet) evaluate(u *url.URL) (DenialReason, bool) {
	target := ps.target(u)

	for _, re := range ps.excludes {
		if re.MatchString(target) {
			return ReasonExcludedByPattern, false
		}
	}

	included := len(ps.includes) == 0
	for _, re := range ps.includes {
		if re.MatchString(target) {
			included = true
			break
		}
	}

	if u.Host != ps.scopeHost {
		if len(ps.includes) > 0 && included {
			return "", true
		}
		return ReasonExcludedByPattern, false
	}

	if !included {
		return ReasonNotIncludedByPattern, false
	}

	return "", true
}
