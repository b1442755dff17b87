// Package urlnorm provides URL parsing and canonicalization for the
// admission filter. All reference URLs and candidate links go through the
// same normalization so comparisons are stable.
package urlnorm

import (
	"errors"
	"net/url"
	"strings"
)

var (
	// ErrNotAbsolute is returned for URLs without a scheme.
	ErrNotAbsolute = errors.New("url is not absolute")

	// ErrNoHost is returned for http(s) URLs without a host.
	ErrNoHost = errors.New("url has no host")
)

// Parse parses raw as an absolute URL and returns it canonicalized.
// URLs with a non-http scheme parse successfully so the caller can
// classify them; use Supported to check the scheme.
func Parse(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}

	if u.Scheme == "" {
		return nil, ErrNotAbsolute
	}

	if Supported(u.Scheme) && u.Host == "" {
		return nil, ErrNoHost
	}

	Canonicalize(u)
	return u, nil
}

// Supported reports whether the scheme is crawlable.
func Supported(scheme string) bool {
	scheme = strings.ToLower(scheme)
	return scheme == "http" || scheme == "https"
}

// Canonicalize normalizes a URL in place.
func Canonicalize(u *url.URL) {
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	// Remove default ports
	if (u.Scheme == "http" && strings.HasSuffix(u.Host, ":80")) ||
		(u.Scheme == "https" && strings.HasSuffix(u.Host, ":443")) {
		u.Host = u.Host[:strings.LastIndex(u.Host, ":")]
	}

	// Fragments never reach the server
	u.Fragment = ""

	// Remove trailing slash from path (except for root)
	if u.Path != "/" && strings.HasSuffix(u.Path, "/") {
		u.Path = strings.TrimSuffix(u.Path, "/")
		if u.RawPath != "" {
			u.RawPath = strings.TrimSuffix(u.RawPath, "/")
		}
	}

	// Empty path should be /
	if u.Path == "" {
		u.Path = "/"
	}

	// Sort query parameters for consistent comparison
	if u.RawQuery != "" {
		u.RawQuery = u.Query().Encode()
	}
}

// Canonical returns the canonical string form of a URL.
func Canonical(u *url.URL) string {
	return u.String()
}

// PathSegments returns the non-empty path segments of a URL, using the
// percent-encoded form so segment comparison is encoding-stable.
func PathSegments(u *url.URL) []string {
	path := strings.Trim(u.EscapedPath(), "/")
	if path == "" {
		return nil
	}

	parts := strings.Split(path, "/")
	segs := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			segs = append(segs, p)
		}
	}
	return segs
}

// HasSegmentPrefix reports whether segs starts with prefix.
func HasSegmentPrefix(segs, prefix []string) bool {
	if len(prefix) > len(segs) {
		return false
	}
	for i, p := range prefix {
		if segs[i] != p {
			return false
		}
	}
	return true
}

// CommonPrefixLen returns the number of leading segments shared by a and b.
func CommonPrefixLen(a, b []string) int {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return n
}
