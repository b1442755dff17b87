package filter

import (
	"net/url"

	"github.com/crawlspace/linkgate/internal/urlnorm"
)

// isBackward reports whether a candidate climbs above the seed in the site
// hierarchy: its path is a strict ancestor of the initial URL's path.
// Hierarchy comparison only makes sense within the reference host, so
// candidates on a foreign host are never backward; they fall through to the
// pattern stage and are rejected there as out of scope.
func isBackward(candidate *url.URL, initialHost string, initialSegs []string) bool {
	if candidate.Host != initialHost {
		return false
	}

	candSegs := urlnorm.PathSegments(candidate)
	if len(candSegs) >= len(initialSegs) {
		return false
	}

	return urlnorm.HasSegmentPrefix(initialSegs, candSegs)
}

// depthBeyond returns the candidate's crawl depth: the number of its path
// segments beyond the prefix it shares with the initial URL's path.
func depthBeyond(candidate *url.URL, initialSegs []string) int {
	candSegs := urlnorm.PathSegments(candidate)
	common := urlnorm.CommonPrefixLen(candSegs, initialSegs)
	return len(candSegs) - common
}
