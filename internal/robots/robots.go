// Package robots parses robots.txt bodies and evaluates candidate paths
// against them. Parsing happens once per filter call; evaluation is a pure
// longest-prefix-match over the selected user-agent group.
package robots

import (
	"bufio"
	"strings"
)

// Rule is a single Allow or Disallow directive.
type Rule struct {
	Path  string
	Allow bool
}

// group holds the rules for one set of user-agent lines.
type group struct {
	agents []string
	rules  []Rule
}

// Policy is a parsed robots.txt body.
type Policy struct {
	groups   []group
	Sitemaps []string
}

// Parse parses a robots.txt body. Parsing is lenient: unknown directives and
// malformed lines are skipped, matching how real crawlers treat the file.
func Parse(body string) *Policy {
	p := &Policy{}

	scanner := bufio.NewScanner(strings.NewReader(body))
	var current *group
	inAgentRun := false

	for scanner.Scan() {
		line := scanner.Text()
		if idx := strings.Index(line, "#"); idx >= 0 {
			line = line[:idx]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			continue
		}

		directive := strings.ToLower(strings.TrimSpace(parts[0]))
		value := strings.TrimSpace(parts[1])

		switch directive {
		case "user-agent":
			// Consecutive user-agent lines share one group
			if !inAgentRun {
				p.groups = append(p.groups, group{})
				current = &p.groups[len(p.groups)-1]
			}
			current.agents = append(current.agents, strings.ToLower(value))
			inAgentRun = true

		case "allow", "disallow":
			inAgentRun = false
			if current == nil {
				continue
			}
			// An empty Disallow matches nothing; an empty Allow is a no-op
			if value == "" {
				continue
			}
			current.rules = append(current.rules, Rule{
				Path:  value,
				Allow: directive == "allow",
			})

		case "sitemap":
			inAgentRun = false
			p.Sitemaps = append(p.Sitemaps, value)

		default:
			// crawl-delay and friends are irrelevant to admission
			inAgentRun = false
		}
	}

	return p
}

// Evaluator holds the rules applicable to one user agent.
type Evaluator struct {
	rules []Rule
}

// Evaluator selects the rule group for the given user agent. A group naming
// the agent (case-insensitive token match) wins over the wildcard group. With
// no applicable group every path is allowed.
func (p *Policy) Evaluator(userAgent string) *Evaluator {
	agent := strings.ToLower(userAgent)

	var wildcard []Rule
	haveWildcard := false

	for _, g := range p.groups {
		for _, a := range g.agents {
			if a == "*" {
				if !haveWildcard {
					wildcard = g.rules
					haveWildcard = true
				}
				continue
			}
			if strings.Contains(agent, a) {
				return &Evaluator{rules: g.rules}
			}
		}
	}

	if haveWildcard {
		return &Evaluator{rules: wildcard}
	}
	return &Evaluator{}
}

// Allowed reports whether a path may be fetched. The longest matching rule
// wins; an Allow and Disallow of equal length resolve to Allow. No matching
// rule means allowed.
func (e *Evaluator) Allowed(path string) bool {
	if path == "" {
		path = "/"
	}

	allow := true
	best := -1

	for _, r := range e.rules {
		if !matchRule(r.Path, path) {
			continue
		}
		n := len(r.Path)
		if n > best || (n == best && r.Allow) {
			best = n
			allow = r.Allow
		}
	}

	return allow
}

// matchRule matches a robots path pattern against a candidate path. Patterns
// are prefixes with two extensions from the de-facto standard: * matches any
// run of characters and a trailing $ anchors the end of the path.
func matchRule(pattern, path string) bool {
	anchored := strings.HasSuffix(pattern, "$")
	if anchored {
		pattern = strings.TrimSuffix(pattern, "$")
	}

	parts := strings.Split(pattern, "*")

	if anchored {
		// The final literal must sit at the very end of the path
		last := parts[len(parts)-1]
		if !strings.HasSuffix(path, last) {
			return false
		}
		if len(parts) == 1 {
			return path == last
		}
		path = path[:len(path)-len(last)]
		parts = parts[:len(parts)-1]
	}

	pos := 0
	for i, part := range parts {
		if part == "" {
			continue
		}
		if i == 0 {
			if !strings.HasPrefix(path, part) {
				return false
			}
			pos = len(part)
			continue
		}
		idx := strings.Index(path[pos:], part)
		if idx < 0 {
			return false
		}
		pos += idx + len(part)
	}

	return true
}
