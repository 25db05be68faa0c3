package client

import "strings"

// =============================================================================
// Client-Side Pattern Matching
// =============================================================================

// PatternMatch is one pattern's match against a concrete path.
type PatternMatch struct {
	Pattern     string
	Params      map[string]string
	SplatValues []string
}

// matchPatterns resolves the registered patterns against a path. The result
// is the nesting chain for the path, outermost first: every ancestor
// pattern whose segments prefix the path, plus exactly the leaf patterns
// that consume it fully (or via a trailing splat). ok is false when no
// pattern consumes the whole path.
//
// Pattern syntax: "/" separated segments, ":name" for a dynamic segment,
// a trailing "*" for a splat capturing the remaining segments.
func matchPatterns(patterns []string, path string) (matches []PatternMatch, ok bool) {
	pathSegs := splitPath(path)

	for _, pattern := range patterns {
		patSegs := splitPath(pattern)
		m, kind := matchOne(pattern, patSegs, pathSegs)
		if kind == matchNone {
			continue
		}
		matches = append(matches, m)
		if kind == matchFull {
			ok = true
		}
	}

	// Outermost first: fewer segments sort earlier. Stable insertion order
	// breaks ties so registration order is preserved.
	for i := 1; i < len(matches); i++ {
		for j := i; j > 0 && segCount(matches[j].Pattern) < segCount(matches[j-1].Pattern); j-- {
			matches[j], matches[j-1] = matches[j-1], matches[j]
		}
	}
	return matches, ok
}

type matchKind int

const (
	matchNone matchKind = iota
	matchAncestor
	matchFull
)

func matchOne(pattern string, patSegs, pathSegs []string) (PatternMatch, matchKind) {
	m := PatternMatch{Pattern: pattern, Params: map[string]string{}}

	for i, seg := range patSegs {
		if seg == "*" {
			// Trailing splat consumes everything that remains.
			if i != len(patSegs)-1 {
				return m, matchNone
			}
			m.SplatValues = append([]string(nil), pathSegs[i:]...)
			return m, matchFull
		}
		if i >= len(pathSegs) {
			return m, matchNone
		}
		if strings.HasPrefix(seg, ":") {
			m.Params[seg[1:]] = pathSegs[i]
			continue
		}
		if seg != pathSegs[i] {
			return m, matchNone
		}
	}

	if len(patSegs) == len(pathSegs) {
		return m, matchFull
	}
	return m, matchAncestor
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

func segCount(pattern string) int {
	return len(splitPath(pattern))
}

// mergedParams folds the params of a match chain, innermost last so deeper
// patterns win name collisions.
func mergedParams(matches []PatternMatch) map[string]string {
	out := map[string]string{}
	for _, m := range matches {
		for k, v := range m.Params {
			out[k] = v
		}
	}
	return out
}

// chainSplatValues returns the splat captures of the chain's leaf, if any.
func chainSplatValues(matches []PatternMatch) []string {
	for i := len(matches) - 1; i >= 0; i-- {
		if len(matches[i].SplatValues) > 0 {
			return matches[i].SplatValues
		}
	}
	return nil
}

func patternsOf(matches []PatternMatch) []string {
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.Pattern
	}
	return out
}
