// Package ignoremask implements gitignore-syntax path filtering:
// comments, negation, anchoring, directory-only patterns, and `**`.
package ignoremask

import (
	"strings"
)

type pattern struct {
	negate   bool
	dirOnly  bool
	anchored bool
	segments []string
}

// Matcher holds an ordered list of compiled patterns. Later patterns
// take precedence over earlier ones, matching gitignore's own
// last-match-wins rule.
type Matcher struct {
	patterns []pattern
}

// New compiles an ordered list of raw gitignore-syntax lines. Blank
// lines and comments (`#`) are skipped.
func New(raw []string) *Matcher {
	m := &Matcher{}
	m.Add(raw)
	return m
}

// Add compiles and appends more patterns, applied after any already
// present.
func (m *Matcher) Add(raw []string) {
	for _, line := range raw {
		if p, ok := compile(line); ok {
			m.patterns = append(m.patterns, p)
		}
	}
}

func compile(line string) (pattern, bool) {
	line = strings.TrimRight(line, "\r\n")
	if line == "" || strings.HasPrefix(line, "#") {
		return pattern{}, false
	}

	p := pattern{}
	if strings.HasPrefix(line, "!") {
		p.negate = true
		line = line[1:]
	}
	if strings.HasPrefix(line, "/") {
		p.anchored = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		p.dirOnly = true
		line = strings.TrimSuffix(line, "/")
	}
	if line == "" {
		return pattern{}, false
	}
	p.segments = strings.Split(line, "/")
	return p, true
}

// Match reports whether path (slash-separated, relative, not
// required to exist) is matched by the compiled pattern set. It
// treats path as a file, so directory-only patterns never match here.
func (m *Matcher) Match(path string) bool {
	return m.MatchDir(path, false)
}

// MatchDir is Match with an explicit directory flag, needed because a
// directory-only pattern (trailing `/`) only ever matches directories.
func (m *Matcher) MatchDir(path string, isDir bool) bool {
	path = strings.Trim(path, "/")
	segments := strings.Split(path, "/")

	matched := false
	for _, p := range m.patterns {
		if p.dirOnly && !isDir {
			continue
		}
		if matchPattern(p, segments) {
			matched = !p.negate
		}
	}
	return matched
}

// matchPattern tests one compiled pattern against segments. Anchored
// patterns and patterns with more than one segment match only from the
// root; a single-segment unanchored pattern may match at any depth,
// mirroring gitignore semantics.
func matchPattern(p pattern, segments []string) bool {
	if p.anchored || len(p.segments) > 1 {
		return matchSegments(p.segments, segments)
	}
	for i := range segments {
		if matchSegments(p.segments, segments[i:]) {
			return true
		}
	}
	return false
}

// matchSegments matches a pattern's path segments (which may contain
// `**`, `*`, `?`) against a candidate's path segments.
func matchSegments(pat, seg []string) bool {
	if len(pat) == 0 {
		return len(seg) == 0
	}
	if pat[0] == "**" {
		if len(pat) == 1 {
			return true
		}
		for i := 0; i <= len(seg); i++ {
			if matchSegments(pat[1:], seg[i:]) {
				return true
			}
		}
		return false
	}
	if len(seg) == 0 {
		return false
	}
	if !matchSegment(pat[0], seg[0]) {
		return false
	}
	return matchSegments(pat[1:], seg[1:])
}

// matchSegment matches one path segment against one glob segment
// supporting `*` and `?`.
func matchSegment(glob, name string) bool {
	gi, ni := 0, 0
	starIdx, matchIdx := -1, 0
	for ni < len(name) {
		if gi < len(glob) {
			switch glob[gi] {
			case '?':
				gi++
				ni++
				continue
			case '*':
				starIdx = gi
				matchIdx = ni
				gi++
				continue
			default:
				if glob[gi] == name[ni] {
					gi++
					ni++
					continue
				}
			}
		}
		if starIdx >= 0 {
			gi = starIdx + 1
			matchIdx++
			ni = matchIdx
			continue
		}
		return false
	}
	for gi < len(glob) && glob[gi] == '*' {
		gi++
	}
	return gi == len(glob)
}

// DefaultPatterns is the minimal built-in ignore set every project
// carries regardless of engine type.
func DefaultPatterns() []string {
	return []string{
		"node_modules/",
		".git/",
		".sync/",
		".DS_Store",
		"Thumbs.db",
		"*.tmp",
		"*.log",
	}
}

// UnrealEnginePatterns overlays extra noise specific to Unreal Engine
// project trees, added when a `.uproject` file is detected at the
// project root.
func UnrealEnginePatterns() []string {
	return []string{
		"Binaries/",
		"Intermediate/",
		"DerivedDataCache/",
		"Saved/",
		".vs/",
		".idea/",
		"*.sln",
	}
}
