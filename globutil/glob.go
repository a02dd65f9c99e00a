// Package globutil implements pattern-to-regex glob matching (C5) over a
// store's list operation: shell/pathlib-style patterns with `*`, `**`,
// `?`, and `[...]` character classes, plus prefix extraction so callers can
// restrict `list()` to a literal, non-wildcarded prefix.
package globutil

import (
	"context"
	"regexp"
	"strings"
)

// Lister is the subset of a store's capabilities glob needs: listing every
// path under a literal prefix. It is deliberately outside store.Store,
// since list is not one of the four C1 operations.
type Lister interface {
	List(ctx context.Context, prefix string) ([]string, error)
}

// Pattern is a compiled glob pattern.
type Pattern struct {
	raw    string
	prefix string
	re     *regexp.Regexp
}

// Prefix returns the literal, non-wildcarded prefix that can be passed to
// list() to restrict the set of candidate paths.
func (p *Pattern) Prefix() string { return p.prefix }

// String returns the original pattern text.
func (p *Pattern) String() string { return p.raw }

// Match reports whether path matches the compiled pattern.
func (p *Pattern) Match(path string) bool { return p.re.MatchString(path) }

// wildcardChars are the characters that make a pattern segment dynamic.
const wildcardChars = "*?["

// Compile parses and compiles a glob pattern.
func Compile(pattern string) *Pattern {
	prefix := extractPrefix(pattern)
	re := compilePatternRegex(pattern)
	return &Pattern{raw: pattern, prefix: prefix, re: re}
}

// extractPrefix splits the pattern at the first wildcard character; the
// portion up to and including the last `/` before that wildcard is the
// literal prefix.
func extractPrefix(pattern string) string {
	idx := strings.IndexAny(pattern, wildcardChars)
	if idx < 0 {
		// No wildcard at all: the whole pattern is literal.
		if i := strings.LastIndexByte(pattern, '/'); i >= 0 {
			return pattern[:i+1]
		}
		return ""
	}
	head := pattern[:idx]
	if i := strings.LastIndexByte(head, '/'); i >= 0 {
		return head[:i+1]
	}
	return ""
}

// compilePatternRegex translates the pattern segment-by-segment into an
// anchored regex: `**` compiles to `(?:.+/)?` in non-terminal
// position and `.*` in terminal position; consecutive `**` segments
// collapse.
func compilePatternRegex(pattern string) *regexp.Regexp {
	segments := strings.Split(pattern, "/")

	// Collapse consecutive "**" segments.
	collapsed := segments[:0:0]
	for i, seg := range segments {
		if seg == "**" && i > 0 && collapsed[len(collapsed)-1] == "**" {
			continue
		}
		collapsed = append(collapsed, seg)
	}
	segments = collapsed

	var b strings.Builder
	b.WriteString("\\A")
	prevWasDoubleStar := false
	for i, seg := range segments {
		if i > 0 && !prevWasDoubleStar {
			b.WriteString("/")
		}
		if seg == "**" {
			if i == len(segments)-1 {
				b.WriteString(".*")
			} else {
				b.WriteString("(?:.+/)?")
			}
			prevWasDoubleStar = true
			continue
		}
		b.WriteString(translateSegment(seg))
		prevWasDoubleStar = false
	}
	b.WriteString("\\z")
	return regexp.MustCompile(b.String())
}

// translateSegment translates one path segment's glob syntax into regex:
// `*` -> `[^/]*`, `?` -> `[^/]`, `[abc]`/`[a-z]`/`[!abc]`/`[^abc]` character
// classes with `]` literal as the first class character and an unclosed
// `[` treated as a literal bracket.
func translateSegment(seg string) string {
	var b strings.Builder
	i := 0
	n := len(seg)
	for i < n {
		c := seg[i]
		switch c {
		case '*':
			b.WriteString("[^/]*")
			i++
		case '?':
			b.WriteString("[^/]")
			i++
		case '[':
			j := i + 1
			negate := false
			if j < n && (seg[j] == '!' || seg[j] == '^') {
				negate = true
				j++
			}
			classStart := j
			if j < n && seg[j] == ']' {
				j++ // leading ']' is literal within the class
			}
			for j < n && seg[j] != ']' {
				j++
			}
			if j >= n {
				// Unclosed '[': treat the '[' as a literal character.
				b.WriteString(regexp.QuoteMeta("["))
				i++
				continue
			}
			classBody := seg[classStart:j]
			b.WriteString("[")
			if negate {
				b.WriteString("^")
			}
			b.WriteString(classBody)
			b.WriteString("]")
			i = j + 1
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
			i++
		}
	}
	return b.String()
}

// Glob lists under the pattern's literal prefix and yields the paths that
// match.
func Glob(ctx context.Context, lister Lister, pattern string) ([]string, error) {
	p := Compile(pattern)
	candidates, err := lister.List(ctx, p.Prefix())
	if err != nil {
		return nil, err
	}
	var out []string
	for _, path := range candidates {
		if p.Match(path) {
			out = append(out, path)
		}
	}
	return out, nil
}
