package router

import (
	"path"
	"strings"

	"github.com/vyrodovalexey/transitgw/internal/config"
)

// WildcardParam is the parameter name under which the suffix matched by
// a trailing "*" is reported.
const WildcardParam = "*"

// PathMatcher is the interface for path matching.
type PathMatcher interface {
	Match(path string) (bool, map[string]string)
	Pattern() string
}

type segmentKind int

const (
	segmentLiteral segmentKind = iota
	segmentParam
	segmentWildcard
)

type segment struct {
	kind  segmentKind
	value string
}

// SegmentMatcher matches a path segment by segment against a compiled
// pattern.
type SegmentMatcher struct {
	pattern  string
	segments []segment
}

// NewSegmentMatcher compiles a pattern.
func NewSegmentMatcher(pattern string) (*SegmentMatcher, error) {
	if err := config.ValidatePattern(pattern); err != nil {
		return nil, err
	}

	parts := splitPath(pattern)
	segments := make([]segment, 0, len(parts))
	for _, part := range parts {
		switch {
		case part == "*":
			segments = append(segments, segment{kind: segmentWildcard})
		case strings.HasPrefix(part, ":"):
			segments = append(segments, segment{kind: segmentParam, value: part[1:]})
		default:
			segments = append(segments, segment{kind: segmentLiteral, value: part})
		}
	}

	return &SegmentMatcher{pattern: pattern, segments: segments}, nil
}

// Match reports whether path matches and returns the captured
// parameters. The path must already be normalized with CleanPath.
func (m *SegmentMatcher) Match(p string) (bool, map[string]string) {
	parts := splitPath(p)
	var params map[string]string

	for i, seg := range m.segments {
		if seg.kind == segmentWildcard {
			params = setParam(params, WildcardParam, strings.Join(parts[i:], "/"))
			return true, params
		}
		if i >= len(parts) {
			return false, nil
		}

		switch seg.kind {
		case segmentLiteral:
			if parts[i] != seg.value {
				return false, nil
			}
		case segmentParam:
			if parts[i] == "" {
				return false, nil
			}
			params = setParam(params, seg.value, parts[i])
		}
	}

	if len(parts) != len(m.segments) {
		return false, nil
	}
	return true, params
}

// Pattern returns the pattern.
func (m *SegmentMatcher) Pattern() string {
	return m.pattern
}

func setParam(params map[string]string, name, value string) map[string]string {
	if params == nil {
		params = make(map[string]string, 2)
	}
	params[name] = value
	return params
}

// splitPath splits an absolute path into its segments. "/" yields one
// empty segment.
func splitPath(p string) []string {
	return strings.Split(strings.TrimPrefix(p, "/"), "/")
}

// CleanPath normalizes a request path before matching: dot segments are
// resolved, repeated slashes collapse and a trailing slash is dropped.
func CleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}
