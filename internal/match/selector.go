package match

import (
	"fmt"
	"strings"
)

// Pattern is a compiled '*' wildcard matched against collector names.
// Params: literal segments between wildcards and anchor flags.
// Returns: reusable matcher.
type Pattern struct {
	segments []string
	anchored [2]bool
	any      bool
}

// Compile compiles one wildcard pattern.
// Params: pattern may contain any number of '*'.
// Returns: compiled pattern and false when pattern is blank.
func Compile(pattern string) (Pattern, bool) {
	text := strings.TrimSpace(pattern)
	if text == "" {
		return Pattern{}, false
	}
	if strings.Trim(text, "*") == "" {
		return Pattern{any: true}, true
	}

	return Pattern{
		segments: strings.Split(text, "*"),
		anchored: [2]bool{!strings.HasPrefix(text, "*"), !strings.HasSuffix(text, "*")},
	}, true
}

// Match reports whether name matches the pattern.
// Params: name compared text.
// Returns: true on match.
func (p Pattern) Match(name string) bool {
	if p.any {
		return true
	}
	switch len(p.segments) {
	case 0:
		return false
	case 1:
		return name == p.segments[0]
	}

	first, last := 0, len(p.segments)-1
	rest := name

	if p.anchored[0] {
		if !strings.HasPrefix(rest, p.segments[first]) {
			return false
		}
		rest = rest[len(p.segments[first]):]
		first++
	}
	if p.anchored[1] {
		if first > last || !strings.HasSuffix(rest, p.segments[last]) {
			return false
		}
		rest = rest[:len(rest)-len(p.segments[last])]
		last--
	}

	for idx := first; idx <= last; idx++ {
		segment := p.segments[idx]
		if segment == "" {
			continue
		}
		offset := strings.Index(rest, segment)
		if offset < 0 {
			return false
		}
		rest = rest[offset+len(segment):]
	}
	return true
}

// Selector picks names by include patterns and "!"-prefixed exclude patterns.
type Selector struct {
	include []Pattern
	exclude []Pattern
}

// NewSelector compiles include/exclude patterns.
// Params: patterns such as "*", "system_*", "!health"; no include pattern means include all.
// Returns: selector or error on blank patterns.
func NewSelector(patterns []string) (Selector, error) {
	var selector Selector
	for idx, raw := range patterns {
		text := strings.TrimSpace(raw)
		exclude := strings.HasPrefix(text, "!")
		if exclude {
			text = strings.TrimPrefix(text, "!")
		}

		compiled, ok := Compile(text)
		if !ok {
			return Selector{}, fmt.Errorf("pattern[%d] is empty", idx)
		}
		if exclude {
			selector.exclude = append(selector.exclude, compiled)
			continue
		}
		selector.include = append(selector.include, compiled)
	}
	return selector, nil
}

// Match reports whether name is selected.
// Params: name candidate.
// Returns: true when included and not excluded.
func (s Selector) Match(name string) bool {
	for _, pattern := range s.exclude {
		if pattern.Match(name) {
			return false
		}
	}
	if len(s.include) == 0 {
		return true
	}
	for _, pattern := range s.include {
		if pattern.Match(name) {
			return true
		}
	}
	return false
}

// Select filters names preserving order.
// Params: names candidates.
// Returns: selected names.
func (s Selector) Select(names []string) []string {
	out := make([]string, 0, len(names))
	for _, name := range names {
		if s.Match(name) {
			out = append(out, name)
		}
	}
	return out
}
