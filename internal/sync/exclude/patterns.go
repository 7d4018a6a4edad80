package exclude

import (
	"path"
	"strings"
)

// Matcher decides whether a slash-separated path relative to the sync
// root is skipped. Patterns ending in "/" match a directory and
// everything below it; patterns with glob metacharacters match the
// whole path or its base name; anything else matches a path or its
// base name literally.
type Matcher struct {
	patterns []string
}

// New builds a matcher from user patterns. Blank patterns are ignored
// and nothing is excluded by default.
func New(patterns []string) *Matcher {
	cleaned := make([]string, 0, len(patterns))
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		cleaned = append(cleaned, strings.TrimPrefix(p, "./"))
	}
	return &Matcher{patterns: cleaned}
}

// Patterns returns the effective patterns.
func (m *Matcher) Patterns() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.patterns...)
}

// Validate reports the first malformed glob pattern.
func (m *Matcher) Validate() error {
	for _, p := range m.Patterns() {
		if _, err := path.Match(strings.TrimSuffix(p, "/"), ""); err != nil {
			return &PatternError{Pattern: p, Err: err}
		}
	}
	return nil
}

// PatternError reports an unparseable pattern.
type PatternError struct {
	Pattern string
	Err     error
}

func (e *PatternError) Error() string {
	return "invalid exclude pattern " + `"` + e.Pattern + `": ` + e.Err.Error()
}

func (e *PatternError) Unwrap() error { return e.Err }

// IsExcluded reports whether relPath matches any pattern.
func (m *Matcher) IsExcluded(relPath string, isDir bool) bool {
	if m == nil {
		return false
	}
	relPath = strings.TrimPrefix(relPath, "./")
	base := path.Base(relPath)
	for _, p := range m.patterns {
		if strings.HasSuffix(p, "/") {
			dirPattern := strings.TrimSuffix(p, "/")
			if isDir && matchPath(dirPattern, relPath, base) {
				return true
			}
			if strings.HasPrefix(relPath, dirPattern+"/") {
				return true
			}
			continue
		}
		if matchPath(p, relPath, base) {
			return true
		}
		if strings.HasPrefix(relPath, p+"/") {
			return true
		}
	}
	return false
}

func matchPath(pattern, relPath, base string) bool {
	if !strings.ContainsAny(pattern, "*?[") {
		return relPath == pattern || base == pattern
	}
	if ok, _ := path.Match(pattern, relPath); ok {
		return true
	}
	ok, _ := path.Match(pattern, base)
	return ok
}
