package scrape

import (
	"net/url"
	"path"
	"strings"
)

// defaultExcludePatterns skip documents and assets that are never a
// business's landing or contact page.
var defaultExcludePatterns = []string{
	"/*.pdf",
	"/*.jpg",
	"/*.jpeg",
	"/*.png",
	"/*.gif",
	"/*.svg",
	"/*.zip",
	"/wp-content/uploads/*",
	"/cdn-cgi/*",
}

// PathMatcher filters URLs based on glob-style path patterns. Patterns
// ending in "/*" also match deeper paths, and "/*.ext" patterns match the
// extension at any depth.
type PathMatcher struct {
	patterns []string
}

// NewPathMatcher creates a PathMatcher from glob patterns (e.g. "/blog/*", "/*.pdf").
// Falls back to default patterns if none are provided.
func NewPathMatcher(patterns []string) *PathMatcher {
	if len(patterns) == 0 {
		patterns = defaultExcludePatterns
	}
	return &PathMatcher{patterns: patterns}
}

// Patterns returns the configured patterns.
func (m *PathMatcher) Patterns() []string {
	return m.patterns
}

// IsExcluded checks whether a URL matches any exclude pattern.
func (m *PathMatcher) IsExcluded(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	return m.isPathExcluded(u.Path)
}

// isPathExcluded checks a URL path against all patterns.
func (m *PathMatcher) isPathExcluded(urlPath string) bool {
	urlPath = strings.ToLower(urlPath)
	for _, pattern := range m.patterns {
		pattern = strings.ToLower(pattern)
		if matchSegmented(pattern, urlPath) {
			return true
		}
	}
	return false
}

// matchSegmented performs glob matching where a pattern like
// "/wp-content/uploads/*" matches "/wp-content/uploads/2024/05/logo.png".
func matchSegmented(pattern, urlPath string) bool {
	if ok, _ := path.Match(pattern, urlPath); ok {
		return true
	}

	if strings.HasSuffix(pattern, "/*") {
		prefix := strings.TrimSuffix(pattern, "/*")
		if urlPath == prefix || strings.HasPrefix(urlPath, prefix+"/") {
			return true
		}
	}

	// "/*.pdf" matches "/files/2024/menu.pdf".
	if strings.HasPrefix(pattern, "/*.") {
		return strings.HasSuffix(urlPath, strings.TrimPrefix(pattern, "/*"))
	}
	return false
}
