package archive

import (
	"path/filepath"
	"regexp"
	"strings"
)

// Auto-generated folder shapes that must never be treated as real albums:
// bare dates of several granularities plus the export's own bucket names.
var (
	datePatterns = []*regexp.Regexp{
		regexp.MustCompile(`^\d{4}$`),
		regexp.MustCompile(`^\d{4}-\d{2}$`),
		regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`),
		regexp.MustCompile(`^Photos from \d{4}$`),
	}

	generatedFolders = map[string]bool{
		"trash":       true,
		"bin":         true,
		"archive":     true,
		"screenshots": true,
		"untitled":    true,
	}
)

// InferAlbum derives an album label from the first path segment under the
// archive root. Files at the root and files under auto-generated segments
// get no album.
func InferAlbum(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return ""
	}

	segments := strings.Split(filepath.ToSlash(rel), "/")
	if len(segments) < 2 {
		// The file sits directly under the root.
		return ""
	}

	first := segments[0]
	if isGeneratedSegment(first) {
		return ""
	}
	return first
}

// isGeneratedSegment reports whether a folder name matches one of the
// auto-generated shapes.
func isGeneratedSegment(name string) bool {
	for _, re := range datePatterns {
		if re.MatchString(name) {
			return true
		}
	}
	return generatedFolders[strings.ToLower(name)]
}
