package validate

import (
	"regexp"
	"strings"
)

var (
	uuidSegment    = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)
	numericSegment = regexp.MustCompile(`^[0-9]+$`)
)

// NormalizePath rewrites identifier-shaped path segments to ":id" so that
// concrete request paths match the route patterns rules are declared
// against. "/stories/42/submit" and
// "/stories/3fa85f64-5717-4562-b3fc-2c963f66afa6/submit" both normalize to
// "/stories/:id/submit". Literal ":id" segments pass through unchanged.
func NormalizePath(path string) string {
	if path == "" || path == "/" {
		return path
	}

	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if uuidSegment.MatchString(seg) || numericSegment.MatchString(seg) {
			segments[i] = ":id"
		}
	}
	return strings.Join(segments, "/")
}

// ruleKey is the lookup key for a compiled rule. Methods are matched
// case-insensitively by upper-casing at both compile and lookup time.
func ruleKey(method, normalizedPath string) string {
	return strings.ToUpper(method) + " " + normalizedPath
}
