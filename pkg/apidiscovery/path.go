// Package apidiscovery folds captured network events into per-endpoint
// statistics and detects latency regressions between the older and newer
// halves of an endpoint's samples.
package apidiscovery

import (
	"net/url"
	"regexp"
	"strings"
)

var reUUID = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// PathTemplate derives an endpoint path template from a raw URL: the query
// string is dropped and numeric or UUID-shaped path segments are replaced
// with ":id", so /api/users/123 and /api/users/456 collapse to
// /api/users/:id.
func PathTemplate(rawURL string) string {
	path := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		path = u.Path
	} else if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}

	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if seg == "" {
			continue
		}
		if isNumeric(seg) || reUUID.MatchString(seg) {
			segments[i] = ":id"
		}
	}
	template := strings.Join(segments, "/")
	if template == "" {
		template = "/"
	}
	return template
}

// EndpointKey builds the aggregation key METHOD + " " + pathTemplate.
func EndpointKey(method, rawURL string) string {
	return strings.ToUpper(method) + " " + PathTemplate(rawURL)
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
