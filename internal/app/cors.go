package app

import (
	"net/url"
	"strings"
)

// originAllowed reports whether the request origin matches any of the
// configured patterns. Patterns compare against the origin's host[:port]:
// an exact host, "*.suffix" for subdomains, or "host:*" for any port.
func originAllowed(patterns []string, origin string) bool {
	host := origin
	if u, err := url.Parse(origin); err == nil && u.Host != "" {
		host = u.Host
	}
	host = strings.ToLower(host)

	for _, p := range patterns {
		p = strings.ToLower(p)
		switch {
		case p == host:
			return true
		case strings.HasPrefix(p, "*."):
			if strings.HasSuffix(host, p[1:]) {
				return true
			}
		case strings.HasSuffix(p, ":*"):
			if strings.HasPrefix(host, p[:len(p)-1]) {
				return true
			}
		}
	}
	return false
}
