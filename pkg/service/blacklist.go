package service

import (
	"net/url"
	"regexp"
	"strings"
)

func globToRegexp(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("(?i)^")
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}

// IsBlacklisted reports whether rawURL matches one of the glob patterns.
// A pattern is matched against the whole URL and against the bare host.
func IsBlacklisted(patterns []string, rawURL string) bool {
	host := ""
	if u, err := url.Parse(rawURL); err == nil {
		host = u.Hostname()
	}
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		re, err := globToRegexp(p)
		if err != nil {
			continue
		}
		if re.MatchString(rawURL) || (host != "" && re.MatchString(host)) {
			return true
		}
	}
	return false
}
