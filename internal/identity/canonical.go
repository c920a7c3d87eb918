// Package identity derives the stable key that ties observations of the same
// job together across runs.
package identity

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// trackingKeys are query parameters that vary per click and never identify a job.
var trackingKeys = map[string]bool{
	"gh_src":         true,
	"lever-source":   true,
	"lever-source[]": true,
	"source":         true,
	"ref":            true,
}

const trackingPrefix = "utm_"

// CanonicalizeURL returns the stable form of rawURL used for identity.
// Relative references are resolved against base when base is non-empty.
func CanonicalizeURL(rawURL, base string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", fmt.Errorf("empty url")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse url %q: %w", rawURL, err)
	}

	if !u.IsAbs() {
		if base == "" {
			return "", fmt.Errorf("relative url %q without base", rawURL)
		}
		b, err := url.Parse(strings.TrimSpace(base))
		if err != nil || !b.IsAbs() {
			return "", fmt.Errorf("invalid base url %q", base)
		}
		u = b.ResolveReference(u)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = stripDefaultPort(u.Scheme, strings.ToLower(u.Host))
	if u.Host == "" {
		return "", fmt.Errorf("url %q has no host", rawURL)
	}

	u.Fragment = ""
	u.RawFragment = ""
	u.User = nil
	u.RawQuery = filterQuery(u.Query())
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""

	return u.String(), nil
}

func stripDefaultPort(scheme, host string) string {
	switch {
	case scheme == "http" && strings.HasSuffix(host, ":80"):
		return strings.TrimSuffix(host, ":80")
	case scheme == "https" && strings.HasSuffix(host, ":443"):
		return strings.TrimSuffix(host, ":443")
	}
	return host
}

// filterQuery drops tracking parameters and re-encodes the rest in key order.
func filterQuery(q url.Values) string {
	keys := make([]string, 0, len(q))
	for k := range q {
		lk := strings.ToLower(k)
		if trackingKeys[lk] || strings.HasPrefix(lk, trackingPrefix) {
			continue
		}
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return ""
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		for _, v := range q[k] {
			if sb.Len() > 0 {
				sb.WriteByte('&')
			}
			sb.WriteString(url.QueryEscape(k))
			sb.WriteByte('=')
			sb.WriteString(url.QueryEscape(v))
		}
	}
	return sb.String()
}
