package util

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// trackingParams are dropped by NormalizeURL.
var trackingParams = []string{"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content", "ref_src", "s", "t"}

var urlRegex = regexp.MustCompile(`https?://[^\s<>"]+`)

// ExtractURLs returns the http(s) URLs in text, deduplicated, in order of appearance.
func ExtractURLs(text string) []string {
	found := urlRegex.FindAllString(text, -1)
	if len(found) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(found))
	out := make([]string, 0, len(found))
	for _, u := range found {
		if seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}

// ContainsHTTPURL reports whether s contains an http:// or https:// substring.
func ContainsHTTPURL(s string) bool {
	lower := strings.ToLower(s)
	return strings.Contains(lower, "http://") || strings.Contains(lower, "https://")
}

// GetDomain returns the registrable domain of rawURL ("sub.example.co.uk" ->
// "example.co.uk"), or "" when it has no usable host.
func GetDomain(rawURL string) string {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	host := strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
	if host == "" {
		return ""
	}
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return domain
}

// NormalizeURL canonicalizes a link for comparison: https scheme, lower-case
// host without "www.", no trailing slash, no fragment and no tracking params.
func NormalizeURL(rawURL string) (string, error) {
	parsedURL, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return rawURL, err
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return rawURL, nil
	}

	parsedURL.Scheme = "https"
	parsedURL.Host = strings.TrimPrefix(strings.ToLower(parsedURL.Host), "www.")
	parsedURL.Fragment = ""
	if len(parsedURL.Path) > 1 && strings.HasSuffix(parsedURL.Path, "/") {
		parsedURL.Path = strings.TrimSuffix(parsedURL.Path, "/")
		// Clear RawPath to ensure String() regenerates the URL path without the trailing slash
		parsedURL.RawPath = ""
	}
	queryParams := parsedURL.Query()
	for _, param := range trackingParams {
		queryParams.Del(param)
	}
	parsedURL.RawQuery = queryParams.Encode()
	return parsedURL.String(), nil
}

// SameURL reports whether a and b normalize to the same link.
func SameURL(a, b string) bool {
	na, errA := NormalizeURL(a)
	nb, errB := NormalizeURL(b)
	if errA != nil || errB != nil {
		return strings.TrimSpace(a) == strings.TrimSpace(b)
	}
	return na == nb
}
