package ingest

import (
	"fmt"
	"net/url"
	"strings"
)

// Absolutize attaches the site's scheme and host to a relative URL. An
// already-absolute URL is returned untouched.
func Absolutize(rawURL string, site Site) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Host != "" {
		return rawURL, nil
	}
	u.Scheme = site.Scheme
	u.Host = site.Source
	return u.String(), nil
}

// ExternalID extracts the site-native listing id from the URL's query
// parameters. Returns "" when the parameter is absent or the URL does not
// parse; the caller treats both as an unrecognized page shape.
func ExternalID(rawURL string, site Site) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Query().Get(site.ExternalIDParam)
}

// IsOffsite reports whether a final URL resolved to a host outside the
// expected site. Relative URLs are on-site by definition.
func IsOffsite(rawURL string, site Site) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if u.Host == "" {
		return false
	}
	return !strings.Contains(u.Host, site.DomainMarker)
}
