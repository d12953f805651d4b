package capture

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ThalitaPinheiro/defacto/internal/route"
)

// Target is the base URL whose traffic is recorded.
type Target struct {
	URL        *url.URL
	host       string
	classifier *route.Classifier
}

// ParseTarget parses an http or https base URL such as
// https://api.example.com:8443/v1.
func ParseTarget(raw string) (*Target, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("capture: target URL is empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("capture: parse target %q: %w", raw, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return nil, fmt.Errorf("capture: unsupported target scheme %q (only http/https allowed)", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("capture: target %q has no host", raw)
	}
	return &Target{
		URL:        u,
		host:       strings.ToLower(u.Host),
		classifier: route.New(u.Path),
	}, nil
}

// Host returns the lowercased host[:port] of the target.
func (t *Target) Host() string { return t.host }

// Classifier returns the path classifier rooted at the target's base path.
func (t *Target) Classifier() *route.Classifier { return t.classifier }

// Matches reports whether req is addressed to the target: same host[:port],
// compared case-insensitively, and a path under the base path.
func (t *Target) Matches(req *http.Request) bool {
	if req == nil || req.URL == nil {
		return false
	}
	host := req.URL.Host
	if host == "" {
		host = req.Host
	}
	if host == "" {
		host = "localhost"
	}
	return strings.EqualFold(host, t.host) && t.classifier.Under(req.URL.Path)
}
