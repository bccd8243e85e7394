package protocol

import (
	"fmt"
	"net/url"
	"strings"
)

// RelayURL is a normalized websocket URL. Two values designate the same
// relay iff they are byte-equal, so all map keys in the pool use this type.
type RelayURL string

// NormalizeURL canonicalizes a relay URL: lowercased scheme and host,
// default ports stripped, empty path replaced with "/". It is idempotent.
func NormalizeURL(raw string) (RelayURL, error) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("invalid relay url %q: %w", raw, err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "ws" && scheme != "wss" {
		return "", fmt.Errorf("relay url %q: scheme must be ws or wss", raw)
	}
	parsed.Scheme = scheme

	host := strings.ToLower(parsed.Host)
	switch {
	case scheme == "ws" && strings.HasSuffix(host, ":80"):
		host = strings.TrimSuffix(host, ":80")
	case scheme == "wss" && strings.HasSuffix(host, ":443"):
		host = strings.TrimSuffix(host, ":443")
	}
	if host == "" {
		return "", fmt.Errorf("relay url %q: missing host", raw)
	}
	parsed.Host = host

	if parsed.Path == "" {
		parsed.Path = "/"
	}
	parsed.Fragment = ""

	return RelayURL(parsed.String()), nil
}

// MustNormalize is a test and configuration helper that panics on bad input.
func MustNormalize(raw string) RelayURL {
	u, err := NormalizeURL(raw)
	if err != nil {
		panic(err)
	}
	return u
}
