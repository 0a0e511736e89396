package ingest

import (
	"net/url"
	"strings"
)

// CanonicalSource normalises a source URL so re-crawls of the same page share
// one identifier: scheme and host are lower-cased, query and fragment are
// dropped and trailing slashes collapse to one. Identifiers that do not parse
// as URLs with a host are returned trimmed.
func CanonicalSource(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme == "" {
		scheme = "http"
	}
	path := u.EscapedPath()
	if trimmed := strings.TrimRight(path, "/"); trimmed != path {
		path = trimmed + "/"
	}
	if path == "" {
		path = "/"
	}

	out := url.URL{
		Scheme: scheme,
		User:   u.User,
		Host:   strings.ToLower(u.Host),
	}
	return out.String() + path
}
