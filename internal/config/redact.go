package config

import (
	"net/url"
	"strings"
)

// RedactURL replaces the password in a PostgreSQL connection URL with "***".
// If the URL cannot be parsed or has no password, it is returned unchanged.
// The surrounding text is spliced rather than re-encoded so the rest of the
// URL comes back byte for byte.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}

	if _, hasPassword := u.User.Password(); !hasPassword {
		return raw
	}

	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok {
		return raw
	}

	userinfo, host, ok := strings.Cut(rest, "@")
	if !ok {
		return raw
	}

	user, _, ok := strings.Cut(userinfo, ":")
	if !ok {
		return raw
	}

	return scheme + "://" + user + ":***@" + host
}
