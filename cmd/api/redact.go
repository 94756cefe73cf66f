package main

import (
	"net/url"
	"regexp"
	"strings"
)

var passwordParam = regexp.MustCompile(`(?i)password=\S+`)

// redactURL drops the password from a connection URL, keeping the user name.
func redactURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}
	if u.User == nil {
		return u.String()
	}
	name := u.User.Username()
	if name == "" {
		name = "redacted"
	}
	u.User = url.User(name)
	return u.String()
}

// sanitizeError renders err with every secret URL replaced by its redacted
// form and any password=... parameter masked.
func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	for _, secret := range secrets {
		if secret != "" {
			msg = strings.ReplaceAll(msg, secret, redactURL(secret))
		}
	}
	return passwordParam.ReplaceAllString(msg, "password=redacted")
}
