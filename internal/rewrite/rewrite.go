// Package rewrite implements request parsing and the scheme upgrade rule.
package rewrite

import (
	"strings"

	"squid-rewriter/internal/model"
)

const (
	plainScheme  = "http://"
	secureScheme = "https://"
)

// ParseRequest splits a request line on its first space. Everything after
// that space is kept verbatim as extras, further spaces included.
func ParseRequest(line string) model.Request {
	url, extras, _ := strings.Cut(line, " ")
	return model.Request{URL: url, Extras: extras}
}

// URL upgrades an http:// URL to https://, leaving the rest of it untouched.
// The prefix match is exact and case-sensitive; anything else is returned
// unchanged with ok set to false.
func URL(url string) (rewritten string, ok bool) {
	rest, found := strings.CutPrefix(url, plainScheme)
	if !found {
		return url, false
	}
	return secureScheme + rest, true
}

// Apply parses a request line and returns the response for it together with
// the original request and whether the URL was rewritten.
func Apply(line string) (model.Request, model.Response, bool) {
	req := ParseRequest(line)
	url, ok := URL(req.URL)
	return req, model.Response{URL: url, Extras: req.Extras}, ok
}
