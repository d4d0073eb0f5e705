package policy

import (
	"net/http"
	"strings"
	"time"
)

// IsConditional reports whether the request carries a validator this engine
// supports: an If-None-Match header (any value) or a syntactically valid
// If-Modified-Since date.
func IsConditional(req *http.Request) bool {
	return hasETagValidator(req) || hasLastModifiedValidator(req)
}

// AllConditionalsMatch reports whether every supported validator on the
// request matches the entry. When both an entity tag and a modification
// date validator are present, both must match.
func AllConditionalsMatch(req *http.Request, e *Entry, now time.Time) bool {
	hasETag := hasETagValidator(req)
	hasLastModified := hasLastModifiedValidator(req)

	if hasETag && !etagMatches(req, e) {
		return false
	}
	if hasLastModified && !lastModifiedMatches(req, e, now) {
		return false
	}
	return true
}

// hasUnsupportedConditionalHeaders reports whether the request carries a
// conditional form this engine does not evaluate. Such requests must always
// be forwarded to the origin.
func hasUnsupportedConditionalHeaders(req *http.Request) bool {
	return req.Header.Get("If-Range") != "" ||
		req.Header.Get("If-Match") != "" ||
		hasValidDateHeader(req, "If-Unmodified-Since")
}

func hasETagValidator(req *http.Request) bool {
	return len(req.Header.Values("If-None-Match")) > 0
}

func hasLastModifiedValidator(req *http.Request) bool {
	return hasValidDateHeader(req, "If-Modified-Since")
}

func hasValidDateHeader(req *http.Request, name string) bool {
	for _, value := range req.Header.Values(name) {
		if _, err := parseHTTPDate(value); err == nil {
			return true
		}
	}
	return false
}

// etagMatches compares each If-None-Match element against the entry's ETag.
// Entity tags, including weak W/"..." forms, are compared as opaque strings.
// A literal * matches any entry that has an ETag at all; an entry without
// one never matches.
func etagMatches(req *http.Request, e *Entry) bool {
	etag, hasETag := e.etag()
	for _, header := range req.Header.Values("If-None-Match") {
		for _, candidate := range strings.Split(header, ",") {
			candidate = strings.TrimSpace(candidate)
			if candidate == "*" && hasETag {
				return true
			}
			if hasETag && candidate == etag {
				return true
			}
		}
	}
	return false
}

// lastModifiedMatches checks the entry's Last-Modified against every
// If-Modified-Since header on the request. Each request date must parse and
// must not lie in the future, and the entry's Last-Modified must not be
// strictly after it; anything else fails closed. An entry without a
// parseable Last-Modified never matches.
func lastModifiedMatches(req *http.Request, e *Entry, now time.Time) bool {
	lastModified, ok := e.lastModified()
	if !ok {
		return false
	}
	for _, header := range req.Header.Values("If-Modified-Since") {
		ifModifiedSince, err := parseHTTPDate(header)
		if err != nil {
			return false
		}
		if ifModifiedSince.After(now) || lastModified.After(ifModifiedSince) {
			return false
		}
	}
	return true
}
