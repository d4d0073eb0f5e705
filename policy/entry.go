// Package policy decides whether a stored HTTP response may be replayed
// for a request without contacting the origin, and rebuilds the outgoing
// message when it may. It implements the freshness, validation and
// Cache-Control semantics of RFC 9111 as pure functions: nothing in this
// package does I/O, touches a clock, or mutates its inputs. The reference
// time is always supplied by the caller.
package policy

import (
	"net/http"
	"strings"
	"time"
)

// Entry is an immutable snapshot of a previously received origin response.
// RequestTime and ResponseTime bracket the exchange that produced it and
// drive age calculation. An Entry is never modified after creation; a cache
// update after revalidation produces a new Entry via Refresh.
//
// ResponseTime must not be before RequestTime.
type Entry struct {
	// RequestTime is when the request that produced this response was sent.
	RequestTime time.Time
	// ResponseTime is when the response was received.
	ResponseTime time.Time

	StatusCode   int
	ReasonPhrase string

	// Header holds the stored response headers. Lookup is case-insensitive
	// and repeated instances of a field (notably Cache-Control) are all
	// retained in order.
	Header http.Header

	Body []byte
}

// Date returns the entry's parsed Date header.
// The second return value is false if the header is absent or malformed.
func (e *Entry) Date() (time.Time, bool) {
	date, err := parseHTTPDate(e.Header.Get("Date"))
	if err != nil {
		return time.Time{}, false
	}
	return date, true
}

func (e *Entry) lastModified() (time.Time, bool) {
	lm, err := parseHTTPDate(e.Header.Get("Last-Modified"))
	if err != nil {
		return time.Time{}, false
	}
	return lm, true
}

func (e *Entry) etag() (string, bool) {
	etag := e.Header.Get("ETag")
	return etag, etag != ""
}

func (e *Entry) cacheControl() CacheControl {
	return ParseCacheControl(e.Header.Values("Cache-Control"))
}

// Refresh returns a new Entry carrying this entry's body with header fields
// updated from a validation response (typically a 304) and the timestamps of
// the validating exchange. Per RFC 9111 section 3.2, each provided field
// replaces the stored one, except Content-Length and fields that must not be
// stored at all.
func (e *Entry) Refresh(validated http.Header, requestTime, responseTime time.Time) *Entry {
	header := e.Header.Clone()
	for name, values := range validated {
		if name == "Content-Length" || isHopByHop(name) {
			continue
		}
		header[name] = values
	}
	return &Entry{
		RequestTime:  requestTime,
		ResponseTime: responseTime,
		StatusCode:   e.StatusCode,
		ReasonPhrase: e.ReasonPhrase,
		Header:       header,
		Body:         e.Body,
	}
}

// StorableHeader returns a copy of a received response's headers with the
// fields that must not be stored removed: Connection and everything it
// names, other connection-specific fields, and proxy credentials
// (RFC 9111 section 3.1).
func StorableHeader(header http.Header) http.Header {
	h := header.Clone()
	for _, value := range header.Values("Connection") {
		for _, name := range strings.Split(value, ",") {
			h.Del(strings.TrimSpace(name))
		}
	}
	for name := range h {
		if isHopByHop(name) {
			h.Del(name)
		}
	}
	h.Del("Proxy-Authenticate")
	h.Del("Proxy-Authentication-Info")
	h.Del("Proxy-Authorization")
	return h
}

// isHopByHop reports whether a header field is connection-specific and
// therefore excluded from storage and from stored-header updates
// (RFC 9111 section 3.1).
func isHopByHop(name string) bool {
	switch http.CanonicalHeaderKey(name) {
	case "Connection", "Proxy-Connection", "Keep-Alive", "TE",
		"Transfer-Encoding", "Upgrade":
		return true
	}
	return false
}
