package policy

import (
	"bytes"
	"io"
	"net/http"
	"strconv"
	"time"
)

// notModifiedHeaders is the subset of stored headers a 304 Not Modified
// response carries forward. Nothing else may appear, no matter what the
// entry holds.
var notModifiedHeaders = []string{
	"ETag",
	"Content-Location",
	"Expires",
	"Cache-Control",
	"Vary",
}

// ResponseGenerator rebuilds outgoing http.Response values from stored
// entries. Generated responses are new values; the entry is never touched.
type ResponseGenerator struct {
	validity ValidityPolicy
}

// NewResponseGenerator builds a generator. The shared flag must match the
// engine's cache mode so that age calculation honors s-maxage consistently.
func NewResponseGenerator(shared bool) ResponseGenerator {
	return ResponseGenerator{validity: ValidityPolicy{Shared: shared}}
}

// FullResponse builds a complete response from the entry: the stored status
// line, all stored headers, and the stored body. The current age is emitted
// as an Age header when positive, and a Content-Length is synthesized from
// the body when the entry declares neither a length nor a transfer
// encoding.
func (g ResponseGenerator) FullResponse(e *Entry, now time.Time) *http.Response {
	header := e.Header.Clone()
	if header == nil {
		header = make(http.Header)
	}
	if header.Get("Content-Length") == "" && header.Get("Transfer-Encoding") == "" {
		header.Set("Content-Length", strconv.Itoa(len(e.Body)))
	}
	if age := g.validity.CurrentAge(e, now); age > 0 {
		header.Set("Age", formatDeltaSeconds(age))
	}
	return &http.Response{
		Status:        strconv.Itoa(e.StatusCode) + " " + e.ReasonPhrase,
		StatusCode:    e.StatusCode,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(e.Body)),
		ContentLength: int64(len(e.Body)),
	}
}

// NotModifiedResponse builds a 304 Not Modified answer to a conditional
// request whose validators match the entry. Only the mandated header subset
// is copied forward; a Date is synthesized from now when the entry lacks
// one. The response has no body.
func (g ResponseGenerator) NotModifiedResponse(e *Entry, now time.Time) *http.Response {
	header := make(http.Header)
	if date := e.Header.Get("Date"); date != "" {
		header.Set("Date", date)
	} else {
		header.Set("Date", formatHTTPDate(now))
	}
	for _, name := range notModifiedHeaders {
		for _, value := range e.Header.Values(name) {
			header.Add(name, value)
		}
	}
	return &http.Response{
		Status:        "304 Not Modified",
		StatusCode:    http.StatusNotModified,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          http.NoBody,
		ContentLength: 0,
	}
}
