package policy

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRefreshUpdatesHeadersAndTimestamps(t *testing.T) {
	e := newEntry(time.Hour, headerWith(
		"ETag", `"v1"`,
		"Cache-Control", "max-age=100",
		"Content-Type", "text/plain",
	), "hello")
	validated := headerWith(
		"Cache-Control", "max-age=300",
		"Date", formatHTTPDate(testNow),
	)

	refreshed := e.Refresh(validated, testNow.Add(-time.Second), testNow)

	assert.Equal(t, "max-age=300", refreshed.Header.Get("Cache-Control"))
	assert.Equal(t, `"v1"`, refreshed.Header.Get("ETag"))
	assert.Equal(t, "text/plain", refreshed.Header.Get("Content-Type"))
	assert.Equal(t, "hello", string(refreshed.Body))
	assert.Equal(t, testNow, refreshed.ResponseTime)
}

func TestRefreshDoesNotMutateOriginal(t *testing.T) {
	e := newEntry(time.Hour, headerWith("Cache-Control", "max-age=100"), "hello")

	e.Refresh(headerWith("Cache-Control", "max-age=300"), testNow, testNow)

	assert.Equal(t, "max-age=100", e.Header.Get("Cache-Control"))
}

func TestRefreshSkipsContentLengthAndHopByHop(t *testing.T) {
	e := newEntry(time.Hour, headerWith("Content-Length", "5"), "hello")
	validated := headerWith(
		"Content-Length", "0",
		"Transfer-Encoding", "chunked",
		"Connection", "keep-alive",
	)

	refreshed := e.Refresh(validated, testNow, testNow)

	assert.Equal(t, "5", refreshed.Header.Get("Content-Length"))
	assert.Empty(t, refreshed.Header.Get("Transfer-Encoding"))
	assert.Empty(t, refreshed.Header.Get("Connection"))
}

func TestStorableHeaderDropsConnectionSpecificFields(t *testing.T) {
	h := headerWith(
		"Content-Type", "text/plain",
		"Connection", "keep-alive, X-Internal",
		"X-Internal", "secret",
		"Keep-Alive", "timeout=5",
		"Proxy-Authorization", "Basic xyz",
	)

	stored := StorableHeader(h)

	assert.Equal(t, "text/plain", stored.Get("Content-Type"))
	assert.Empty(t, stored.Get("Connection"))
	assert.Empty(t, stored.Get("X-Internal"))
	assert.Empty(t, stored.Get("Keep-Alive"))
	assert.Empty(t, stored.Get("Proxy-Authorization"))
	// the input is untouched
	assert.Equal(t, "secret", h.Get("X-Internal"))
}

func TestEntryDate(t *testing.T) {
	e := newEntry(0, nil, "")
	date, ok := e.Date()
	assert.True(t, ok)
	assert.True(t, date.Equal(e.ResponseTime.Truncate(time.Second)))

	e.Header.Set("Date", "garbage")
	_, ok = e.Date()
	assert.False(t, ok)

	var empty Entry
	empty.Header = make(http.Header)
	_, ok = empty.Date()
	assert.False(t, ok)
}
