package policy

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func originResponse(pairs ...string) *http.Response {
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     headerWith(pairs...),
	}
}

func TestMayStoreOnlyGetAndHead(t *testing.T) {
	res := originResponse("Cache-Control", "max-age=100")

	assert.True(t, MayStore(httptest.NewRequest(http.MethodGet, "/", nil), res, true))
	assert.True(t, MayStore(httptest.NewRequest(http.MethodHead, "/", nil), res, true))
	assert.False(t, MayStore(httptest.NewRequest(http.MethodPost, "/", nil), res, true))
	assert.False(t, MayStore(httptest.NewRequest(http.MethodDelete, "/", nil), res, true))
}

func TestMayStoreRespectsNoStore(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	res := originResponse("Cache-Control", "no-store, max-age=100")

	assert.False(t, MayStore(req, res, true))
}

func TestMayStorePrivateOnlyInPrivateCache(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	res := originResponse("Cache-Control", "private, max-age=100")

	assert.False(t, MayStore(req, res, true))
	assert.True(t, MayStore(req, res, false))
}

func TestMayStoreAuthorizedRequestInSharedCache(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer token")

	assert.False(t, MayStore(req, originResponse("Cache-Control", "max-age=100"), true))
	assert.True(t, MayStore(req, originResponse("Cache-Control", "public, max-age=100"), true))
	assert.True(t, MayStore(req, originResponse("Cache-Control", "s-maxage=100"), true))
	// a private cache does not care about Authorization
	assert.True(t, MayStore(req, originResponse("Cache-Control", "max-age=100"), false))
}

func TestMayStoreValidatorPermitsStorage(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	assert.True(t, MayStore(req, originResponse("ETag", `"v1"`), true))
	assert.True(t, MayStore(req, originResponse("Last-Modified", formatHTTPDate(testNow)), true))
}

func TestMayStoreHeuristicallyCacheableStatus(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	ok := &http.Response{StatusCode: http.StatusOK, Header: make(http.Header)}
	assert.True(t, MayStore(req, ok, true))

	teapot := &http.Response{StatusCode: http.StatusTeapot, Header: make(http.Header)}
	assert.False(t, MayStore(req, teapot, true))
}
