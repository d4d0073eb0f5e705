package policy

import "net/http"

// Status codes that are heuristically cacheable per RFC 9110 section 15.1,
// i.e. storable even without explicit freshness information.
var heuristicallyCacheable = map[int]bool{
	http.StatusOK:                   true,
	http.StatusNonAuthoritativeInfo: true,
	http.StatusNoContent:            true,
	http.StatusMultipleChoices:      true,
	http.StatusMovedPermanently:     true,
	http.StatusPermanentRedirect:    true,
	http.StatusNotFound:             true,
	http.StatusMethodNotAllowed:     true,
	http.StatusGone:                 true,
	http.StatusRequestURITooLong:    true,
	http.StatusNotImplemented:       true,
}

// MayStore reports whether an origin response to the given request may be
// stored at all, following RFC 9111 section 3. It is a storage gate only;
// whether a stored entry may later be reused is the suitability checker's
// job.
func MayStore(req *http.Request, res *http.Response, shared bool) bool {
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		return false
	}
	cc := ParseCacheControl(res.Header.Values("Cache-Control"))
	if cc.Has("no-store") {
		return false
	}
	if shared && cc.Has("private") {
		return false
	}
	if shared && req.Header.Get("Authorization") != "" &&
		!cc.Has("public") && !cc.Has("s-maxage") && !cc.Has("must-revalidate") {
		return false
	}
	// explicit freshness or a validator always permits storage
	if cc.Has("public") || cc.Has("s-maxage") || cc.Has("max-age") ||
		res.Header.Get("Expires") != "" {
		return true
	}
	if res.Header.Get("ETag") != "" || res.Header.Get("Last-Modified") != "" {
		return true
	}
	return heuristicallyCacheable[res.StatusCode]
}
