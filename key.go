package replaycache

import (
	"net/http"
	"strings"
)

// keyer derives cache keys for requests. A key has two parts: a prefix
// identifying the resource (method, origin and URI, terminated by a tab)
// and zero or more vary lines recording the request header values the
// stored response's Vary field nominated. All variants of one resource
// share the prefix, so a prefix scan of the store finds them all.
type keyer struct {
	// originID distinguishes origins sharing one store.
	originID string
}

func newKeyer(originID string) keyer {
	return keyer{originID: originID}
}

// keyPrefix returns the variant-independent part of the cache key.
func (k keyer) keyPrefix(r *http.Request) string {
	return r.Method + ":" + k.originID + r.URL.RequestURI() + "\t"
}

// addVaryKeys extends a key prefix with one line per header field nominated
// by the response's Vary field and present on the request.
func (k keyer) addVaryKeys(prefix string, req *http.Request, res http.Header) string {
	key := prefix
	for _, name := range listHeader(res, "Vary") {
		if value := req.Header.Get(name); value != "" {
			key += "\n" + strings.ToLower(name) + ": " + value
		}
	}
	return key
}

// varyHeaders recovers the recorded vary values from a full cache key.
func varyHeaders(key string) http.Header {
	header := make(http.Header)
	lines := strings.Split(key, "\n")
	for i := 1; i < len(lines); i++ {
		parts := strings.SplitN(lines[i], ": ", 2)
		if len(parts) == 2 {
			header.Add(parts[0], parts[1])
		}
	}
	return header
}

// varyMatches reports whether the request's header fields match the ones
// the stored response was selected on. A Vary member of * never matches;
// a field absent on both sides matches.
func varyMatches(key string, storedVary []string, req *http.Request) bool {
	stored := varyHeaders(key)
	for _, name := range storedVary {
		if name == "*" {
			return false
		}
		if name == "" {
			continue
		}
		if stored.Get(name) != req.Header.Get(name) {
			return false
		}
	}
	return true
}

// listHeader returns the members of a comma-separated list header,
// combined across all its instances.
func listHeader(header http.Header, field string) []string {
	var list []string
	for _, value := range header.Values(field) {
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				list = append(list, item)
			}
		}
	}
	return list
}
