package replaycache

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestKeyPrefix(t *testing.T) {
	k := newKeyer("http://origin")
	req := httptest.NewRequest("GET", "/path?q=1", nil)

	if prefix := k.keyPrefix(req); prefix != "GET:http://origin/path?q=1\t" {
		t.Fatalf("Prefix is %q", prefix)
	}
}

func TestKeyPrefixDiffersByMethod(t *testing.T) {
	k := newKeyer("http://origin")
	get := httptest.NewRequest("GET", "/path", nil)
	head := httptest.NewRequest("HEAD", "/path", nil)

	if k.keyPrefix(get) == k.keyPrefix(head) {
		t.Fatal("GET and HEAD share a key prefix")
	}
}

func TestAddVaryKeys(t *testing.T) {
	k := newKeyer("http://origin")
	req := httptest.NewRequest("GET", "/path", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	res := make(http.Header)
	res.Set("Vary", "Accept-Encoding, X-Absent")

	key := k.addVaryKeys(k.keyPrefix(req), req, res)

	want := "GET:http://origin/path\t\naccept-encoding: gzip"
	if key != want {
		t.Fatalf("Key is %q", key)
	}
}

func TestVaryHeadersRoundTrip(t *testing.T) {
	k := newKeyer("http://origin")
	req := httptest.NewRequest("GET", "/path", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	res := make(http.Header)
	res.Set("Vary", "Accept-Encoding")

	key := k.addVaryKeys(k.keyPrefix(req), req, res)

	if got := varyHeaders(key).Get("Accept-Encoding"); got != "gzip" {
		t.Fatalf("Recorded value is %q", got)
	}
}

func TestVaryMatches(t *testing.T) {
	k := newKeyer("http://origin")
	stored := httptest.NewRequest("GET", "/path", nil)
	stored.Header.Set("Accept-Encoding", "gzip")
	res := make(http.Header)
	res.Set("Vary", "Accept-Encoding")
	key := k.addVaryKeys(k.keyPrefix(stored), stored, res)

	same := httptest.NewRequest("GET", "/path", nil)
	same.Header.Set("Accept-Encoding", "gzip")
	if !varyMatches(key, listHeader(res, "Vary"), same) {
		t.Fatal("Identical vary values do not match")
	}

	different := httptest.NewRequest("GET", "/path", nil)
	different.Header.Set("Accept-Encoding", "br")
	if varyMatches(key, listHeader(res, "Vary"), different) {
		t.Fatal("Different vary values match")
	}
}

func TestVaryMatchesAbsentOnBothSides(t *testing.T) {
	k := newKeyer("http://origin")
	stored := httptest.NewRequest("GET", "/path", nil)
	res := make(http.Header)
	res.Set("Vary", "Accept-Encoding")
	key := k.addVaryKeys(k.keyPrefix(stored), stored, res)

	req := httptest.NewRequest("GET", "/path", nil)
	if !varyMatches(key, listHeader(res, "Vary"), req) {
		t.Fatal("Field absent on both sides does not match")
	}
}

func TestVaryStarNeverMatches(t *testing.T) {
	res := make(http.Header)
	res.Set("Vary", "*")
	req := httptest.NewRequest("GET", "/path", nil)

	if varyMatches("GET:http://origin/path\t", listHeader(res, "Vary"), req) {
		t.Fatal("Vary * matched")
	}
}

func TestListHeaderCombinesInstances(t *testing.T) {
	h := make(http.Header)
	h.Add("Vary", "Accept-Encoding, Accept")
	h.Add("Vary", "X-Test")

	list := listHeader(h, "Vary")

	if len(list) != 3 || list[0] != "Accept-Encoding" || list[1] != "Accept" || list[2] != "X-Test" {
		t.Fatalf("List is %v", list)
	}
}
