package replaycache

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/replay-cache/replay-cache/policy"
	"github.com/replay-cache/replay-cache/store"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

func newTestProxy(t *testing.T, origin http.Handler) *ReplayCache {
	t.Helper()
	server := httptest.NewServer(origin)
	t.Cleanup(server.Close)
	originURL, err := url.Parse(server.URL)
	if err != nil {
		t.Fatal(err)
	}
	logger := zerolog.Nop()
	return New(Config{
		Store:     store.NewMemoryStore(),
		OriginURL: *originURL,
		Policy:    policy.DefaultConfig(),
		Logger:    &logger,
	})
}

func get(proxy *ReplayCache, path string, headers ...string) *http.Response {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	proxy.ServeHTTP(rr, req)
	return rr.Result()
}

func body(t *testing.T, res *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func TestProxiesOriginResponse(t *testing.T) {
	router := chi.NewRouter()
	router.Get("/hello", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Hello world"))
	})
	proxy := newTestProxy(t, router)

	res := get(proxy, "/hello")

	if res.StatusCode != http.StatusOK {
		t.Fatalf("Status is %d", res.StatusCode)
	}
	if got := body(t, res); got != "Hello world" {
		t.Fatalf("Body is %q", got)
	}
	if cs := res.Header.Get("Cache-Status"); cs != "Replay-Cache; fwd=uri-miss; stored" {
		t.Fatalf("Cache-Status is %q", cs)
	}
}

func TestServesSecondRequestFromCache(t *testing.T) {
	var handleCount int
	router := chi.NewRouter()
	router.Get("/data", func(w http.ResponseWriter, r *http.Request) {
		handleCount++
		w.Header().Set("Cache-Control", "max-age=60")
		w.Write([]byte("Hello world"))
	})
	proxy := newTestProxy(t, router)

	get(proxy, "/data")
	res := get(proxy, "/data")

	if handleCount != 1 {
		t.Fatalf("Origin called %d times", handleCount)
	}
	if got := body(t, res); got != "Hello world" {
		t.Fatalf("Body is %q", got)
	}
	if cs := res.Header.Get("Cache-Status"); !strings.HasPrefix(cs, "Replay-Cache; hit") {
		t.Fatalf("Cache-Status is %q", cs)
	}
}

func TestAnswersConditionalRequestWith304(t *testing.T) {
	router := chi.NewRouter()
	router.Get("/data", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", `"v1"`)
		w.Header().Set("Cache-Control", "max-age=60")
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("Hello world"))
	})
	proxy := newTestProxy(t, router)

	get(proxy, "/data")
	res := get(proxy, "/data", "If-None-Match", `"v1"`)

	if res.StatusCode != http.StatusNotModified {
		t.Fatalf("Status is %d", res.StatusCode)
	}
	if got := body(t, res); got != "" {
		t.Fatalf("Body is %q", got)
	}
	if etag := res.Header.Get("ETag"); etag != `"v1"` {
		t.Fatalf("ETag is %q", etag)
	}
	if ct := res.Header.Get("Content-Type"); ct != "" {
		t.Fatalf("Content-Type is %q", ct)
	}
}

func TestMismatchedConditionalGoesToOrigin(t *testing.T) {
	var handleCount int
	router := chi.NewRouter()
	router.Get("/data", func(w http.ResponseWriter, r *http.Request) {
		handleCount++
		w.Header().Set("ETag", `"v2"`)
		w.Header().Set("Cache-Control", "max-age=60")
		w.Write([]byte("Hello world"))
	})
	proxy := newTestProxy(t, router)

	get(proxy, "/data")
	get(proxy, "/data", "If-None-Match", `"v1"`)

	if handleCount != 2 {
		t.Fatalf("Origin called %d times", handleCount)
	}
}

func TestRevalidatesStaleEntry(t *testing.T) {
	var handleCount int
	router := chi.NewRouter()
	router.Get("/data", func(w http.ResponseWriter, r *http.Request) {
		handleCount++
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.Header().Set("Cache-Control", "max-age=60")
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Header().Set("Cache-Control", "max-age=0")
		w.Write([]byte("Hello world"))
	})
	proxy := newTestProxy(t, router)

	get(proxy, "/data")
	res := get(proxy, "/data")

	if handleCount != 2 {
		t.Fatalf("Origin called %d times", handleCount)
	}
	if res.StatusCode != http.StatusOK {
		t.Fatalf("Status is %d", res.StatusCode)
	}
	if got := body(t, res); got != "Hello world" {
		t.Fatalf("Body is %q", got)
	}
	cs := res.Header.Get("Cache-Status")
	if !strings.Contains(cs, "fwd=stale") || !strings.Contains(cs, "detail=revalidated") {
		t.Fatalf("Cache-Status is %q", cs)
	}

	// the refreshed entry is fresh again
	res = get(proxy, "/data")
	if handleCount != 2 {
		t.Fatalf("Origin called %d times", handleCount)
	}
	if cs := res.Header.Get("Cache-Status"); !strings.HasPrefix(cs, "Replay-Cache; hit") {
		t.Fatalf("Cache-Status is %q", cs)
	}
}

func TestUnsafeMethodInvalidatesStoredResponse(t *testing.T) {
	var handleCount int
	router := chi.NewRouter()
	router.Get("/count", func(w http.ResponseWriter, r *http.Request) {
		handleCount++
		w.Header().Set("Cache-Control", "max-age=60")
		w.Write([]byte("Hello world"))
	})
	router.Post("/count", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	proxy := newTestProxy(t, router)

	get(proxy, "/count")
	get(proxy, "/count")
	if handleCount != 1 {
		t.Fatalf("Origin called %d times before POST", handleCount)
	}

	post := httptest.NewRequest(http.MethodPost, "/count", nil)
	proxy.ServeHTTP(httptest.NewRecorder(), post)

	get(proxy, "/count")
	if handleCount != 2 {
		t.Fatalf("Origin called %d times after POST", handleCount)
	}
}

func TestVarySelectsMatchingVariant(t *testing.T) {
	var handleCount int
	router := chi.NewRouter()
	router.Get("/v", func(w http.ResponseWriter, r *http.Request) {
		handleCount++
		w.Header().Set("Vary", "X-Test")
		w.Header().Set("Cache-Control", "max-age=60")
		w.Write([]byte(r.Header.Get("X-Test")))
	})
	proxy := newTestProxy(t, router)

	get(proxy, "/v", "X-Test", "a")
	get(proxy, "/v", "X-Test", "b")
	res := get(proxy, "/v", "X-Test", "a")

	if handleCount != 2 {
		t.Fatalf("Origin called %d times", handleCount)
	}
	if got := body(t, res); got != "a" {
		t.Fatalf("Body is %q", got)
	}
}

func TestNoStoreResponseIsNotCached(t *testing.T) {
	var handleCount int
	router := chi.NewRouter()
	router.Get("/data", func(w http.ResponseWriter, r *http.Request) {
		handleCount++
		w.Header().Set("Cache-Control", "no-store")
		w.Write([]byte("Hello world"))
	})
	proxy := newTestProxy(t, router)

	get(proxy, "/data")
	res := get(proxy, "/data")

	if handleCount != 2 {
		t.Fatalf("Origin called %d times", handleCount)
	}
	if cs := res.Header.Get("Cache-Status"); strings.Contains(cs, "stored") {
		t.Fatalf("Cache-Status is %q", cs)
	}
}

func TestRequestNoCacheBypassesCache(t *testing.T) {
	var handleCount int
	router := chi.NewRouter()
	router.Get("/data", func(w http.ResponseWriter, r *http.Request) {
		handleCount++
		w.Header().Set("Cache-Control", "max-age=60")
		w.Write([]byte("Hello world"))
	})
	proxy := newTestProxy(t, router)

	get(proxy, "/data")
	res := get(proxy, "/data", "Cache-Control", "no-cache")

	if handleCount != 2 {
		t.Fatalf("Origin called %d times", handleCount)
	}
	if cs := res.Header.Get("Cache-Status"); !strings.Contains(cs, "fwd=request") {
		t.Fatalf("Cache-Status is %q", cs)
	}
}

func TestUnsupportedConditionalBypassesCache(t *testing.T) {
	var handleCount int
	router := chi.NewRouter()
	router.Get("/data", func(w http.ResponseWriter, r *http.Request) {
		handleCount++
		w.Header().Set("Cache-Control", "max-age=60")
		w.Write([]byte("Hello world"))
	})
	proxy := newTestProxy(t, router)

	get(proxy, "/data")
	get(proxy, "/data", "If-Range", `"v1"`)

	if handleCount != 2 {
		t.Fatalf("Origin called %d times", handleCount)
	}
}
