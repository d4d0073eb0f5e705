// Package replaycache is a caching reverse proxy for a single origin. It
// stores origin responses and replays them to later requests when the
// freshness and validation rules of RFC 9111 allow it, answering
// conditional requests with generated 304 responses and revalidating
// stale entries with the origin. Replay decisions are delegated to the
// policy package; storage to the store package.
package replaycache

import (
	"bytes"
	"crypto/tls"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/replay-cache/replay-cache/metrics"
	"github.com/replay-cache/replay-cache/policy"
	"github.com/replay-cache/replay-cache/store"

	"github.com/rs/zerolog"
)

// Config holds the dependencies and knobs of one cache instance.
type Config struct {
	// Storage for cache entries.
	Store store.Store
	// URL of the origin server.
	// Origins with paths are not supported.
	OriginURL url.URL
	// Hostname to use for HTTP requests and TLS negotiation.
	// Use if needed if e.g. the origin URL is just an IP address.
	OriginHost string
	// Caching policy. The zero value is a shared cache without
	// heuristic caching; see policy.DefaultConfig.
	Policy policy.Config
	// Logger to use. A console logger is used if nil.
	Logger *zerolog.Logger
}

// ReplayCache is the cache engine. It implements http.Handler.
type ReplayCache struct {
	store     store.Store
	keyer     keyer
	policy    policy.Config
	checker   policy.SuitabilityChecker
	generator policy.ResponseGenerator
	validity  policy.ValidityPolicy
	originURL url.URL
	client    http.Client
	log       zerolog.Logger
}

// Stored entries are kept around past their freshness lifetime so that
// stale entries can still be revalidated and served under max-stale.
const staleRetention = 24 * time.Hour

// New initializes a cache instance for the configured origin.
func New(config Config) *ReplayCache {
	var logger zerolog.Logger
	if config.Logger == nil {
		logger = zerolog.New(zerolog.NewConsoleWriter())
	} else {
		logger = *config.Logger
	}
	logger = logger.With().
		Str("origin", config.OriginURL.String()).
		Logger()

	transport := http.DefaultTransport
	if config.OriginHost != "" {
		transport = &http.Transport{
			TLSClientConfig: &tls.Config{
				ServerName: config.OriginHost,
			},
		}
	}

	return &ReplayCache{
		store:     config.Store,
		keyer:     newKeyer(config.OriginURL.String()),
		policy:    config.Policy,
		checker:   policy.NewSuitabilityChecker(config.Policy),
		generator: policy.NewResponseGenerator(config.Policy.Shared),
		validity:  policy.ValidityPolicy{Shared: config.Policy.Shared},
		originURL: config.OriginURL,
		client: http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		log: logger,
	}
}

// staleCandidate remembers a stale entry passed over during selection so
// the origin fetch can try to revalidate it.
type staleCandidate struct {
	entry *policy.Entry
	key   string
}

// ServeHTTP implements the http.Handler interface.
func (rc *ReplayCache) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		rc.writeThrough(w, r)
		return
	}

	now := time.Now()
	cs := CacheStatus{}
	var stale *staleCandidate

	for _, se := range rc.storedEntries(r) {
		entry, err := bytesToEntry(se.Bytes, se.RequestTime, se.ResponseTime)
		if err != nil {
			rc.log.Error().Err(err).Str("key", se.Key).Msg("Could not deserialize stored response")
			rc.purge(se.Key)
			continue
		}
		if !varyMatches(se.Key, listHeader(entry.Header, "Vary"), r) {
			cs.Forward(FwdReasonVaryMiss)
			continue
		}

		decision := rc.checker.Evaluate(r, entry, now)
		switch decision.Outcome {
		case policy.ServeFull:
			cs.Hit()
			cs.TimeToLive = rc.timeToLive(entry, now)
			metrics.Hits.Inc()
			rc.send(w, r, rc.generator.FullResponse(entry, now), &cs)
			return
		case policy.ServeNotModified:
			cs.Hit()
			metrics.NotModified.Inc()
			rc.send(w, r, rc.generator.NotModifiedResponse(entry, now), &cs)
			return
		}

		rc.log.Debug().
			Str("key", se.Key).
			Str("reason", string(decision.Reason)).
			Msg("Stored response not suitable")
		cs.Forward(fwdReason(decision.Reason))
		switch decision.Reason {
		case policy.ReasonContentLengthMismatch:
			rc.purge(se.Key)
		case policy.ReasonNotFreshEnough:
			if stale == nil && !policy.IsConditional(r) {
				stale = &staleCandidate{entry: entry, key: se.Key}
			}
		}
	}

	if cs.Status == "" {
		cs.Forward(FwdReasonUriMiss)
	}
	rc.fetchAndServe(w, r, stale, &cs)
}

// storedEntries returns the store's candidates for the request URI.
func (rc *ReplayCache) storedEntries(r *http.Request) []store.Entry {
	prefix := rc.keyer.keyPrefix(r)
	rc.log.Trace().Str("key", prefix).Msg("Getting stored entries")
	entries, err := rc.store.All(prefix)
	if err != nil {
		rc.log.Error().Err(err).Msg("Could not retrieve from store")
		metrics.StoreErrors.WithLabelValues("all").Inc()
		return nil
	}
	return entries
}

// fetchAndServe forwards the request to the origin. When a stale entry is
// available and the client request carries no validators of its own, the
// entry's validators are attached so the origin can answer 304 and the
// entry be refreshed instead of refetched.
func (rc *ReplayCache) fetchAndServe(w http.ResponseWriter, r *http.Request, stale *staleCandidate, cs *CacheStatus) {
	originReq, err := rc.originRequest(r)
	if err != nil {
		rc.log.Error().Err(err).Msg("Could not build origin request")
		http.Error(w, "Bad Gateway", http.StatusBadGateway)
		return
	}
	if stale != nil {
		if etag := stale.entry.Header.Get("ETag"); etag != "" {
			originReq.Header.Set("If-None-Match", etag)
		}
		if lastModified := stale.entry.Header.Get("Last-Modified"); lastModified != "" {
			originReq.Header.Set("If-Modified-Since", lastModified)
		}
	}

	requestTime := time.Now()
	res, err := rc.client.Do(originReq)
	if err != nil {
		rc.log.Error().Err(err).Msg("Could not reach origin")
		http.Error(w, "Bad Gateway", http.StatusBadGateway)
		return
	}
	responseTime := time.Now()
	defer res.Body.Close()
	if res.Header.Get("Date") == "" {
		res.Header.Set("Date", responseTime.UTC().Format(http.TimeFormat))
	}
	metrics.Misses.WithLabelValues(string(cs.FwdReason)).Inc()

	if stale != nil && res.StatusCode == http.StatusNotModified {
		refreshed := stale.entry.Refresh(res.Header, requestTime, responseTime)
		if rc.storeEntry(r, refreshed) {
			cs.Stored = true
		}
		cs.Detail("revalidated")
		metrics.Revalidations.Inc()
		rc.send(w, r, rc.generator.FullResponse(refreshed, time.Now()), cs)
		return
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		rc.log.Error().Err(err).Msg("Could not read origin response body")
		http.Error(w, "Bad Gateway", http.StatusBadGateway)
		return
	}

	if policy.MayStore(r, res, rc.policy.Shared) {
		entry := &policy.Entry{
			RequestTime:  requestTime,
			ResponseTime: responseTime,
			StatusCode:   res.StatusCode,
			ReasonPhrase: reasonPhrase(res),
			Header:       policy.StorableHeader(res.Header),
			Body:         body,
		}
		if rc.storeEntry(r, entry) {
			cs.Stored = true
			metrics.Stored.Inc()
		}
	}

	out := &http.Response{
		StatusCode: res.StatusCode,
		Header:     res.Header,
		Body:       io.NopCloser(bytes.NewReader(body)),
	}
	rc.send(w, r, out, cs)
}

// writeThrough forwards an unsafe request to the origin and, on a
// non-error response, invalidates every stored variant of the target URI
// (RFC 9111 section 4.4).
func (rc *ReplayCache) writeThrough(w http.ResponseWriter, r *http.Request) {
	cs := CacheStatus{}
	cs.Forward(FwdReasonMethod)

	originReq, err := rc.originRequest(r)
	if err != nil {
		rc.log.Error().Err(err).Msg("Could not build origin request")
		http.Error(w, "Bad Gateway", http.StatusBadGateway)
		return
	}
	res, err := rc.client.Do(originReq)
	if err != nil {
		rc.log.Error().Err(err).Msg("Could not reach origin")
		http.Error(w, "Bad Gateway", http.StatusBadGateway)
		return
	}
	metrics.Misses.WithLabelValues(string(cs.FwdReason)).Inc()

	if res.StatusCode < 400 {
		rc.invalidate(r)
	}
	rc.send(w, r, res, &cs)
}

// invalidate purges all stored variants of the request URI, for both GET
// and HEAD.
func (rc *ReplayCache) invalidate(r *http.Request) {
	for _, method := range []string{http.MethodGet, http.MethodHead} {
		lookup := r.Clone(r.Context())
		lookup.Method = method
		entries, err := rc.store.All(rc.keyer.keyPrefix(lookup))
		if err != nil {
			rc.log.Error().Err(err).Msg("Could not list entries for invalidation")
			metrics.StoreErrors.WithLabelValues("all").Inc()
			continue
		}
		for _, se := range entries {
			rc.log.Debug().Str("key", se.Key).Msg("Invalidating stored response")
			rc.purge(se.Key)
		}
	}
}

// storeEntry serializes and stores an entry under its vary-aware key.
func (rc *ReplayCache) storeEntry(r *http.Request, e *policy.Entry) bool {
	bytes, err := entryToBytes(e)
	if err != nil {
		rc.log.Error().Err(err).Msg("Could not serialize response for storage")
		return false
	}
	key := rc.keyer.addVaryKeys(rc.keyer.keyPrefix(r), r, e.Header)
	se := store.Entry{
		Key:          key,
		RequestTime:  e.RequestTime,
		ResponseTime: e.ResponseTime,
		Expires:      rc.expiration(e),
		Bytes:        bytes,
	}
	rc.log.Trace().Str("key", key).Time("expires", se.Expires).Msg("Writing to store")
	if err := rc.store.Put(se); err != nil {
		rc.log.Error().Err(err).Str("key", key).Msg("Could not write to store")
		metrics.StoreErrors.WithLabelValues("put").Inc()
		return false
	}
	return true
}

// expiration returns the time the store may drop the entry. The freshness
// lifetime is extended by a retention window so stale entries remain
// available for revalidation.
func (rc *ReplayCache) expiration(e *policy.Entry) time.Time {
	lifetime := rc.validity.FreshnessLifetime(e)
	if lifetime == 0 && rc.policy.HeuristicCachingEnabled {
		lifetime = rc.validity.HeuristicFreshnessLifetime(
			e, rc.policy.HeuristicCoefficient, rc.policy.HeuristicDefaultLifetime)
	}
	return e.ResponseTime.Add(lifetime + staleRetention)
}

func (rc *ReplayCache) purge(key string) {
	if err := rc.store.Purge(key); err != nil {
		rc.log.Error().Err(err).Str("key", key).Msg("Could not purge entry")
		metrics.StoreErrors.WithLabelValues("purge").Inc()
	}
}

// timeToLive is the remaining freshness in whole seconds, for the ttl
// parameter of Cache-Status.
func (rc *ReplayCache) timeToLive(e *policy.Entry, now time.Time) int {
	remaining := rc.validity.FreshnessLifetime(e) - rc.validity.CurrentAge(e, now)
	return int(remaining / time.Second)
}

// originRequest rewrites an incoming request for the origin, dropping
// connection-specific headers.
func (rc *ReplayCache) originRequest(r *http.Request) (*http.Request, error) {
	uri := rc.originURL.String() + r.URL.RequestURI()
	var body io.Reader
	if r.Body != nil && r.ContentLength != 0 {
		body = r.Body
	}
	req, err := http.NewRequestWithContext(r.Context(), r.Method, uri, body)
	if err != nil {
		return nil, err
	}
	copyHeader(req.Header, r.Header)
	for _, name := range listHeader(r.Header, "Connection") {
		req.Header.Del(name)
	}
	req.Header.Del("Connection")
	return req, nil
}

// send writes a response and its Cache-Status header to the client.
func (rc *ReplayCache) send(w http.ResponseWriter, r *http.Request, res *http.Response, cs *CacheStatus) {
	if res.Body != nil {
		defer res.Body.Close()
	}
	copyHeader(w.Header(), res.Header)
	w.Header().Set("Cache-Status", cs.String())
	w.WriteHeader(res.StatusCode)
	if r.Method != http.MethodHead && res.Body != nil {
		bytesWritten, err := io.Copy(w, res.Body)
		if err != nil {
			rc.log.Error().Err(err).Msg("Could not write response body to client")
		}
		rc.log.Trace().Msgf("Wrote body (%d bytes)", bytesWritten)
	}
	rc.logRequest(r, cs)
}

func (rc *ReplayCache) logRequest(r *http.Request, cs *CacheStatus) {
	isHit := 0
	if cs.FwdReason == "" {
		isHit = 1
	}
	rc.log.Debug().
		Str("method", r.Method).
		Str("url", r.URL.String()).
		Str("sourceIp", requestSourceIP(r)).
		Str("status", cs.Status).
		Str("fwd", string(cs.FwdReason)).
		Bool("stored", cs.Stored).
		Int("ttl", cs.TimeToLive).
		Int("hit", isHit).
		Msg("Sending response to client")
}

func requestSourceIP(r *http.Request) string {
	// RemoteAddr is in the format:
	// 1.2.3.4:10000 for ipv4
	// [1:2:3]:10000 for ipv6
	ipAndPort := r.RemoteAddr
	portSepIdx := strings.LastIndex(ipAndPort, ":")
	if portSepIdx < 0 {
		return ipAndPort
	}
	return ipAndPort[:portSepIdx]
}

func copyHeader(dst, src http.Header) {
	for k, vv := range src {
		// some servers do not like forwarding headers set by an upstream proxy
		if k != "X-Forwarded-For" && k != "X-Forwarded-Proto" && k != "X-Forwarded-Host" {
			for _, v := range vv {
				dst.Add(k, v)
			}
		}
	}
}
