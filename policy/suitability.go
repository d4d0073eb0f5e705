package policy

import (
	"math"
	"net/http"
	"time"
)

// Outcome says what the caller should do with a stored entry.
type Outcome int

const (
	// MustFetch means the entry cannot satisfy the request; the caller
	// has to revalidate or fetch from the origin.
	MustFetch Outcome = iota
	// ServeFull means the entry can be replayed as a full response.
	ServeFull
	// ServeNotModified means the request's validators match the entry and
	// a 304 Not Modified should be sent instead of the full body.
	ServeNotModified
)

// Reason identifies the rule that ruled an entry out. It is empty for
// ServeFull and ServeNotModified decisions.
type Reason string

const (
	// ReasonUnsupportedConditional: the request carries If-Range, If-Match
	// or If-Unmodified-Since, which this engine never answers from cache.
	ReasonUnsupportedConditional Reason = "unsupported-conditional"
	// ReasonNotFreshEnough: the entry is stale and nothing permits serving
	// it stale.
	ReasonNotFreshEnough Reason = "not-fresh-enough"
	// ReasonContentLengthMismatch: the stored Content-Length disagrees with
	// the stored body; the entry is considered corrupt.
	ReasonContentLengthMismatch Reason = "content-length-mismatch"
	// ReasonValidatorMismatch: the request is conditional but its
	// validators do not match the entry, so the origin must decide.
	ReasonValidatorMismatch Reason = "validator-mismatch"
	// ReasonRequestDirective: a Cache-Control directive on the request
	// (no-cache, no-store, max-age, max-stale, min-fresh) forbids reuse.
	ReasonRequestDirective Reason = "request-directive"
	// ReasonMalformedDirective: a request directive's numeric argument did
	// not parse; the engine fails closed.
	ReasonMalformedDirective Reason = "malformed-directive"
)

// Decision is the result of evaluating one stored entry against a request.
type Decision struct {
	Outcome Outcome
	Reason  Reason
}

// SuitabilityChecker answers whether a stored entry may satisfy a request
// right now. It is stateless; evaluating the same inputs twice yields the
// same decision.
type SuitabilityChecker struct {
	config   Config
	validity ValidityPolicy
}

// NewSuitabilityChecker builds a checker for the given caching policy.
func NewSuitabilityChecker(config Config) SuitabilityChecker {
	return SuitabilityChecker{
		config:   config,
		validity: ValidityPolicy{Shared: config.Shared},
	}
}

// Evaluate runs the ordered suitability checks, short-circuiting on the
// first failure. It never returns an error: malformed input always
// degrades to MustFetch.
func (s SuitabilityChecker) Evaluate(req *http.Request, e *Entry, now time.Time) Decision {
	if hasUnsupportedConditionalHeaders(req) {
		return Decision{MustFetch, ReasonUnsupportedConditional}
	}
	if !s.isFreshEnough(req, e, now) {
		return Decision{MustFetch, ReasonNotFreshEnough}
	}
	if !s.validity.ContentLengthMatches(e) {
		return Decision{MustFetch, ReasonContentLengthMismatch}
	}
	conditional := IsConditional(req)
	if conditional && !AllConditionalsMatch(req, e, now) {
		return Decision{MustFetch, ReasonValidatorMismatch}
	}
	if d, ok := s.requestDirectivesForbidReuse(req, e, now); ok {
		return d
	}
	if conditional {
		return Decision{Outcome: ServeNotModified}
	}
	return Decision{Outcome: ServeFull}
}

// isFreshEnough accepts entries that are fresh, heuristically fresh (when
// enabled), or stale within a max-stale allowance the origin has not
// overridden.
func (s SuitabilityChecker) isFreshEnough(req *http.Request, e *Entry, now time.Time) bool {
	if s.validity.IsFresh(e, now) {
		return true
	}
	if s.config.HeuristicCachingEnabled &&
		s.validity.IsHeuristicallyFresh(e, now, s.config.HeuristicCoefficient, s.config.HeuristicDefaultLifetime) {
		return true
	}
	if s.originInsistsOnFreshness(e) {
		return false
	}
	maxStale, ok := requestMaxStale(req)
	if !ok {
		return false
	}
	return maxStale > s.validity.Staleness(e, now)
}

// originInsistsOnFreshness reports whether the stored response forbids
// serving it stale: must-revalidate always, and for shared caches also
// proxy-revalidate and s-maxage.
func (s SuitabilityChecker) originInsistsOnFreshness(e *Entry) bool {
	if s.validity.MustRevalidate(e) {
		return true
	}
	if !s.config.Shared {
		return false
	}
	return s.validity.ProxyRevalidate(e) ||
		s.validity.HasCacheControlDirective(e, "s-maxage")
}

// requestMaxStale merges the request's max-stale directives. A bare
// max-stale means any staleness is acceptable; when several values are
// present the smallest wins, and a malformed value collapses to zero to
// preserve semantic transparency.
func requestMaxStale(req *http.Request) (time.Duration, bool) {
	merged := time.Duration(-1)
	cc := ParseCacheControl(req.Header.Values("Cache-Control"))
	for _, d := range cc.Directives("max-stale") {
		if !d.HasArgument || d.Argument == "" {
			if merged == -1 {
				merged = math.MaxInt64
			}
			continue
		}
		val, err := parseDeltaSeconds(d.Argument)
		if err != nil {
			val = 0
		}
		if merged == -1 || val < merged {
			merged = val
		}
	}
	if merged == -1 {
		return 0, false
	}
	return merged, true
}

// requestDirectivesForbidReuse applies the request's Cache-Control
// overrides. Note that max-stale is checked here a second time, against the
// freshness lifetime rather than the staleness; both checks are kept
// deliberately.
func (s SuitabilityChecker) requestDirectivesForbidReuse(req *http.Request, e *Entry, now time.Time) (Decision, bool) {
	cc := ParseCacheControl(req.Header.Values("Cache-Control"))
	for _, d := range cc.All() {
		switch d.Name {
		case "no-cache", "no-store":
			return Decision{MustFetch, ReasonRequestDirective}, true

		case "max-age":
			maxAge, err := parseDeltaSeconds(d.Argument)
			if err != nil {
				return Decision{MustFetch, ReasonMalformedDirective}, true
			}
			if s.validity.CurrentAge(e, now) > maxAge {
				return Decision{MustFetch, ReasonRequestDirective}, true
			}

		case "max-stale":
			if !d.HasArgument || d.Argument == "" {
				continue
			}
			maxStale, err := parseDeltaSeconds(d.Argument)
			if err != nil {
				return Decision{MustFetch, ReasonMalformedDirective}, true
			}
			if s.validity.FreshnessLifetime(e) > maxStale {
				return Decision{MustFetch, ReasonRequestDirective}, true
			}

		case "min-fresh":
			minFresh, err := parseDeltaSeconds(d.Argument)
			if err != nil {
				return Decision{MustFetch, ReasonMalformedDirective}, true
			}
			remaining := s.validity.FreshnessLifetime(e) - s.validity.CurrentAge(e, now)
			if remaining < minFresh {
				return Decision{MustFetch, ReasonRequestDirective}, true
			}
		}
	}
	return Decision{}, false
}
