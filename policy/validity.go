package policy

import (
	"strconv"
	"time"
)

// ValidityPolicy computes ages, freshness lifetimes and staleness for
// stored entries. It carries no state beyond the shared-cache flag; every
// method is a pure function of the entry and the supplied reference time.
type ValidityPolicy struct {
	// Shared enables s-maxage when computing the freshness lifetime.
	Shared bool
}

// CurrentAge returns the entry's age at the reference time, per the
// calculation of RFC 9111 section 4.2.3:
//
//	apparent_age          = max(0, response_time - date_value)
//	corrected_age_value   = age_value + (response_time - request_time)
//	corrected_initial_age = max(apparent_age, corrected_age_value)
//	current_age           = corrected_initial_age + (now - response_time)
//
// A missing or malformed Date header yields an apparent age of zero, and a
// missing Age header an age value of zero. Negative intermediate results
// are clamped to zero so that clock skew never produces a negative age.
func (v ValidityPolicy) CurrentAge(e *Entry, now time.Time) time.Duration {
	return v.correctedInitialAge(e) + residentTime(e, now)
}

func (v ValidityPolicy) correctedInitialAge(e *Entry) time.Duration {
	return durationMax(apparentAge(e), correctedAgeValue(e))
}

func apparentAge(e *Entry) time.Duration {
	date, ok := e.Date()
	if !ok {
		return 0
	}
	return durationMax(0, e.ResponseTime.Sub(date))
}

func correctedAgeValue(e *Entry) time.Duration {
	return ageValue(e) + responseDelay(e)
}

// ageValue is the Age header in arithmetic form, or zero if absent or
// malformed.
func ageValue(e *Entry) time.Duration {
	age, err := parseDeltaSeconds(e.Header.Get("Age"))
	if err != nil {
		return 0
	}
	return age
}

func responseDelay(e *Entry) time.Duration {
	return durationMax(0, e.ResponseTime.Sub(e.RequestTime))
}

func residentTime(e *Entry, now time.Time) time.Duration {
	return durationMax(0, now.Sub(e.ResponseTime))
}

// FreshnessLifetime returns the entry's explicit freshness lifetime,
// evaluating the rules of RFC 9111 section 4.2.1 in order: the s-maxage
// directive (shared caches only), the max-age directive, then the Expires
// header minus the Date header. Zero means no explicit lifetime is present.
func (v ValidityPolicy) FreshnessLifetime(e *Entry) time.Duration {
	cc := e.cacheControl()
	if v.Shared {
		if val, ok := cc.DeltaSeconds("s-maxage"); ok {
			return val
		}
	}
	if val, ok := cc.DeltaSeconds("max-age"); ok {
		return val
	}
	if expires, err := parseHTTPDate(e.Header.Get("Expires")); err == nil {
		if date, ok := e.Date(); ok {
			return durationMax(0, expires.Sub(date))
		}
	}
	return 0
}

// IsFresh reports whether the entry's age has not yet reached its explicit
// freshness lifetime.
func (v ValidityPolicy) IsFresh(e *Entry, now time.Time) bool {
	return v.CurrentAge(e, now) < v.FreshnessLifetime(e)
}

// HeuristicFreshnessLifetime estimates a lifetime for entries without
// explicit expiration information: a fraction of the interval between the
// entry's Date and Last-Modified headers, or defaultLifetime when no usable
// Last-Modified is available.
func (v ValidityPolicy) HeuristicFreshnessLifetime(e *Entry, coefficient float64, defaultLifetime time.Duration) time.Duration {
	lastModified, lmOK := e.lastModified()
	date, dateOK := e.Date()
	if lmOK && dateOK {
		return durationMax(0, time.Duration(coefficient*float64(date.Sub(lastModified))))
	}
	return defaultLifetime
}

// IsHeuristicallyFresh reports whether the entry's age is below its
// heuristic freshness lifetime.
func (v ValidityPolicy) IsHeuristicallyFresh(e *Entry, now time.Time, coefficient float64, defaultLifetime time.Duration) bool {
	return v.CurrentAge(e, now) < v.HeuristicFreshnessLifetime(e, coefficient, defaultLifetime)
}

// Staleness returns how far past its freshness lifetime the entry is,
// or zero if it is still fresh.
func (v ValidityPolicy) Staleness(e *Entry, now time.Time) time.Duration {
	return durationMax(0, v.CurrentAge(e, now)-v.FreshnessLifetime(e))
}

// MustRevalidate reports whether the entry carries the must-revalidate
// response directive.
func (v ValidityPolicy) MustRevalidate(e *Entry) bool {
	return v.HasCacheControlDirective(e, "must-revalidate")
}

// ProxyRevalidate reports whether the entry carries the proxy-revalidate
// response directive.
func (v ValidityPolicy) ProxyRevalidate(e *Entry) bool {
	return v.HasCacheControlDirective(e, "proxy-revalidate")
}

// HasCacheControlDirective reports whether the named directive appears in
// any of the entry's Cache-Control header lines.
func (v ValidityPolicy) HasCacheControlDirective(e *Entry, name string) bool {
	return e.cacheControl().Has(name)
}

// ContentLengthMatches reports whether the entry's Content-Length header,
// if present, agrees with the length of the stored body. A missing header
// is not a mismatch; a malformed one is.
func (v ValidityPolicy) ContentLengthMatches(e *Entry) bool {
	header := e.Header.Get("Content-Length")
	if header == "" {
		return true
	}
	declared, err := strconv.ParseInt(header, 10, 64)
	if err != nil {
		return false
	}
	return declared == int64(len(e.Body))
}

func durationMax(d1, d2 time.Duration) time.Duration {
	if d1 > d2 {
		return d1
	}
	return d2
}
