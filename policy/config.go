package policy

import "time"

// Config holds the caching policy for one engine instance.
// It is constructed once and read-only thereafter, so it is safe to share
// across concurrent evaluations.
type Config struct {
	// Shared selects shared-cache semantics: the s-maxage and
	// proxy-revalidate directives apply, and private responses must not
	// be reused.
	Shared bool

	// HeuristicCachingEnabled allows a freshness lifetime to be inferred
	// for entries without explicit expiration information.
	HeuristicCachingEnabled bool

	// HeuristicCoefficient is the fraction of the Date minus Last-Modified
	// interval used as the heuristic lifetime. Must be in [0, 1].
	HeuristicCoefficient float64

	// HeuristicDefaultLifetime is the heuristic lifetime used when the
	// entry carries no usable Last-Modified header.
	HeuristicDefaultLifetime time.Duration
}

// DefaultConfig returns the policy used when nothing is configured:
// a shared cache with heuristic caching off.
func DefaultConfig() Config {
	return Config{
		Shared:                   true,
		HeuristicCachingEnabled:  false,
		HeuristicCoefficient:     0.1,
		HeuristicDefaultLifetime: 0,
	}
}
