package replaycache

import (
	"fmt"

	"github.com/replay-cache/replay-cache/policy"
)

// FwdReason is the fwd parameter of the Cache-Status response header
// (RFC 9211): why a request was forwarded to the origin.
type FwdReason string

const (
	// FwdReasonMethod: the request method's semantics require forwarding.
	FwdReasonMethod FwdReason = "method"
	// FwdReasonUriMiss: no stored response matched the request URI.
	FwdReasonUriMiss FwdReason = "uri-miss"
	// FwdReasonVaryMiss: a stored response matched the URI but not the
	// request's Vary-nominated header fields.
	FwdReasonVaryMiss FwdReason = "vary-miss"
	// FwdReasonMiss: no stored response could be used (unspecified why).
	FwdReasonMiss FwdReason = "miss"
	// FwdReasonRequest: request semantics, such as Cache-Control request
	// directives, did not allow using a selected response.
	FwdReasonRequest FwdReason = "request"
	// FwdReasonStale: a response was selected but it was stale.
	FwdReasonStale FwdReason = "stale"
)

// CacheStatus accumulates the parameters of one Cache-Status header.
type CacheStatus struct {
	Status     string
	FwdReason  FwdReason
	Stored     bool
	TimeToLive int
	detail     string
}

// Hit marks the request as served from cache.
func (cs *CacheStatus) Hit() {
	cs.Status = "hit"
	cs.FwdReason = ""
}

// Forward marks the request as forwarded for the given reason. The first
// reason recorded wins; later candidate entries do not overwrite it.
func (cs *CacheStatus) Forward(reason FwdReason) {
	cs.Status = "fwd"
	if cs.FwdReason == "" {
		cs.FwdReason = reason
	}
}

// Detail attaches an implementation-specific detail parameter.
func (cs *CacheStatus) Detail(detail string) {
	cs.detail = detail
}

func (cs *CacheStatus) String() string {
	status := fmt.Sprintf("Replay-Cache; %s", cs.Status)
	if cs.Status == "fwd" && cs.FwdReason != "" {
		status = fmt.Sprintf("%s=%s", status, cs.FwdReason)
	}
	if cs.Status == "hit" && cs.TimeToLive != 0 {
		status = fmt.Sprintf("%s; ttl=%d", status, cs.TimeToLive)
	}
	if cs.Stored {
		status += "; stored"
	}
	if cs.detail != "" {
		status += "; detail=" + cs.detail
	}
	return status
}

// fwdReason maps a policy miss reason onto the RFC 9211 vocabulary.
func fwdReason(reason policy.Reason) FwdReason {
	switch reason {
	case policy.ReasonNotFreshEnough:
		return FwdReasonStale
	case policy.ReasonContentLengthMismatch:
		return FwdReasonMiss
	case policy.ReasonUnsupportedConditional,
		policy.ReasonValidatorMismatch,
		policy.ReasonRequestDirective,
		policy.ReasonMalformedDirective:
		return FwdReasonRequest
	}
	return FwdReasonMiss
}
